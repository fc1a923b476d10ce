package repository

import (
	"context"
	"fmt"

	"hattery/database"
	"hattery/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const positionColumns = `
	id, campaign_id, owner_id, side, amount, claimed, payout_amount,
	created_at, claimed_at
`

// PositionRepository implements the PositionRepository interface
type PositionRepository struct {
	q queryable
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *database.DB) *PositionRepository {
	return &PositionRepository{q: db.Pool}
}

// newPositionRepositoryWithTx creates a new position repository with a transaction
func newPositionRepositoryWithTx(tx queryable) *PositionRepository {
	return &PositionRepository{q: tx}
}

// Create persists a new position
func (r *PositionRepository) Create(ctx context.Context, position *models.Position) error {
	query := `
		INSERT INTO positions (id, campaign_id, owner_id, side, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		position.ID,
		position.CampaignID,
		position.OwnerID,
		position.Side,
		position.Amount,
	).Scan(&position.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create position %s: %w", position.ID, err)
	}

	return nil
}

// GetByID retrieves a position by its ID
func (r *PositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1`
	return r.scanPosition(r.q.QueryRow(ctx, query, id), id)
}

// GetByIDForUpdate retrieves a position with a row lock. Concurrent claims
// against the same position serialize here; claims against different
// positions proceed in parallel.
func (r *PositionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1 FOR UPDATE`
	return r.scanPosition(r.q.QueryRow(ctx, query, id), id)
}

// GetByCampaign returns all positions of a campaign in placement order
func (r *PositionRepository) GetByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE campaign_id = $1 ORDER BY created_at`
	return r.queryPositions(ctx, query, campaignID)
}

// GetByOwner returns all positions of a participant, newest first
func (r *PositionRepository) GetByOwner(ctx context.Context, ownerID string) ([]*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE owner_id = $1 ORDER BY created_at DESC`
	return r.queryPositions(ctx, query, ownerID)
}

// CountByCampaign returns the number of positions in a campaign
func (r *PositionRepository) CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var count int64
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM positions WHERE campaign_id = $1`, campaignID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count positions of campaign %s: %w", campaignID, err)
	}
	return count, nil
}

// SumByCampaignSide returns the sum of staked amounts on one side
func (r *PositionRepository) SumByCampaignSide(ctx context.Context, campaignID uuid.UUID, side models.BetSide) (int64, error) {
	var sum int64
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM positions WHERE campaign_id = $1 AND side = $2`,
		campaignID, side,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum %s positions of campaign %s: %w", side, campaignID, err)
	}
	return sum, nil
}

// Update persists the claim record fields of a position
func (r *PositionRepository) Update(ctx context.Context, position *models.Position) error {
	query := `
		UPDATE positions
		SET claimed = $2, payout_amount = $3, claimed_at = $4
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		position.ID,
		position.Claimed,
		position.PayoutAmount,
		position.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update position %s: %w", position.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %s not found for update", position.ID)
	}

	return nil
}

func (r *PositionRepository) queryPositions(ctx context.Context, query string, args ...any) ([]*models.Position, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		var position models.Position
		if err := rows.Scan(
			&position.ID,
			&position.CampaignID,
			&position.OwnerID,
			&position.Side,
			&position.Amount,
			&position.Claimed,
			&position.PayoutAmount,
			&position.CreatedAt,
			&position.ClaimedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, &position)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}

	return positions, nil
}

func (r *PositionRepository) scanPosition(row pgx.Row, id uuid.UUID) (*models.Position, error) {
	var position models.Position
	err := row.Scan(
		&position.ID,
		&position.CampaignID,
		&position.OwnerID,
		&position.Side,
		&position.Amount,
		&position.Claimed,
		&position.PayoutAmount,
		&position.CreatedAt,
		&position.ClaimedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position %s: %w", id, err)
	}

	return &position, nil
}

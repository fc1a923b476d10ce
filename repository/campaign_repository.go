package repository

import (
	"context"
	"fmt"
	"time"

	"hattery/database"
	"hattery/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const campaignColumns = `
	id, creator_id, token_name, image_url, asset_link, network,
	state, fee_bps, supporter_pool, hatter_pool, winning_side,
	closes_at, created_at, resolved_at
`

// CampaignRepository implements the CampaignRepository interface
type CampaignRepository struct {
	q queryable
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *database.DB) *CampaignRepository {
	return &CampaignRepository{q: db.Pool}
}

// newCampaignRepositoryWithTx creates a new campaign repository with a transaction
func newCampaignRepositoryWithTx(tx queryable) *CampaignRepository {
	return &CampaignRepository{q: tx}
}

// Create persists a new campaign
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	query := `
		INSERT INTO campaigns (
			id, creator_id, token_name, image_url, asset_link, network,
			state, fee_bps, supporter_pool, hatter_pool, closes_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		campaign.ID,
		campaign.CreatorID,
		campaign.TokenName,
		campaign.ImageURL,
		campaign.AssetLink,
		campaign.Network,
		campaign.State,
		campaign.FeeBps,
		campaign.SupporterPool,
		campaign.HatterPool,
		campaign.ClosesAt,
	).Scan(&campaign.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create campaign %s: %w", campaign.ID, err)
	}

	return nil
}

// GetByID retrieves a campaign by its ID
func (r *CampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	return r.scanCampaign(r.q.QueryRow(ctx, query, id), id)
}

// GetByIDForUpdate retrieves a campaign with a row lock. All mutating
// operations on the same campaign serialize on this lock; different
// campaigns never block one another.
func (r *CampaignRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 FOR UPDATE`
	return r.scanCampaign(r.q.QueryRow(ctx, query, id), id)
}

// Update persists mutable campaign fields
func (r *CampaignRepository) Update(ctx context.Context, campaign *models.Campaign) error {
	query := `
		UPDATE campaigns
		SET state = $2, supporter_pool = $3, hatter_pool = $4,
		    winning_side = $5, resolved_at = $6
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		campaign.ID,
		campaign.State,
		campaign.SupporterPool,
		campaign.HatterPool,
		campaign.WinningSide,
		campaign.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign %s: %w", campaign.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("campaign %s not found for update", campaign.ID)
	}

	return nil
}

// IncrementPool atomically adds amount to one side's pool total
func (r *CampaignRepository) IncrementPool(ctx context.Context, id uuid.UUID, side models.BetSide, amount int64) error {
	column := "supporter_pool"
	if side == models.SideHatter {
		column = "hatter_pool"
	}

	query := fmt.Sprintf(`UPDATE campaigns SET %s = %s + $2 WHERE id = $1`, column, column)
	tag, err := r.q.Exec(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("failed to increment %s pool of campaign %s: %w", side, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("campaign %s not found for pool increment", id)
	}

	return nil
}

// ListOpen returns campaigns whose stored state is open, newest first
func (r *CampaignRepository) ListOpen(ctx context.Context) ([]*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE state = 'open' ORDER BY created_at DESC`
	return r.queryCampaigns(ctx, query)
}

// ListAll returns every campaign, newest first
func (r *CampaignRepository) ListAll(ctx context.Context) ([]*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns ORDER BY created_at DESC`
	return r.queryCampaigns(ctx, query)
}

// GetExpiredOpen returns open campaigns whose deadline has passed
func (r *CampaignRepository) GetExpiredOpen(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE state = 'open' AND closes_at <= $1 ORDER BY closes_at`
	return r.queryCampaigns(ctx, query, now)
}

func (r *CampaignRepository) queryCampaigns(ctx context.Context, query string, args ...any) ([]*models.Campaign, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*models.Campaign
	for rows.Next() {
		var campaign models.Campaign
		if err := rows.Scan(
			&campaign.ID,
			&campaign.CreatorID,
			&campaign.TokenName,
			&campaign.ImageURL,
			&campaign.AssetLink,
			&campaign.Network,
			&campaign.State,
			&campaign.FeeBps,
			&campaign.SupporterPool,
			&campaign.HatterPool,
			&campaign.WinningSide,
			&campaign.ClosesAt,
			&campaign.CreatedAt,
			&campaign.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, &campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate campaigns: %w", err)
	}

	return campaigns, nil
}

func (r *CampaignRepository) scanCampaign(row pgx.Row, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := row.Scan(
		&campaign.ID,
		&campaign.CreatorID,
		&campaign.TokenName,
		&campaign.ImageURL,
		&campaign.AssetLink,
		&campaign.Network,
		&campaign.State,
		&campaign.FeeBps,
		&campaign.SupporterPool,
		&campaign.HatterPool,
		&campaign.WinningSide,
		&campaign.ClosesAt,
		&campaign.CreatedAt,
		&campaign.ResolvedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign %s: %w", id, err)
	}

	return &campaign, nil
}

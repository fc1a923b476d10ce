package service

import (
	"context"
	"time"

	"hattery/events"
	"hattery/models"

	"github.com/google/uuid"
)

// CampaignRepository defines the interface for campaign data access
type CampaignRepository interface {
	// Create persists a new campaign
	Create(ctx context.Context, campaign *models.Campaign) error

	// GetByID retrieves a campaign by its ID, nil if not found
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)

	// GetByIDForUpdate retrieves a campaign with a row lock, serializing
	// all mutating operations against the same campaign
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Campaign, error)

	// Update persists state, winning side, pools and resolution timestamp
	Update(ctx context.Context, campaign *models.Campaign) error

	// IncrementPool atomically adds amount to one side's pool total
	IncrementPool(ctx context.Context, id uuid.UUID, side models.BetSide, amount int64) error

	// ListOpen returns campaigns whose stored state is open, newest first
	ListOpen(ctx context.Context) ([]*models.Campaign, error)

	// ListAll returns every campaign, newest first
	ListAll(ctx context.Context) ([]*models.Campaign, error)

	// GetExpiredOpen returns open campaigns whose deadline has passed
	GetExpiredOpen(ctx context.Context, now time.Time) ([]*models.Campaign, error)
}

// PositionRepository defines the interface for position data access
type PositionRepository interface {
	// Create persists a new position
	Create(ctx context.Context, position *models.Position) error

	// GetByID retrieves a position by its ID, nil if not found
	GetByID(ctx context.Context, id uuid.UUID) (*models.Position, error)

	// GetByIDForUpdate retrieves a position with a row lock, serializing
	// concurrent claims against the same position
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Position, error)

	// GetByCampaign returns all positions of a campaign in placement order
	GetByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*models.Position, error)

	// GetByOwner returns all positions of a participant, newest first
	GetByOwner(ctx context.Context, ownerID string) ([]*models.Position, error)

	// CountByCampaign returns the number of positions in a campaign
	CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error)

	// SumByCampaignSide returns the sum of staked amounts on one side
	SumByCampaignSide(ctx context.Context, campaignID uuid.UUID, side models.BetSide) (int64, error)

	// Update persists the claim record fields of a position
	Update(ctx context.Context, position *models.Position) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(event events.Event) error
}

// UnitOfWork represents one logically atomic engine operation: every
// repository mutation inside it commits or rolls back as a whole, and
// buffered events are only emitted after a successful commit
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	CampaignRepository() CampaignRepository
	PositionRepository() PositionRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork

	// CreateReadOnly creates a unit of work for snapshot queries. Every
	// read inside it observes one consistent point in time, so pool
	// totals and position lists can never disagree within a snapshot.
	CreateReadOnly() UnitOfWork
}

// ResolutionAuthority decides who may supply a campaign's winning side.
// The engine never derives the outcome itself; it only consumes the decision.
type ResolutionAuthority interface {
	CanResolve(callerID string) bool
}

// OpenCampaignParams contains the inputs for opening a campaign
type OpenCampaignParams struct {
	CreatorID string
	TokenName string
	ImageURL  string
	AssetLink string
	Network   string
	ClosesAt  time.Time
	FeeBps    int64 // 0 means the configured default
}

// CampaignStatus is a consistent read-only snapshot of a campaign
type CampaignStatus struct {
	Campaign      *models.Campaign
	State         models.CampaignState // effective state at query time
	SupporterPool int64
	HatterPool    int64
	TotalPot      int64
	PositionCount int64
	// Display multipliers derived from current pool shares; never used in
	// any balance computation
	SupporterMultiplier float64
	HatterMultiplier    float64
}

// PositionView is a read-only snapshot of a position with derived status
type PositionView struct {
	Position  *models.Position
	Status    models.PositionStatus
	Claimable int64 // amount a claim would disburse right now, 0 if none
}

// CampaignDetail combines a campaign status snapshot with every position
// wagered into it, read as one consistent view
type CampaignDetail struct {
	Status    *CampaignStatus
	Positions []*PositionView
}

// CampaignService defines the engine facade
type CampaignService interface {
	// OpenCampaign creates a new open campaign
	OpenCampaign(ctx context.Context, params OpenCampaignParams) (*models.Campaign, error)

	// PlaceWager admits a stake into one side's pool and returns the position
	PlaceWager(ctx context.Context, campaignID uuid.UUID, ownerID string, side models.BetSide, amount int64) (*models.Position, error)

	// ResolveCampaign fixes the winning side supplied by the resolution authority
	ResolveCampaign(ctx context.Context, campaignID uuid.UUID, resolverID string, winningSide models.BetSide) (*models.Campaign, error)

	// CancelCampaign administratively cancels a campaign, making all
	// positions refundable in full
	CancelCampaign(ctx context.Context, campaignID uuid.UUID, cancellerID string) error

	// Claim disburses a winning payout or cancellation refund exactly once
	Claim(ctx context.Context, positionID uuid.UUID, callerID string) (int64, error)

	// GetCampaignStatus returns a consistent snapshot of a campaign
	GetCampaignStatus(ctx context.Context, campaignID uuid.UUID) (*CampaignStatus, error)

	// GetCampaignDetail returns a campaign snapshot together with all of
	// its positions
	GetCampaignDetail(ctx context.Context, campaignID uuid.UUID) (*CampaignDetail, error)

	// GetPosition returns a snapshot of a position with derived status
	GetPosition(ctx context.Context, positionID uuid.UUID) (*PositionView, error)

	// ListCampaigns returns snapshots of all campaigns, newest first
	ListCampaigns(ctx context.Context) ([]*CampaignStatus, error)

	// ListPositionsByOwner returns a participant's positions, newest first
	ListPositionsByOwner(ctx context.Context, ownerID string) ([]*PositionView, error)

	// CloseExpiredCampaigns flips expired open campaigns to closed. State
	// hygiene only: the deadline predicate is authoritative regardless.
	CloseExpiredCampaigns(ctx context.Context) error
}

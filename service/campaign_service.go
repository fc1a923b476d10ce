package service

import (
	"context"
	"fmt"
	"time"

	"hattery/events"
	"hattery/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type campaignService struct {
	uowFactory UnitOfWorkFactory
	calculator *SettlementCalculator
	authority  ResolutionAuthority
	defaultFee int64
	now        func() time.Time
}

// NewCampaignService creates a new campaign service using the system clock
func NewCampaignService(uowFactory UnitOfWorkFactory, authority ResolutionAuthority, defaultFeeBps int64) CampaignService {
	return NewCampaignServiceWithClock(uowFactory, authority, defaultFeeBps, time.Now)
}

// NewCampaignServiceWithClock creates a campaign service with an explicit
// clock. The clock is the engine's single authoritative time source: every
// deadline decision, including a wager racing the closing boundary, is
// settled against it rather than the caller's clock.
func NewCampaignServiceWithClock(uowFactory UnitOfWorkFactory, authority ResolutionAuthority, defaultFeeBps int64, clock func() time.Time) CampaignService {
	return &campaignService{
		uowFactory: uowFactory,
		calculator: NewSettlementCalculator(),
		authority:  authority,
		defaultFee: defaultFeeBps,
		now:        clock,
	}
}

// OpenCampaign creates a new open campaign
func (s *campaignService) OpenCampaign(ctx context.Context, params OpenCampaignParams) (*models.Campaign, error) {
	if params.CreatorID == "" {
		return nil, fmt.Errorf("%w: creator cannot be empty", models.ErrInvalidInput)
	}
	if params.TokenName == "" {
		return nil, fmt.Errorf("%w: token name cannot be empty", models.ErrInvalidInput)
	}

	now := s.now()
	if !params.ClosesAt.After(now) {
		return nil, fmt.Errorf("%w: closing deadline must be in the future", models.ErrInvalidInput)
	}

	feeBps := params.FeeBps
	if feeBps == 0 {
		feeBps = s.defaultFee
	}
	if feeBps < 0 || feeBps >= FeeBpsDenominator {
		return nil, fmt.Errorf("%w: fee rate %d bps out of range", models.ErrInvalidInput, feeBps)
	}

	campaign := &models.Campaign{
		ID:        uuid.New(),
		CreatorID: params.CreatorID,
		TokenName: params.TokenName,
		ImageURL:  params.ImageURL,
		AssetLink: params.AssetLink,
		Network:   params.Network,
		State:     models.CampaignStateOpen,
		FeeBps:    feeBps,
		ClosesAt:  params.ClosesAt,
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	if err := uow.CampaignRepository().Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	if err := uow.EventBus().Publish(events.CampaignCreatedEvent{
		CampaignID: campaign.ID,
		CreatorID:  campaign.CreatorID,
		TokenName:  campaign.TokenName,
		ClosesAt:   campaign.ClosesAt,
	}); err != nil {
		log.WithError(err).Error("Failed to publish campaign created event")
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return campaign, nil
}

// PlaceWager admits a stake into one side's pool. The position row and the
// pool increment commit together; no reader can observe one without the other.
func (s *campaignService) PlaceWager(ctx context.Context, campaignID uuid.UUID, ownerID string, side models.BetSide, amount int64) (*models.Position, error) {
	if amount < 1 {
		return nil, models.ErrInvalidAmount
	}
	if !side.IsValid() {
		return nil, fmt.Errorf("%w: invalid side %q", models.ErrInvalidInput, side)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: participant cannot be empty", models.ErrInvalidInput)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	campaign, err := uow.CampaignRepository().GetByIDForUpdate(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	if campaign == nil {
		return nil, models.ErrCampaignNotFound
	}

	// The deadline check is evaluated against the engine clock at the moment
	// of the call; a wager racing the deadline loses even if no sweep has
	// flipped the stored state yet.
	if !campaign.AcceptsWagersAt(s.now()) {
		return nil, models.ErrCampaignNotOpen
	}

	position := &models.Position{
		ID:         uuid.New(),
		CampaignID: campaign.ID,
		OwnerID:    ownerID,
		Side:       side,
		Amount:     amount,
	}

	if err := uow.PositionRepository().Create(ctx, position); err != nil {
		return nil, fmt.Errorf("failed to create position: %w", err)
	}
	if err := uow.CampaignRepository().IncrementPool(ctx, campaign.ID, side, amount); err != nil {
		return nil, fmt.Errorf("failed to increment pool: %w", err)
	}

	if err := uow.EventBus().Publish(events.WagerPlacedEvent{
		CampaignID: campaign.ID,
		PositionID: position.ID,
		OwnerID:    ownerID,
		Side:       string(side),
		Amount:     amount,
	}); err != nil {
		log.WithError(err).Error("Failed to publish wager placed event")
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return position, nil
}

// ResolveCampaign fixes the winning side supplied by the resolution authority
func (s *campaignService) ResolveCampaign(ctx context.Context, campaignID uuid.UUID, resolverID string, winningSide models.BetSide) (*models.Campaign, error) {
	if !winningSide.IsValid() {
		return nil, fmt.Errorf("%w: invalid winning side %q", models.ErrInvalidInput, winningSide)
	}
	if !s.authority.CanResolve(resolverID) {
		return nil, models.ErrNotAuthorized
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	campaign, err := uow.CampaignRepository().GetByIDForUpdate(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	if campaign == nil {
		return nil, models.ErrCampaignNotFound
	}

	now := s.now()
	switch campaign.EffectiveState(now) {
	case models.CampaignStateClosed:
		// resolvable
	case models.CampaignStateResolved:
		return nil, models.ErrAlreadyResolved
	default:
		return nil, models.ErrCampaignNotClosed
	}

	// Conservation check before fixing the outcome: each pool total must
	// equal the sum of its positions. A mismatch is corrupted accounting and
	// aborts resolution.
	if err := s.verifyConservation(ctx, uow, campaign); err != nil {
		return nil, err
	}

	oldState := campaign.State
	campaign.Resolve(winningSide, now)
	if !campaign.IsResolved() {
		return nil, models.NewInvariantViolation("resolve-transition",
			"campaign %s did not transition to resolved from %s", campaign.ID, oldState)
	}

	if err := uow.CampaignRepository().Update(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to update resolved campaign: %w", err)
	}

	if err := uow.EventBus().Publish(events.CampaignResolvedEvent{
		CampaignID:  campaign.ID,
		ResolverID:  resolverID,
		WinningSide: string(winningSide),
		TotalPot:    campaign.TotalPot(),
	}); err != nil {
		log.WithError(err).Error("Failed to publish campaign resolved event")
	}
	s.publishStateChange(uow, campaign, oldState)

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return campaign, nil
}

// CancelCampaign administratively cancels a campaign
func (s *campaignService) CancelCampaign(ctx context.Context, campaignID uuid.UUID, cancellerID string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	campaign, err := uow.CampaignRepository().GetByIDForUpdate(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to get campaign: %w", err)
	}
	if campaign == nil {
		return models.ErrCampaignNotFound
	}

	// The creator may cancel their own campaign; anyone else needs
	// resolution authority.
	if cancellerID != campaign.CreatorID && !s.authority.CanResolve(cancellerID) {
		return models.ErrNotAuthorized
	}

	if campaign.IsTerminal() {
		return models.ErrAlreadyResolved
	}

	oldState := campaign.State
	campaign.Cancel()
	if err := uow.CampaignRepository().Update(ctx, campaign); err != nil {
		return fmt.Errorf("failed to update cancelled campaign: %w", err)
	}

	s.publishStateChange(uow, campaign, oldState)

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Claim disburses a winning payout, or a full refund for a cancelled
// campaign, exactly once per position. The row lock on the position makes
// the compute-and-mark step atomic: of two racing claims, the second
// observes the claimed flag and fails with ErrAlreadyClaimed.
func (s *campaignService) Claim(ctx context.Context, positionID uuid.UUID, callerID string) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	position, err := uow.PositionRepository().GetByIDForUpdate(ctx, positionID)
	if err != nil {
		return 0, fmt.Errorf("failed to get position: %w", err)
	}
	if position == nil {
		return 0, models.ErrPositionNotFound
	}
	if position.OwnerID != callerID {
		return 0, models.ErrNotOwner
	}

	campaign, err := uow.CampaignRepository().GetByID(ctx, position.CampaignID)
	if err != nil {
		return 0, fmt.Errorf("failed to get campaign: %w", err)
	}
	if campaign == nil {
		return 0, models.NewInvariantViolation("position-campaign",
			"position %s references missing campaign %s", position.ID, position.CampaignID)
	}

	var payout int64
	switch {
	case campaign.IsCancelled():
		payout = s.calculator.Refund(position)
	case campaign.IsResolved():
		if position.StatusIn(campaign) == models.PositionStatusLost {
			return 0, models.ErrNotAWinner
		}
		payout, err = s.calculator.Payout(position, campaign)
		if err != nil {
			return 0, err
		}
	default:
		return 0, models.ErrNotResolved
	}

	if position.Claimed {
		return 0, models.ErrAlreadyClaimed
	}

	position.MarkClaimed(payout, s.now())
	if err := uow.PositionRepository().Update(ctx, position); err != nil {
		return 0, fmt.Errorf("failed to mark position claimed: %w", err)
	}

	if err := uow.EventBus().Publish(events.PositionClaimedEvent{
		CampaignID: campaign.ID,
		PositionID: position.ID,
		OwnerID:    position.OwnerID,
		Amount:     payout,
		Refund:     campaign.IsCancelled(),
	}); err != nil {
		log.WithError(err).Error("Failed to publish position claimed event")
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return payout, nil
}

// GetCampaignStatus returns a consistent snapshot of a campaign
func (s *campaignService) GetCampaignStatus(ctx context.Context, campaignID uuid.UUID) (*CampaignStatus, error) {
	uow := s.uowFactory.CreateReadOnly()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	campaign, err := uow.CampaignRepository().GetByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	if campaign == nil {
		return nil, models.ErrCampaignNotFound
	}

	count, err := uow.PositionRepository().CountByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to count positions: %w", err)
	}

	status := s.buildStatus(campaign, count)

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return status, nil
}

// GetCampaignDetail returns a campaign snapshot together with all of its
// positions, read within one consistent view
func (s *campaignService) GetCampaignDetail(ctx context.Context, campaignID uuid.UUID) (*CampaignDetail, error) {
	uow := s.uowFactory.CreateReadOnly()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	campaign, err := uow.CampaignRepository().GetByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	if campaign == nil {
		return nil, models.ErrCampaignNotFound
	}

	positions, err := uow.PositionRepository().GetByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	detail := &CampaignDetail{
		Status:    s.buildStatus(campaign, int64(len(positions))),
		Positions: make([]*PositionView, 0, len(positions)),
	}
	for _, position := range positions {
		view, err := s.buildPositionView(position, campaign)
		if err != nil {
			return nil, err
		}
		detail.Positions = append(detail.Positions, view)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return detail, nil
}

// GetPosition returns a snapshot of a position with derived status
func (s *campaignService) GetPosition(ctx context.Context, positionID uuid.UUID) (*PositionView, error) {
	uow := s.uowFactory.CreateReadOnly()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	position, err := uow.PositionRepository().GetByID(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	if position == nil {
		return nil, models.ErrPositionNotFound
	}

	campaign, err := uow.CampaignRepository().GetByID(ctx, position.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	if campaign == nil {
		return nil, models.NewInvariantViolation("position-campaign",
			"position %s references missing campaign %s", position.ID, position.CampaignID)
	}

	view, err := s.buildPositionView(position, campaign)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return view, nil
}

// ListCampaigns returns snapshots of all campaigns, newest first
func (s *campaignService) ListCampaigns(ctx context.Context) ([]*CampaignStatus, error) {
	uow := s.uowFactory.CreateReadOnly()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	campaigns, err := uow.CampaignRepository().ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	statuses := make([]*CampaignStatus, 0, len(campaigns))
	for _, campaign := range campaigns {
		count, err := uow.PositionRepository().CountByCampaign(ctx, campaign.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count positions: %w", err)
		}
		statuses = append(statuses, s.buildStatus(campaign, count))
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return statuses, nil
}

// ListPositionsByOwner returns a participant's positions, newest first
func (s *campaignService) ListPositionsByOwner(ctx context.Context, ownerID string) ([]*PositionView, error) {
	uow := s.uowFactory.CreateReadOnly()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	positions, err := uow.PositionRepository().GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	views := make([]*PositionView, 0, len(positions))
	for _, position := range positions {
		campaign, err := uow.CampaignRepository().GetByID(ctx, position.CampaignID)
		if err != nil {
			return nil, fmt.Errorf("failed to get campaign: %w", err)
		}
		if campaign == nil {
			return nil, models.NewInvariantViolation("position-campaign",
				"position %s references missing campaign %s", position.ID, position.CampaignID)
		}
		view, err := s.buildPositionView(position, campaign)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return views, nil
}

// CloseExpiredCampaigns flips expired open campaigns to closed and emits
// state change events
func (s *campaignService) CloseExpiredCampaigns(ctx context.Context) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	expired, err := uow.CampaignRepository().GetExpiredOpen(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to get expired campaigns: %w", err)
	}

	closed := 0
	for _, candidate := range expired {
		// The scan ran without a row lock, so a resolver or canceller may
		// have moved the campaign on since. Re-read under the lock and
		// only flip rows that are still open; a blind write here could
		// revert a committed resolution.
		campaign, err := uow.CampaignRepository().GetByIDForUpdate(ctx, candidate.ID)
		if err != nil {
			return fmt.Errorf("failed to lock campaign %s: %w", candidate.ID, err)
		}
		if campaign == nil || campaign.State != models.CampaignStateOpen {
			continue
		}

		oldState := campaign.State
		campaign.Close()
		if err := uow.CampaignRepository().Update(ctx, campaign); err != nil {
			return fmt.Errorf("failed to close campaign %s: %w", campaign.ID, err)
		}
		s.publishStateChange(uow, campaign, oldState)
		closed++
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if closed > 0 {
		log.WithField("count", closed).Info("Closed expired campaigns")
	}
	return nil
}

// verifyConservation checks poolTotal(side) == sum(positions on side) for
// both sides of a campaign
func (s *campaignService) verifyConservation(ctx context.Context, uow UnitOfWork, campaign *models.Campaign) error {
	for _, side := range []models.BetSide{models.SideSupporter, models.SideHatter} {
		staked, err := uow.PositionRepository().SumByCampaignSide(ctx, campaign.ID, side)
		if err != nil {
			return fmt.Errorf("failed to sum %s positions: %w", side, err)
		}
		if staked != campaign.PoolTotal(side) {
			return models.NewInvariantViolation("pool-conservation",
				"campaign %s %s pool is %d but positions sum to %d",
				campaign.ID, side, campaign.PoolTotal(side), staked)
		}
	}
	return nil
}

func (s *campaignService) buildStatus(campaign *models.Campaign, positionCount int64) *CampaignStatus {
	return &CampaignStatus{
		Campaign:            campaign,
		State:               campaign.EffectiveState(s.now()),
		SupporterPool:       campaign.SupporterPool,
		HatterPool:          campaign.HatterPool,
		TotalPot:            campaign.TotalPot(),
		PositionCount:       positionCount,
		SupporterMultiplier: s.calculator.ImpliedMultiplier(campaign, models.SideSupporter),
		HatterMultiplier:    s.calculator.ImpliedMultiplier(campaign, models.SideHatter),
	}
}

func (s *campaignService) buildPositionView(position *models.Position, campaign *models.Campaign) (*PositionView, error) {
	view := &PositionView{
		Position: position,
		Status:   position.StatusIn(campaign),
	}

	if position.Claimed {
		return view, nil
	}

	switch {
	case campaign.IsCancelled():
		view.Claimable = s.calculator.Refund(position)
	case campaign.IsResolved() && view.Status == models.PositionStatusWon:
		payout, err := s.calculator.Payout(position, campaign)
		if err != nil {
			return nil, err
		}
		view.Claimable = payout
	}

	return view, nil
}

func (s *campaignService) publishStateChange(uow UnitOfWork, campaign *models.Campaign, oldState models.CampaignState) {
	if err := uow.EventBus().Publish(events.CampaignStateChangeEvent{
		CampaignID: campaign.ID,
		OldState:   string(oldState),
		NewState:   string(campaign.State),
	}); err != nil {
		log.WithError(err).Error("Failed to publish campaign state change event")
	}
}

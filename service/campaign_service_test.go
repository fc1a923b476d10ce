package service

import (
	"context"
	"testing"
	"time"

	"hattery/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOpenCampaign_Success(t *testing.T) {
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()

	mocks.CampaignRepo.On("Create", ctx, mock.AnythingOfType("*models.Campaign")).Return(nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.CampaignCreatedEvent")).Return(nil)

	campaign, err := svc.OpenCampaign(ctx, OpenCampaignParams{
		CreatorID: TestCreatorID,
		TokenName: TestTokenName,
		ClosesAt:  testClock.Add(24 * time.Hour),
	})

	require.NoError(t, err)
	assert.Equal(t, models.CampaignStateOpen, campaign.State)
	assert.Equal(t, TestFeeBps, campaign.FeeBps, "zero fee request falls back to the configured default")
	assert.Equal(t, int64(0), campaign.SupporterPool)
	assert.Equal(t, int64(0), campaign.HatterPool)
	assert.True(t, uow.committed)
	mocks.AssertAllExpectations(t)
}

func TestOpenCampaign_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params OpenCampaignParams
	}{
		{
			name:   "empty creator",
			params: OpenCampaignParams{TokenName: TestTokenName, ClosesAt: testClock.Add(time.Hour)},
		},
		{
			name:   "empty token name",
			params: OpenCampaignParams{CreatorID: TestCreatorID, ClosesAt: testClock.Add(time.Hour)},
		},
		{
			name:   "deadline in the past",
			params: OpenCampaignParams{CreatorID: TestCreatorID, TokenName: TestTokenName, ClosesAt: testClock.Add(-time.Hour)},
		},
		{
			name:   "deadline exactly now",
			params: OpenCampaignParams{CreatorID: TestCreatorID, TokenName: TestTokenName, ClosesAt: testClock},
		},
		{
			name:   "fee at denominator",
			params: OpenCampaignParams{CreatorID: TestCreatorID, TokenName: TestTokenName, ClosesAt: testClock.Add(time.Hour), FeeBps: 10000},
		},
		{
			name:   "negative fee",
			params: OpenCampaignParams{CreatorID: TestCreatorID, TokenName: TestTokenName, ClosesAt: testClock.Add(time.Hour), FeeBps: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := NewTestMocks()
			svc, uow := newTestService(mocks)

			_, err := svc.OpenCampaign(context.Background(), tt.params)

			assert.ErrorIs(t, err, models.ErrInvalidInput)
			assert.False(t, uow.committed)
			mocks.AssertAllExpectations(t)
		})
	}
}

func TestPlaceWager_Success(t *testing.T) {
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()
	campaign := openCampaignFixture()

	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, campaign.ID).Return(campaign, nil)
	mocks.PositionRepo.On("Create", ctx, mock.AnythingOfType("*models.Position")).Return(nil)
	mocks.CampaignRepo.On("IncrementPool", ctx, campaign.ID, models.SideSupporter, int64(500)).Return(nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.WagerPlacedEvent")).Return(nil)

	position, err := svc.PlaceWager(ctx, campaign.ID, TestBettorID, models.SideSupporter, 500)

	require.NoError(t, err)
	assert.Equal(t, campaign.ID, position.CampaignID)
	assert.Equal(t, TestBettorID, position.OwnerID)
	assert.Equal(t, models.SideSupporter, position.Side)
	assert.Equal(t, int64(500), position.Amount)
	assert.False(t, position.Claimed)
	assert.True(t, uow.committed)
	mocks.AssertAllExpectations(t)
}

func TestPlaceWager_InvalidAmount(t *testing.T) {
	for _, amount := range []int64{0, -1, -500} {
		mocks := NewTestMocks()
		svc, uow := newTestService(mocks)

		_, err := svc.PlaceWager(context.Background(), uuid.New(), TestBettorID, models.SideSupporter, amount)

		assert.ErrorIs(t, err, models.ErrInvalidAmount)
		assert.False(t, uow.began, "validation must reject before touching storage")
		mocks.AssertAllExpectations(t)
	}
}

func TestPlaceWager_InvalidSide(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)

	_, err := svc.PlaceWager(context.Background(), uuid.New(), TestBettorID, models.BetSide("neutral"), 100)

	assert.ErrorIs(t, err, models.ErrInvalidInput)
	mocks.AssertAllExpectations(t)
}

func TestPlaceWager_CampaignNotFound(t *testing.T) {
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()
	campaignID := uuid.New()

	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, campaignID).Return(nil, nil)

	_, err := svc.PlaceWager(ctx, campaignID, TestBettorID, models.SideHatter, 100)

	assert.ErrorIs(t, err, models.ErrCampaignNotFound)
	assert.True(t, uow.rolledBack)
	mocks.AssertAllExpectations(t)
}

func TestPlaceWager_AfterDeadline(t *testing.T) {
	// The stored row still says open; nothing has swept it. The deadline
	// check against the engine clock must reject the wager anyway.
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()
	campaign := expiredCampaignFixture()

	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, campaign.ID).Return(campaign, nil)

	_, err := svc.PlaceWager(ctx, campaign.ID, TestBettorID, models.SideSupporter, 100)

	assert.ErrorIs(t, err, models.ErrCampaignNotOpen)
	assert.Equal(t, models.CampaignStateOpen, campaign.State, "rejection must not mutate the stored state")
	assert.False(t, uow.committed)
	mocks.AssertAllExpectations(t)
}

func TestPlaceWager_TerminalStates(t *testing.T) {
	for _, state := range []models.CampaignState{
		models.CampaignStateClosed,
		models.CampaignStateResolved,
		models.CampaignStateCancelled,
	} {
		t.Run(string(state), func(t *testing.T) {
			mocks := NewTestMocks()
			svc, _ := newTestService(mocks)
			ctx := context.Background()
			campaign := openCampaignFixture()
			campaign.State = state

			mocks.CampaignRepo.On("GetByIDForUpdate", ctx, campaign.ID).Return(campaign, nil)

			_, err := svc.PlaceWager(ctx, campaign.ID, TestBettorID, models.SideSupporter, 100)

			assert.ErrorIs(t, err, models.ErrCampaignNotOpen)
			mocks.AssertAllExpectations(t)
		})
	}
}

func TestResolveCampaign_Success(t *testing.T) {
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()

	// Deadline passed, stored state still open; resolution sees the derived
	// closed state without any explicit close call.
	campaign := expiredCampaignFixture()
	campaign.SupporterPool = 12500
	campaign.HatterPool = 7800

	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, campaign.ID).Return(campaign, nil)
	mocks.PositionRepo.On("SumByCampaignSide", ctx, campaign.ID, models.SideSupporter).Return(int64(12500), nil)
	mocks.PositionRepo.On("SumByCampaignSide", ctx, campaign.ID, models.SideHatter).Return(int64(7800), nil)
	mocks.CampaignRepo.On("Update", ctx, campaign).Return(nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.CampaignResolvedEvent")).Return(nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.CampaignStateChangeEvent")).Return(nil)

	resolved, err := svc.ResolveCampaign(ctx, campaign.ID, TestResolverID, models.SideSupporter)

	require.NoError(t, err)
	assert.Equal(t, models.CampaignStateResolved, resolved.State)
	require.NotNil(t, resolved.WinningSide)
	assert.Equal(t, models.SideSupporter, *resolved.WinningSide)
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, uow.committed)
	mocks.AssertAllExpectations(t)
}

func TestResolveCampaign_NotAuthorized(t *testing.T) {
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)

	_, err := svc.ResolveCampaign(context.Background(), uuid.New(), TestOutsiderID, models.SideHatter)

	assert.ErrorIs(t, err, models.ErrNotAuthorized)
	assert.False(t, uow.began)
	mocks.AssertAllExpectations(t)
}

func TestResolveCampaign_NotClosed(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	campaign := openCampaignFixture() // deadline an hour out

	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, campaign.ID).Return(campaign, nil)

	_, err := svc.ResolveCampaign(ctx, campaign.ID, TestResolverID, models.SideSupporter)

	assert.ErrorIs(t, err, models.ErrCampaignNotClosed)
	mocks.AssertAllExpectations(t)
}

func TestResolveCampaign_AlreadyResolved(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	campaign := resolvedCampaignFixture(models.SideSupporter, 1000, 1000)

	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, campaign.ID).Return(campaign, nil)

	_, err := svc.ResolveCampaign(ctx, campaign.ID, TestResolverID, models.SideHatter)

	assert.ErrorIs(t, err, models.ErrAlreadyResolved)
	assert.Equal(t, models.SideSupporter, *campaign.WinningSide, "winning side is immutable once set")
	mocks.AssertAllExpectations(t)
}

func TestResolveCampaign_CancelledIsNotResolvable(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	campaign := cancelledCampaignFixture(1000, 1000)

	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, campaign.ID).Return(campaign, nil)

	_, err := svc.ResolveCampaign(ctx, campaign.ID, TestResolverID, models.SideSupporter)

	assert.ErrorIs(t, err, models.ErrCampaignNotClosed)
	mocks.AssertAllExpectations(t)
}

func TestResolveCampaign_ConservationViolationAborts(t *testing.T) {
	// Pool total drifted from the sum of its positions. Resolution must
	// abort with an internal fault before fixing any outcome.
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()
	campaign := expiredCampaignFixture()
	campaign.SupporterPool = 12500
	campaign.HatterPool = 7800

	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, campaign.ID).Return(campaign, nil)
	mocks.PositionRepo.On("SumByCampaignSide", ctx, campaign.ID, models.SideSupporter).Return(int64(12499), nil)

	_, err := svc.ResolveCampaign(ctx, campaign.ID, TestResolverID, models.SideSupporter)

	require.Error(t, err)
	assert.True(t, models.IsInvariantViolation(err))
	assert.False(t, uow.committed)
	assert.Nil(t, campaign.WinningSide)
	mocks.AssertAllExpectations(t)
}

func TestCancelCampaign_ByCreator(t *testing.T) {
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()
	campaign := openCampaignFixture()

	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, campaign.ID).Return(campaign, nil)
	mocks.CampaignRepo.On("Update", ctx, campaign).Return(nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.CampaignStateChangeEvent")).Return(nil)

	err := svc.CancelCampaign(ctx, campaign.ID, TestCreatorID)

	require.NoError(t, err)
	assert.Equal(t, models.CampaignStateCancelled, campaign.State)
	assert.True(t, uow.committed)
	mocks.AssertAllExpectations(t)
}

func TestCancelCampaign_ByResolver(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	campaign := openCampaignFixture()

	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, campaign.ID).Return(campaign, nil)
	mocks.CampaignRepo.On("Update", ctx, campaign).Return(nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.CampaignStateChangeEvent")).Return(nil)

	err := svc.CancelCampaign(ctx, campaign.ID, TestResolverID)

	require.NoError(t, err)
	assert.Equal(t, models.CampaignStateCancelled, campaign.State)
	mocks.AssertAllExpectations(t)
}

func TestCancelCampaign_NotAuthorized(t *testing.T) {
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()
	campaign := openCampaignFixture()

	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, campaign.ID).Return(campaign, nil)

	err := svc.CancelCampaign(ctx, campaign.ID, TestOutsiderID)

	assert.ErrorIs(t, err, models.ErrNotAuthorized)
	assert.Equal(t, models.CampaignStateOpen, campaign.State)
	assert.False(t, uow.committed)
	mocks.AssertAllExpectations(t)
}

func TestCancelCampaign_TerminalState(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	campaign := resolvedCampaignFixture(models.SideSupporter, 1000, 1000)

	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, campaign.ID).Return(campaign, nil)

	err := svc.CancelCampaign(ctx, campaign.ID, TestResolverID)

	assert.ErrorIs(t, err, models.ErrAlreadyResolved)
	mocks.AssertAllExpectations(t)
}

func TestClaim_WinnerPayout(t *testing.T) {
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()
	campaign := resolvedCampaignFixture(models.SideSupporter, 12500, 7800)
	position := positionFixture(campaign, TestBettorID, models.SideSupporter, 100)

	mocks.PositionRepo.On("GetByIDForUpdate", ctx, position.ID).Return(position, nil)
	mocks.CampaignRepo.On("GetByID", ctx, campaign.ID).Return(campaign, nil)
	mocks.PositionRepo.On("Update", ctx, position).Return(nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.PositionClaimedEvent")).Return(nil)

	payout, err := svc.Claim(ctx, position.ID, TestBettorID)

	require.NoError(t, err)
	assert.Equal(t, int64(56), payout)
	assert.True(t, position.Claimed)
	require.NotNil(t, position.PayoutAmount)
	assert.Equal(t, int64(56), *position.PayoutAmount)
	require.NotNil(t, position.ClaimedAt)
	assert.True(t, uow.committed)
	mocks.AssertAllExpectations(t)
}

func TestClaim_CancelledRefunds(t *testing.T) {
	// Two wagers of 100 and 50 on a cancelled campaign: each claims its
	// full stake back, no fee applied.
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	campaign := cancelledCampaignFixture(100, 50)
	first := positionFixture(campaign, TestBettorID, models.SideSupporter, 100)
	second := positionFixture(campaign, TestOutsiderID, models.SideHatter, 50)

	mocks.CampaignRepo.On("GetByID", ctx, campaign.ID).Return(campaign, nil)
	mocks.PositionRepo.On("Update", ctx, mock.AnythingOfType("*models.Position")).Return(nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.PositionClaimedEvent")).Return(nil)

	mocks.PositionRepo.On("GetByIDForUpdate", ctx, first.ID).Return(first, nil)
	refund, err := svc.Claim(ctx, first.ID, TestBettorID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), refund)

	mocks.PositionRepo.On("GetByIDForUpdate", ctx, second.ID).Return(second, nil)
	refund, err = svc.Claim(ctx, second.ID, TestOutsiderID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), refund)

	mocks.AssertAllExpectations(t)
}

func TestClaim_PositionNotFound(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	positionID := uuid.New()

	mocks.PositionRepo.On("GetByIDForUpdate", ctx, positionID).Return(nil, nil)

	_, err := svc.Claim(ctx, positionID, TestBettorID)

	assert.ErrorIs(t, err, models.ErrPositionNotFound)
	mocks.AssertAllExpectations(t)
}

func TestClaim_NotOwner(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	campaign := resolvedCampaignFixture(models.SideSupporter, 12500, 7800)
	position := positionFixture(campaign, TestBettorID, models.SideSupporter, 100)

	mocks.PositionRepo.On("GetByIDForUpdate", ctx, position.ID).Return(position, nil)

	_, err := svc.Claim(ctx, position.ID, TestOutsiderID)

	assert.ErrorIs(t, err, models.ErrNotOwner)
	assert.False(t, position.Claimed)
	mocks.AssertAllExpectations(t)
}

func TestClaim_NotResolved(t *testing.T) {
	for _, state := range []models.CampaignState{
		models.CampaignStateOpen,
		models.CampaignStateClosed,
	} {
		t.Run(string(state), func(t *testing.T) {
			mocks := NewTestMocks()
			svc, _ := newTestService(mocks)
			ctx := context.Background()
			campaign := openCampaignFixture()
			campaign.State = state
			position := positionFixture(campaign, TestBettorID, models.SideSupporter, 100)

			mocks.PositionRepo.On("GetByIDForUpdate", ctx, position.ID).Return(position, nil)
			mocks.CampaignRepo.On("GetByID", ctx, campaign.ID).Return(campaign, nil)

			_, err := svc.Claim(ctx, position.ID, TestBettorID)

			assert.ErrorIs(t, err, models.ErrNotResolved)
			mocks.AssertAllExpectations(t)
		})
	}
}

func TestClaim_LosingPosition(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	campaign := resolvedCampaignFixture(models.SideSupporter, 12500, 7800)
	position := positionFixture(campaign, TestBettorID, models.SideHatter, 200)

	mocks.PositionRepo.On("GetByIDForUpdate", ctx, position.ID).Return(position, nil)
	mocks.CampaignRepo.On("GetByID", ctx, campaign.ID).Return(campaign, nil)

	_, err := svc.Claim(ctx, position.ID, TestBettorID)

	assert.ErrorIs(t, err, models.ErrNotAWinner)
	assert.False(t, position.Claimed)
	mocks.AssertAllExpectations(t)
}

func TestClaim_AlreadyClaimed(t *testing.T) {
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()
	campaign := resolvedCampaignFixture(models.SideSupporter, 12500, 7800)
	position := positionFixture(campaign, TestBettorID, models.SideSupporter, 100)
	payout := int64(56)
	position.MarkClaimed(payout, testClock.Add(-time.Minute))

	mocks.PositionRepo.On("GetByIDForUpdate", ctx, position.ID).Return(position, nil)
	mocks.CampaignRepo.On("GetByID", ctx, campaign.ID).Return(campaign, nil)

	_, err := svc.Claim(ctx, position.ID, TestBettorID)

	assert.ErrorIs(t, err, models.ErrAlreadyClaimed)
	assert.Equal(t, payout, *position.PayoutAmount, "claim record is immutable once disbursed")
	assert.False(t, uow.committed)
	mocks.AssertAllExpectations(t)
}

func TestClaim_MissingCampaignIsFault(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	campaign := resolvedCampaignFixture(models.SideSupporter, 12500, 7800)
	position := positionFixture(campaign, TestBettorID, models.SideSupporter, 100)

	mocks.PositionRepo.On("GetByIDForUpdate", ctx, position.ID).Return(position, nil)
	mocks.CampaignRepo.On("GetByID", ctx, campaign.ID).Return(nil, nil)

	_, err := svc.Claim(ctx, position.ID, TestBettorID)

	require.Error(t, err)
	assert.True(t, models.IsInvariantViolation(err))
	mocks.AssertAllExpectations(t)
}

func TestGetCampaignStatus(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()

	// Stored state open, deadline passed: the snapshot must already report
	// closed without any sweep having run.
	campaign := expiredCampaignFixture()
	campaign.SupporterPool = 2500
	campaign.HatterPool = 7500

	mocks.CampaignRepo.On("GetByID", ctx, campaign.ID).Return(campaign, nil)
	mocks.PositionRepo.On("CountByCampaign", ctx, campaign.ID).Return(int64(3), nil)

	status, err := svc.GetCampaignStatus(ctx, campaign.ID)

	require.NoError(t, err)
	assert.Equal(t, models.CampaignStateClosed, status.State)
	assert.Equal(t, models.CampaignStateOpen, campaign.State, "snapshot never mutates the row")
	assert.Equal(t, int64(10000), status.TotalPot)
	assert.Equal(t, int64(3), status.PositionCount)
	assert.InDelta(t, 4.0, status.SupporterMultiplier, 0.0001)
	mocks.AssertAllExpectations(t)
}

func TestGetCampaignStatus_NotFound(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	campaignID := uuid.New()

	mocks.CampaignRepo.On("GetByID", ctx, campaignID).Return(nil, nil)

	_, err := svc.GetCampaignStatus(ctx, campaignID)

	assert.ErrorIs(t, err, models.ErrCampaignNotFound)
	mocks.AssertAllExpectations(t)
}

func TestGetCampaignDetail(t *testing.T) {
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()
	campaign := resolvedCampaignFixture(models.SideSupporter, 12500, 7800)
	winner := positionFixture(campaign, TestBettorID, models.SideSupporter, 100)
	loser := positionFixture(campaign, TestOutsiderID, models.SideHatter, 300)

	mocks.CampaignRepo.On("GetByID", ctx, campaign.ID).Return(campaign, nil)
	mocks.PositionRepo.On("GetByCampaign", ctx, campaign.ID).Return([]*models.Position{winner, loser}, nil)

	detail, err := svc.GetCampaignDetail(ctx, campaign.ID)

	require.NoError(t, err)
	assert.True(t, uow.readOnly, "snapshot queries run in a read-only unit of work")
	assert.Equal(t, models.CampaignStateResolved, detail.Status.State)
	assert.Equal(t, int64(2), detail.Status.PositionCount)
	require.Len(t, detail.Positions, 2)
	assert.Equal(t, models.PositionStatusWon, detail.Positions[0].Status)
	assert.Equal(t, int64(56), detail.Positions[0].Claimable)
	assert.Equal(t, models.PositionStatusLost, detail.Positions[1].Status)
	assert.Equal(t, int64(0), detail.Positions[1].Claimable)
	mocks.AssertAllExpectations(t)
}

func TestGetCampaignDetail_NotFound(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	campaignID := uuid.New()

	mocks.CampaignRepo.On("GetByID", ctx, campaignID).Return(nil, nil)

	_, err := svc.GetCampaignDetail(ctx, campaignID)

	assert.ErrorIs(t, err, models.ErrCampaignNotFound)
	mocks.AssertAllExpectations(t)
}

func TestGetPosition_ClaimableAmounts(t *testing.T) {
	tests := []struct {
		name      string
		campaign  *models.Campaign
		side      models.BetSide
		amount    int64
		status    models.PositionStatus
		claimable int64
	}{
		{
			name:      "active while open",
			campaign:  openCampaignFixture(),
			side:      models.SideSupporter,
			amount:    100,
			status:    models.PositionStatusActive,
			claimable: 0,
		},
		{
			name:      "won with pending payout",
			campaign:  resolvedCampaignFixture(models.SideSupporter, 12500, 7800),
			side:      models.SideSupporter,
			amount:    100,
			status:    models.PositionStatusWon,
			claimable: 56,
		},
		{
			name:      "lost has nothing to claim",
			campaign:  resolvedCampaignFixture(models.SideSupporter, 12500, 7800),
			side:      models.SideHatter,
			amount:    300,
			status:    models.PositionStatusLost,
			claimable: 0,
		},
		{
			name:      "cancelled refund pending",
			campaign:  cancelledCampaignFixture(100, 0),
			side:      models.SideSupporter,
			amount:    100,
			status:    models.PositionStatusActive,
			claimable: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := NewTestMocks()
			svc, _ := newTestService(mocks)
			ctx := context.Background()
			position := positionFixture(tt.campaign, TestBettorID, tt.side, tt.amount)

			mocks.PositionRepo.On("GetByID", ctx, position.ID).Return(position, nil)
			mocks.CampaignRepo.On("GetByID", ctx, tt.campaign.ID).Return(tt.campaign, nil)

			view, err := svc.GetPosition(ctx, position.ID)

			require.NoError(t, err)
			assert.Equal(t, tt.status, view.Status)
			assert.Equal(t, tt.claimable, view.Claimable)
			mocks.AssertAllExpectations(t)
		})
	}
}

func TestGetPosition_ClaimedShowsNothingPending(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	campaign := resolvedCampaignFixture(models.SideSupporter, 12500, 7800)
	position := positionFixture(campaign, TestBettorID, models.SideSupporter, 100)
	position.MarkClaimed(56, testClock.Add(-time.Minute))

	mocks.PositionRepo.On("GetByID", ctx, position.ID).Return(position, nil)
	mocks.CampaignRepo.On("GetByID", ctx, campaign.ID).Return(campaign, nil)

	view, err := svc.GetPosition(ctx, position.ID)

	require.NoError(t, err)
	assert.Equal(t, models.PositionStatusWon, view.Status)
	assert.Equal(t, int64(0), view.Claimable)
	mocks.AssertAllExpectations(t)
}

func TestCloseExpiredCampaigns(t *testing.T) {
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()
	first := expiredCampaignFixture()
	second := expiredCampaignFixture()

	mocks.CampaignRepo.On("GetExpiredOpen", ctx, testClock).Return([]*models.Campaign{first, second}, nil)
	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, first.ID).Return(first, nil)
	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, second.ID).Return(second, nil)
	mocks.CampaignRepo.On("Update", ctx, first).Return(nil)
	mocks.CampaignRepo.On("Update", ctx, second).Return(nil)
	mocks.EventPublisher.On("Publish", mock.AnythingOfType("events.CampaignStateChangeEvent")).Return(nil).Twice()

	err := svc.CloseExpiredCampaigns(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.CampaignStateClosed, first.State)
	assert.Equal(t, models.CampaignStateClosed, second.State)
	assert.True(t, uow.committed)
	mocks.AssertAllExpectations(t)
}

func TestCloseExpiredCampaigns_SkipsConcurrentlyResolved(t *testing.T) {
	// The expired scan runs without row locks, so a campaign it saw as open
	// may get resolved before the sweep reaches it. The sweep must leave
	// the resolved row untouched rather than overwrite the outcome.
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()

	stale := expiredCampaignFixture()
	current := resolvedCampaignFixture(models.SideSupporter, 12500, 7800)
	current.ID = stale.ID

	mocks.CampaignRepo.On("GetExpiredOpen", ctx, testClock).Return([]*models.Campaign{stale}, nil)
	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, stale.ID).Return(current, nil)

	err := svc.CloseExpiredCampaigns(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.CampaignStateResolved, current.State)
	require.NotNil(t, current.WinningSide)
	assert.Equal(t, models.SideSupporter, *current.WinningSide)
	assert.True(t, uow.committed)
	mocks.AssertAllExpectations(t)
}

func TestCloseExpiredCampaigns_SkipsConcurrentlyDeleted(t *testing.T) {
	mocks := NewTestMocks()
	svc, _ := newTestService(mocks)
	ctx := context.Background()
	stale := expiredCampaignFixture()

	mocks.CampaignRepo.On("GetExpiredOpen", ctx, testClock).Return([]*models.Campaign{stale}, nil)
	mocks.CampaignRepo.On("GetByIDForUpdate", ctx, stale.ID).Return(nil, nil)

	err := svc.CloseExpiredCampaigns(ctx)

	require.NoError(t, err)
	mocks.AssertAllExpectations(t)
}

func TestCloseExpiredCampaigns_NothingExpired(t *testing.T) {
	mocks := NewTestMocks()
	svc, uow := newTestService(mocks)
	ctx := context.Background()

	mocks.CampaignRepo.On("GetExpiredOpen", ctx, testClock).Return([]*models.Campaign{}, nil)

	err := svc.CloseExpiredCampaigns(ctx)

	require.NoError(t, err)
	assert.True(t, uow.committed)
	mocks.AssertAllExpectations(t)
}

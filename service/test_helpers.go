package service

import (
	"context"
	"testing"
	"time"

	"hattery/models"

	"github.com/google/uuid"
)

// Test fixtures shared by the service tests
const (
	TestCreatorID  = "creator-wallet"
	TestBettorID   = "bettor-wallet"
	TestResolverID = "resolver-wallet"
	TestOutsiderID = "outsider-wallet"
	TestTokenName  = "HAT"
	TestFeeBps     = int64(1000) // 10%
)

// testClock is the fixed instant all service tests run at
var testClock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// TestMocks holds all mock repositories for easy access
type TestMocks struct {
	CampaignRepo   *MockCampaignRepository
	PositionRepo   *MockPositionRepository
	EventPublisher *MockEventPublisher
}

// NewTestMocks creates a new set of mocks
func NewTestMocks() *TestMocks {
	return &TestMocks{
		CampaignRepo:   new(MockCampaignRepository),
		PositionRepo:   new(MockPositionRepository),
		EventPublisher: new(MockEventPublisher),
	}
}

// AssertAllExpectations asserts all mock expectations
func (m *TestMocks) AssertAllExpectations(t *testing.T) {
	m.CampaignRepo.AssertExpectations(t)
	m.PositionRepo.AssertExpectations(t)
	m.EventPublisher.AssertExpectations(t)
}

// stubUnitOfWork satisfies UnitOfWork over the mock repositories. Begin,
// Commit and Rollback track calls so tests can assert the transactional
// wrapping without a real database.
type stubUnitOfWork struct {
	mocks      *TestMocks
	began      bool
	committed  bool
	rolledBack bool
	readOnly   bool
}

func (u *stubUnitOfWork) Begin(ctx context.Context) error {
	u.began = true
	return nil
}

func (u *stubUnitOfWork) Commit() error {
	u.committed = true
	return nil
}

func (u *stubUnitOfWork) Rollback() error {
	if !u.committed {
		u.rolledBack = true
	}
	return nil
}

func (u *stubUnitOfWork) CampaignRepository() CampaignRepository { return u.mocks.CampaignRepo }
func (u *stubUnitOfWork) PositionRepository() PositionRepository { return u.mocks.PositionRepo }
func (u *stubUnitOfWork) EventBus() EventPublisher               { return u.mocks.EventPublisher }

type stubUowFactory struct {
	uow *stubUnitOfWork
}

func (f *stubUowFactory) Create() UnitOfWork { return f.uow }

func (f *stubUowFactory) CreateReadOnly() UnitOfWork {
	f.uow.readOnly = true
	return f.uow
}

// newTestService wires a campaign service over the mocks with a fixed clock
// and a single-resolver allowlist
func newTestService(mocks *TestMocks) (*campaignService, *stubUnitOfWork) {
	uow := &stubUnitOfWork{mocks: mocks}
	svc := &campaignService{
		uowFactory: &stubUowFactory{uow: uow},
		calculator: NewSettlementCalculator(),
		authority:  NewAllowlistAuthority([]string{TestResolverID}),
		defaultFee: TestFeeBps,
		now:        func() time.Time { return testClock },
	}
	return svc, uow
}

// openCampaignFixture returns an open campaign whose deadline is an hour out
func openCampaignFixture() *models.Campaign {
	return &models.Campaign{
		ID:        uuid.New(),
		CreatorID: TestCreatorID,
		TokenName: TestTokenName,
		State:     models.CampaignStateOpen,
		FeeBps:    TestFeeBps,
		ClosesAt:  testClock.Add(time.Hour),
		CreatedAt: testClock.Add(-time.Hour),
	}
}

// expiredCampaignFixture returns a campaign whose stored state is still open
// but whose deadline has already passed
func expiredCampaignFixture() *models.Campaign {
	c := openCampaignFixture()
	c.ClosesAt = testClock.Add(-time.Millisecond)
	return c
}

// resolvedCampaignFixture returns a campaign resolved for the given side with
// the given pool totals
func resolvedCampaignFixture(winner models.BetSide, supporterPool, hatterPool int64) *models.Campaign {
	c := openCampaignFixture()
	c.SupporterPool = supporterPool
	c.HatterPool = hatterPool
	c.State = models.CampaignStateResolved
	c.WinningSide = &winner
	resolvedAt := testClock.Add(-time.Minute)
	c.ResolvedAt = &resolvedAt
	return c
}

// cancelledCampaignFixture returns a cancelled campaign with the given pools
func cancelledCampaignFixture(supporterPool, hatterPool int64) *models.Campaign {
	c := openCampaignFixture()
	c.SupporterPool = supporterPool
	c.HatterPool = hatterPool
	c.State = models.CampaignStateCancelled
	return c
}

// positionFixture returns an unclaimed position on the given campaign
func positionFixture(c *models.Campaign, ownerID string, side models.BetSide, amount int64) *models.Position {
	return &models.Position{
		ID:         uuid.New(),
		CampaignID: c.ID,
		OwnerID:    ownerID,
		Side:       side,
		Amount:     amount,
		CreatedAt:  testClock.Add(-30 * time.Minute),
	}
}

package service

import (
	"context"
	"time"

	"hattery/events"
	"hattery/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockCampaignRepository is a mock implementation of CampaignRepository
type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

func (m *MockCampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Update(ctx context.Context, campaign *models.Campaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

func (m *MockCampaignRepository) IncrementPool(ctx context.Context, id uuid.UUID, side models.BetSide, amount int64) error {
	args := m.Called(ctx, id, side, amount)
	return args.Error(0)
}

func (m *MockCampaignRepository) ListOpen(ctx context.Context) ([]*models.Campaign, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) ListAll(ctx context.Context) ([]*models.Campaign, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) GetExpiredOpen(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Campaign), args.Error(1)
}

// MockPositionRepository is a mock implementation of PositionRepository
type MockPositionRepository struct {
	mock.Mock
}

func (m *MockPositionRepository) Create(ctx context.Context, position *models.Position) error {
	args := m.Called(ctx, position)
	return args.Error(0)
}

func (m *MockPositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Position, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Position), args.Error(1)
}

func (m *MockPositionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Position, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Position), args.Error(1)
}

func (m *MockPositionRepository) GetByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*models.Position, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Position), args.Error(1)
}

func (m *MockPositionRepository) GetByOwner(ctx context.Context, ownerID string) ([]*models.Position, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Position), args.Error(1)
}

func (m *MockPositionRepository) CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPositionRepository) SumByCampaignSide(ctx context.Context, campaignID uuid.UUID, side models.BetSide) (int64, error) {
	args := m.Called(ctx, campaignID, side)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPositionRepository) Update(ctx context.Context, position *models.Position) error {
	args := m.Called(ctx, position)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

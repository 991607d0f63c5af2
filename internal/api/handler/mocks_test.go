package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/application"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
)

// MockHoldService はHoldServiceInterfaceのモック
type MockHoldService struct {
	mock.Mock
}

func (m *MockHoldService) CreateHold(ctx context.Context, input application.CreateHoldInput) (*hold.Hold, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldService) CreateCartHolds(ctx context.Context, input application.CreateCartHoldsInput) ([]*hold.Hold, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*hold.Hold), args.Error(1)
}

func (m *MockHoldService) GetHold(ctx context.Context, id string) (*hold.Hold, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldService) ListHolds(ctx context.Context, eventID string) ([]*hold.Hold, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*hold.Hold), args.Error(1)
}

func (m *MockHoldService) CommitHold(ctx context.Context, id string) (*hold.Hold, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

func (m *MockHoldService) ReleaseHold(ctx context.Context, id string) (*hold.Hold, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hold.Hold), args.Error(1)
}

// MockInventoryService はInventoryServiceInterfaceのモック
type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockInventoryService) CreateCategory(ctx context.Context, input application.CreateCategoryInput) (*category.Category, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*category.Category), args.Error(1)
}

func (m *MockInventoryService) CreatePromoCode(ctx context.Context, input application.CreatePromoCodeInput) (*pricing.PromoCode, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.PromoCode), args.Error(1)
}

func (m *MockInventoryService) GetCategoryAvailability(ctx context.Context, categoryID string) (*application.CategoryAvailability, error) {
	args := m.Called(ctx, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.CategoryAvailability), args.Error(1)
}

func (m *MockInventoryService) GetEventAvailability(ctx context.Context, eventID string) (*application.EventAvailability, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.EventAvailability), args.Error(1)
}

// MockPricingService はPricingServiceInterfaceのモック
type MockPricingService struct {
	mock.Mock
}

func (m *MockPricingService) PriceCart(ctx context.Context, input application.PriceCartInput) (pricing.Quote, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(pricing.Quote), args.Error(1)
}

func (m *MockPricingService) PriceHolds(ctx context.Context, input application.PriceHoldsInput) (pricing.Quote, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(pricing.Quote), args.Error(1)
}

var (
	_ HoldServiceInterface      = (*application.HoldService)(nil)
	_ InventoryServiceInterface = (*application.InventoryService)(nil)
	_ PricingServiceInterface   = (*application.PricingService)(nil)
)

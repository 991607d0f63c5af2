package handler

import (
	"context"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/application"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
)

// HoldServiceInterface は保留サービスのインターフェース
type HoldServiceInterface interface {
	CreateHold(ctx context.Context, input application.CreateHoldInput) (*hold.Hold, error)
	CreateCartHolds(ctx context.Context, input application.CreateCartHoldsInput) ([]*hold.Hold, error)
	GetHold(ctx context.Context, id string) (*hold.Hold, error)
	ListHolds(ctx context.Context, eventID string) ([]*hold.Hold, error)
	CommitHold(ctx context.Context, id string) (*hold.Hold, error)
	ReleaseHold(ctx context.Context, id string) (*hold.Hold, error)
}

// InventoryServiceInterface は在庫サービスのインターフェース
type InventoryServiceInterface interface {
	CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error)
	CreateCategory(ctx context.Context, input application.CreateCategoryInput) (*category.Category, error)
	CreatePromoCode(ctx context.Context, input application.CreatePromoCodeInput) (*pricing.PromoCode, error)
	GetCategoryAvailability(ctx context.Context, categoryID string) (*application.CategoryAvailability, error)
	GetEventAvailability(ctx context.Context, eventID string) (*application.EventAvailability, error)
}

// PricingServiceInterface は価格計算サービスのインターフェース
type PricingServiceInterface interface {
	PriceCart(ctx context.Context, input application.PriceCartInput) (pricing.Quote, error)
	PriceHolds(ctx context.Context, input application.PriceHoldsInput) (pricing.Quote, error)
}

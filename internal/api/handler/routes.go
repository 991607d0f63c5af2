package handler

import (
	"github.com/labstack/echo/v4"
)

// Handlers はルーティング対象のハンドラー一式
type Handlers struct {
	Health       *HealthHandler
	Holds        *HoldHandler
	Availability *AvailabilityHandler
	Pricing      *PricingHandler
	Admin        *AdminHandler
}

// Register は /health と /api/v1 以下のルートを登録する
func Register(e *echo.Echo, h Handlers) {
	e.GET("/health", h.Health.Check)

	v1 := e.Group("/api/v1")

	v1.POST("/events/:event_id/holds", h.Holds.Create)
	v1.POST("/events/:event_id/holds/cart", h.Holds.CreateCart)
	v1.GET("/events/:event_id/holds", h.Holds.List)
	v1.POST("/holds/price", h.Pricing.PriceHolds)
	v1.GET("/holds/:id", h.Holds.GetByID)
	v1.POST("/holds/:id/commit", h.Holds.Commit)
	v1.POST("/holds/:id/release", h.Holds.Release)

	v1.GET("/ticket-types/:id/availability", h.Availability.TicketType)
	v1.GET("/events/:event_id/availability", h.Availability.Event)

	v1.POST("/cart/price", h.Pricing.PriceCart)

	admin := v1.Group("/admin")
	admin.POST("/events", h.Admin.CreateEvent)
	admin.POST("/events/:event_id/ticket-types", h.Admin.CreateTicketType)
	admin.POST("/promo-codes", h.Admin.CreatePromoCode)
}

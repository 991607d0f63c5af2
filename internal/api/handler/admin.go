package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/api"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/application"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
)

// AdminHandler はイベント・券種・プロモーションコードの登録を扱う
type AdminHandler struct {
	service InventoryServiceInterface
}

func NewAdminHandler(s InventoryServiceInterface) *AdminHandler {
	return &AdminHandler{service: s}
}

type CreateEventRequest struct {
	Name     string `json:"name" validate:"required,max=255" example:"夏フェス2025"`
	Capacity int    `json:"capacity" validate:"min=0" example:"5000"`
}

type EventResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Capacity    int       `json:"capacity"`
	Allocated   int       `json:"allocated"`
	Unallocated int       `json:"unallocated"`
	CreatedAt   time.Time `json:"created_at"`
}

func toEventResponse(e *event.Event) EventResponse {
	return EventResponse{
		ID: e.ID, Name: e.Name, Capacity: e.Capacity,
		Allocated: e.Allocated, Unallocated: e.Unallocated(), CreatedAt: e.CreatedAt,
	}
}

type CreateTicketTypeRequest struct {
	Name        string     `json:"name" validate:"required,max=255" example:"一般"`
	Capacity    int        `json:"capacity" validate:"min=0" example:"1000"`
	UnitPrice   int64      `json:"unit_price" validate:"min=0" example:"5000"`
	UnitFee     int64      `json:"unit_fee" validate:"min=0" example:"250"`
	Currency    string     `json:"currency" validate:"required,len=3" example:"USD"`
	MaxPerOrder int        `json:"max_per_order" validate:"min=0" example:"10"`
	SalesStart  *time.Time `json:"sales_start,omitempty"`
	SalesEnd    *time.Time `json:"sales_end,omitempty"`
}

type TicketTypeResponse struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	Name        string     `json:"name"`
	Capacity    int        `json:"capacity"`
	UnitPrice   int64      `json:"unit_price"`
	UnitFee     int64      `json:"unit_fee"`
	Currency    string     `json:"currency"`
	MaxPerOrder int        `json:"max_per_order"`
	SalesStart  *time.Time `json:"sales_start,omitempty"`
	SalesEnd    *time.Time `json:"sales_end,omitempty"`
	Active      bool       `json:"active"`
}

func toTicketTypeResponse(c *category.Category) TicketTypeResponse {
	return TicketTypeResponse{
		ID: c.ID, EventID: c.EventID, Name: c.Name, Capacity: c.Capacity,
		UnitPrice: c.UnitPrice, UnitFee: c.UnitFee, Currency: c.Currency,
		MaxPerOrder: c.MaxPerOrder, SalesStart: c.SalesStart, SalesEnd: c.SalesEnd, Active: c.Active,
	}
}

type CreatePromoCodeRequest struct {
	Code      string     `json:"code" validate:"required,max=64" example:"SUMMER10"`
	EventID   *string    `json:"event_id,omitempty"`
	Type      string     `json:"type" validate:"required,promo_type" example:"percentage"`
	Value     int64      `json:"value" validate:"min=0" example:"10"`
	ValidFrom *time.Time `json:"valid_from,omitempty"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
}

type PromoCodeResponse struct {
	Code      string     `json:"code"`
	EventID   *string    `json:"event_id,omitempty"`
	Type      string     `json:"type"`
	Value     int64      `json:"value"`
	ValidFrom *time.Time `json:"valid_from,omitempty"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
	Active    bool       `json:"active"`
}

// CreateEvent godoc
// @Summary イベントを作成
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CreateEventRequest true "イベント"
// @Success 201 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /admin/events [post]
func (h *AdminHandler) CreateEvent(c echo.Context) error {
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ev, err := h.service.CreateEvent(c.Request().Context(), application.CreateEventInput{
		Name: req.Name, Capacity: req.Capacity,
	})
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusCreated, toEventResponse(ev))
}

// CreateTicketType godoc
// @Summary 券種を作成
// @Description イベントの未割当枠から容量を割り当てます
// @Tags admin
// @Accept json
// @Produce json
// @Param event_id path string true "イベントID"
// @Param request body CreateTicketTypeRequest true "券種"
// @Success 201 {object} TicketTypeResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "容量超過"
// @Router /admin/events/{event_id}/ticket-types [post]
func (h *AdminHandler) CreateTicketType(c echo.Context) error {
	var req CreateTicketTypeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	created, err := h.service.CreateCategory(c.Request().Context(), application.CreateCategoryInput{
		EventID:     c.Param("event_id"),
		Name:        req.Name,
		Capacity:    req.Capacity,
		UnitPrice:   req.UnitPrice,
		UnitFee:     req.UnitFee,
		Currency:    req.Currency,
		MaxPerOrder: req.MaxPerOrder,
		SalesStart:  req.SalesStart,
		SalesEnd:    req.SalesEnd,
	})
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusCreated, toTicketTypeResponse(created))
}

// CreatePromoCode godoc
// @Summary プロモーションコードを作成
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CreatePromoCodeRequest true "プロモーションコード"
// @Success 201 {object} PromoCodeResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "重複"
// @Router /admin/promo-codes [post]
func (h *AdminHandler) CreatePromoCode(c echo.Context) error {
	var req CreatePromoCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	p, err := h.service.CreatePromoCode(c.Request().Context(), application.CreatePromoCodeInput{
		Code:      req.Code,
		EventID:   req.EventID,
		Type:      pricing.PromoType(req.Type),
		Value:     req.Value,
		ValidFrom: req.ValidFrom,
		ValidTo:   req.ValidTo,
	})
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusCreated, PromoCodeResponse{
		Code: p.Code, EventID: p.EventID, Type: string(p.Type), Value: p.Value,
		ValidFrom: p.ValidFrom, ValidTo: p.ValidTo, Active: p.Active,
	})
}

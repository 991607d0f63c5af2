package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/api"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/application"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
)

type HoldHandler struct {
	service HoldServiceInterface
}

func NewHoldHandler(s HoldServiceInterface) *HoldHandler {
	return &HoldHandler{service: s}
}

type CreateHoldRequest struct {
	TicketTypeID   *string `json:"ticket_type_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	Quantity       int     `json:"quantity" example:"2"`
	Reason         string  `json:"reason" validate:"omitempty,hold_reason" example:"checkout"`
	TTLSeconds     int     `json:"ttl_seconds" validate:"min=0" example:"900"`
	ExpiresInHours int     `json:"expires_in_hours" validate:"min=0" example:"2"`
}

type CartLineRequest struct {
	TicketTypeID string `json:"ticket_type_id" validate:"required"`
	Quantity     int    `json:"quantity"`
}

type CreateCartHoldsRequest struct {
	Lines          []CartLineRequest `json:"lines" validate:"dive"`
	Reason         string            `json:"reason" validate:"omitempty,hold_reason" example:"checkout"`
	TTLSeconds     int               `json:"ttl_seconds" validate:"min=0"`
	ExpiresInHours int               `json:"expires_in_hours" validate:"min=0"`
}

type HoldResponse struct {
	ID           string     `json:"id"`
	EventID      string     `json:"event_id"`
	TicketTypeID *string    `json:"ticket_type_id,omitempty"`
	Quantity     int        `json:"quantity"`
	Reason       string     `json:"reason"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
}

func toHoldResponse(h *hold.Hold) HoldResponse {
	return HoldResponse{
		ID: h.ID, EventID: h.EventID, TicketTypeID: h.CategoryID,
		Quantity: h.Quantity, Reason: string(h.Reason), Status: string(h.Status),
		CreatedAt: h.CreatedAt, ExpiresAt: h.ExpiresAt, SettledAt: h.SettledAt,
	}
}

func toHoldResponses(holds []*hold.Hold) []HoldResponse {
	return lo.Map(holds, func(h *hold.Hold, _ int) HoldResponse { return toHoldResponse(h) })
}

func reasonOrDefault(r string) hold.Reason {
	if r == "" {
		return hold.ReasonCheckout
	}
	return hold.Reason(r)
}

// requestTTL は ttl_seconds か expires_in_hours を保留期間に変換する
// どちらも 0 なら理由ごとの既定値を使う
func requestTTL(seconds, hours int) (time.Duration, error) {
	if seconds > 0 && hours > 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "ttl_seconds と expires_in_hours は同時に指定できません")
	}
	if hours > 0 {
		return time.Duration(hours) * time.Hour, nil
	}
	return time.Duration(seconds) * time.Second, nil
}

func cartLines(lines []CartLineRequest) []application.CartLine {
	return lo.Map(lines, func(l CartLineRequest, _ int) application.CartLine {
		return application.CartLine{CategoryID: l.TicketTypeID, Quantity: l.Quantity}
	})
}

// Create godoc
// @Summary 保留を作成
// @Description 券種またはイベント全体の在庫を一時的に確保します
// @Tags holds
// @Accept json
// @Produce json
// @Param event_id path string true "イベントID"
// @Param request body CreateHoldRequest true "保留内容"
// @Success 201 {object} HoldResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "在庫不足"
// @Router /events/{event_id}/holds [post]
func (h *HoldHandler) Create(c echo.Context) error {
	var req CreateHoldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ttl, err := requestTTL(req.TTLSeconds, req.ExpiresInHours)
	if err != nil {
		return err
	}
	created, err := h.service.CreateHold(c.Request().Context(), application.CreateHoldInput{
		EventID:    c.Param("event_id"),
		CategoryID: req.TicketTypeID,
		Quantity:   req.Quantity,
		Reason:     reasonOrDefault(req.Reason),
		TTL:        ttl,
	})
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusCreated, toHoldResponse(created))
}

// CreateCart godoc
// @Summary カートの保留を作成
// @Description 明細ごとに保留を作成します。いずれかが失敗した場合はすべて解放されます
// @Tags holds
// @Accept json
// @Produce json
// @Param event_id path string true "イベントID"
// @Param request body CreateCartHoldsRequest true "カート"
// @Success 201 {array} HoldResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{event_id}/holds/cart [post]
func (h *HoldHandler) CreateCart(c echo.Context) error {
	var req CreateCartHoldsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ttl, err := requestTTL(req.TTLSeconds, req.ExpiresInHours)
	if err != nil {
		return err
	}
	holds, err := h.service.CreateCartHolds(c.Request().Context(), application.CreateCartHoldsInput{
		EventID: c.Param("event_id"),
		Lines:   cartLines(req.Lines),
		Reason:  reasonOrDefault(req.Reason),
		TTL:     ttl,
	})
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusCreated, toHoldResponses(holds))
}

// List godoc
// @Summary イベントの保留一覧
// @Tags holds
// @Produce json
// @Param event_id path string true "イベントID"
// @Success 200 {array} HoldResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{event_id}/holds [get]
func (h *HoldHandler) List(c echo.Context) error {
	holds, err := h.service.ListHolds(c.Request().Context(), c.Param("event_id"))
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, toHoldResponses(holds))
}

// GetByID godoc
// @Summary 保留を取得
// @Tags holds
// @Produce json
// @Param id path string true "保留ID"
// @Success 200 {object} HoldResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /holds/{id} [get]
func (h *HoldHandler) GetByID(c echo.Context) error {
	found, err := h.service.GetHold(c.Request().Context(), c.Param("id"))
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, toHoldResponse(found))
}

// Commit godoc
// @Summary 保留を確定
// @Description 保留中の在庫を販売済みにします
// @Tags holds
// @Produce json
// @Param id path string true "保留ID"
// @Success 200 {object} HoldResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "期限切れまたは確定・解放済み"
// @Router /holds/{id}/commit [post]
func (h *HoldHandler) Commit(c echo.Context) error {
	committed, err := h.service.CommitHold(c.Request().Context(), c.Param("id"))
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, toHoldResponse(committed))
}

// Release godoc
// @Summary 保留を解放
// @Description 保留中の在庫を戻します。確定・解放済みの場合は何もしません
// @Tags holds
// @Produce json
// @Param id path string true "保留ID"
// @Success 200 {object} HoldResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /holds/{id}/release [post]
func (h *HoldHandler) Release(c echo.Context) error {
	released, err := h.service.ReleaseHold(c.Request().Context(), c.Param("id"))
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, toHoldResponse(released))
}

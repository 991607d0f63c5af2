package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/api"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/application"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
)

type AvailabilityHandler struct {
	service InventoryServiceInterface
}

func NewAvailabilityHandler(s InventoryServiceInterface) *AvailabilityHandler {
	return &AvailabilityHandler{service: s}
}

type AvailabilityResponse struct {
	Capacity  int `json:"capacity"`
	Sold      int `json:"sold"`
	Held      int `json:"held"`
	Available int `json:"available"`
}

type TicketTypeAvailabilityResponse struct {
	TicketTypeID string `json:"ticket_type_id"`
	EventID      string `json:"event_id"`
	Name         string `json:"name"`
	UnitPrice    int64  `json:"unit_price"`
	Currency     string `json:"currency"`
	Active       bool   `json:"active"`
	AvailabilityResponse
}

type EventAvailabilityResponse struct {
	EventID     string                           `json:"event_id"`
	Name        string                           `json:"name"`
	Unallocated AvailabilityResponse             `json:"unallocated"`
	TicketTypes []TicketTypeAvailabilityResponse `json:"ticket_types"`
}

// 期限切れで未掃除の保留は held に含めない
func toAvailabilityResponse(s ledger.Snapshot) AvailabilityResponse {
	held := s.Held - s.Lapsed
	if held < 0 {
		held = 0
	}
	return AvailabilityResponse{Capacity: s.Capacity, Sold: s.Sold, Held: held, Available: s.Available}
}

func toTicketTypeAvailability(a application.CategoryAvailability) TicketTypeAvailabilityResponse {
	return TicketTypeAvailabilityResponse{
		TicketTypeID:         a.Category.ID,
		EventID:              a.Category.EventID,
		Name:                 a.Category.Name,
		UnitPrice:            a.Category.UnitPrice,
		Currency:             a.Category.Currency,
		Active:               a.Category.Active,
		AvailabilityResponse: toAvailabilityResponse(a.Snapshot),
	}
}

// TicketType godoc
// @Summary 券種の在庫
// @Tags availability
// @Produce json
// @Param id path string true "券種ID"
// @Success 200 {object} TicketTypeAvailabilityResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /ticket-types/{id}/availability [get]
func (h *AvailabilityHandler) TicketType(c echo.Context) error {
	a, err := h.service.GetCategoryAvailability(c.Request().Context(), c.Param("id"))
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, toTicketTypeAvailability(*a))
}

// Event godoc
// @Summary イベントの在庫
// @Tags availability
// @Produce json
// @Param event_id path string true "イベントID"
// @Success 200 {object} EventAvailabilityResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{event_id}/availability [get]
func (h *AvailabilityHandler) Event(c echo.Context) error {
	a, err := h.service.GetEventAvailability(c.Request().Context(), c.Param("event_id"))
	if err != nil {
		return api.DomainError(err)
	}
	resp := EventAvailabilityResponse{
		EventID:     a.Event.ID,
		Name:        a.Event.Name,
		Unallocated: toAvailabilityResponse(a.Pool),
		TicketTypes: make([]TicketTypeAvailabilityResponse, 0, len(a.Categories)),
	}
	for _, ca := range a.Categories {
		resp.TicketTypes = append(resp.TicketTypes, toTicketTypeAvailability(ca))
	}
	return c.JSON(http.StatusOK, resp)
}

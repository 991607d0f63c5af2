package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/api"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/application"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
)

type PricingHandler struct {
	service PricingServiceInterface
}

func NewPricingHandler(s PricingServiceInterface) *PricingHandler {
	return &PricingHandler{service: s}
}

type PriceCartRequest struct {
	EventID   string            `json:"event_id,omitempty"`
	Lines     []CartLineRequest `json:"lines" validate:"dive"`
	PromoCode string            `json:"promo_code,omitempty" example:"SUMMER10"`
}

type PriceHoldsRequest struct {
	HoldIDs   []string `json:"hold_ids" validate:"dive,required"`
	PromoCode string   `json:"promo_code,omitempty"`
}

type QuoteLineResponse struct {
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unit_price"`
	UnitFee      int64  `json:"unit_fee"`
	Amount       int64  `json:"amount"`
	Fee          int64  `json:"fee"`
}

// QuoteResponse の金額はすべて最小通貨単位
type QuoteResponse struct {
	Subtotal  int64               `json:"subtotal"`
	Discount  int64               `json:"discount"`
	Fees      int64               `json:"fees"`
	Total     int64               `json:"total"`
	Currency  string              `json:"currency"`
	PromoCode string              `json:"promo_code,omitempty"`
	Lines     []QuoteLineResponse `json:"lines"`
}

func toQuoteResponse(q pricing.Quote) QuoteResponse {
	return QuoteResponse{
		Subtotal:  q.Subtotal,
		Discount:  q.Discount,
		Fees:      q.Fees,
		Total:     q.Total,
		Currency:  q.Currency,
		PromoCode: q.PromoCode,
		Lines: lo.Map(q.Lines, func(l pricing.LineQuote, _ int) QuoteLineResponse {
			return QuoteLineResponse{
				TicketTypeID: l.CategoryID, Quantity: l.Quantity,
				UnitPrice: l.UnitPrice, UnitFee: l.UnitFee, Amount: l.Amount, Fee: l.Fee,
			}
		}),
	}
}

// PriceCart godoc
// @Summary カートの見積もり
// @Description 在庫を確保せずに金額を計算します
// @Tags pricing
// @Accept json
// @Produce json
// @Param request body PriceCartRequest true "カート"
// @Success 200 {object} QuoteResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 422 {object} api.ErrorResponse "無効なプロモーションコード"
// @Router /cart/price [post]
func (h *PricingHandler) PriceCart(c echo.Context) error {
	var req PriceCartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	q, err := h.service.PriceCart(c.Request().Context(), application.PriceCartInput{
		EventID:   req.EventID,
		Lines:     cartLines(req.Lines),
		PromoCode: req.PromoCode,
	})
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, toQuoteResponse(q))
}

// PriceHolds godoc
// @Summary 保留の見積もり
// @Description 保留中の内容そのものの金額を計算します
// @Tags pricing
// @Accept json
// @Produce json
// @Param request body PriceHoldsRequest true "保留ID"
// @Success 200 {object} QuoteResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /holds/price [post]
func (h *PricingHandler) PriceHolds(c echo.Context) error {
	var req PriceHoldsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	q, err := h.service.PriceHolds(c.Request().Context(), application.PriceHoldsInput{
		HoldIDs:   req.HoldIDs,
		PromoCode: req.PromoCode,
	})
	if err != nil {
		return api.DomainError(err)
	}
	return c.JSON(http.StatusOK, toQuoteResponse(q))
}

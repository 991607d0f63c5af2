package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/application"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

type errorMapping struct {
	target error
	code   int
	kind   string
}

// 先に一致したものを使う。包まれたエラーは包んでいる側を先に並べる
var errorMappings = []errorMapping{
	{ledger.ErrInsufficientInventory, http.StatusConflict, "insufficient_inventory"},
	{hold.ErrExceedsOrderLimit, http.StatusBadRequest, "exceeds_order_limit"},
	{ledger.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{pricing.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{hold.ErrHoldNotFound, http.StatusNotFound, "hold_not_found"},
	{category.ErrCategoryNotFound, http.StatusNotFound, "ticket_type_not_found"},
	{event.ErrEventNotFound, http.StatusNotFound, "event_not_found"},
	{hold.ErrHoldExpired, http.StatusConflict, "hold_expired"},
	{hold.ErrHoldAlreadyCommitted, http.StatusConflict, "hold_already_committed"},
	{hold.ErrHoldAlreadyReleased, http.StatusConflict, "hold_already_released"},
	{hold.ErrHoldNotCommittable, http.StatusConflict, "hold_not_committable"},
	{category.ErrCategoryInactive, http.StatusConflict, "ticket_type_inactive"},
	{category.ErrCategoryNotOnSale, http.StatusConflict, "ticket_type_not_on_sale"},
	{pricing.ErrInvalidPromoCode, http.StatusUnprocessableEntity, "invalid_promo_code"},
	{pricing.ErrPromoCodeExists, http.StatusConflict, "promo_code_exists"},
	{event.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{pricing.ErrCurrencyMismatch, http.StatusBadRequest, "currency_mismatch"},
	{pricing.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
}

// Classify はドメインエラーをHTTPステータスと種別に変換する
func Classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.code, m.kind
		}
	}
	if application.IsValidationError(err) {
		return http.StatusBadRequest, "validation"
	}
	return http.StatusInternalServerError, "internal"
}

// DomainError はドメインエラーを echo.HTTPError に変換する
// 5xx の場合はメッセージを伏せる
func DomainError(err error) *echo.HTTPError {
	code, _ := Classify(err)
	message := err.Error()
	if code >= http.StatusInternalServerError {
		message = "内部サーバーエラー"
	}
	return echo.NewHTTPError(code, message).SetInternal(err)
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    = http.StatusInternalServerError
		message = "内部サーバーエラー"
		kind    = "internal"
	)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
		if he.Internal != nil {
			_, kind = Classify(he.Internal)
		} else {
			kind = kindForStatus(code)
		}
	} else if code, kind = Classify(err); code < http.StatusInternalServerError {
		message = err.Error()
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.FromContext(c.Request().Context()).Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
		Kind:  kind,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}

func kindForStatus(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "validation"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	}
	if code >= http.StatusInternalServerError {
		return "internal"
	}
	return "error"
}

package application

import (
	"errors"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
)

var (
	ErrMixedEvents      = errors.New("異なるイベントの券種は同じカートに入れられません")
	ErrHoldNotPriceable = errors.New("イベント全体の保留は価格計算できません")
)

// 入力の誤りとして扱うエラー
var validationErrors = []error{
	ledger.ErrInvalidQuantity,
	ledger.ErrInvalidScope,
	hold.ErrEventIDRequired,
	hold.ErrCategoryIDRequired,
	hold.ErrInvalidReason,
	hold.ErrInvalidExpiry,
	hold.ErrEventWideNotAllowed,
	event.ErrEventNameRequired,
	event.ErrInvalidCapacity,
	category.ErrEventIDRequired,
	category.ErrNameRequired,
	category.ErrInvalidCapacity,
	category.ErrInvalidPrice,
	category.ErrInvalidCurrency,
	category.ErrInvalidMaxPerOrder,
	category.ErrInvalidSalesWindow,
	pricing.ErrEmptyCart,
	pricing.ErrInvalidQuantity,
	pricing.ErrCurrencyMismatch,
	pricing.ErrInvalidPromoValue,
	pricing.ErrInvalidFeeRate,
	ErrMixedEvents,
	ErrHoldNotPriceable,
}

// IsValidationError は入力の誤りによるエラーかを返す
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

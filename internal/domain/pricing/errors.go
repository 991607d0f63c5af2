package pricing

import (
	"errors"
	"fmt"
)

// Pricing ドメインのエラー定義
var (
	ErrEmptyCart         = errors.New("カートが空です")
	ErrInvalidQuantity   = errors.New("数量は1以上である必要があります")
	ErrCurrencyMismatch  = errors.New("カート内の通貨が一致しません")
	ErrInvalidPromoCode  = errors.New("プロモーションコードが無効です")
	ErrInvalidPromoValue = errors.New("プロモーションの値が不正です")
	ErrInvalidFeeRate    = errors.New("手数料率が不正です")
	ErrPromoCodeExists   = errors.New("同じプロモーションコードが既に存在します")
)

// ErrInvalidPromoCode を包むエラー
var (
	ErrPromoCodeNotFound = fmt.Errorf("%w: 存在しません", ErrInvalidPromoCode)
	ErrPromoCodeInactive = fmt.Errorf("%w: 無効化されています", ErrInvalidPromoCode)
	ErrPromoCodeExpired  = fmt.Errorf("%w: 有効期間外です", ErrInvalidPromoCode)
	ErrPromoIneligible   = fmt.Errorf("%w: このカートには適用できません", ErrInvalidPromoCode)
)

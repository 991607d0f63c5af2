package pricing

import (
	"context"
	"strings"
	"time"
)

// PromoType は割引の種類
type PromoType string

const (
	PromoPercentage PromoType = "percentage"
	PromoFixed      PromoType = "fixed"
)

// Promo は検証済みの割引。Percentage の Value は百分率 (10 = 10%)、Fixed は最小通貨単位
type Promo struct {
	Code  string
	Type  PromoType
	Value int64
}

// Validate は割引値を検証する
func (p Promo) Validate() error {
	switch p.Type {
	case PromoPercentage:
		if p.Value < 0 || p.Value > 100 {
			return ErrInvalidPromoValue
		}
	case PromoFixed:
		if p.Value < 0 {
			return ErrInvalidPromoValue
		}
	default:
		return ErrInvalidPromoValue
	}
	return nil
}

// PromoCode は保存されたプロモーションコード
// 利用回数などの制約はここでは扱わず、種類と値だけを受け付ける
type PromoCode struct {
	Code      string
	EventID   *string // nil は全イベント共通
	Type      PromoType
	Value     int64
	ValidFrom *time.Time
	ValidTo   *time.Time
	Active    bool
	CreatedAt time.Time
}

// NormalizeCode はコードを比較用に正規化する
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Promo は計算用の割引を返す
func (p *PromoCode) Promo() Promo {
	return Promo{Code: p.Code, Type: p.Type, Value: p.Value}
}

// CheckEligible は eventID のカートに now 時点で適用できるかを検証する
func (p *PromoCode) CheckEligible(eventID string, now time.Time) error {
	if !p.Active {
		return ErrPromoCodeInactive
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return ErrPromoCodeExpired
	}
	if p.ValidTo != nil && !now.Before(*p.ValidTo) {
		return ErrPromoCodeExpired
	}
	if p.EventID != nil && *p.EventID != eventID {
		return ErrPromoIneligible
	}
	return nil
}

// Validate はコードを検証する
func (p *PromoCode) Validate() error {
	if p.Code == "" || p.Code != NormalizeCode(p.Code) {
		return ErrInvalidPromoValue
	}
	if p.ValidFrom != nil && p.ValidTo != nil && !p.ValidTo.After(*p.ValidFrom) {
		return ErrInvalidPromoValue
	}
	return p.Promo().Validate()
}

// PromoRepository はプロモーションコードのリポジトリ
type PromoRepository interface {
	Create(ctx context.Context, p *PromoCode) error
	// GetByCode は正規化済みのコードで検索する。無ければ ErrPromoCodeNotFound
	GetByCode(ctx context.Context, code string) (*PromoCode, error)
}

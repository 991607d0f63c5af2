// Package pricing はカートの金額計算を行う
//
// 金額はすべて最小通貨単位の int64 で扱い、割合の計算は四捨五入する。
// Calculate は副作用を持たず、在庫台帳にも触れない。
package pricing

import "fmt"

const bpDenominator = 10000

// FeeSchedule は割引後の金額に掛かる手数料率 (ベーシスポイント, 500 = 5%)
type FeeSchedule struct {
	PlatformRateBP   int64
	ProcessingRateBP int64
}

// Validate は手数料率を検証する
func (f FeeSchedule) Validate() error {
	if f.PlatformRateBP < 0 || f.ProcessingRateBP < 0 {
		return ErrInvalidFeeRate
	}
	return nil
}

// Line はカートの明細
type Line struct {
	CategoryID string
	Quantity   int
	UnitPrice  int64
	UnitFee    int64
	Currency   string
}

// LineQuote は明細ごとの金額
type LineQuote struct {
	CategoryID string
	Quantity   int
	UnitPrice  int64
	UnitFee    int64
	Amount     int64
	Fee        int64
}

// Quote は計算結果
type Quote struct {
	Subtotal  int64
	Discount  int64
	Fees      int64
	Total     int64
	Currency  string
	PromoCode string
	Lines     []LineQuote
}

// Calculate は明細と割引から金額を計算する
// 手数料率は常に割引後の金額に対して適用する
func Calculate(lines []Line, promo *Promo, fees FeeSchedule) (Quote, error) {
	if len(lines) == 0 {
		return Quote{}, ErrEmptyCart
	}
	if err := fees.Validate(); err != nil {
		return Quote{}, err
	}

	q := Quote{Currency: lines[0].Currency, Lines: make([]LineQuote, 0, len(lines))}
	var unitFees int64
	for _, l := range lines {
		if l.Quantity < 1 {
			return Quote{}, fmt.Errorf("%w: %s=%d", ErrInvalidQuantity, l.CategoryID, l.Quantity)
		}
		if l.Currency != q.Currency {
			return Quote{}, fmt.Errorf("%w: %s と %s", ErrCurrencyMismatch, q.Currency, l.Currency)
		}
		lq := LineQuote{
			CategoryID: l.CategoryID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			UnitFee:    l.UnitFee,
			Amount:     int64(l.Quantity) * l.UnitPrice,
			Fee:        int64(l.Quantity) * l.UnitFee,
		}
		q.Subtotal += lq.Amount
		unitFees += lq.Fee
		q.Lines = append(q.Lines, lq)
	}

	if promo != nil {
		if err := promo.Validate(); err != nil {
			return Quote{}, err
		}
		q.Discount = discount(q.Subtotal, *promo)
		q.PromoCode = promo.Code
	}

	net := q.Subtotal - q.Discount
	q.Fees = unitFees + ratio(net, fees.PlatformRateBP, bpDenominator) + ratio(net, fees.ProcessingRateBP, bpDenominator)
	q.Total = net + q.Fees
	if q.Total < 0 {
		q.Total = 0
	}
	return q, nil
}

func discount(subtotal int64, p Promo) int64 {
	var d int64
	switch p.Type {
	case PromoPercentage:
		d = ratio(subtotal, p.Value, 100)
	case PromoFixed:
		d = p.Value
	}
	return min(d, subtotal)
}

// ratio は amount * num / denom を四捨五入して返す
func ratio(amount, num, denom int64) int64 {
	if amount <= 0 || num <= 0 {
		return 0
	}
	return (amount*num + denom/2) / denom
}

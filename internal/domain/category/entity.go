package category

import (
	"strings"
	"time"
)

// DefaultMaxPerOrder は1注文あたりの上限の既定値
const DefaultMaxPerOrder = 10

// Category はイベント内で販売される券種を表す
// Sold と Held は在庫台帳だけが更新する
type Category struct {
	ID          string
	EventID     string
	Name        string
	Capacity    int
	Sold        int
	Held        int
	UnitPrice   int64 // 最小通貨単位
	UnitFee     int64 // 最小通貨単位
	Currency    string
	MaxPerOrder int
	SalesStart  *time.Time
	SalesEnd    *time.Time
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int
}

// NewCategory は新しい券種を作成する
func NewCategory(eventID, name string, capacity int, unitPrice, unitFee int64, currency string, now time.Time) *Category {
	return &Category{
		EventID:     eventID,
		Name:        name,
		Capacity:    capacity,
		UnitPrice:   unitPrice,
		UnitFee:     unitFee,
		Currency:    strings.ToUpper(currency),
		MaxPerOrder: DefaultMaxPerOrder,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Available は capacity - sold - held を返す
func (c *Category) Available() int {
	n := c.Capacity - c.Sold - c.Held
	if n < 0 {
		return 0
	}
	return n
}

// InSalesWindow は now が販売期間内かを返す。期間未設定の端は無制限
func (c *Category) InSalesWindow(now time.Time) bool {
	if c.SalesStart != nil && now.Before(*c.SalesStart) {
		return false
	}
	if c.SalesEnd != nil && !now.Before(*c.SalesEnd) {
		return false
	}
	return true
}

// CheckOnSale は購入用の保留を作れる状態かを検証する
func (c *Category) CheckOnSale(now time.Time) error {
	if !c.Active {
		return ErrCategoryInactive
	}
	if !c.InSalesWindow(now) {
		return ErrCategoryNotOnSale
	}
	return nil
}

// Validate は券種の検証を行う
func (c *Category) Validate() error {
	if c.EventID == "" {
		return ErrEventIDRequired
	}
	if c.Name == "" {
		return ErrNameRequired
	}
	if c.Capacity < 0 {
		return ErrInvalidCapacity
	}
	if c.UnitPrice < 0 || c.UnitFee < 0 {
		return ErrInvalidPrice
	}
	if len(c.Currency) != 3 {
		return ErrInvalidCurrency
	}
	if c.MaxPerOrder < 1 {
		return ErrInvalidMaxPerOrder
	}
	if c.SalesStart != nil && c.SalesEnd != nil && !c.SalesEnd.After(*c.SalesStart) {
		return ErrInvalidSalesWindow
	}
	if c.Capacity < c.Sold+c.Held {
		return ErrInvalidCapacity
	}
	return nil
}

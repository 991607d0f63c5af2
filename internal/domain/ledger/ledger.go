// Package ledger は在庫台帳のポートを定義する
//
// 台帳は券種ごと (またはイベントの未割当枠) の capacity / sold / held を管理し、
// 在庫に関する判断はすべてここを通る。reserve はチェックと加算を1つの原子的な更新で行い、
// commit / release はトークンごとに一度だけ適用される。
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/transaction"
)

var (
	ErrInsufficientInventory = errors.New("在庫が不足しています")
	ErrInvalidQuantity       = errors.New("数量が不正です")
	ErrUnknownToken          = errors.New("予約トークンが見つかりません")
	ErrInvalidScope          = errors.New("在庫スコープが不正です")
)

// Scope は在庫の対象。CategoryID が nil の場合はイベントの未割当枠
type Scope struct {
	EventID    string
	CategoryID *string
}

// CategoryScope は券種のスコープを返す
func CategoryScope(eventID, categoryID string) Scope {
	return Scope{EventID: eventID, CategoryID: &categoryID}
}

// EventScope はイベント全体のスコープを返す
func EventScope(eventID string) Scope {
	return Scope{EventID: eventID}
}

// IsEventWide はイベント全体のスコープかを返す
func (s Scope) IsEventWide() bool {
	return s.CategoryID == nil
}

// Key はキャッシュやロックに使う識別子を返す
func (s Scope) Key() string {
	if s.IsEventWide() {
		return "event:" + s.EventID
	}
	return "category:" + *s.CategoryID
}

func (s Scope) Validate() error {
	if s.EventID == "" {
		return ErrInvalidScope
	}
	if s.CategoryID != nil && *s.CategoryID == "" {
		return ErrInvalidScope
	}
	return nil
}

// Token は reserve が返す予約トークン。保留IDがそのまま識別子になる
type Token struct {
	HoldID   string
	Scope    Scope
	Quantity int
}

// Validate はトークンを検証する
func (t Token) Validate() error {
	if t.HoldID == "" {
		return ErrUnknownToken
	}
	if t.Quantity < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, t.Quantity)
	}
	return t.Scope.Validate()
}

// Snapshot はある時点の在庫状況
type Snapshot struct {
	Scope    Scope
	Capacity int
	Sold     int
	Held     int
	// Lapsed は期限切れだがまだ掃除されていない保留の数量
	Lapsed    int
	Available int
}

// Compute は Available を計算して s を返す
// 期限切れ保留は表示上は解放済みとして扱う
func (s Snapshot) Compute() Snapshot {
	held := s.Held - s.Lapsed
	if held < 0 {
		held = 0
	}
	s.Available = s.Capacity - s.Sold - held
	if s.Available < 0 {
		s.Available = 0
	}
	return s
}

// Ledger は在庫台帳
type Ledger interface {
	// Reserve は available >= quantity を確認して held を加算する（トランザクション必須）
	// 不足している場合は ErrInsufficientInventory を返し、何も変更しない
	Reserve(ctx context.Context, tx transaction.Tx, tok Token) error

	// Commit は保留分を販売済みに移す。確定済みトークンに対しては何もしない
	Commit(ctx context.Context, tx transaction.Tx, tok Token) error

	// Release は保留分を在庫に戻す。精算済みトークンに対しては何もしない
	Release(ctx context.Context, tx transaction.Tx, tok Token) error

	// Availability は now 時点の在庫状況を返す
	Availability(ctx context.Context, scope Scope, now time.Time) (Snapshot, error)
}

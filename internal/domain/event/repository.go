package event

import (
	"context"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/transaction"
)

// Repository はイベントプールのリポジトリ
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, event *Event) error

	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id string) (*Event, error)

	// Allocate は未割当枠から n 枠をカテゴリへ割り当てる（トランザクション必須）
	// 枠が足りなければ ErrCapacityExceeded を返す
	Allocate(ctx context.Context, tx transaction.Tx, id string, n int) error
}

package category

import (
	"context"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/transaction"
)

// Repository は券種リポジトリのインターフェース
// 在庫カウンタ (Sold, Held) は ledger.Ledger 経由でのみ更新される
type Repository interface {
	// Create は新しい券種を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, c *Category) error

	// GetByID はIDから券種を取得する
	GetByID(ctx context.Context, id string) (*Category, error)

	// GetByIDs は複数の券種を取得する。見つからないIDがあれば ErrCategoryNotFound
	GetByIDs(ctx context.Context, ids []string) ([]*Category, error)

	// ListByEventID はイベントの券種一覧を取得する
	ListByEventID(ctx context.Context, eventID string) ([]*Category, error)
}

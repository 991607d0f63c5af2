package hold

import (
	"context"
	"time"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/transaction"
)

// Repository は保留リポジトリのインターフェース
type Repository interface {
	// Create は新しい保留を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, h *Hold) error

	// GetByID はIDから保留を取得する
	GetByID(ctx context.Context, id string) (*Hold, error)

	// GetForUpdate は保留を行ロック付きで取得する（トランザクション必須）
	GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*Hold, error)

	// ListByEventID はイベントの保留一覧を作成日時の降順で取得する
	ListByEventID(ctx context.Context, eventID string) ([]*Hold, error)

	// Transition は active の保留だけを to に遷移させる（トランザクション必須）
	// 既に終端状態なら false を返す。最初の遷移だけが勝つ
	Transition(ctx context.Context, tx transaction.Tx, id string, to Status, at time.Time) (bool, error)

	// FindLapsed は expires_at <= now の active 保留を期限の古い順に最大 limit 件取得する
	FindLapsed(ctx context.Context, now time.Time, limit int) ([]*Hold, error)

	// FindLapsedByScope は FindLapsed をスコープで絞り込む
	FindLapsedByScope(ctx context.Context, scope ledger.Scope, now time.Time, limit int) ([]*Hold, error)
}

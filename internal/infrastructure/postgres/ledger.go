package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/transaction"
)

type ledgerOp string

const (
	opReserve ledgerOp = "reserve"
	opCommit  ledgerOp = "commit"
	opRelease ledgerOp = "release"
)

// Ledger は在庫台帳の PostgreSQL 実装
//
// held の加算は「空きがある場合だけ更新する」1文の UPDATE で行うため、
// 同じ行に対する並行 reserve は行ロックで直列化され、超過販売は起きない。
// commit / release は ledger_entries の一意制約でトークンごとに一度だけ適用される。
type Ledger struct {
	db *sqlx.DB
}

func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

var _ ledger.Ledger = (*Ledger)(nil)

func (l *Ledger) Reserve(ctx context.Context, tx transaction.Tx, tok ledger.Token) error {
	if err := tok.Validate(); err != nil {
		return err
	}
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}

	var query string
	var args []any
	if tok.Scope.IsEventWide() {
		query = `UPDATE events
			SET held = held + $2, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND capacity - allocated - sold - held >= $2`
		args = []any{tok.Scope.EventID, tok.Quantity}
	} else {
		query = `UPDATE ticket_categories
			SET held = held + $2, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND event_id = $3 AND active AND capacity - sold - held >= $2`
		args = []any{*tok.Scope.CategoryID, tok.Quantity, tok.Scope.EventID}
	}

	res, err := sqlTx.ExecContext(ctx, query, args...)
	if err != nil {
		if isInvalidID(err) {
			return scopeNotFound(tok.Scope)
		}
		return fmt.Errorf("在庫の確保に失敗: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows != 1 {
		exists, active, err := l.scopeState(ctx, sqlTx, tok.Scope)
		if err != nil {
			return err
		}
		if !exists {
			return scopeNotFound(tok.Scope)
		}
		if !active {
			return category.ErrCategoryInactive
		}
		return ledger.ErrInsufficientInventory
	}

	insert := `INSERT INTO ledger_entries (hold_id, event_id, ticket_type_id, op, quantity)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := sqlTx.ExecContext(ctx, insert, tok.HoldID, tok.Scope.EventID, tok.Scope.CategoryID, opReserve, tok.Quantity); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("予約トークンは既に使用されています: %s", tok.HoldID)
		}
		return fmt.Errorf("台帳の記録に失敗: %w", err)
	}
	return nil
}

func (l *Ledger) Commit(ctx context.Context, tx transaction.Tx, tok ledger.Token) error {
	return l.settle(ctx, tx, tok.HoldID, opCommit)
}

func (l *Ledger) Release(ctx context.Context, tx transaction.Tx, tok ledger.Token) error {
	return l.settle(ctx, tx, tok.HoldID, opRelease)
}

type settleRow struct {
	EventID      string  `db:"event_id"`
	TicketTypeID *string `db:"ticket_type_id"`
	Quantity     int     `db:"quantity"`
}

// settle は reserve の記録から数量を読み、精算の記録が新たに入った場合だけカウンタを動かす
func (l *Ledger) settle(ctx context.Context, tx transaction.Tx, holdID string, op ledgerOp) error {
	if holdID == "" {
		return ledger.ErrUnknownToken
	}
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}

	insert := `INSERT INTO ledger_entries (hold_id, event_id, ticket_type_id, op, quantity)
		SELECT hold_id, event_id, ticket_type_id, $2, quantity
		FROM ledger_entries WHERE hold_id = $1 AND op = 'reserve'
		ON CONFLICT DO NOTHING
		RETURNING event_id, ticket_type_id, quantity`
	var row settleRow
	err = sqlTx.GetContext(ctx, &row, insert, holdID, op)
	if errors.Is(err, sql.ErrNoRows) {
		var reserved bool
		q := `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE hold_id = $1 AND op = 'reserve')`
		if err := sqlTx.GetContext(ctx, &reserved, q, holdID); err != nil {
			return fmt.Errorf("台帳の確認に失敗: %w", err)
		}
		if !reserved {
			return ledger.ErrUnknownToken
		}
		// 精算済み
		return nil
	}
	if err != nil {
		if isInvalidID(err) {
			return ledger.ErrUnknownToken
		}
		return fmt.Errorf("台帳の記録に失敗: %w", err)
	}

	table, id := "ticket_categories", ""
	if row.TicketTypeID == nil {
		table, id = "events", row.EventID
	} else {
		id = *row.TicketTypeID
	}

	var set string
	switch op {
	case opCommit:
		set = "held = held - $2, sold = sold + $2"
	case opRelease:
		set = "held = held - $2"
	}
	update := `UPDATE ` + table + ` SET ` + set + `, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND held >= $2`
	res, err := sqlTx.ExecContext(ctx, update, id, row.Quantity)
	if err != nil {
		return fmt.Errorf("在庫の精算に失敗: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows != 1 {
		return fmt.Errorf("在庫カウンタが台帳と一致しません (hold=%s)", holdID)
	}
	return nil
}

type snapshotRow struct {
	Capacity int `db:"capacity"`
	Sold     int `db:"sold"`
	Held     int `db:"held"`
	Lapsed   int `db:"lapsed"`
}

func (l *Ledger) Availability(ctx context.Context, scope ledger.Scope, now time.Time) (ledger.Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return ledger.Snapshot{}, err
	}

	var query string
	var args []any
	if scope.IsEventWide() {
		query = `SELECT e.capacity - e.allocated AS capacity, e.sold, e.held,
				COALESCE((SELECT SUM(h.quantity) FROM holds h
					WHERE h.event_id = e.id AND h.ticket_type_id IS NULL
					AND h.status = 'active' AND h.expires_at <= $2), 0) AS lapsed
			FROM events e WHERE e.id = $1`
		args = []any{scope.EventID, now}
	} else {
		query = `SELECT c.capacity, c.sold, c.held,
				COALESCE((SELECT SUM(h.quantity) FROM holds h
					WHERE h.ticket_type_id = c.id
					AND h.status = 'active' AND h.expires_at <= $2), 0) AS lapsed
			FROM ticket_categories c WHERE c.id = $1`
		args = []any{*scope.CategoryID, now}
	}

	var row snapshotRow
	if err := l.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return ledger.Snapshot{}, scopeNotFound(scope)
		}
		return ledger.Snapshot{}, fmt.Errorf("在庫状況の取得に失敗: %w", err)
	}

	return ledger.Snapshot{
		Scope:    scope,
		Capacity: row.Capacity,
		Sold:     row.Sold,
		Held:     row.Held,
		Lapsed:   row.Lapsed,
	}.Compute(), nil
}

// scopeState は在庫対象の有無と販売可否を返す。イベント枠は存在すれば販売可
func (l *Ledger) scopeState(ctx context.Context, sqlTx *sqlx.Tx, scope ledger.Scope) (exists, active bool, err error) {
	if scope.IsEventWide() {
		err = sqlTx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, scope.EventID)
		if err != nil {
			return false, false, fmt.Errorf("在庫対象の確認に失敗: %w", err)
		}
		return exists, exists, nil
	}

	var flags []bool
	err = sqlTx.SelectContext(ctx, &flags,
		`SELECT active FROM ticket_categories WHERE id = $1 AND event_id = $2`,
		*scope.CategoryID, scope.EventID)
	if err != nil {
		return false, false, fmt.Errorf("在庫対象の確認に失敗: %w", err)
	}
	if len(flags) == 0 {
		return false, false, nil
	}
	return true, flags[0], nil
}

func scopeNotFound(scope ledger.Scope) error {
	if scope.IsEventWide() {
		return event.ErrEventNotFound
	}
	return category.ErrCategoryNotFound
}

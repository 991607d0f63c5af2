package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/transaction"
)

const holdColumns = `id, event_id, ticket_type_id, quantity, reason, status, created_at, expires_at, settled_at, updated_at`

type holdRow struct {
	ID           string     `db:"id"`
	EventID      string     `db:"event_id"`
	TicketTypeID *string    `db:"ticket_type_id"`
	Quantity     int        `db:"quantity"`
	Reason       string     `db:"reason"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	ExpiresAt    time.Time  `db:"expires_at"`
	SettledAt    *time.Time `db:"settled_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (r *holdRow) toEntity() *hold.Hold {
	return &hold.Hold{
		ID:         r.ID,
		EventID:    r.EventID,
		CategoryID: r.TicketTypeID,
		Quantity:   r.Quantity,
		Reason:     hold.Reason(r.Reason),
		Status:     hold.Status(r.Status),
		CreatedAt:  r.CreatedAt,
		ExpiresAt:  r.ExpiresAt,
		SettledAt:  r.SettledAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toHolds(rows []holdRow) []*hold.Hold {
	result := make([]*hold.Hold, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

// HoldRepository は保留の PostgreSQL 実装
type HoldRepository struct {
	db *sqlx.DB
}

func NewHoldRepository(db *sqlx.DB) *HoldRepository {
	return &HoldRepository{db: db}
}

var _ hold.Repository = (*HoldRepository)(nil)

func (r *HoldRepository) Create(ctx context.Context, tx transaction.Tx, h *hold.Hold) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}

	query := `INSERT INTO holds (` + holdColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = sqlTx.ExecContext(ctx, query,
		h.ID, h.EventID, h.CategoryID, h.Quantity, string(h.Reason), string(h.Status),
		h.CreatedAt, h.ExpiresAt, h.SettledAt, h.UpdatedAt,
	)
	if err != nil {
		if isInvalidID(err) || isForeignKeyViolation(err) {
			return event.ErrEventNotFound
		}
		if isCheckViolation(err) {
			return fmt.Errorf("保留作成に失敗: %w", hold.ErrInvalidExpiry)
		}
		return fmt.Errorf("保留作成に失敗: %w", err)
	}
	return nil
}

func (r *HoldRepository) GetByID(ctx context.Context, id string) (*hold.Hold, error) {
	var row holdRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+holdColumns+` FROM holds WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, hold.ErrHoldNotFound
		}
		return nil, fmt.Errorf("保留取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *HoldRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*hold.Hold, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return nil, err
	}

	var row holdRow
	if err := sqlTx.GetContext(ctx, &row, `SELECT `+holdColumns+` FROM holds WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, hold.ErrHoldNotFound
		}
		return nil, fmt.Errorf("保留取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *HoldRepository) ListByEventID(ctx context.Context, eventID string) ([]*hold.Hold, error) {
	var rows []holdRow
	query := `SELECT ` + holdColumns + ` FROM holds WHERE event_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		if isInvalidID(err) {
			return []*hold.Hold{}, nil
		}
		return nil, fmt.Errorf("保留一覧取得に失敗: %w", err)
	}
	return toHolds(rows), nil
}

func (r *HoldRepository) Transition(ctx context.Context, tx transaction.Tx, id string, to hold.Status, at time.Time) (bool, error) {
	if !to.IsTerminal() {
		return false, fmt.Errorf("終端状態以外への遷移はできません: %s", to)
	}
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return false, err
	}

	query := `UPDATE holds SET status = $2, settled_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'active'`
	res, err := sqlTx.ExecContext(ctx, query, id, string(to), at)
	if err != nil {
		return false, fmt.Errorf("保留の状態更新に失敗: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("保留の状態更新に失敗: %w", err)
	}
	return rows == 1, nil
}

func (r *HoldRepository) FindLapsed(ctx context.Context, now time.Time, limit int) ([]*hold.Hold, error) {
	var rows []holdRow
	query := `SELECT ` + holdColumns + ` FROM holds
		WHERE status = 'active' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("期限切れ保留取得に失敗: %w", err)
	}
	return toHolds(rows), nil
}

func (r *HoldRepository) FindLapsedByScope(ctx context.Context, scope ledger.Scope, now time.Time, limit int) ([]*hold.Hold, error) {
	var rows []holdRow
	var err error
	if scope.IsEventWide() {
		query := `SELECT ` + holdColumns + ` FROM holds
			WHERE event_id = $1 AND ticket_type_id IS NULL AND status = 'active' AND expires_at <= $2
			ORDER BY expires_at
			LIMIT $3`
		err = r.db.SelectContext(ctx, &rows, query, scope.EventID, now, limit)
	} else {
		query := `SELECT ` + holdColumns + ` FROM holds
			WHERE ticket_type_id = $1 AND status = 'active' AND expires_at <= $2
			ORDER BY expires_at
			LIMIT $3`
		err = r.db.SelectContext(ctx, &rows, query, *scope.CategoryID, now, limit)
	}
	if err != nil {
		if isInvalidID(err) {
			return []*hold.Hold{}, nil
		}
		return nil, fmt.Errorf("期限切れ保留取得に失敗: %w", err)
	}
	return toHolds(rows), nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/transaction"
)

type eventRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Capacity  int       `db:"capacity"`
	Allocated int       `db:"allocated"`
	Sold      int       `db:"sold"`
	Held      int       `db:"held"`
	Version   int       `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *eventRow) toEntity() *event.Event {
	return &event.Event{
		ID:        r.ID,
		Name:      r.Name,
		Capacity:  r.Capacity,
		Allocated: r.Allocated,
		Sold:      r.Sold,
		Held:      r.Held,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// EventRepository はイベントプールの PostgreSQL 実装
type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

var _ event.Repository = (*EventRepository)(nil)

func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `INSERT INTO events (name, capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, e.Name, e.Capacity, e.CreatedAt, e.UpdatedAt).Scan(&e.ID); err != nil {
		return fmt.Errorf("イベント作成に失敗: %w", err)
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	var row eventRow
	query := `SELECT id, name, capacity, allocated, sold, held, version, created_at, updated_at
		FROM events WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *EventRepository) Allocate(ctx context.Context, tx transaction.Tx, id string, n int) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}

	query := `UPDATE events
		SET allocated = allocated + $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND capacity - allocated - sold - held >= $2`
	res, err := sqlTx.ExecContext(ctx, query, id, n)
	if err != nil {
		if isInvalidID(err) {
			return event.ErrEventNotFound
		}
		return fmt.Errorf("イベント枠の割当に失敗: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 1 {
		return nil
	}

	var exists bool
	if err := sqlTx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("イベント存在確認に失敗: %w", err)
	}
	if !exists {
		return event.ErrEventNotFound
	}
	return event.ErrCapacityExceeded
}

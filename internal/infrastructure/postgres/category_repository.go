package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/transaction"
)

const categoryColumns = `id, event_id, name, capacity, sold, held, unit_price, unit_fee, currency,
	max_per_order, sales_start, sales_end, active, version, created_at, updated_at`

type categoryRow struct {
	ID          string     `db:"id"`
	EventID     string     `db:"event_id"`
	Name        string     `db:"name"`
	Capacity    int        `db:"capacity"`
	Sold        int        `db:"sold"`
	Held        int        `db:"held"`
	UnitPrice   int64      `db:"unit_price"`
	UnitFee     int64      `db:"unit_fee"`
	Currency    string     `db:"currency"`
	MaxPerOrder int        `db:"max_per_order"`
	SalesStart  *time.Time `db:"sales_start"`
	SalesEnd    *time.Time `db:"sales_end"`
	Active      bool       `db:"active"`
	Version     int        `db:"version"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (r *categoryRow) toEntity() *category.Category {
	return &category.Category{
		ID:          r.ID,
		EventID:     r.EventID,
		Name:        r.Name,
		Capacity:    r.Capacity,
		Sold:        r.Sold,
		Held:        r.Held,
		UnitPrice:   r.UnitPrice,
		UnitFee:     r.UnitFee,
		Currency:    r.Currency,
		MaxPerOrder: r.MaxPerOrder,
		SalesStart:  r.SalesStart,
		SalesEnd:    r.SalesEnd,
		Active:      r.Active,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// CategoryRepository は券種の PostgreSQL 実装
type CategoryRepository struct {
	db *sqlx.DB
}

func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

var _ category.Repository = (*CategoryRepository)(nil)

func (r *CategoryRepository) Create(ctx context.Context, tx transaction.Tx, c *category.Category) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}

	query := `INSERT INTO ticket_categories
		(event_id, name, capacity, unit_price, unit_fee, currency, max_per_order, sales_start, sales_end, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	err = sqlTx.QueryRowContext(ctx, query,
		c.EventID, c.Name, c.Capacity, c.UnitPrice, c.UnitFee, c.Currency, c.MaxPerOrder,
		c.SalesStart, c.SalesEnd, c.Active, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("券種作成に失敗: %w", err)
	}
	return nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*category.Category, error) {
	var row categoryRow
	query := `SELECT ` + categoryColumns + ` FROM ticket_categories WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, category.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("券種取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *CategoryRepository) GetByIDs(ctx context.Context, ids []string) ([]*category.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []categoryRow
	query := `SELECT ` + categoryColumns + ` FROM ticket_categories WHERE id = ANY($1)`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		if isInvalidID(err) {
			return nil, category.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("券種一覧取得に失敗: %w", err)
	}

	found := make(map[string]*category.Category, len(rows))
	for i := range rows {
		found[rows[i].ID] = rows[i].toEntity()
	}
	result := make([]*category.Category, 0, len(ids))
	for _, id := range ids {
		c, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", category.ErrCategoryNotFound, id)
		}
		result = append(result, c)
	}
	return result, nil
}

func (r *CategoryRepository) ListByEventID(ctx context.Context, eventID string) ([]*category.Category, error) {
	var rows []categoryRow
	query := `SELECT ` + categoryColumns + ` FROM ticket_categories WHERE event_id = $1 ORDER BY created_at, name`
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		if isInvalidID(err) {
			return []*category.Category{}, nil
		}
		return nil, fmt.Errorf("券種一覧取得に失敗: %w", err)
	}
	result := make([]*category.Category, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

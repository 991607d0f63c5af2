package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
)

type promoRow struct {
	Code          string     `db:"code"`
	EventID       *string    `db:"event_id"`
	DiscountType  string     `db:"discount_type"`
	DiscountValue int64      `db:"discount_value"`
	ValidFrom     *time.Time `db:"valid_from"`
	ValidTo       *time.Time `db:"valid_to"`
	Active        bool       `db:"active"`
	CreatedAt     time.Time  `db:"created_at"`
}

func (r *promoRow) toEntity() *pricing.PromoCode {
	return &pricing.PromoCode{
		Code:      r.Code,
		EventID:   r.EventID,
		Type:      pricing.PromoType(r.DiscountType),
		Value:     r.DiscountValue,
		ValidFrom: r.ValidFrom,
		ValidTo:   r.ValidTo,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
}

// PromoRepository はプロモーションコードの PostgreSQL 実装
type PromoRepository struct {
	db *sqlx.DB
}

func NewPromoRepository(db *sqlx.DB) *PromoRepository {
	return &PromoRepository{db: db}
}

var _ pricing.PromoRepository = (*PromoRepository)(nil)

func (r *PromoRepository) Create(ctx context.Context, p *pricing.PromoCode) error {
	query := `INSERT INTO promo_codes (code, event_id, discount_type, discount_value, valid_from, valid_to, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		p.Code, p.EventID, string(p.Type), p.Value, p.ValidFrom, p.ValidTo, p.Active, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return pricing.ErrPromoCodeExists
		}
		if isInvalidID(err) || isForeignKeyViolation(err) {
			return event.ErrEventNotFound
		}
		return fmt.Errorf("プロモーションコード作成に失敗: %w", err)
	}
	return nil
}

func (r *PromoRepository) GetByCode(ctx context.Context, code string) (*pricing.PromoCode, error) {
	var row promoRow
	query := `SELECT code, event_id, discount_type, discount_value, valid_from, valid_to, active, created_at
		FROM promo_codes WHERE code = $1`
	if err := r.db.GetContext(ctx, &row, query, pricing.NormalizeCode(code)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pricing.ErrPromoCodeNotFound
		}
		return nil, fmt.Errorf("プロモーションコード取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

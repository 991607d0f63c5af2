package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/clock"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/transaction"
	redisinfra "github.com/obichijioke/event-app-fullstack-sub004/internal/infrastructure/redis"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/logger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/metrics"
)

// InventoryService はイベントと券種の登録、在庫の参照を扱う
type InventoryService struct {
	txManager    transaction.Manager
	eventRepo    event.Repository
	categoryRepo category.Repository
	promoRepo    pricing.PromoRepository
	ledger       ledger.Ledger
	clock        clock.Clock
	cache        AvailabilityCache
	metrics      *metrics.Metrics
}

func NewInventoryService(tm transaction.Manager, er event.Repository, cr category.Repository, pr pricing.PromoRepository, l ledger.Ledger, opts ...InventoryOption) *InventoryService {
	s := &InventoryService{
		txManager:    tm,
		eventRepo:    er,
		categoryRepo: cr,
		promoRepo:    pr,
		ledger:       l,
		clock:        clock.NewSystem(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type InventoryOption func(*InventoryService)

func WithInventoryClock(c clock.Clock) InventoryOption {
	return func(s *InventoryService) { s.clock = c }
}

func WithInventoryCache(c AvailabilityCache, m *metrics.Metrics) InventoryOption {
	return func(s *InventoryService) {
		s.cache = c
		s.metrics = m
	}
}

type CreateEventInput struct {
	Name     string
	Capacity int
}

func (s *InventoryService) CreateEvent(ctx context.Context, input CreateEventInput) (*event.Event, error) {
	ev := event.NewEvent(input.Name, input.Capacity, s.clock.Now())
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if err := s.eventRepo.Create(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *InventoryService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

type CreateCategoryInput struct {
	EventID     string
	Name        string
	Capacity    int
	UnitPrice   int64
	UnitFee     int64
	Currency    string
	MaxPerOrder int // 0 は既定値
	SalesStart  *time.Time
	SalesEnd    *time.Time
}

// CreateCategory はイベントの未割当枠から容量を割り当てて券種を作る
func (s *InventoryService) CreateCategory(ctx context.Context, input CreateCategoryInput) (*category.Category, error) {
	c := category.NewCategory(input.EventID, input.Name, input.Capacity, input.UnitPrice, input.UnitFee, input.Currency, s.clock.Now())
	if input.MaxPerOrder != 0 {
		c.MaxPerOrder = input.MaxPerOrder
	}
	c.SalesStart = input.SalesStart
	c.SalesEnd = input.SalesEnd
	if err := c.Validate(); err != nil {
		return nil, err
	}

	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := s.eventRepo.Allocate(ctx, tx, input.EventID, input.Capacity); err != nil {
			return err
		}
		return s.categoryRepo.Create(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, ledger.EventScope(input.EventID))
	return c, nil
}

func (s *InventoryService) ListCategories(ctx context.Context, eventID string) ([]*category.Category, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.categoryRepo.ListByEventID(ctx, eventID)
}

type CreatePromoCodeInput struct {
	Code      string
	EventID   *string
	Type      pricing.PromoType
	Value     int64
	ValidFrom *time.Time
	ValidTo   *time.Time
}

func (s *InventoryService) CreatePromoCode(ctx context.Context, input CreatePromoCodeInput) (*pricing.PromoCode, error) {
	p := &pricing.PromoCode{
		Code:      pricing.NormalizeCode(input.Code),
		EventID:   input.EventID,
		Type:      input.Type,
		Value:     input.Value,
		ValidFrom: input.ValidFrom,
		ValidTo:   input.ValidTo,
		Active:    true,
		CreatedAt: s.clock.Now(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.EventID != nil {
		if _, err := s.eventRepo.GetByID(ctx, *p.EventID); err != nil {
			return nil, err
		}
	}
	if err := s.promoRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CategoryAvailability は券種と在庫状況の組
type CategoryAvailability struct {
	Category *category.Category
	Snapshot ledger.Snapshot
}

// EventAvailability はイベントの未割当枠と全券種の在庫状況
type EventAvailability struct {
	Event      *event.Event
	Pool       ledger.Snapshot
	Categories []CategoryAvailability
}

// GetCategoryAvailability は券種の在庫状況を返す
func (s *InventoryService) GetCategoryAvailability(ctx context.Context, categoryID string) (*CategoryAvailability, error) {
	c, err := s.categoryRepo.GetByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	snap, err := s.availability(ctx, ledger.CategoryScope(c.EventID, c.ID))
	if err != nil {
		return nil, err
	}
	return &CategoryAvailability{Category: c, Snapshot: snap}, nil
}

// GetEventAvailability はイベント全体の在庫状況を返す
func (s *InventoryService) GetEventAvailability(ctx context.Context, eventID string) (*EventAvailability, error) {
	ev, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	pool, err := s.availability(ctx, ledger.EventScope(eventID))
	if err != nil {
		return nil, err
	}
	cats, err := s.categoryRepo.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := &EventAvailability{Event: ev, Pool: pool, Categories: make([]CategoryAvailability, 0, len(cats))}
	for _, c := range cats {
		snap, err := s.availability(ctx, ledger.CategoryScope(eventID, c.ID))
		if err != nil {
			return nil, err
		}
		out.Categories = append(out.Categories, CategoryAvailability{Category: c, Snapshot: snap})
	}
	return out, nil
}

// availability はキャッシュを優先して在庫を返す
// キャッシュの障害は台帳からの読み直しで吸収する
func (s *InventoryService) availability(ctx context.Context, scope ledger.Scope) (ledger.Snapshot, error) {
	if s.cache != nil {
		snap, err := s.cache.Get(ctx, scope)
		switch {
		case err == nil:
			s.observeCache("hit")
			return snap, nil
		case errors.Is(err, redisinfra.ErrCacheMiss):
			s.observeCache("miss")
		default:
			s.observeCache("error")
			logger.FromContext(ctx).Warn("在庫キャッシュの取得に失敗", zap.String("scope", scope.Key()), zap.Error(err))
		}
	}

	snap, err := s.ledger.Availability(ctx, scope, s.clock.Now())
	if err != nil {
		return ledger.Snapshot{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, snap); err != nil {
			logger.FromContext(ctx).Warn("在庫キャッシュの保存に失敗", zap.String("scope", scope.Key()), zap.Error(err))
		}
	}
	return snap, nil
}

func (s *InventoryService) invalidate(ctx context.Context, scopes ...ledger.Scope) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, scopes...); err != nil {
		logger.FromContext(ctx).Warn("在庫キャッシュの無効化に失敗", zap.Error(err))
	}
}

func (s *InventoryService) observeCache(result string) {
	if s.metrics != nil {
		s.metrics.AvailabilityCacheTotal.WithLabelValues(result).Inc()
	}
}

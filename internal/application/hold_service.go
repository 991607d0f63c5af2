package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/clock"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/transaction"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/logger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/metrics"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/tracing"
)

// 在庫不足時に1回の作成で掃除する期限切れ保留の上限
const defaultReclaimLimit = 100

// TTLPolicy は保留理由ごとの既定の有効期間
type TTLPolicy struct {
	Checkout      time.Duration
	Reservation   time.Duration
	OrganizerHold time.Duration
	Max           time.Duration
}

// DefaultTTLPolicy は既定の有効期間を返す
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Checkout:      15 * time.Minute,
		Reservation:   24 * time.Hour,
		OrganizerHold: 72 * time.Hour,
		Max:           720 * time.Hour,
	}
}

// Resolve は ttl を確定する。0 は理由ごとの既定値、Max を超える値は Max に丸める
func (p TTLPolicy) Resolve(reason hold.Reason, ttl time.Duration) (time.Duration, error) {
	if ttl < 0 {
		return 0, fmt.Errorf("%w: ttl=%s", hold.ErrInvalidExpiry, ttl)
	}
	if ttl == 0 {
		switch reason {
		case hold.ReasonCheckout:
			ttl = p.Checkout
		case hold.ReasonReservation:
			ttl = p.Reservation
		case hold.ReasonOrganizerHold:
			ttl = p.OrganizerHold
		}
	}
	if p.Max > 0 && ttl > p.Max {
		ttl = p.Max
	}
	if ttl <= 0 {
		return 0, hold.ErrInvalidExpiry
	}
	return ttl, nil
}

// AvailabilityCache は在庫表示のキャッシュ
type AvailabilityCache interface {
	Get(ctx context.Context, scope ledger.Scope) (ledger.Snapshot, error)
	Set(ctx context.Context, snap ledger.Snapshot) error
	Invalidate(ctx context.Context, scopes ...ledger.Scope) error
}

type HoldService struct {
	txManager    transaction.Manager
	holdRepo     hold.Repository
	categoryRepo category.Repository
	eventRepo    event.Repository
	ledger       ledger.Ledger
	clock        clock.Clock
	ttl          TTLPolicy
	cache        AvailabilityCache
	publisher    hold.Publisher
	metrics      *metrics.Metrics
	reclaimLimit int
}

// HoldOption は HoldService の設定
type HoldOption func(*HoldService)

func WithClock(c clock.Clock) HoldOption {
	return func(s *HoldService) { s.clock = c }
}

func WithTTLPolicy(p TTLPolicy) HoldOption {
	return func(s *HoldService) { s.ttl = p }
}

func WithCache(c AvailabilityCache) HoldOption {
	return func(s *HoldService) { s.cache = c }
}

func WithPublisher(p hold.Publisher) HoldOption {
	return func(s *HoldService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) HoldOption {
	return func(s *HoldService) { s.metrics = m }
}

func NewHoldService(tm transaction.Manager, hr hold.Repository, cr category.Repository, er event.Repository, l ledger.Ledger, opts ...HoldOption) *HoldService {
	s := &HoldService{
		txManager:    tm,
		holdRepo:     hr,
		categoryRepo: cr,
		eventRepo:    er,
		ledger:       l,
		clock:        clock.NewSystem(),
		ttl:          DefaultTTLPolicy(),
		reclaimLimit: defaultReclaimLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateHoldInput struct {
	EventID    string
	CategoryID *string // nil はイベント全体の保留
	Quantity   int
	Reason     hold.Reason
	TTL        time.Duration
}

// CreateHold は在庫を確保して active な保留を作る
func (s *HoldService) CreateHold(ctx context.Context, input CreateHoldInput) (_ *hold.Hold, err error) {
	ctx, span := tracing.Start(ctx, "HoldService.CreateHold")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", input.EventID),
		attribute.String("hold.reason", string(input.Reason)),
		attribute.Int("hold.quantity", input.Quantity),
	)
	defer func() {
		s.observeCreate(input.Reason, err)
		if err != nil {
			tracing.RecordError(span, err)
		}
	}()

	if err := s.validateRequest(input.Reason, input.Quantity); err != nil {
		return nil, err
	}
	ttl, err := s.ttl.Resolve(input.Reason, input.TTL)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	if input.CategoryID == nil {
		if input.Reason != hold.ReasonOrganizerHold {
			return nil, hold.ErrEventWideNotAllowed
		}
		if _, err := s.eventRepo.GetByID(ctx, input.EventID); err != nil {
			return nil, err
		}
	} else {
		cat, err := s.categoryRepo.GetByID(ctx, *input.CategoryID)
		if err != nil {
			return nil, err
		}
		if err := checkCategory(cat, input.EventID, input.Quantity, input.Reason, now); err != nil {
			return nil, err
		}
	}

	h, err := hold.NewHold(input.EventID, input.CategoryID, input.Quantity, input.Reason, ttl, now)
	if err != nil {
		return nil, err
	}
	if err := s.reserveWithReclaim(ctx, h); err != nil {
		return nil, err
	}
	s.afterChange(ctx, h, hold.EventCreated)
	return h, nil
}

type CartLine struct {
	CategoryID string
	Quantity   int
}

type CreateCartHoldsInput struct {
	EventID string
	Lines   []CartLine
	Reason  hold.Reason
	TTL     time.Duration
}

// CreateCartHolds は明細ごとに保留を作る
// 途中で失敗した場合はこの呼び出しで作った保留をすべて解放してからエラーを返す
func (s *HoldService) CreateCartHolds(ctx context.Context, input CreateCartHoldsInput) ([]*hold.Hold, error) {
	ctx, span := tracing.Start(ctx, "HoldService.CreateCartHolds")
	defer span.End()

	lines, err := mergeLines(input.Lines)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	if !input.Reason.Valid() {
		return nil, hold.ErrInvalidReason
	}
	ttl, err := s.ttl.Resolve(input.Reason, input.TTL)
	if err != nil {
		return nil, err
	}

	cats, err := s.categoryRepo.GetByIDs(ctx, lo.Map(lines, func(l CartLine, _ int) string { return l.CategoryID }))
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	now := s.clock.Now()
	for i, cat := range cats {
		if err := checkCategory(cat, input.EventID, lines[i].Quantity, input.Reason, now); err != nil {
			return nil, tracing.RecordError(span, err)
		}
	}

	acquired := make([]*hold.Hold, 0, len(lines))
	for _, l := range lines {
		categoryID := l.CategoryID
		h, err := hold.NewHold(input.EventID, &categoryID, l.Quantity, input.Reason, ttl, now)
		if err == nil {
			err = s.reserveWithReclaim(ctx, h)
		}
		s.observeCreate(input.Reason, err)
		if err != nil {
			s.rollbackCart(ctx, acquired)
			return nil, tracing.RecordError(span, err)
		}
		s.afterChange(ctx, h, hold.EventCreated)
		acquired = append(acquired, h)
	}
	return acquired, nil
}

func (s *HoldService) rollbackCart(ctx context.Context, acquired []*hold.Hold) {
	for _, h := range acquired {
		if _, err := s.ReleaseHold(ctx, h.ID); err != nil {
			logger.FromContext(ctx).Error("カート保留の巻き戻しに失敗",
				zap.String("hold_id", h.ID), zap.Error(err))
		}
	}
}

// CommitHold は active な保留を確定し、在庫を販売済みにする
// 期限を過ぎた active 保留はその場で expired にして ErrHoldExpired を返す
func (s *HoldService) CommitHold(ctx context.Context, id string) (*hold.Hold, error) {
	ctx, span := tracing.Start(ctx, "HoldService.CommitHold")
	defer span.End()
	span.SetAttributes(attribute.String("hold.id", id))

	var (
		out    *hold.Hold
		moved  bool
		result error
	)
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		h, err := s.holdRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		out = h
		now := s.clock.Now()
		if err := h.CheckCommittable(now); err != nil {
			if !h.IsActive() {
				return err
			}
			// 期限切れの確定はコミットして遷移を残す
			moved, err = s.settle(ctx, tx, h, hold.StatusExpired, now)
			if err != nil {
				return err
			}
			result = hold.ErrHoldExpired
			return nil
		}
		moved, err = s.settle(ctx, tx, h, hold.StatusCommitted, now)
		if err != nil {
			return err
		}
		if !moved {
			result = hold.ErrHoldNotCommittable
		}
		return nil
	})
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	if moved {
		s.afterChange(ctx, out, hold.EventTypeFor(out.Status))
	}
	if result != nil {
		return nil, tracing.RecordError(span, result)
	}
	return out, nil
}

// ReleaseHold は active な保留を解放する。終端状態なら何もせず現在の保留を返す
func (s *HoldService) ReleaseHold(ctx context.Context, id string) (*hold.Hold, error) {
	ctx, span := tracing.Start(ctx, "HoldService.ReleaseHold")
	defer span.End()
	span.SetAttributes(attribute.String("hold.id", id))

	out, moved, err := s.transition(ctx, id, hold.StatusReleased, func(h *hold.Hold, _ time.Time) bool {
		return h.IsActive()
	})
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	if moved {
		s.afterChange(ctx, out, hold.EventReleased)
	}
	return out, nil
}

// ExpireHold は期限切れの active 保留を expired にする
// 対象外の保留なら false を返す
func (s *HoldService) ExpireHold(ctx context.Context, id string) (bool, error) {
	out, moved, err := s.transition(ctx, id, hold.StatusExpired, func(h *hold.Hold, now time.Time) bool {
		return h.IsActive() && h.IsLapsed(now)
	})
	if err != nil {
		return false, err
	}
	if moved {
		s.afterChange(ctx, out, hold.EventExpired)
	}
	return moved, nil
}

// SweepResult は1回の掃除の結果
type SweepResult struct {
	Scanned int
	Expired int
	Failed  int
}

// ExpireLapsedHolds は期限切れの active 保留を最大 limit 件 expired にする
// 1件ずつ別トランザクションで処理し、失敗しても残りを続ける
func (s *HoldService) ExpireLapsedHolds(ctx context.Context, limit int) (SweepResult, error) {
	ctx, span := tracing.Start(ctx, "HoldService.ExpireLapsedHolds")
	defer span.End()

	lapsed, err := s.holdRepo.FindLapsed(ctx, s.clock.Now(), limit)
	if err != nil {
		return SweepResult{}, tracing.RecordError(span, fmt.Errorf("期限切れ保留の取得に失敗: %w", err))
	}

	res := SweepResult{Scanned: len(lapsed)}
	for _, h := range lapsed {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		moved, err := s.ExpireHold(ctx, h.ID)
		if err != nil {
			res.Failed++
			logger.FromContext(ctx).Error("保留の期限切れ処理に失敗",
				zap.String("hold_id", h.ID), zap.Error(err))
			continue
		}
		if moved {
			res.Expired++
		}
	}
	span.SetAttributes(attribute.Int("sweep.expired", res.Expired), attribute.Int("sweep.failed", res.Failed))
	return res, nil
}

func (s *HoldService) GetHold(ctx context.Context, id string) (*hold.Hold, error) {
	return s.holdRepo.GetByID(ctx, id)
}

// ListHolds はイベントの保留を新しい順に返す
func (s *HoldService) ListHolds(ctx context.Context, eventID string) ([]*hold.Hold, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.holdRepo.ListByEventID(ctx, eventID)
}

// transition は行ロックを取ってから allow が真の場合だけ to に遷移させる
func (s *HoldService) transition(ctx context.Context, id string, to hold.Status, allow func(h *hold.Hold, now time.Time) bool) (*hold.Hold, bool, error) {
	var (
		out   *hold.Hold
		moved bool
	)
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		h, err := s.holdRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		out = h
		now := s.clock.Now()
		if !allow(h, now) {
			return nil
		}
		moved, err = s.settle(ctx, tx, h, to, now)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, moved, nil
}

// settle は状態遷移と台帳の精算を同じトランザクションで行う
func (s *HoldService) settle(ctx context.Context, tx transaction.Tx, h *hold.Hold, to hold.Status, now time.Time) (bool, error) {
	moved, err := s.holdRepo.Transition(ctx, tx, h.ID, to, now)
	if err != nil || !moved {
		return false, err
	}
	if to == hold.StatusCommitted {
		err = s.ledger.Commit(ctx, tx, h.Token())
	} else {
		err = s.ledger.Release(ctx, tx, h.Token())
	}
	if err != nil {
		return false, err
	}
	h.Settle(to, now)
	return true, nil
}

func (s *HoldService) reserve(ctx context.Context, h *hold.Hold) error {
	return transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := s.holdRepo.Create(ctx, tx, h); err != nil {
			return err
		}
		return s.ledger.Reserve(ctx, tx, h.Token())
	})
}

// reserveWithReclaim は在庫不足の場合に同じスコープの期限切れ保留を掃除して1回だけ再試行する
func (s *HoldService) reserveWithReclaim(ctx context.Context, h *hold.Hold) error {
	err := s.reserve(ctx, h)
	if !errors.Is(err, ledger.ErrInsufficientInventory) {
		return err
	}
	if s.reclaim(ctx, h.Scope()) == 0 {
		return err
	}
	return s.reserve(ctx, h)
}

func (s *HoldService) reclaim(ctx context.Context, scope ledger.Scope) int {
	lapsed, err := s.holdRepo.FindLapsedByScope(ctx, scope, s.clock.Now(), s.reclaimLimit)
	if err != nil {
		logger.FromContext(ctx).Warn("期限切れ保留の取得に失敗", zap.String("scope", scope.Key()), zap.Error(err))
		return 0
	}
	var n int
	for _, h := range lapsed {
		moved, err := s.ExpireHold(ctx, h.ID)
		if err != nil {
			logger.FromContext(ctx).Warn("期限切れ保留の回収に失敗", zap.String("hold_id", h.ID), zap.Error(err))
			continue
		}
		if moved {
			n++
		}
	}
	return n
}

// afterChange はキャッシュの無効化とイベント配信を行う。失敗はログに残すだけ
func (s *HoldService) afterChange(ctx context.Context, h *hold.Hold, t hold.EventType) {
	log := logger.FromContext(ctx)
	if t != hold.EventCreated && s.metrics != nil {
		s.metrics.HoldTransitionsTotal.WithLabelValues(string(h.Status)).Inc()
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, h.Scope()); err != nil {
			log.Warn("在庫キャッシュの無効化に失敗", zap.String("scope", h.Scope().Key()), zap.Error(err))
		}
	}
	if s.publisher != nil {
		ev := hold.LifecycleEvent{Type: t, Hold: *h, OccurredAt: s.clock.Now()}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			log.Warn("保留イベントの配信に失敗", zap.String("hold_id", h.ID), zap.String("type", string(t)), zap.Error(err))
		}
	}
	log.Debug("保留の状態変化",
		zap.String("hold_id", h.ID),
		zap.String("type", string(t)),
		zap.Int("quantity", h.Quantity),
	)
}

func (s *HoldService) observeCreate(reason hold.Reason, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.HoldsCreatedTotal.WithLabelValues(string(reason), createOutcome(err)).Inc()
}

func createOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ledger.ErrInsufficientInventory):
		return "insufficient"
	case IsValidationError(err):
		return "invalid"
	}
	return "error"
}

func (s *HoldService) validateRequest(reason hold.Reason, quantity int) error {
	if !reason.Valid() {
		return hold.ErrInvalidReason
	}
	if quantity < 1 {
		return fmt.Errorf("%w: %d", hold.ErrInvalidQuantity, quantity)
	}
	return nil
}

// checkCategory は券種に対して保留を作れるかを検証する
func checkCategory(cat *category.Category, eventID string, quantity int, reason hold.Reason, now time.Time) error {
	if cat.EventID != eventID {
		return fmt.Errorf("%w: イベント %s に属していません", category.ErrCategoryNotFound, eventID)
	}
	if !cat.Active {
		return category.ErrCategoryInactive
	}
	if !reason.BypassesSalesWindow() {
		if err := cat.CheckOnSale(now); err != nil {
			return err
		}
	}
	if !reason.BypassesOrderLimit() && quantity > cat.MaxPerOrder {
		return fmt.Errorf("%w: %d > %d", hold.ErrExceedsOrderLimit, quantity, cat.MaxPerOrder)
	}
	return nil
}

// mergeLines は同じ券種の明細を合算する。順序は最初に現れた位置を保つ
func mergeLines(lines []CartLine) ([]CartLine, error) {
	if len(lines) == 0 {
		return nil, pricing.ErrEmptyCart
	}
	totals := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.CategoryID == "" {
			return nil, hold.ErrCategoryIDRequired
		}
		if l.Quantity < 1 {
			return nil, fmt.Errorf("%w: %s=%d", hold.ErrInvalidQuantity, l.CategoryID, l.Quantity)
		}
		totals[l.CategoryID] += l.Quantity
	}
	ids := lo.Uniq(lo.Map(lines, func(l CartLine, _ int) string { return l.CategoryID }))
	return lo.Map(ids, func(id string, _ int) CartLine {
		return CartLine{CategoryID: id, Quantity: totals[id]}
	}), nil
}

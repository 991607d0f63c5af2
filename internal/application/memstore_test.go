package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/transaction"
)

// === In-memory store ===
//
// トランザクションは txMu で直列化し、ロールバック時は undo を逆順に適用する。
// データの読み書きは dataMu で保護するので、トランザクション外の読み取りも安全。

type memStore struct {
	txMu   sync.Mutex
	dataMu sync.Mutex

	events   map[string]*event.Event
	cats     map[string]*category.Category
	holds    map[string]*hold.Hold
	reserved map[string]ledger.Token
	settled  map[string]string
	promos   map[string]*pricing.PromoCode
}

func newMemStore() *memStore {
	return &memStore{
		events:   map[string]*event.Event{},
		cats:     map[string]*category.Category{},
		holds:    map[string]*hold.Hold{},
		reserved: map[string]ledger.Token{},
		settled:  map[string]string{},
		promos:   map[string]*pricing.PromoCode{},
	}
}

type memTx struct {
	s    *memStore
	undo []func()
	done bool
}

func (s *memStore) Begin(ctx context.Context) (transaction.Tx, error) {
	s.txMu.Lock()
	return &memTx{s: s}, nil
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("transaction already closed")
	}
	t.done = true
	t.s.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.s.dataMu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.s.dataMu.Unlock()
	t.done = true
	t.s.txMu.Unlock()
	return nil
}

func (t *memTx) onRollback(f func()) {
	t.undo = append(t.undo, f)
}

// --- event.Repository ---

type memEvents struct{ s *memStore }

func (r memEvents) Create(ctx context.Context, e *event.Event) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	cp := *e
	r.s.events[e.ID] = &cp
	return nil
}

func (r memEvents) GetByID(ctx context.Context, id string) (*event.Event, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (r memEvents) Allocate(ctx context.Context, tx transaction.Tx, id string, n int) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return event.ErrEventNotFound
	}
	if !e.CanAllocate(n) {
		return event.ErrCapacityExceeded
	}
	e.Allocated += n
	tx.(*memTx).onRollback(func() { e.Allocated -= n })
	return nil
}

// --- category.Repository ---

type memCategories struct{ s *memStore }

func (r memCategories) Create(ctx context.Context, tx transaction.Tx, c *category.Category) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if _, ok := r.s.events[c.EventID]; !ok {
		return event.ErrEventNotFound
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := *c
	r.s.cats[c.ID] = &cp
	tx.(*memTx).onRollback(func() { delete(r.s.cats, c.ID) })
	return nil
}

func (r memCategories) GetByID(ctx context.Context, id string) (*category.Category, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	c, ok := r.s.cats[id]
	if !ok {
		return nil, category.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memCategories) GetByIDs(ctx context.Context, ids []string) ([]*category.Category, error) {
	out := make([]*category.Category, 0, len(ids))
	for _, id := range ids {
		c, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r memCategories) ListByEventID(ctx context.Context, eventID string) ([]*category.Category, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	var out []*category.Category
	for _, c := range r.s.cats {
		if c.EventID == eventID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- hold.Repository ---

type memHolds struct{ s *memStore }

func (r memHolds) Create(ctx context.Context, tx transaction.Tx, h *hold.Hold) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if _, ok := r.s.events[h.EventID]; !ok {
		return event.ErrEventNotFound
	}
	if _, ok := r.s.holds[h.ID]; ok {
		return errors.New("duplicate hold id")
	}
	cp := *h
	r.s.holds[h.ID] = &cp
	tx.(*memTx).onRollback(func() { delete(r.s.holds, h.ID) })
	return nil
}

func (r memHolds) GetByID(ctx context.Context, id string) (*hold.Hold, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	h, ok := r.s.holds[id]
	if !ok {
		return nil, hold.ErrHoldNotFound
	}
	cp := *h
	return &cp, nil
}

func (r memHolds) GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*hold.Hold, error) {
	return r.GetByID(ctx, id)
}

func (r memHolds) ListByEventID(ctx context.Context, eventID string) ([]*hold.Hold, error) {
	return r.filter(func(h *hold.Hold) bool { return h.EventID == eventID }, func(a, b *hold.Hold) bool {
		return a.CreatedAt.After(b.CreatedAt)
	}, 0), nil
}

func (r memHolds) Transition(ctx context.Context, tx transaction.Tx, id string, to hold.Status, at time.Time) (bool, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	h, ok := r.s.holds[id]
	if !ok {
		return false, hold.ErrHoldNotFound
	}
	if h.Status != hold.StatusActive {
		return false, nil
	}
	prev := *h
	h.Settle(to, at)
	tx.(*memTx).onRollback(func() { *h = prev })
	return true, nil
}

func (r memHolds) FindLapsed(ctx context.Context, now time.Time, limit int) ([]*hold.Hold, error) {
	return r.filter(func(h *hold.Hold) bool {
		return h.IsActive() && h.IsLapsed(now)
	}, byExpiry, limit), nil
}

func (r memHolds) FindLapsedByScope(ctx context.Context, scope ledger.Scope, now time.Time, limit int) ([]*hold.Hold, error) {
	return r.filter(func(h *hold.Hold) bool {
		return h.IsActive() && h.IsLapsed(now) && h.Scope().Key() == scope.Key()
	}, byExpiry, limit), nil
}

func byExpiry(a, b *hold.Hold) bool { return a.ExpiresAt.Before(b.ExpiresAt) }

func (r memHolds) filter(keep func(*hold.Hold) bool, less func(a, b *hold.Hold) bool, limit int) []*hold.Hold {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	var out []*hold.Hold
	for _, h := range r.s.holds {
		if keep(h) {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// --- ledger.Ledger ---

type memLedger struct{ s *memStore }

// counters はスコープの容量と sold/held カウンタへのポインタを返す
func (l memLedger) counters(scope ledger.Scope) (capacity int, sold, held *int, err error) {
	if scope.IsEventWide() {
		e, ok := l.s.events[scope.EventID]
		if !ok {
			return 0, nil, nil, event.ErrEventNotFound
		}
		return e.Capacity - e.Allocated, &e.Sold, &e.Held, nil
	}
	c, ok := l.s.cats[*scope.CategoryID]
	if !ok || c.EventID != scope.EventID {
		return 0, nil, nil, category.ErrCategoryNotFound
	}
	return c.Capacity, &c.Sold, &c.Held, nil
}

func (l memLedger) Reserve(ctx context.Context, tx transaction.Tx, tok ledger.Token) error {
	if err := tok.Validate(); err != nil {
		return err
	}
	l.s.dataMu.Lock()
	defer l.s.dataMu.Unlock()
	capacity, sold, held, err := l.counters(tok.Scope)
	if err != nil {
		return err
	}
	if !tok.Scope.IsEventWide() && !l.s.cats[*tok.Scope.CategoryID].Active {
		return category.ErrCategoryInactive
	}
	if capacity-*sold-*held < tok.Quantity {
		return ledger.ErrInsufficientInventory
	}
	*held += tok.Quantity
	l.s.reserved[tok.HoldID] = tok
	tx.(*memTx).onRollback(func() {
		*held -= tok.Quantity
		delete(l.s.reserved, tok.HoldID)
	})
	return nil
}

func (l memLedger) Commit(ctx context.Context, tx transaction.Tx, tok ledger.Token) error {
	return l.settle(tx, tok.HoldID, "commit")
}

func (l memLedger) Release(ctx context.Context, tx transaction.Tx, tok ledger.Token) error {
	return l.settle(tx, tok.HoldID, "release")
}

func (l memLedger) settle(tx transaction.Tx, holdID, op string) error {
	l.s.dataMu.Lock()
	defer l.s.dataMu.Unlock()
	tok, ok := l.s.reserved[holdID]
	if !ok {
		return ledger.ErrUnknownToken
	}
	if _, done := l.s.settled[holdID]; done {
		return nil
	}
	_, sold, held, err := l.counters(tok.Scope)
	if err != nil {
		return err
	}
	*held -= tok.Quantity
	if op == "commit" {
		*sold += tok.Quantity
	}
	l.s.settled[holdID] = op
	tx.(*memTx).onRollback(func() {
		*held += tok.Quantity
		if op == "commit" {
			*sold -= tok.Quantity
		}
		delete(l.s.settled, holdID)
	})
	return nil
}

func (l memLedger) Availability(ctx context.Context, scope ledger.Scope, now time.Time) (ledger.Snapshot, error) {
	l.s.dataMu.Lock()
	defer l.s.dataMu.Unlock()
	capacity, sold, held, err := l.counters(scope)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	var lapsed int
	for _, h := range l.s.holds {
		if h.IsActive() && h.IsLapsed(now) && h.Scope().Key() == scope.Key() {
			lapsed += h.Quantity
		}
	}
	return ledger.Snapshot{Scope: scope, Capacity: capacity, Sold: *sold, Held: *held, Lapsed: lapsed}.Compute(), nil
}

// --- pricing.PromoRepository ---

type memPromos struct{ s *memStore }

func (r memPromos) Create(ctx context.Context, p *pricing.PromoCode) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if _, ok := r.s.promos[p.Code]; ok {
		return pricing.ErrPromoCodeExists
	}
	cp := *p
	r.s.promos[p.Code] = &cp
	return nil
}

func (r memPromos) GetByCode(ctx context.Context, code string) (*pricing.PromoCode, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	p, ok := r.s.promos[pricing.NormalizeCode(code)]
	if !ok {
		return nil, pricing.ErrPromoCodeNotFound
	}
	cp := *p
	return &cp, nil
}

// --- AvailabilityCache ---

type memCache struct {
	mu    sync.Mutex
	snaps map[string]ledger.Snapshot
	err   error
}

func newMemCache() *memCache {
	return &memCache{snaps: map[string]ledger.Snapshot{}}
}

func (c *memCache) Get(ctx context.Context, scope ledger.Scope) (ledger.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return ledger.Snapshot{}, c.err
	}
	snap, ok := c.snaps[scope.Key()]
	if !ok {
		return ledger.Snapshot{}, errCacheMiss
	}
	return snap, nil
}

func (c *memCache) Set(ctx context.Context, snap ledger.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[snap.Scope.Key()] = snap
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, scopes ...ledger.Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range scopes {
		delete(c.snaps, s.Key())
	}
	return nil
}

func (c *memCache) has(scope ledger.Scope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.snaps[scope.Key()]
	return ok
}

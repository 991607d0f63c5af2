package application

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/clock"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/transaction"
	redisinfra "github.com/obichijioke/event-app-fullstack-sub004/internal/infrastructure/redis"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/metrics"
)

var errCacheMiss = redisinfra.ErrCacheMiss

var baseTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// MockPublisher implements hold.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, ev hold.LifecycleEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type testEnv struct {
	store     *memStore
	clock     *clock.Manual
	metrics   *metrics.Metrics
	cache     *memCache
	holds     *HoldService
	inventory *InventoryService
	pricing   *PricingService
}

func newTestEnv(t *testing.T, opts ...HoldOption) *testEnv {
	t.Helper()
	s := newMemStore()
	c := clock.NewManual(baseTime)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	cache := newMemCache()

	holdOpts := append([]HoldOption{WithClock(c), WithMetrics(m), WithCache(cache)}, opts...)
	return &testEnv{
		store:   s,
		clock:   c,
		metrics: m,
		cache:   cache,
		holds:   NewHoldService(s, memHolds{s}, memCategories{s}, memEvents{s}, memLedger{s}, holdOpts...),
		inventory: NewInventoryService(s, memEvents{s}, memCategories{s}, memPromos{s}, memLedger{s},
			WithInventoryClock(c), WithInventoryCache(cache, m)),
		pricing: NewPricingService(memCategories{s}, memHolds{s}, memPromos{s},
			pricing.FeeSchedule{PlatformRateBP: 500}, c),
	}
}

func (e *testEnv) createEvent(t *testing.T, capacity int) *event.Event {
	t.Helper()
	ev, err := e.inventory.CreateEvent(context.Background(), CreateEventInput{Name: "テストイベント", Capacity: capacity})
	require.NoError(t, err)
	return ev
}

func (e *testEnv) createCategory(t *testing.T, eventID string, capacity int, edit ...func(*CreateCategoryInput)) *category.Category {
	t.Helper()
	in := CreateCategoryInput{
		EventID:   eventID,
		Name:      "一般",
		Capacity:  capacity,
		UnitPrice: 5000,
		Currency:  "USD",
	}
	for _, f := range edit {
		f(&in)
	}
	c, err := e.inventory.CreateCategory(context.Background(), in)
	require.NoError(t, err)
	return c
}

// setup はイベントと券種を1つずつ作る
func (e *testEnv) setup(t *testing.T, capacity int) (*event.Event, *category.Category) {
	t.Helper()
	ev := e.createEvent(t, capacity)
	return ev, e.createCategory(t, ev.ID, capacity)
}

func (e *testEnv) checkout(ctx context.Context, c *category.Category, qty int) (*hold.Hold, error) {
	id := c.ID
	return e.holds.CreateHold(ctx, CreateHoldInput{
		EventID:    c.EventID,
		CategoryID: &id,
		Quantity:   qty,
		Reason:     hold.ReasonCheckout,
	})
}

func (e *testEnv) snapshot(t *testing.T, c *category.Category) ledger.Snapshot {
	t.Helper()
	snap, err := memLedger{e.store}.Availability(context.Background(), ledger.CategoryScope(c.EventID, c.ID), e.clock.Now())
	require.NoError(t, err)
	require.GreaterOrEqual(t, snap.Capacity, snap.Sold+snap.Held, "capacity >= sold + held")
	return snap
}

var (
	_ transaction.Manager     = (*memStore)(nil)
	_ event.Repository        = memEvents{}
	_ category.Repository     = memCategories{}
	_ hold.Repository         = memHolds{}
	_ ledger.Ledger           = memLedger{}
	_ pricing.PromoRepository = memPromos{}
	_ AvailabilityCache       = (*memCache)(nil)
)

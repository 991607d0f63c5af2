//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/transaction"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/infrastructure/postgres"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/testutil"
)

type fixture struct {
	db       *sqlx.DB
	txm      *postgres.TxManager
	events   *postgres.EventRepository
	cats     *postgres.CategoryRepository
	holds    *postgres.HoldRepository
	ledger   *postgres.Ledger
	promos   *postgres.PromoRepository
	now      time.Time
	eventID  string
	category *category.Category
}

func setup(t *testing.T, eventCapacity, categoryCapacity int) *fixture {
	t.Helper()
	db := testutil.Postgres(t)
	f := &fixture{
		db:     db,
		txm:    postgres.NewTxManager(db),
		events: postgres.NewEventRepository(db),
		cats:   postgres.NewCategoryRepository(db),
		holds:  postgres.NewHoldRepository(db),
		ledger: postgres.NewLedger(db),
		promos: postgres.NewPromoRepository(db),
		now:    time.Now().UTC().Truncate(time.Microsecond),
	}
	ctx := context.Background()

	ev := event.NewEvent("統合テスト", eventCapacity, f.now)
	require.NoError(t, f.events.Create(ctx, ev))
	f.eventID = ev.ID

	c := category.NewCategory(ev.ID, "一般", categoryCapacity, 5000, 250, "USD", f.now)
	err := transaction.Run(ctx, f.txm, func(tx transaction.Tx) error {
		if err := f.events.Allocate(ctx, tx, ev.ID, categoryCapacity); err != nil {
			return err
		}
		return f.cats.Create(ctx, tx, c)
	})
	require.NoError(t, err)
	f.category = c
	return f
}

// reserve は保留の行と台帳の確保を同じトランザクションで作る
func (f *fixture) reserve(ctx context.Context, categoryID *string, qty int, reason hold.Reason, ttl time.Duration) (*hold.Hold, error) {
	h, err := hold.NewHold(f.eventID, categoryID, qty, reason, ttl, f.now)
	if err != nil {
		return nil, err
	}
	err = transaction.Run(ctx, f.txm, func(tx transaction.Tx) error {
		if err := f.holds.Create(ctx, tx, h); err != nil {
			return err
		}
		return f.ledger.Reserve(ctx, tx, h.Token())
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (f *fixture) settle(ctx context.Context, h *hold.Hold, to hold.Status) (bool, error) {
	var moved bool
	err := transaction.Run(ctx, f.txm, func(tx transaction.Tx) error {
		var err error
		if _, err = f.holds.GetForUpdate(ctx, tx, h.ID); err != nil {
			return err
		}
		moved, err = f.holds.Transition(ctx, tx, h.ID, to, f.now)
		if err != nil || !moved {
			return err
		}
		if to == hold.StatusCommitted {
			return f.ledger.Commit(ctx, tx, h.Token())
		}
		return f.ledger.Release(ctx, tx, h.Token())
	})
	return moved, err
}

func (f *fixture) counters(t *testing.T) *category.Category {
	t.Helper()
	c, err := f.cats.GetByID(context.Background(), f.category.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, c.Capacity, c.Sold+c.Held, "capacity >= sold + held")
	return c
}

func TestLedger_ConcurrentReserve(t *testing.T) {
	f := setup(t, 10, 10)
	ctx := context.Background()

	var success, insufficient int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reserve(ctx, &f.category.ID, 4, hold.ReasonCheckout, time.Minute)
			switch {
			case err == nil:
				atomic.AddInt32(&success, 1)
			case assert.ErrorIs(t, err, ledger.ErrInsufficientInventory):
				atomic.AddInt32(&insufficient, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), success)
	assert.Equal(t, int32(1), insufficient)
	c := f.counters(t)
	assert.Equal(t, 8, c.Held)

	var holds int
	require.NoError(t, f.db.Get(&holds, `SELECT COUNT(*) FROM holds`))
	assert.Equal(t, 2, holds, "失敗した保留は残らない")
}

func TestLedger_CommitAndReleaseAreIdempotent(t *testing.T) {
	f := setup(t, 10, 10)
	ctx := context.Background()

	t.Run("commit は sold を1回だけ増やす", func(t *testing.T) {
		h, err := f.reserve(ctx, &f.category.ID, 3, hold.ReasonCheckout, time.Minute)
		require.NoError(t, err)
		before := f.counters(t)

		moved, err := f.settle(ctx, h, hold.StatusCommitted)
		require.NoError(t, err)
		assert.True(t, moved)
		after := f.counters(t)
		assert.Equal(t, before.Sold+3, after.Sold)
		assert.Equal(t, before.Held-3, after.Held)
		assert.Equal(t, before.Available(), after.Available())

		err = transaction.Run(ctx, f.txm, func(tx transaction.Tx) error {
			if err := f.ledger.Commit(ctx, tx, h.Token()); err != nil {
				return err
			}
			return f.ledger.Release(ctx, tx, h.Token())
		})
		require.NoError(t, err)
		assert.Equal(t, after.Sold, f.counters(t).Sold)
		assert.Equal(t, after.Held, f.counters(t).Held)
	})

	t.Run("release を2回呼んでも1回分だけ戻る", func(t *testing.T) {
		h, err := f.reserve(ctx, &f.category.ID, 2, hold.ReasonCheckout, time.Minute)
		require.NoError(t, err)
		before := f.counters(t)

		for i := 0; i < 2; i++ {
			err := transaction.Run(ctx, f.txm, func(tx transaction.Tx) error {
				return f.ledger.Release(ctx, tx, h.Token())
			})
			require.NoError(t, err)
		}
		assert.Equal(t, before.Held-2, f.counters(t).Held)
	})

	t.Run("未知のトークン", func(t *testing.T) {
		err := transaction.Run(ctx, f.txm, func(tx transaction.Tx) error {
			return f.ledger.Commit(ctx, tx, ledger.Token{HoldID: "00000000-0000-0000-0000-000000000000"})
		})
		assert.ErrorIs(t, err, ledger.ErrUnknownToken)
	})
}

func TestLedger_AvailabilityTreatsLapsedHoldsAsFree(t *testing.T) {
	f := setup(t, 10, 10)
	ctx := context.Background()

	_, err := f.reserve(ctx, &f.category.ID, 5, hold.ReasonCheckout, time.Minute)
	require.NoError(t, err)

	snap, err := f.ledger.Availability(ctx, ledger.CategoryScope(f.eventID, f.category.ID), f.now)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Available)

	snap, err = f.ledger.Availability(ctx, ledger.CategoryScope(f.eventID, f.category.ID), f.now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Available)
	assert.Equal(t, 5, snap.Held)
	assert.Equal(t, 5, snap.Lapsed)

	lapsed, err := f.holds.FindLapsed(ctx, f.now.Add(2*time.Minute), 100)
	require.NoError(t, err)
	assert.Len(t, lapsed, 1)
}

func TestLedger_EventWidePool(t *testing.T) {
	f := setup(t, 30, 20)
	ctx := context.Background()

	snap, err := f.ledger.Availability(ctx, ledger.EventScope(f.eventID), f.now)
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Available)

	_, err = f.reserve(ctx, nil, 8, hold.ReasonOrganizerHold, time.Hour)
	require.NoError(t, err)
	_, err = f.reserve(ctx, nil, 3, hold.ReasonOrganizerHold, time.Hour)
	assert.ErrorIs(t, err, ledger.ErrInsufficientInventory)

	err = transaction.Run(ctx, f.txm, func(tx transaction.Tx) error {
		return f.events.Allocate(ctx, tx, f.eventID, 3)
	})
	assert.ErrorIs(t, err, event.ErrCapacityExceeded)

	// 券種側の在庫とは独立している
	_, err = f.reserve(ctx, &f.category.ID, 10, hold.ReasonOrganizerHold, time.Hour)
	require.NoError(t, err)
}

func TestLedger_UnknownScope(t *testing.T) {
	f := setup(t, 10, 10)
	ctx := context.Background()

	_, err := f.ledger.Availability(ctx, ledger.CategoryScope(f.eventID, "not-a-uuid"), f.now)
	assert.ErrorIs(t, err, category.ErrCategoryNotFound)

	missing := "00000000-0000-0000-0000-000000000001"
	_, err = f.reserve(ctx, &missing, 1, hold.ReasonCheckout, time.Minute)
	assert.Error(t, err)
}

func TestLedger_ReserveRejectsInactiveCategory(t *testing.T) {
	f := setup(t, 10, 10)
	ctx := context.Background()

	_, err := f.db.ExecContext(ctx, `UPDATE ticket_categories SET active = FALSE WHERE id = $1`, f.category.ID)
	require.NoError(t, err)

	_, err = f.reserve(ctx, &f.category.ID, 1, hold.ReasonOrganizerHold, time.Minute)
	assert.ErrorIs(t, err, category.ErrCategoryInactive)

	snap, err := f.ledger.Availability(ctx, ledger.CategoryScope(f.eventID, f.category.ID), f.now)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Held)
}

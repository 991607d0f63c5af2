package application

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/category"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/event"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
)

func TestInventoryService_CreateEvent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	t.Run("正常に作成できる", func(t *testing.T) {
		ev, err := env.inventory.CreateEvent(ctx, CreateEventInput{Name: "夏フェス", Capacity: 100})
		require.NoError(t, err)
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, 100, ev.Unallocated())
	})

	t.Run("名前が空ならエラー", func(t *testing.T) {
		_, err := env.inventory.CreateEvent(ctx, CreateEventInput{Capacity: 100})
		assert.ErrorIs(t, err, event.ErrEventNameRequired)
	})
}

func TestInventoryService_CreateCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("イベントの未割当枠から割り当てる", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createEvent(t, 100)
		c := env.createCategory(t, ev.ID, 60, func(in *CreateCategoryInput) { in.Currency = "jpy" })
		assert.Equal(t, "JPY", c.Currency)
		assert.Equal(t, category.DefaultMaxPerOrder, c.MaxPerOrder)

		got, err := env.inventory.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, 60, got.Allocated)
		assert.Equal(t, 40, got.Unallocated())
	})

	t.Run("容量を超える割当は券種を作らない", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createEvent(t, 10)
		env.createCategory(t, ev.ID, 8)

		_, err := env.inventory.CreateCategory(ctx, CreateCategoryInput{
			EventID: ev.ID, Name: "VIP", Capacity: 3, UnitPrice: 100, Currency: "USD",
		})
		assert.ErrorIs(t, err, event.ErrCapacityExceeded)

		cats, err := env.inventory.ListCategories(ctx, ev.ID)
		require.NoError(t, err)
		assert.Len(t, cats, 1)
	})

	t.Run("存在しないイベント", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.inventory.CreateCategory(ctx, CreateCategoryInput{
			EventID: "missing", Name: "一般", Capacity: 1, Currency: "USD",
		})
		assert.ErrorIs(t, err, event.ErrEventNotFound)
	})

	t.Run("検証エラー", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createEvent(t, 10)
		_, err := env.inventory.CreateCategory(ctx, CreateCategoryInput{
			EventID: ev.ID, Name: "一般", Capacity: 1, UnitPrice: -1, Currency: "USD",
		})
		assert.ErrorIs(t, err, category.ErrInvalidPrice)
		assert.True(t, IsValidationError(err))
	})
}

func TestInventoryService_Availability(t *testing.T) {
	ctx := context.Background()

	t.Run("キャッシュのヒットとミスを記録する", func(t *testing.T) {
		env := newTestEnv(t)
		_, cat := env.setup(t, 10)

		first, err := env.inventory.GetCategoryAvailability(ctx, cat.ID)
		require.NoError(t, err)
		second, err := env.inventory.GetCategoryAvailability(ctx, cat.ID)
		require.NoError(t, err)

		assert.Equal(t, first.Snapshot, second.Snapshot)
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.AvailabilityCacheTotal.WithLabelValues("miss")))
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.AvailabilityCacheTotal.WithLabelValues("hit")))
	})

	t.Run("キャッシュ障害時は台帳から読む", func(t *testing.T) {
		env := newTestEnv(t)
		_, cat := env.setup(t, 10)
		env.cache.err = errors.New("connection refused")

		got, err := env.inventory.GetCategoryAvailability(ctx, cat.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, got.Snapshot.Available)
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.AvailabilityCacheTotal.WithLabelValues("error")))
	})

	t.Run("イベント全体の在庫", func(t *testing.T) {
		env := newTestEnv(t)
		ev := env.createEvent(t, 30)
		a := env.createCategory(t, ev.ID, 10)
		env.createCategory(t, ev.ID, 5, func(in *CreateCategoryInput) { in.Name = "VIP" })

		_, err := env.checkout(ctx, a, 4)
		require.NoError(t, err)
		_, err = env.holds.CreateHold(ctx, CreateHoldInput{EventID: ev.ID, Quantity: 6, Reason: hold.ReasonOrganizerHold})
		require.NoError(t, err)

		got, err := env.inventory.GetEventAvailability(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, 15, got.Pool.Capacity)
		assert.Equal(t, 9, got.Pool.Available)
		require.Len(t, got.Categories, 2)
		for _, c := range got.Categories {
			if c.Category.ID == a.ID {
				assert.Equal(t, 6, c.Snapshot.Available)
			} else {
				assert.Equal(t, 5, c.Snapshot.Available)
			}
		}
	})

	t.Run("存在しない券種", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.inventory.GetCategoryAvailability(ctx, "missing")
		assert.ErrorIs(t, err, category.ErrCategoryNotFound)
	})
}

func TestInventoryService_CreatePromoCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ev := env.createEvent(t, 10)

	t.Run("コードは正規化して保存する", func(t *testing.T) {
		p, err := env.inventory.CreatePromoCode(ctx, CreatePromoCodeInput{
			Code: " summer10 ", EventID: &ev.ID, Type: pricing.PromoPercentage, Value: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, "SUMMER10", p.Code)
		assert.True(t, p.Active)
	})

	t.Run("重複はエラー", func(t *testing.T) {
		_, err := env.inventory.CreatePromoCode(ctx, CreatePromoCodeInput{
			Code: "SUMMER10", Type: pricing.PromoFixed, Value: 500,
		})
		assert.ErrorIs(t, err, pricing.ErrPromoCodeExists)
	})

	t.Run("100%を超える割引は不正", func(t *testing.T) {
		_, err := env.inventory.CreatePromoCode(ctx, CreatePromoCodeInput{
			Code: "TOOMUCH", Type: pricing.PromoPercentage, Value: 150,
		})
		assert.ErrorIs(t, err, pricing.ErrInvalidPromoValue)
	})

	t.Run("存在しないイベント向け", func(t *testing.T) {
		missing := "missing"
		_, err := env.inventory.CreatePromoCode(ctx, CreatePromoCodeInput{
			Code: "GHOST", EventID: &missing, Type: pricing.PromoFixed, Value: 1,
		})
		assert.ErrorIs(t, err, event.ErrEventNotFound)
	})
}

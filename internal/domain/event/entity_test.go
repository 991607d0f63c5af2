package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEvent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	e := NewEvent("夏フェス", 500, now)

	assert.Equal(t, "夏フェス", e.Name)
	assert.Equal(t, 500, e.Capacity)
	assert.Equal(t, 0, e.Allocated)
	assert.Equal(t, 0, e.Version)
	assert.Equal(t, now, e.CreatedAt)
	assert.Equal(t, 500, e.Available())
}

func TestEvent_Available(t *testing.T) {
	tests := []struct {
		name string
		e    Event
		want int
	}{
		{"割当なし", Event{Capacity: 100}, 100},
		{"カテゴリ割当あり", Event{Capacity: 100, Allocated: 70}, 30},
		{"全体保留と販売済みを差し引く", Event{Capacity: 100, Allocated: 70, Sold: 5, Held: 10}, 15},
		{"負にはならない", Event{Capacity: 10, Allocated: 10, Held: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.e.Available())
		})
	}
}

func TestEvent_CanAllocate(t *testing.T) {
	e := &Event{Capacity: 100, Allocated: 60, Held: 20}
	assert.True(t, e.CanAllocate(20))
	assert.False(t, e.CanAllocate(21))
	assert.False(t, e.CanAllocate(-1))
	assert.Equal(t, 40, e.Unallocated())
}

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name        string
		event       *Event
		expectedErr error
	}{
		{"有効なイベント", &Event{Name: "テスト", Capacity: 100}, nil},
		{"イベント名が空", &Event{Name: "", Capacity: 100}, ErrEventNameRequired},
		{"容量が負", &Event{Name: "テスト", Capacity: -1}, ErrInvalidCapacity},
		{"カウンタが負", &Event{Name: "テスト", Capacity: 10, Held: -1}, ErrInvalidCounters},
		{"割当超過", &Event{Name: "テスト", Capacity: 10, Allocated: 8, Held: 3}, ErrCapacityExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.expectedErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

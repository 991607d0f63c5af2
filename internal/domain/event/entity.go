package event

import "time"

// Event はイベント単位の在庫プールを表す
// カテゴリに割り当てられていない残り (未割当枠) をイベント全体の保留が消費する
type Event struct {
	ID        string
	Name      string
	Capacity  int
	Allocated int // カテゴリ容量の合計
	Sold      int
	Held      int
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

// NewEvent は新しいイベントプールを作成する
func NewEvent(name string, capacity int, now time.Time) *Event {
	return &Event{
		Name:      name,
		Capacity:  capacity,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   0,
	}
}

// Unallocated はカテゴリに割り当てられていない枠を返す
func (e *Event) Unallocated() int {
	return e.Capacity - e.Allocated
}

// Available はイベント全体の保留で確保可能な数を返す
func (e *Event) Available() int {
	n := e.Capacity - e.Allocated - e.Sold - e.Held
	if n < 0 {
		return 0
	}
	return n
}

// CanAllocate はカテゴリ用に n 枠を割り当てられるかを返す
func (e *Event) CanAllocate(n int) bool {
	return n >= 0 && e.Available() >= n
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if e.Name == "" {
		return ErrEventNameRequired
	}
	if e.Capacity < 0 {
		return ErrInvalidCapacity
	}
	if e.Allocated < 0 || e.Sold < 0 || e.Held < 0 {
		return ErrInvalidCounters
	}
	if e.Capacity < e.Allocated+e.Sold+e.Held {
		return ErrCapacityExceeded
	}
	return nil
}

package hold

import (
	"context"
	"time"
)

// EventType は保留のライフサイクルイベントの種類
type EventType string

const (
	EventCreated   EventType = "created"
	EventCommitted EventType = "committed"
	EventReleased  EventType = "released"
	EventExpired   EventType = "expired"
)

// EventTypeFor は終端状態に対応するイベント種別を返す
func EventTypeFor(s Status) EventType {
	switch s {
	case StatusCommitted:
		return EventCommitted
	case StatusReleased:
		return EventReleased
	case StatusExpired:
		return EventExpired
	}
	return EventCreated
}

// LifecycleEvent は保留の状態変化を外部に通知するためのイベント
type LifecycleEvent struct {
	Type       EventType
	Hold       Hold
	OccurredAt time.Time
}

// Publisher はライフサイクルイベントを配信する
type Publisher interface {
	Publish(ctx context.Context, ev LifecycleEvent) error
}

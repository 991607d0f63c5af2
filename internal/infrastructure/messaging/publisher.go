package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
)

// NewRedisPublisher は Redis Streams 向けの publisher を作る
func NewRedisPublisher(rdb *redis.Client, logger watermill.LoggerAdapter) (message.Publisher, error) {
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: rdb,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("publisherの作成に失敗: %w", err)
	}
	return TracingPublisher{Publisher: pub}, nil
}

// HoldPayload は配信するメッセージ本文
type HoldPayload struct {
	Type       string    `json:"type"`
	HoldID     string    `json:"hold_id"`
	EventID    string    `json:"event_id"`
	CategoryID *string   `json:"ticket_type_id,omitempty"`
	Quantity   int       `json:"quantity"`
	Reason     string    `json:"reason"`
	Status     string    `json:"status"`
	ExpiresAt  time.Time `json:"expires_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// HoldPublisher は保留のライフサイクルイベントを topic "<prefix>.<type>" に配信する
type HoldPublisher struct {
	pub    message.Publisher
	prefix string
}

func NewHoldPublisher(pub message.Publisher, prefix string) *HoldPublisher {
	return &HoldPublisher{pub: pub, prefix: prefix}
}

// Topic はイベント種別ごとの配信先
func (p *HoldPublisher) Topic(t hold.EventType) string {
	return p.prefix + "." + string(t)
}

func (p *HoldPublisher) Publish(ctx context.Context, ev hold.LifecycleEvent) error {
	payload, err := json.Marshal(HoldPayload{
		Type:       string(ev.Type),
		HoldID:     ev.Hold.ID,
		EventID:    ev.Hold.EventID,
		CategoryID: ev.Hold.CategoryID,
		Quantity:   ev.Hold.Quantity,
		Reason:     string(ev.Hold.Reason),
		Status:     string(ev.Hold.Status),
		ExpiresAt:  ev.Hold.ExpiresAt,
		OccurredAt: ev.OccurredAt,
	})
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", string(ev.Type))
	msg.Metadata.Set("hold_id", ev.Hold.ID)
	msg.SetContext(ctx)

	if err := p.pub.Publish(p.Topic(ev.Type), msg); err != nil {
		return fmt.Errorf("イベント配信に失敗: %w", err)
	}
	return nil
}

// NopPublisher は配信を行わない
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, hold.LifecycleEvent) error { return nil }

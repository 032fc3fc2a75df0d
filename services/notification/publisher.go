package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Channel is the pub/sub channel the external notification service consumes.
// The engine only hands events outward; cadence and wording of anything sent
// to creators is decided downstream.
const Channel = "notifications:events"

const (
	EventApplicationStatusChanged = "application.status_changed"
	EventSlotReminderDue          = "slot.reminder_due"
)

type Event struct {
	Type          string    `json:"type"`
	ApplicationID string    `json:"application_id,omitempty"`
	CampaignID    string    `json:"campaign_id,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	Slot          string    `json:"slot,omitempty"`
	Deadline      time.Time `json:"deadline,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

var Module = fx.Module("notification.publisher",
	fx.Provide(NewRedisPublisher),
)

type RedisPublisher struct {
	rdb *redis.Client
}

type PublisherParams struct {
	fx.In
	Redis *redis.Client
}

func NewRedisPublisher(p PublisherParams) Publisher {
	return &RedisPublisher{rdb: p.Redis}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if err := p.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		zap.L().Error("failed to publish notification event",
			zap.String("event_type", ev.Type),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes every event as JSON on a Redis channel so a broker
// side consumer can fan it out.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	source  string
	now     func() time.Time
}

func NewRedisPublisher(client *redis.Client, channel, source string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, source: source, now: time.Now}
}

func (p *RedisPublisher) Publish(ctx context.Context, s *model.QosSession, reason model.StatusInfo) error {
	payload, err := json.Marshal(NewEvent(p.source, s, reason, p.now()))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		recordPublish("redis", err)
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	recordPublish("redis", nil)
	return nil
}

var _ ports.EventPublisher = (*RedisPublisher)(nil)

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shulepay/approvals-api/internal/models"
)

const eventConfigKeyPrefix = "approvals:event-config:"

// EventConfigCache is a redis read-through over the event repository.
// The payments platform owns event rows; a short TTL keeps this service
// from hammering the shared table on every approval request.
type EventConfigCache struct {
	source eventConfigReader
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewEventConfigCache wraps an event reader with a redis cache. A nil
// client degrades to pass-through reads.
func NewEventConfigCache(source eventConfigReader, client *redis.Client, ttl time.Duration, logger *zap.Logger) *EventConfigCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &EventConfigCache{source: source, client: client, ttl: ttl, logger: logger}
}

// GetConfig returns the cached event configuration, falling back to the
// source on miss or redis failure.
func (c *EventConfigCache) GetConfig(ctx context.Context, eventID string) (*models.EventConfig, error) {
	key := eventConfigKeyPrefix + eventID
	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var cfg models.EventConfig
			if jsonErr := json.Unmarshal(raw, &cfg); jsonErr == nil {
				return &cfg, nil
			}
			c.logger.Warn("corrupt cached event config", zap.String("event_id", eventID))
		} else if err != redis.Nil {
			c.logger.Warn("event config cache read failed", zap.String("event_id", eventID), zap.Error(err))
		}
	}

	cfg, err := c.source.GetConfig(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if c.client != nil {
		if raw, err := json.Marshal(cfg); err == nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("event config cache write failed", zap.String("event_id", eventID), zap.Error(err))
			}
		}
	}
	return cfg, nil
}

// Invalidate drops the cached entry, used when an event is republished.
func (c *EventConfigCache) Invalidate(ctx context.Context, eventID string) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, eventConfigKeyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("invalidate event config cache: %w", err)
	}
	return nil
}

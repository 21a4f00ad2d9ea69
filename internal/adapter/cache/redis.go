// Package cache provides the optional Redis replay accelerator. It sits in
// front of the persistence sink's cold-start history query and may be
// absent entirely; correctness never depends on it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
	"github.com/homespark/rt-coordination-service/internal/service"
)

// Interface guards
var (
	_ service.HistoryCache = (*RedisHistory)(nil)
	_ service.HistoryCache = (*NoopHistory)(nil)
)

const opTimeout = 2 * time.Second

// RedisHistory keeps a bounded per-room list of serialized chat events.
type RedisHistory struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisHistory(client *redis.Client, logger *slog.Logger) *RedisHistory {
	return &RedisHistory{client: client, logger: logger}
}

func historyKey(roomID string) string {
	return fmt.Sprintf("room:%s:replay", roomID)
}

func (c *RedisHistory) GetRecent(ctx context.Context, roomID string, limit int) ([]model.ChatBroadcast, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := c.client.LRange(ctx, historyKey(roomID), int64(-limit), -1).Result()
	if err != nil {
		c.logger.Warn("replay cache read failed", slog.String("room_id", roomID), slog.Any("err", err))
		return nil, false
	}
	msgs := make([]model.ChatBroadcast, 0, len(raw))
	for _, item := range raw {
		var msg model.ChatBroadcast
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, true
}

func (c *RedisHistory) Append(ctx context.Context, roomID string, msg model.ChatBroadcast, depth int) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := historyKey(roomID)
	pipe := c.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-depth), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("replay cache append failed", slog.String("room_id", roomID), slog.Any("err", err))
	}
}

// NoopHistory disables the accelerator; every cold start goes straight to
// the sink.
type NoopHistory struct{}

func (NoopHistory) GetRecent(context.Context, string, int) ([]model.ChatBroadcast, bool) {
	return nil, false
}

func (NoopHistory) Append(context.Context, string, model.ChatBroadcast, int) {}

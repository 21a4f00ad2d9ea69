package cache

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/homespark/rt-coordination-service/config"
	"github.com/homespark/rt-coordination-service/internal/service"
)

var Module = fx.Module("cache",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) service.HistoryCache {
			if cfg.Redis.Addr == "" {
				logger.Info("replay accelerator disabled")
				return NoopHistory{}
			}
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			return NewRedisHistory(client, logger)
		},
	),
)

package registry

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/homespark/rt-coordination-service/config"
)

var Module = fx.Module("registry",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) *Hub {
			return NewHub(logger,
				WithSweepInterval(cfg.Hub.SweepInterval),
				WithIdleTimeout(cfg.Hub.IdleTimeout),
				WithReplayDepth(cfg.Hub.ReplayDepth),
				WithSendBuffer(cfg.Hub.SendBuffer),
				WithSendTimeout(cfg.Hub.SendTimeout),
			)
		},
		func(h *Hub) Hubber { return h },
	),
	fx.Invoke(func(lc fx.Lifecycle, h *Hub) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				h.StartSweeper()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				h.Shutdown()
				return nil
			},
		})
	}),
)

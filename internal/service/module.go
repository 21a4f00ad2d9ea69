package service

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/homespark/rt-coordination-service/config"
	"github.com/homespark/rt-coordination-service/internal/domain/registry"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		fx.Annotate(
			func(cfg *config.Config, store IdentityStore) *IdentityGate {
				return NewIdentityGate(store, cfg.Auth.CacheSize, cfg.Auth.CacheTTL)
			},
			fx.As(new(Authenticator)),
		),

		NewDispatcher,

		fx.Annotate(
			func(
				cfg *config.Config,
				logger *slog.Logger,
				hub registry.Hubber,
				gate Authenticator,
				bookings BookingStore,
				sink MessageSink,
				notifier Notifier,
				cache HistoryCache,
				dispatcher *Dispatcher,
			) *EventRouter {
				return NewEventRouter(RouterParams{
					Logger:        logger,
					Hub:           hub,
					Gate:          gate,
					Bookings:      bookings,
					Sink:          sink,
					Notifier:      notifier,
					Cache:         cache,
					Dispatcher:    dispatcher,
					MaxMessageLen: cfg.Chat.MaxMessageLen,
					EvictPrior:    cfg.Presence.EvictPrior,
					ReplayDepth:   cfg.Hub.ReplayDepth,
				})
			},
			fx.As(new(Router)),
		),
	),

	// Cross-cutting resilience on the persistence path.
	fx.Decorate(NewSinkBreaker),
)

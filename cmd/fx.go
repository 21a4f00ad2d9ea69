package cmd

import (
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/homespark/rt-coordination-service/config"
	"github.com/homespark/rt-coordination-service/internal/adapter/cache"
	"github.com/homespark/rt-coordination-service/internal/adapter/pubsub"
	"github.com/homespark/rt-coordination-service/internal/adapter/store"
	"github.com/homespark/rt-coordination-service/internal/domain/registry"
	"github.com/homespark/rt-coordination-service/internal/handler/ws"
	"github.com/homespark/rt-coordination-service/internal/service"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
		registry.Module,
		service.Module,
		store.Module,
		cache.Module,
		pubsub.Module,
		ws.Module,
	)
}

func ProvideLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("service", ServiceName))
	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

package pubsub

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/fx"

	"github.com/homespark/rt-coordination-service/config"
	"github.com/homespark/rt-coordination-service/internal/service"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger, wmLogger watermill.LoggerAdapter) (service.Notifier, error) {
			if cfg.AMQP.URL == "" {
				logger.Info("offline notifications disabled, no broker configured")
				return NewLogNotifier(logger), nil
			}
			publisher, err := NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, wmLogger)
			if err != nil {
				return nil, err
			}
			return NewAMQPNotifier(publisher, logger), nil
		},
	),
)

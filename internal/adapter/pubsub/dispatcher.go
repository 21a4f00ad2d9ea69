// Package pubsub publishes offline push notifications over AMQP. Delivery
// is fire-and-forget: a broker outage degrades push delivery, never the
// live connection path.
package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/homespark/rt-coordination-service/internal/service"
)

// Interface guards
var (
	_ service.Notifier = (*AMQPNotifier)(nil)
	_ service.Notifier = (*LogNotifier)(nil)
)

const routingPrefix = "notification.push."

// AMQPNotifier publishes one message per offline recipient on a topic
// exchange, routed by actor id so downstream consumers can bind per
// audience segment.
type AMQPNotifier struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewAMQPNotifier(publisher message.Publisher, logger *slog.Logger) *AMQPNotifier {
	return &AMQPNotifier{publisher: publisher, logger: logger}
}

// NewPublisher builds the durable topic-exchange publisher.
func NewPublisher(url, exchange string, wmLogger watermill.LoggerAdapter) (message.Publisher, error) {
	cfg := amqp.NewDurablePubSubConfig(url, nil)
	cfg.Exchange = amqp.ExchangeConfig{
		GenerateName: func(string) string { return exchange },
		Type:         "topic",
		Durable:      true,
	}
	cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }
	return amqp.NewPublisher(cfg, wmLogger)
}

func (n *AMQPNotifier) PushOfflineNotification(ctx context.Context, actorID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("offline notification marshal failed",
			slog.String("actor_id", actorID), slog.Any("err", err))
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)

	topic := routingPrefix + actorID
	if err := n.publisher.Publish(topic, msg); err != nil {
		n.logger.Error("offline notification publish failed",
			slog.String("actor_id", actorID), slog.String("topic", topic), slog.Any("err", err))
	}
}

// LogNotifier stands in when no broker is configured. Notifications are
// recorded in the log and dropped.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) PushOfflineNotification(_ context.Context, actorID string, _ any) {
	n.logger.Debug("offline notification dropped, no broker configured",
		slog.String("actor_id", actorID))
}

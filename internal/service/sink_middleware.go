package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
)

// sinkBreaker wraps the persistence sink in a circuit breaker so a dying
// database fails fast instead of piling up blocked handlers. A tripped
// breaker surfaces to clients as internal_failure, same as any sink error.
type sinkBreaker struct {
	next MessageSink
	cb   *gobreaker.CircuitBreaker
}

// NewSinkBreaker decorates the sink; wired through fx.Decorate in Module.
func NewSinkBreaker(next MessageSink, logger *slog.Logger) MessageSink {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "message-sink",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("sink breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &sinkBreaker{next: next, cb: cb}
}

func (s *sinkBreaker) SaveChatMessage(ctx context.Context, roomID, senderID string, senderKind model.ActorKind, text string) (string, error) {
	id, err := s.cb.Execute(func() (any, error) {
		return s.next.SaveChatMessage(ctx, roomID, senderID, senderKind, text)
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}

func (s *sinkBreaker) SaveLocation(ctx context.Context, professionalID, roomID string, lat, lon, accuracy float64) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.next.SaveLocation(ctx, professionalID, roomID, lat, lon, accuracy)
	})
	return err
}

func (s *sinkBreaker) UpdateJobStatus(ctx context.Context, roomID string, status model.JobStatus, notes, updatedBy string) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.next.UpdateJobStatus(ctx, roomID, status, notes, updatedBy)
	})
	return err
}

func (s *sinkBreaker) GetRecentMessages(ctx context.Context, roomID string, limit int) ([]StoredMessage, error) {
	msgs, err := s.cb.Execute(func() (any, error) {
		return s.next.GetRecentMessages(ctx, roomID, limit)
	})
	if err != nil {
		return nil, err
	}
	return msgs.([]StoredMessage), nil
}

/*
Package registry owns every piece of in-memory coordination state: the
connection table, the per-booking rooms with their replay logs, and the
actor presence map.

Key architectural concepts:
  - Single-owner state: all maps live behind the Hub instead of ambient
    globals, so tests construct isolated hubs and a future sharded
    deployment is not foreclosed.
  - Serialize once: broadcast sites marshal an event exactly once and fan
    the bytes out through buffered per-connection mailboxes, so slow
    consumers never stall the broadcaster.
  - Lock discipline: mutexes guard map mutation only and are held for
    O(map operation); no lock ever spans a network call.
*/
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
)

// Hubber is the aggregate gateway handed to the service layer.
type Hubber interface {
	NewConnection(ctx context.Context) Connector
	Drop(conn Connector)

	Rooms() Roomer
	Presence() Presencer

	// BroadcastGlobal serializes once and delivers to every authenticated
	// connection except exclude. Used for server-wide user_status events.
	BroadcastGlobal(event any, exclude uuid.UUID) int

	// BroadcastKind delivers to every authenticated connection of the given
	// actor kind. Used for emergency alerts to admins and job_taken pushes
	// to professionals.
	BroadcastKind(kind model.ActorKind, event any, exclude uuid.UUID) int

	Stats() Stats
	Shutdown()
}

// Stats is a point-in-time census exposed on the health endpoint.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Online      int `json:"online"`
}

// Interface guard
var _ Hubber = (*Hub)(nil)

type hubConfig struct {
	sweepInterval time.Duration
	idleTimeout   time.Duration
	replayDepth   int
	sendBuffer    int
	sendTimeout   time.Duration
}

// Hub is the single-process coordination core.
type Hub struct {
	config hubConfig
	logger *slog.Logger

	mu    sync.RWMutex
	conns map[uuid.UUID]*connection

	rooms    *Rooms
	presence *Presence

	done     chan struct{}
	stopOnce sync.Once
}

func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		config: hubConfig{
			sweepInterval: 60 * time.Second,
			idleTimeout:   300 * time.Second,
			replayDepth:   50,
			sendBuffer:    256,
			sendTimeout:   500 * time.Millisecond,
		},
		logger: logger,
		conns:  make(map[uuid.UUID]*connection),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.rooms = newRooms(h.config.replayDepth, h.config.sendTimeout)
	h.presence = newPresence(h.config.sendTimeout)
	return h
}

func (h *Hub) Rooms() Roomer       { return h.rooms }
func (h *Hub) Presence() Presencer { return h.presence }

// NewConnection registers a bare, unauthenticated session in the table.
func (h *Hub) NewConnection(ctx context.Context) Connector {
	c := newConnection(ctx, h.config.sendBuffer)
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	return c
}

// Drop removes the connection from the table and recycles it. The caller
// (connection supervisor) has already detached it from rooms and presence.
func (h *Hub) Drop(conn Connector) {
	c, ok := conn.(*connection)
	if !ok {
		return
	}
	h.mu.Lock()
	_, present := h.conns[c.id]
	delete(h.conns, c.id)
	h.mu.Unlock()

	c.Close()
	if present {
		c.release()
	}
}

func (h *Hub) BroadcastGlobal(event any, exclude uuid.UUID) int {
	return h.broadcastWhere(event, exclude, func(model.Actor) bool { return true })
}

func (h *Hub) BroadcastKind(kind model.ActorKind, event any, exclude uuid.UUID) int {
	return h.broadcastWhere(event, exclude, func(a model.Actor) bool { return a.Kind == kind })
}

func (h *Hub) broadcastWhere(event any, exclude uuid.UUID, match func(model.Actor) bool) int {
	frame, err := model.Encode(event)
	if err != nil {
		return 0
	}

	h.mu.RLock()
	targets := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.id == exclude {
			continue
		}
		actor, authed := c.Actor()
		if !authed || !match(actor) {
			continue
		}
		if c.Send(frame, h.config.sendTimeout) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	conns := len(h.conns)
	h.mu.RUnlock()
	return Stats{
		Connections: conns,
		Rooms:       h.rooms.count(),
		Online:      h.presence.count(),
	}
}

// StartSweeper launches the idle-connection janitor. It closes connections
// whose last activity exceeds the idle timeout; the supervisor's teardown
// then performs the room/presence cleanup on its own goroutine.
func (h *Hub) StartSweeper() {
	go func() {
		ticker := time.NewTicker(h.config.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				h.sweep()
			}
		}
	}()
}

func (h *Hub) sweep() {
	cutoff := time.Now().Add(-h.config.idleTimeout).Unix()

	h.mu.RLock()
	stale := make([]*connection, 0)
	for _, c := range h.conns {
		if c.LastActivity() < cutoff {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.logger.Info("reaping idle connection",
			slog.String("conn_id", c.id.String()),
			slog.Int64("last_activity", c.LastActivity()),
		)
		c.Close()
	}
}

// Shutdown stops the janitor and force-closes every connection.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.RLock()
	conns := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}

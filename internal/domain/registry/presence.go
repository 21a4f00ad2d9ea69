package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
)

// Presencer is the actor → connection mapping used for direct (non-room)
// pushes and the online-users snapshot.
type Presencer interface {
	// Register maps the actor to the connection, last-connection-wins.
	// Returns the displaced connection, if any, so the caller can apply
	// the eviction policy.
	Register(conn Connector) (displaced Connector)

	// Unregister removes the mapping, but only if it is still owned by
	// connID: a displaced connection closing later must not evict its
	// successor. Returns whether a mapping was removed.
	Unregister(actorID string, connID uuid.UUID) bool

	// SendTo pushes one serialized event directly to the actor's live
	// connection. Returns false silently when the actor is offline.
	SendTo(actorID string, event any) bool

	// IsOnline reports whether the actor has a live registered connection.
	IsOnline(actorID string) bool

	// Snapshot lists every registered actor with its last activity.
	Snapshot() []model.OnlineUser
}

// Interface guard
var _ Presencer = (*Presence)(nil)

// Presence implements the tracker with a single mutex-guarded map; every
// operation is O(1) or O(n) map work with no I/O under the lock.
type Presence struct {
	mu      sync.RWMutex
	entries map[string]*connection

	sendTimeout time.Duration
}

func newPresence(sendTimeout time.Duration) *Presence {
	return &Presence{
		entries:     make(map[string]*connection),
		sendTimeout: sendTimeout,
	}
}

func (p *Presence) Register(conn Connector) Connector {
	c, ok := conn.(*connection)
	if !ok {
		return nil
	}
	actor, authed := c.Actor()
	if !authed {
		return nil
	}

	p.mu.Lock()
	prev := p.entries[actor.ID]
	p.entries[actor.ID] = c
	p.mu.Unlock()

	if prev == nil || prev.id == c.id {
		return nil
	}
	return prev
}

func (p *Presence) Unregister(actorID string, connID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.entries[actorID]
	if !ok || cur.id != connID {
		return false
	}
	delete(p.entries, actorID)
	return true
}

func (p *Presence) SendTo(actorID string, event any) bool {
	p.mu.RLock()
	c, ok := p.entries[actorID]
	p.mu.RUnlock()
	if !ok {
		return false
	}
	frame, err := model.Encode(event)
	if err != nil {
		return false
	}
	return c.Send(frame, p.sendTimeout)
}

func (p *Presence) IsOnline(actorID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[actorID]
	return ok
}

func (p *Presence) Snapshot() []model.OnlineUser {
	p.mu.RLock()
	defer p.mu.RUnlock()
	users := make([]model.OnlineUser, 0, len(p.entries))
	for actorID, c := range p.entries {
		actor, authed := c.Actor()
		if !authed {
			continue
		}
		users = append(users, model.OnlineUser{
			ActorID:      actorID,
			Kind:         actor.Kind,
			Name:         actor.DisplayName,
			LastActivity: c.LastActivity(),
		})
	}
	return users
}

// count reports the number of registered actors.
func (p *Presence) count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
)

// room holds the live state of one booking channel: the attached
// connections plus the bounded chat replay log. Created lazily on first
// join, discarded by the registry when the member set empties.
type room struct {
	id string

	// mu guards members and replay. Held only for map/slice operations,
	// never across a send or any I/O.
	mu      sync.RWMutex
	members map[uuid.UUID]*connection

	// replay keeps the most recent chat broadcasts in chronological order,
	// truncated at the front when the depth cap is exceeded.
	replay []model.ChatBroadcast
}

func newRoom(id string) *room {
	return &room{
		id:      id,
		members: make(map[uuid.UUID]*connection),
	}
}

func (r *room) attach(c *connection) {
	r.mu.Lock()
	r.members[c.id] = c
	r.mu.Unlock()
}

// detach removes the connection and reports (removed, empty). Idempotent:
// detaching an absent connection is a no-op.
func (r *room) detach(connID uuid.UUID) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, present := r.members[connID]
	if present {
		delete(r.members, connID)
	}
	return present, len(r.members) == 0
}

// snapshot copies the member set so broadcasters iterate without holding
// the lock; a concurrent leave mid-broadcast then cannot corrupt the walk.
func (r *room) snapshot() []*connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*connection, 0, len(r.members))
	for _, c := range r.members {
		conns = append(conns, c)
	}
	return conns
}

// appendReplay records one chat broadcast, enforcing the depth cap by
// dropping the oldest entries. Atomic with respect to concurrent chats in
// the same room.
func (r *room) appendReplay(msg model.ChatBroadcast, depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replay = append(r.replay, msg)
	if overflow := len(r.replay) - depth; overflow > 0 {
		r.replay = append(r.replay[:0], r.replay[overflow:]...)
	}
}

// history returns a copy of the replay log, oldest first.
func (r *room) history() []model.ChatBroadcast {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ChatBroadcast, len(r.replay))
	copy(out, r.replay)
	return out
}

// seedReplay installs cold-start history fetched from the persistence sink.
// Only applied while the log is still empty so a racing live chat wins.
func (r *room) seedReplay(msgs []model.ChatBroadcast, depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replay) > 0 {
		return
	}
	if len(msgs) > depth {
		msgs = msgs[len(msgs)-depth:]
	}
	r.replay = append(r.replay[:0], msgs...)
}

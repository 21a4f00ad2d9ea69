package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
)

// Roomer is the room-registry gateway used by the event router.
type Roomer interface {
	// Join attaches the connection and returns the current replay log
	// (oldest first). Access control happens in the service layer before
	// this call; the registry is pure in-memory state.
	Join(conn Connector, roomID string) []model.ChatBroadcast

	// Leave detaches the connection. Idempotent: leaving a room not joined,
	// or leaving twice, is a no-op. Returns whether the connection was a
	// member.
	Leave(conn Connector, roomID string) bool

	// Broadcast serializes the event once and delivers it to every attached
	// authenticated member except exclude (uuid.Nil excludes nobody).
	// Returns the delivered count.
	Broadcast(roomID string, event any, exclude uuid.UUID) int

	// BroadcastChat behaves like Broadcast and also appends the message to
	// the room's bounded replay log.
	BroadcastChat(roomID string, msg *model.ChatBroadcast, exclude uuid.UUID) int

	// History returns the room's replay log, oldest first. A nil slice
	// means the room is unknown or its log is empty.
	History(roomID string) []model.ChatBroadcast

	// SeedHistory installs cold-start history for a room whose in-memory
	// log is still empty (post-restart path).
	SeedHistory(roomID string, msgs []model.ChatBroadcast)
}

// Interface guard
var _ Roomer = (*Rooms)(nil)

// Rooms maps room id → live room. Rooms exist only while someone is
// attached; the registry owns creation and teardown.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]*room

	replayDepth int
	sendTimeout time.Duration
}

func newRooms(replayDepth int, sendTimeout time.Duration) *Rooms {
	return &Rooms{
		rooms:       make(map[string]*room),
		replayDepth: replayDepth,
		sendTimeout: sendTimeout,
	}
}

func (rs *Rooms) get(roomID string) (*room, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	r, ok := rs.rooms[roomID]
	return r, ok
}

func (rs *Rooms) getOrCreate(roomID string) *room {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.rooms[roomID]
	if !ok {
		r = newRoom(roomID)
		rs.rooms[roomID] = r
	}
	return r
}

func (rs *Rooms) Join(conn Connector, roomID string) []model.ChatBroadcast {
	c, ok := conn.(*connection)
	if !ok {
		return nil
	}
	r := rs.getOrCreate(roomID)
	r.attach(c)
	c.trackRoom(roomID)
	return r.history()
}

func (rs *Rooms) Leave(conn Connector, roomID string) bool {
	c, ok := conn.(*connection)
	if !ok {
		return false
	}
	c.forgetRoom(roomID)

	r, ok := rs.get(roomID)
	if !ok {
		return false
	}
	removed, empty := r.detach(c.id)
	if empty {
		// Re-check under the registry lock: a concurrent join may have
		// attached between detach and here.
		rs.mu.Lock()
		if cur, ok := rs.rooms[roomID]; ok && cur == r {
			r.mu.RLock()
			stillEmpty := len(r.members) == 0
			r.mu.RUnlock()
			if stillEmpty {
				delete(rs.rooms, roomID)
			}
		}
		rs.mu.Unlock()
	}
	return removed
}

func (rs *Rooms) Broadcast(roomID string, event any, exclude uuid.UUID) int {
	r, ok := rs.get(roomID)
	if !ok {
		return 0
	}
	frame, err := model.Encode(event)
	if err != nil {
		return 0
	}
	return rs.fanOut(r, frame, exclude)
}

func (rs *Rooms) BroadcastChat(roomID string, msg *model.ChatBroadcast, exclude uuid.UUID) int {
	r, ok := rs.get(roomID)
	if !ok {
		return 0
	}
	frame, err := model.Encode(msg)
	if err != nil {
		return 0
	}
	r.appendReplay(*msg, rs.replayDepth)
	return rs.fanOut(r, frame, exclude)
}

// fanOut delivers one serialized frame to a membership snapshot.
func (rs *Rooms) fanOut(r *room, frame []byte, exclude uuid.UUID) int {
	delivered := 0
	for _, member := range r.snapshot() {
		if member.id == exclude {
			continue
		}
		if !member.Authenticated() {
			continue
		}
		if member.Send(frame, rs.sendTimeout) {
			delivered++
		}
	}
	return delivered
}

func (rs *Rooms) History(roomID string) []model.ChatBroadcast {
	r, ok := rs.get(roomID)
	if !ok {
		return nil
	}
	return r.history()
}

func (rs *Rooms) SeedHistory(roomID string, msgs []model.ChatBroadcast) {
	if len(msgs) == 0 {
		return
	}
	r, ok := rs.get(roomID)
	if !ok {
		return
	}
	r.seedReplay(msgs, rs.replayDepth)
}

// count reports the number of live rooms.
func (rs *Rooms) count() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rooms)
}

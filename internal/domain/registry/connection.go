package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
)

// Interface guard
var _ Connector = (*connection)(nil)

// Connector is the view of a live transport session the rest of the system
// operates on. The concrete type stays unexported to force interface usage.
type Connector interface {
	ID() uuid.UUID
	Context() context.Context

	// Identity. Actor returns false until the identity gate has passed.
	Actor() (model.Actor, bool)
	SetActor(a model.Actor)
	Authenticated() bool

	// Room membership bookkeeping, owned by the room registry.
	Rooms() []string

	// Activity tracking for the idle sweep.
	Touch()
	LastActivity() int64

	// Send enqueues one pre-serialized frame with backpressure handling.
	// Thread-safe; returns false if the frame was dropped.
	Send(frame []byte, timeout time.Duration) bool
	Recv() <-chan []byte

	// Close terminates the session. Idempotent.
	Close()
}

// connection is the concrete session state, 1:1 with a WebSocket.
type connection struct {
	id       uuid.UUID
	ctx      context.Context
	cancelFn context.CancelFunc

	mu          sync.RWMutex // guards actor and joinedRooms
	actor       model.Actor
	authed      bool
	joinedRooms map[string]struct{}

	// [MAILBOX]
	// Buffered channel of serialized frames. Broadcasters marshal once and
	// enqueue bytes; the write pump drains onto the wire. A stalled consumer
	// therefore never blocks the broadcaster beyond the send timeout.
	sendCh chan []byte

	closeOnce      sync.Once
	lastActivityAt int64  // atomic, unix seconds
	droppedCount   uint64 // atomic
}

// connectionPool recycles session structs to reduce GC pressure on
// connection churn (the mobile clients reconnect aggressively).
var connectionPool = sync.Pool{
	New: func() any {
		return &connection{}
	},
}

func newConnection(ctx context.Context, bufferSize int) *connection {
	c := connectionPool.Get().(*connection)
	c.reset(ctx, bufferSize)
	return c
}

// reset wipes stale pooled state by reassigning a fresh literal, which also
// re-arms the closeOnce guard.
func (c *connection) reset(ctx context.Context, bufferSize int) {
	childCtx, cancel := context.WithCancel(ctx)
	*c = connection{
		id:             uuid.New(),
		ctx:            childCtx,
		cancelFn:       cancel,
		joinedRooms:    make(map[string]struct{}),
		sendCh:         make(chan []byte, bufferSize),
		lastActivityAt: time.Now().Unix(),
	}
}

func (c *connection) ID() uuid.UUID            { return c.id }
func (c *connection) Context() context.Context { return c.ctx }

func (c *connection) Actor() (model.Actor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.actor, c.authed
}

func (c *connection) SetActor(a model.Actor) {
	c.mu.Lock()
	c.actor = a
	c.authed = true
	c.mu.Unlock()
}

func (c *connection) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authed
}

func (c *connection) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.joinedRooms))
	for id := range c.joinedRooms {
		rooms = append(rooms, id)
	}
	return rooms
}

func (c *connection) trackRoom(roomID string) {
	c.mu.Lock()
	c.joinedRooms[roomID] = struct{}{}
	c.mu.Unlock()
}

func (c *connection) forgetRoom(roomID string) {
	c.mu.Lock()
	delete(c.joinedRooms, roomID)
	c.mu.Unlock()
}

func (c *connection) Touch() {
	atomic.StoreInt64(&c.lastActivityAt, time.Now().Unix())
}

func (c *connection) LastActivity() int64 {
	return atomic.LoadInt64(&c.lastActivityAt)
}

// Send enqueues a frame into the mailbox, waiting up to timeout for space.
// Waiting (instead of an immediate default) smooths transient jitter; a
// buffer saturated for the whole window means a persistently slow consumer,
// and the frame is shed.
func (c *connection) Send(frame []byte, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case c.sendCh <- frame:
		return true
	case <-deadline.C:
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}
}

func (c *connection) Recv() <-chan []byte { return c.sendCh }

// Close cancels the session context, aborting pending sends and unblocking
// the write pump. The mailbox channel is deliberately never closed so a
// concurrent Send can never panic; the pump exits on ctx.Done instead.
// Safe to call from the janitor, the hub shutdown, and the transport
// handler concurrently.
func (c *connection) Close() {
	c.closeOnce.Do(c.cancelFn)
}

// release returns the struct to the pool. Only the hub calls this, after
// the connection is out of every room and out of the presence map and its
// pumps have exited.
func (c *connection) release() {
	connectionPool.Put(c)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
	"github.com/homespark/rt-coordination-service/internal/domain/registry"
)

// fakeGate resolves tokens from a fixed table.
type fakeGate struct {
	actors map[string]model.Actor
}

func (g *fakeGate) Authenticate(_ context.Context, token string, kind model.ActorKind) (model.Actor, *model.HandlerError) {
	actor, ok := g.actors[token]
	if !ok || actor.Kind != kind {
		return model.Actor{}, model.NewHandlerError(model.ErrInvalidToken, "invalid or expired token")
	}
	return actor, nil
}

// fakeBookings maps room id to its customer and professional.
type fakeBookings struct {
	rooms map[string][2]string
}

func (b *fakeBookings) IsParticipant(_ context.Context, actorID string, kind model.ActorKind, roomID string) (bool, error) {
	parties, ok := b.rooms[roomID]
	if !ok {
		return false, nil
	}
	switch kind {
	case model.KindCustomer:
		return parties[0] == actorID, nil
	case model.KindProfessional:
		return parties[1] == actorID, nil
	default:
		return false, nil
	}
}

func (b *fakeBookings) Participants(_ context.Context, roomID string) ([]Participant, error) {
	parties, ok := b.rooms[roomID]
	if !ok {
		return nil, nil
	}
	return []Participant{
		{ActorID: parties[0], Kind: model.KindCustomer},
		{ActorID: parties[1], Kind: model.KindProfessional},
	}, nil
}

type fakeSink struct {
	mu        sync.Mutex
	failWrite bool

	chats     []string
	locations int
	statuses  []model.JobStatus
	recent    []StoredMessage
}

var errSinkDown = errors.New("sink down")

func (s *fakeSink) SaveChatMessage(_ context.Context, roomID, senderID string, senderKind model.ActorKind, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return "", errSinkDown
	}
	s.chats = append(s.chats, text)
	return uuid.NewString(), nil
}

func (s *fakeSink) SaveLocation(_ context.Context, professionalID, roomID string, lat, lon, accuracy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return errSinkDown
	}
	s.locations++
	return nil
}

func (s *fakeSink) UpdateJobStatus(_ context.Context, roomID string, status model.JobStatus, notes, updatedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return errSinkDown
	}
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeSink) GetRecentMessages(_ context.Context, roomID string, limit int) ([]StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return nil, errSinkDown
	}
	return s.recent, nil
}

func (s *fakeSink) chatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

type fakeNotifier struct {
	mu     sync.Mutex
	pushes []string
}

func (n *fakeNotifier) PushOfflineNotification(_ context.Context, actorID string, _ any) {
	n.mu.Lock()
	n.pushes = append(n.pushes, actorID)
	n.mu.Unlock()
}

func (n *fakeNotifier) pushed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.pushes...)
}

type fakeCache struct {
	mu       sync.Mutex
	recent   []model.ChatBroadcast
	appended int
}

func (c *fakeCache) GetRecent(_ context.Context, roomID string, limit int) ([]model.ChatBroadcast, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.recent) == 0 {
		return nil, false
	}
	return c.recent, true
}

func (c *fakeCache) Append(_ context.Context, roomID string, msg model.ChatBroadcast, depth int) {
	c.mu.Lock()
	c.appended++
	c.mu.Unlock()
}

// fakeJobs arbitrates accepts with an in-memory compare-and-swap.
type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]*fakeJob
}

type fakeJob struct {
	details    model.JobDetails
	roomID     string
	acceptedBy string
}

func (j *fakeJobs) GetJobDetails(_ context.Context, jobID string) (model.JobDetails, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[jobID]
	if !ok {
		return model.JobDetails{}, ErrJobNotFound
	}
	return job.details, nil
}

func (j *fakeJobs) TryAcceptJob(_ context.Context, jobID, professionalID string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[jobID]
	if !ok {
		return "", ErrJobNotFound
	}
	if job.acceptedBy != "" {
		return "", ErrJobAlreadyTaken
	}
	job.acceptedBy = professionalID
	return job.roomID, nil
}

// testEnv bundles a router wired over a real hub and fake collaborators.
type testEnv struct {
	hub      *registry.Hub
	router   *EventRouter
	gate     *fakeGate
	bookings *fakeBookings
	sink     *fakeSink
	notifier *fakeNotifier
	cache    *fakeCache
	jobs     *fakeJobs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := registry.NewHub(logger)
	t.Cleanup(hub.Shutdown)

	env := &testEnv{
		hub: hub,
		gate: &fakeGate{actors: map[string]model.Actor{
			"tok-cust": {ID: "cust-1", Kind: model.KindCustomer, DisplayName: "Cleo Customer"},
			"tok-pro":  {ID: "pro-1", Kind: model.KindProfessional, DisplayName: "Pat Pro"},
			"tok-pro2": {ID: "pro-2", Kind: model.KindProfessional, DisplayName: "Paula Pro"},
			"tok-adm":  {ID: "adm-1", Kind: model.KindAdmin, DisplayName: "Ada Admin"},
		}},
		bookings: &fakeBookings{rooms: map[string][2]string{
			"booking-1": {"cust-1", "pro-1"},
		}},
		sink:     &fakeSink{},
		notifier: &fakeNotifier{},
		cache:    &fakeCache{},
		jobs: &fakeJobs{jobs: map[string]*fakeJob{
			"job-1": {
				details: model.JobDetails{JobID: "job-1", Service: "deep clean", Payout: 80},
				roomID:  "booking-1",
			},
		}},
	}

	dispatcher := NewDispatcher(logger, hub, env.jobs, env.notifier)
	env.router = NewEventRouter(RouterParams{
		Logger:        logger,
		Hub:           hub,
		Gate:          env.gate,
		Bookings:      env.bookings,
		Sink:          env.sink,
		Notifier:      env.notifier,
		Cache:         env.cache,
		Dispatcher:    dispatcher,
		MaxMessageLen: 1000,
		EvictPrior:    false,
		ReplayDepth:   50,
	})
	return env
}

// connect authenticates a fresh connection and drains the handshake frames.
func (env *testEnv) connect(t *testing.T, token string, kind model.ActorKind) registry.Connector {
	t.Helper()
	conn := env.hub.NewConnection(context.Background())
	env.send(t, conn, `{"type":"authenticate","token":"`+token+`","user_type":"`+string(kind)+`"}`)
	got := recvFrame(t, conn)
	if got["type"] != model.TypeAuthenticated {
		t.Fatalf("handshake reply type = %v, want authenticated", got["type"])
	}
	return conn
}

func (env *testEnv) send(t *testing.T, conn registry.Connector, raw string) {
	t.Helper()
	env.router.HandleFrame(context.Background(), conn, []byte(raw))
}

func recvFrame(t *testing.T, c registry.Connector) map[string]any {
	t.Helper()
	select {
	case frame := <-c.Recv():
		var decoded map[string]any
		if err := json.Unmarshal(frame, &decoded); err != nil {
			t.Fatalf("frame is not valid JSON: %v", err)
		}
		return decoded
	case <-time.After(time.Second):
		t.Fatal("no frame delivered within 1s")
		return nil
	}
}

func assertNoFrame(t *testing.T, c registry.Connector) {
	t.Helper()
	select {
	case frame := <-c.Recv():
		t.Fatalf("unexpected frame delivered: %s", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

// drainFrames collects every frame already enqueued on the connection.
func drainFrames(c registry.Connector) []map[string]any {
	var frames []map[string]any
	for {
		select {
		case frame := <-c.Recv():
			var decoded map[string]any
			if err := json.Unmarshal(frame, &decoded); err == nil {
				frames = append(frames, decoded)
			}
		case <-time.After(100 * time.Millisecond):
			return frames
		}
	}
}

func expectError(t *testing.T, c registry.Connector, code model.ErrorKind) {
	t.Helper()
	got := recvFrame(t, c)
	if got["type"] != model.TypeError {
		t.Fatalf("frame type = %v, want error", got["type"])
	}
	if got["code"] != string(code) {
		t.Fatalf("error code = %v, want %s", got["code"], code)
	}
}

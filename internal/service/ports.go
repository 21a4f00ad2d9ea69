package service

import (
	"context"
	"errors"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
)

// Sentinel errors surfaced by the external collaborators.
var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrJobNotFound      = errors.New("job not found")
	ErrJobAlreadyTaken  = errors.New("job already taken")
)

// Identity is the external identity store's projection of a token owner.
type Identity struct {
	ID   string
	Name string
}

// Participant is one party of a booking, as recorded by the booking store.
type Participant struct {
	ActorID string
	Kind    model.ActorKind
}

// StoredMessage is a persisted chat row returned by the cold-start history
// query.
type StoredMessage struct {
	ID         string
	RoomID     string
	SenderID   string
	SenderKind model.ActorKind
	SenderName string
	Text       string
	CreatedAt  int64
}

// IdentityStore resolves opaque bearer tokens, scoped by the claimed actor
// kind. Absent or expired tokens yield ErrIdentityNotFound.
type IdentityStore interface {
	Lookup(ctx context.Context, token string, kind model.ActorKind) (Identity, error)
}

// BookingStore answers room-ownership questions for access control and
// enumerates a booking's parties for offline fan-out.
type BookingStore interface {
	IsParticipant(ctx context.Context, actorID string, kind model.ActorKind, roomID string) (bool, error)
	Participants(ctx context.Context, roomID string) ([]Participant, error)
}

// MessageSink is the mandatory persistence collaborator. Every handler
// persists before it broadcasts, so a failed write never misleads other
// participants.
type MessageSink interface {
	SaveChatMessage(ctx context.Context, roomID, senderID string, senderKind model.ActorKind, text string) (string, error)
	SaveLocation(ctx context.Context, professionalID, roomID string, lat, lon, accuracy float64) error
	UpdateJobStatus(ctx context.Context, roomID string, status model.JobStatus, notes, updatedBy string) error
	GetRecentMessages(ctx context.Context, roomID string, limit int) ([]StoredMessage, error)
}

// Notifier delivers push notifications to actors with no live connection.
// Fire-and-forget: no return value is consumed.
type Notifier interface {
	PushOfflineNotification(ctx context.Context, actorID string, payload any)
}

// JobStore owns job details and the atomic accept primitive.
type JobStore interface {
	GetJobDetails(ctx context.Context, jobID string) (model.JobDetails, error)

	// TryAcceptJob performs the check-still-pending-then-assign transition
	// as a single atomic unit and returns the booking/room id on success,
	// ErrJobAlreadyTaken when another professional won the race.
	TryAcceptJob(ctx context.Context, jobID, professionalID string) (string, error)
}

// HistoryCache is the optional replay accelerator in front of the sink's
// cold path. Implementations must be nil-safe to disable: GetRecent
// returning ok=false falls through to GetRecentMessages.
type HistoryCache interface {
	GetRecent(ctx context.Context, roomID string, limit int) ([]model.ChatBroadcast, bool)
	Append(ctx context.Context, roomID string, msg model.ChatBroadcast, depth int)
}

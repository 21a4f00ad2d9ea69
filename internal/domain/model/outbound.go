package model

import (
	"encoding/json"
	"time"
)

// Frame types shared by both directions or sent only by the server.
const (
	TypeChatMessage     = "chat_message"
	TypeLocationUpdate  = "location_update"
	TypeJobStatusUpdate = "job_status_update"
	TypeTyping          = "typing"
	TypeEmergencyAlert  = "emergency_alert"

	TypeConnectionEstablished = "connection_established"
	TypeAuthenticated         = "authenticated"
	TypeMessageHistory        = "message_history"
	TypeUserJoined            = "user_joined"
	TypeUserLeft              = "user_left"
	TypeUserStatus            = "user_status"
	TypeNewJob                = "new_job"
	TypeJobAccepted           = "job_accepted"
	TypeJobTaken              = "job_taken"
	TypePong                  = "pong"
	TypeOnlineUsers           = "online_users"
	TypeError                 = "error"
)

// Presence wire values for user_status events.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Epoch is the wire timestamp: unix seconds.
func Epoch() int64 {
	return time.Now().Unix()
}

// Encode serializes one outbound event. Broadcast sites call this exactly
// once per event and fan the bytes out.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// ConnectionEstablished is the first frame on every new socket, before
// authentication.
type ConnectionEstablished struct {
	Type       string `json:"type"`
	ResourceID string `json:"resource_id"`
	Timestamp  int64  `json:"timestamp"`
}

// Authenticated acknowledges a successful identity check.
type Authenticated struct {
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp"`
	ActorID   string    `json:"user_id"`
	Kind      ActorKind `json:"user_type"`
	Name      string    `json:"name"`
}

// ChatBroadcast is a delivered chat message. The same shape is the unit of
// the per-room replay log and of message_history hydration.
type ChatBroadcast struct {
	Type       string    `json:"type"`
	Timestamp  int64     `json:"timestamp"`
	MessageID  string    `json:"message_id"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderKind ActorKind `json:"sender_type"`
	SenderName string    `json:"sender_name"`
	Message    string    `json:"message"`
}

// MessageHistory replays recent room messages to a joining connection,
// oldest first.
type MessageHistory struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	RoomID    string          `json:"room_id"`
	Messages  []ChatBroadcast `json:"messages"`
}

// RoomPresence announces a join or leave inside one room; Type is
// user_joined or user_left.
type RoomPresence struct {
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp"`
	RoomID    string    `json:"room_id"`
	ActorID   string    `json:"user_id"`
	Kind      ActorKind `json:"user_type"`
	Name      string    `json:"name"`
}

type LocationBroadcast struct {
	Type           string  `json:"type"`
	Timestamp      int64   `json:"timestamp"`
	RoomID         string  `json:"room_id"`
	ProfessionalID string  `json:"user_id"`
	Name           string  `json:"name"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Accuracy       float64 `json:"accuracy"`
}

type JobStatusBroadcast struct {
	Type          string    `json:"type"`
	Timestamp     int64     `json:"timestamp"`
	RoomID        string    `json:"room_id"`
	Status        JobStatus `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	UpdatedBy     string    `json:"updated_by"`
	UpdatedByName string    `json:"updated_by_name"`
}

type TypingBroadcast struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	RoomID    string `json:"room_id"`
	ActorID   string `json:"user_id"`
	Name      string `json:"name"`
	IsTyping  bool   `json:"is_typing"`
}

// UserStatus is the global online/offline announcement.
type UserStatus struct {
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp"`
	ActorID   string    `json:"user_id"`
	Kind      ActorKind `json:"user_type"`
	Status    string    `json:"status"`
}

// JobDetails is the offer payload embedded in new_job events.
type JobDetails struct {
	JobID       string  `json:"job_id"`
	Service     string  `json:"service"`
	Address     string  `json:"address"`
	ScheduledAt int64   `json:"scheduled_at"`
	Payout      float64 `json:"payout"`
}

type NewJob struct {
	Type      string     `json:"type"`
	Timestamp int64      `json:"timestamp"`
	Job       JobDetails `json:"job"`
}

// JobAccepted confirms the win to the accepting professional only.
type JobAccepted struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	JobID     string `json:"job_id"`
	RoomID    string `json:"room_id"`
}

// JobTaken tells every other professional the job is gone.
type JobTaken struct {
	Type       string `json:"type"`
	Timestamp  int64  `json:"timestamp"`
	JobID      string `json:"job_id"`
	AcceptedBy string `json:"accepted_by"`
}

type EmergencyBroadcast struct {
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp"`
	RoomID    string    `json:"room_id,omitempty"`
	ActorID   string    `json:"user_id"`
	Kind      ActorKind `json:"user_type"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
}

type Pong struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type OnlineUser struct {
	ActorID      string    `json:"user_id"`
	Kind         ActorKind `json:"user_type"`
	Name         string    `json:"name"`
	LastActivity int64     `json:"last_activity"`
}

type OnlineUsers struct {
	Type      string       `json:"type"`
	Timestamp int64        `json:"timestamp"`
	Users     []OnlineUser `json:"users"`
}

// ErrorEvent reports a handler failure back to the originating connection.
type ErrorEvent struct {
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Code      ErrorKind `json:"code"`
	Message   string    `json:"message"`
}

func NewErrorEvent(herr *HandlerError) *ErrorEvent {
	return &ErrorEvent{
		Type:      TypeError,
		Timestamp: Epoch(),
		Code:      herr.Kind,
		Message:   herr.Message,
	}
}

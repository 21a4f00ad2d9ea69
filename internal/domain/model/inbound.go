package model

import "encoding/json"

// Inbound frame types.
const (
	TypeAuthenticate   = "authenticate"
	TypeJoinRoom       = "join_room"
	TypeLeaveRoom      = "leave_room"
	TypeJobOffer       = "job_offer"
	TypeJobAccept      = "job_accept"
	TypePing           = "ping"
	TypeGetOnlineUsers = "get_online_users"
)

// InboundEvent is the closed union of client frames. The unexported marker
// method seals it: every variant lives in this package, and the router's
// type switch is exhaustive by construction.
type InboundEvent interface {
	inboundEvent()
}

type AuthenticateEvent struct {
	Token string    `json:"token"`
	Kind  ActorKind `json:"user_type"`
}

type JoinRoomEvent struct {
	RoomID string `json:"room_id"`
}

type LeaveRoomEvent struct {
	RoomID string `json:"room_id"`
}

type ChatMessageEvent struct {
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

type LocationUpdateEvent struct {
	RoomID    string  `json:"room_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

type JobStatusUpdateEvent struct {
	RoomID string    `json:"room_id"`
	Status JobStatus `json:"status"`
	Notes  string    `json:"notes"`
}

type TypingEvent struct {
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

type JobOfferEvent struct {
	JobID           string   `json:"job_id"`
	ProfessionalIDs []string `json:"professional_ids"`
}

type JobAcceptEvent struct {
	JobID string `json:"job_id"`
}

type EmergencyAlertEvent struct {
	RoomID  string `json:"room_id,omitempty"`
	Message string `json:"message"`
}

type PingEvent struct{}

type GetOnlineUsersEvent struct{}

func (*AuthenticateEvent) inboundEvent()    {}
func (*JoinRoomEvent) inboundEvent()        {}
func (*LeaveRoomEvent) inboundEvent()       {}
func (*ChatMessageEvent) inboundEvent()     {}
func (*LocationUpdateEvent) inboundEvent()  {}
func (*JobStatusUpdateEvent) inboundEvent() {}
func (*TypingEvent) inboundEvent()          {}
func (*JobOfferEvent) inboundEvent()        {}
func (*JobAcceptEvent) inboundEvent()       {}
func (*EmergencyAlertEvent) inboundEvent()  {}
func (*PingEvent) inboundEvent()            {}
func (*GetOnlineUsersEvent) inboundEvent()  {}

// envelope peeks at the discriminator before the variant decode.
type envelope struct {
	Type string `json:"type"`
}

// DecodeInbound parses one raw client frame into its typed variant.
// Malformed JSON, a missing type, and an unknown type all collapse to
// invalid_format: the client protocol has exactly one rejection shape.
func DecodeInbound(raw []byte) (InboundEvent, *HandlerError) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, NewHandlerError(ErrInvalidFormat, "malformed frame")
	}

	switch env.Type {
	case TypeAuthenticate:
		return decodeAs(raw, &AuthenticateEvent{})
	case TypeJoinRoom:
		return decodeAs(raw, &JoinRoomEvent{})
	case TypeLeaveRoom:
		return decodeAs(raw, &LeaveRoomEvent{})
	case TypeChatMessage:
		return decodeAs(raw, &ChatMessageEvent{})
	case TypeLocationUpdate:
		return decodeAs(raw, &LocationUpdateEvent{})
	case TypeJobStatusUpdate:
		return decodeAs(raw, &JobStatusUpdateEvent{})
	case TypeTyping:
		return decodeAs(raw, &TypingEvent{})
	case TypeJobOffer:
		return decodeAs(raw, &JobOfferEvent{})
	case TypeJobAccept:
		return decodeAs(raw, &JobAcceptEvent{})
	case TypeEmergencyAlert:
		return decodeAs(raw, &EmergencyAlertEvent{})
	case TypePing:
		return decodeAs(raw, &PingEvent{})
	case TypeGetOnlineUsers:
		return decodeAs(raw, &GetOnlineUsersEvent{})
	case "":
		return nil, NewHandlerError(ErrInvalidFormat, "missing event type")
	default:
		return nil, NewHandlerError(ErrInvalidFormat, "unknown event type: "+env.Type)
	}
}

func decodeAs[T InboundEvent](raw []byte, v T) (InboundEvent, *HandlerError) {
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, NewHandlerError(ErrInvalidFormat, "malformed frame")
	}
	return v, nil
}

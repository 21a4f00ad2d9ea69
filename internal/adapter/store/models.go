package store

import "time"

// User backs the identity lookup. Kind is part of the key space: the same
// person may exist as both a customer and a professional account.
type User struct {
	ID        string `gorm:"primaryKey;size:64"`
	Kind      string `gorm:"primaryKey;size:16"`
	Name      string `gorm:"size:128"`
	CreatedAt time.Time
}

// Booking maps a room id to its two parties. Room ids are 1:1 with
// bookings, so the room id doubles as the booking key here.
type Booking struct {
	RoomID         string `gorm:"primaryKey;size:64"`
	CustomerID     string `gorm:"size:64;index"`
	ProfessionalID string `gorm:"size:64;index"`
	Status         string `gorm:"size:32"`
	CreatedAt      time.Time
}

// ChatMessage is a persisted chat row. The sender name is denormalized so
// history hydration does not need a users join.
type ChatMessage struct {
	ID         string `gorm:"primaryKey;size:36"`
	RoomID     string `gorm:"size:64;index:idx_chat_room_created,priority:1"`
	SenderID   string `gorm:"size:64"`
	SenderKind string `gorm:"size:16"`
	SenderName string `gorm:"size:128"`
	Text       string `gorm:"size:2000"`
	CreatedAt  time.Time `gorm:"index:idx_chat_room_created,priority:2"`
}

// LocationPing is one professional GPS sample.
type LocationPing struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ProfessionalID string `gorm:"size:64;index"`
	RoomID         string `gorm:"size:64;index"`
	Latitude       float64
	Longitude      float64
	Accuracy       float64
	CreatedAt      time.Time
}

// JobStatusRecord is an append-only audit of job-progress transitions.
type JobStatusRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	RoomID    string `gorm:"size:64;index"`
	Status    string `gorm:"size:32"`
	Notes     string `gorm:"size:1000"`
	UpdatedBy string `gorm:"size:64"`
	CreatedAt time.Time
}

// Job is a dispatchable cleaning job. Status transitions pending→accepted
// exactly once; AcceptedBy records the winner.
type Job struct {
	ID          string  `gorm:"primaryKey;size:64"`
	RoomID      string  `gorm:"size:64"`
	Status      string  `gorm:"size:16;index"`
	AcceptedBy  *string `gorm:"size:64"`
	Service     string  `gorm:"size:128"`
	Address     string  `gorm:"size:256"`
	ScheduledAt int64
	Payout      float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	jobPending  = "pending"
	jobAccepted = "accepted"
)

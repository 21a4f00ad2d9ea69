// Package store implements every external collaborator port on a single
// GORM-backed relational store: identity lookup, booking ownership, the
// message/location/status persistence sink, and the job store with its
// atomic accept primitive.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
	"github.com/homespark/rt-coordination-service/internal/service"
)

// Interface guards
var (
	_ service.IdentityStore = (*Store)(nil)
	_ service.BookingStore  = (*Store)(nil)
	_ service.MessageSink   = (*Store)(nil)
	_ service.JobStore      = (*Store)(nil)
)

type Store struct {
	db     *gorm.DB
	secret []byte
}

func NewStore(db *gorm.DB, jwtSecret string) *Store {
	return &Store{db: db, secret: []byte(jwtSecret)}
}

// OpenDB opens the SQLite database and migrates the schema.
func OpenDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(
		&User{}, &Booking{}, &ChatMessage{},
		&LocationPing{}, &JobStatusRecord{}, &Job{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

// --- IdentityStore ---

// Lookup validates the bearer token (HMAC JWT) and resolves the subject
// against the users table, scoped by the claimed kind. Any validation or
// lookup miss collapses to ErrIdentityNotFound: the client learns nothing
// about which check failed.
func (s *Store) Lookup(ctx context.Context, token string, kind model.ActorKind) (service.Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return service.Identity{}, service.ErrIdentityNotFound
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return service.Identity{}, service.ErrIdentityNotFound
	}

	var user User
	err = s.db.WithContext(ctx).
		First(&user, "id = ? AND kind = ?", subject, string(kind)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return service.Identity{}, service.ErrIdentityNotFound
	}
	if err != nil {
		return service.Identity{}, fmt.Errorf("identity lookup: %w", err)
	}
	return service.Identity{ID: user.ID, Name: user.Name}, nil
}

// --- BookingStore ---

func (s *Store) IsParticipant(ctx context.Context, actorID string, kind model.ActorKind, roomID string) (bool, error) {
	var booking Booking
	err := s.db.WithContext(ctx).First(&booking, "room_id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("booking lookup: %w", err)
	}
	switch kind {
	case model.KindCustomer:
		return booking.CustomerID == actorID, nil
	case model.KindProfessional:
		return booking.ProfessionalID == actorID, nil
	default:
		return false, nil
	}
}

func (s *Store) Participants(ctx context.Context, roomID string) ([]service.Participant, error) {
	var booking Booking
	err := s.db.WithContext(ctx).First(&booking, "room_id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("booking lookup: %w", err)
	}
	participants := make([]service.Participant, 0, 2)
	if booking.CustomerID != "" {
		participants = append(participants, service.Participant{ActorID: booking.CustomerID, Kind: model.KindCustomer})
	}
	if booking.ProfessionalID != "" {
		participants = append(participants, service.Participant{ActorID: booking.ProfessionalID, Kind: model.KindProfessional})
	}
	return participants, nil
}

// --- MessageSink ---

func (s *Store) SaveChatMessage(ctx context.Context, roomID, senderID string, senderKind model.ActorKind, text string) (string, error) {
	var senderName string
	var user User
	if err := s.db.WithContext(ctx).First(&user, "id = ? AND kind = ?", senderID, string(senderKind)).Error; err == nil {
		senderName = user.Name
	}

	row := ChatMessage{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		SenderID:   senderID,
		SenderKind: string(senderKind),
		SenderName: senderName,
		Text:       text,
		CreatedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("save chat message: %w", err)
	}
	return row.ID, nil
}

func (s *Store) SaveLocation(ctx context.Context, professionalID, roomID string, lat, lon, accuracy float64) error {
	row := LocationPing{
		ProfessionalID: professionalID,
		RoomID:         roomID,
		Latitude:       lat,
		Longitude:      lon,
		Accuracy:       accuracy,
		CreatedAt:      time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, roomID string, status model.JobStatus, notes, updatedBy string) error {
	row := JobStatusRecord{
		RoomID:    roomID,
		Status:    string(status),
		Notes:     notes,
		UpdatedBy: updatedBy,
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save job status: %w", err)
	}
	return nil
}

func (s *Store) GetRecentMessages(ctx context.Context, roomID string, limit int) ([]service.StoredMessage, error) {
	var rows []ChatMessage
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}

	// Query returns newest first; callers want chronological order.
	out := make([]service.StoredMessage, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = service.StoredMessage{
			ID:         row.ID,
			RoomID:     row.RoomID,
			SenderID:   row.SenderID,
			SenderKind: model.ActorKind(row.SenderKind),
			SenderName: row.SenderName,
			Text:       row.Text,
			CreatedAt:  row.CreatedAt.Unix(),
		}
	}
	return out, nil
}

// --- JobStore ---

func (s *Store) GetJobDetails(ctx context.Context, jobID string) (model.JobDetails, error) {
	var job Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.JobDetails{}, service.ErrJobNotFound
	}
	if err != nil {
		return model.JobDetails{}, fmt.Errorf("job lookup: %w", err)
	}
	return model.JobDetails{
		JobID:       job.ID,
		Service:     job.Service,
		Address:     job.Address,
		ScheduledAt: job.ScheduledAt,
		Payout:      job.Payout,
	}, nil
}

// TryAcceptJob is the atomic primitive behind first-accept-wins: a single
// conditional UPDATE moves the row pending→accepted, and the affected-row
// count decides the race. Concurrent acceptors serialize on the row, not
// in process memory.
func (s *Store) TryAcceptJob(ctx context.Context, jobID, professionalID string) (string, error) {
	res := s.db.WithContext(ctx).
		Model(&Job{}).
		Where("id = ? AND status = ?", jobID, jobPending).
		Updates(map[string]any{"status": jobAccepted, "accepted_by": professionalID})
	if res.Error != nil {
		return "", fmt.Errorf("accept job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var job Job
		err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", service.ErrJobNotFound
		}
		return "", service.ErrJobAlreadyTaken
	}

	var job Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return "", fmt.Errorf("accepted job readback: %w", err)
	}
	return job.RoomID, nil
}

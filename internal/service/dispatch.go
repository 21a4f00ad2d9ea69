package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
	"github.com/homespark/rt-coordination-service/internal/domain/registry"
)

// Dispatcher arbitrates the job-offer/job-accept race. Correctness of
// first-accept-wins rests entirely on the job store's atomic conditional
// update; no in-process lock is involved, because connections are handled
// without mutual exclusion at the application layer.
type Dispatcher struct {
	logger   *slog.Logger
	hub      registry.Hubber
	jobs     JobStore
	notifier Notifier
}

func NewDispatcher(logger *slog.Logger, hub registry.Hubber, jobs JobStore, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		hub:      hub,
		jobs:     jobs,
		notifier: notifier,
	}
}

// Offer pushes a new_job event to each target professional. Offline targets
// get a fire-and-forget push notification instead. Admin authorization is
// enforced by the router before this call.
func (d *Dispatcher) Offer(ctx context.Context, ev *model.JobOfferEvent) *model.HandlerError {
	details, err := d.jobs.GetJobDetails(ctx, ev.JobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return model.NewHandlerError(model.ErrInvalidFormat, "unknown job")
		}
		return model.Internal(err)
	}

	offer := &model.NewJob{
		Type:      model.TypeNewJob,
		Timestamp: model.Epoch(),
		Job:       details,
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, proID := range ev.ProfessionalIDs {
		proID := proID
		g.Go(func() error {
			if !d.hub.Presence().SendTo(proID, offer) {
				d.notifier.PushOfflineNotification(gCtx, proID, offer)
			}
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Info("job offered",
		slog.String("job_id", ev.JobID),
		slog.Int("targets", len(ev.ProfessionalIDs)),
	)
	return nil
}

// Accept runs the check-still-pending-then-assign sequence through the
// store's atomic primitive. Exactly one concurrent acceptor can win; every
// other attempt surfaces job_no_longer_available with no broadcast.
func (d *Dispatcher) Accept(ctx context.Context, conn registry.Connector, actor model.Actor, jobID string) *model.HandlerError {
	roomID, err := d.jobs.TryAcceptJob(ctx, jobID, actor.ID)
	if err != nil {
		if errors.Is(err, ErrJobAlreadyTaken) || errors.Is(err, ErrJobNotFound) {
			return model.NewHandlerError(model.ErrJobNoLongerAvailable, "job is no longer available")
		}
		return model.Internal(err)
	}

	accepted := &model.JobAccepted{
		Type:      model.TypeJobAccepted,
		Timestamp: model.Epoch(),
		JobID:     jobID,
		RoomID:    roomID,
	}
	frame, encErr := model.Encode(accepted)
	if encErr != nil {
		return model.Internal(encErr)
	}
	conn.Send(frame, sendTimeout)

	// Loser notification is best-effort and outside the transactional
	// boundary: every other connected professional learns the job is gone.
	taken := &model.JobTaken{
		Type:       model.TypeJobTaken,
		Timestamp:  model.Epoch(),
		JobID:      jobID,
		AcceptedBy: actor.ID,
	}
	d.hub.BroadcastKind(model.KindProfessional, taken, conn.ID())

	d.logger.Info("job accepted",
		slog.String("job_id", jobID),
		slog.String("professional_id", actor.ID),
		slog.String("room_id", roomID),
	)
	return nil
}

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
	"github.com/homespark/rt-coordination-service/internal/domain/registry"
)

// sendTimeout bounds direct replies to the originating connection.
const sendTimeout = 2 * time.Second

// Router is the inbound-event surface the transport handler drives.
type Router interface {
	// HandleFrame decodes and dispatches one raw client frame. All
	// validation and authorization failures are local: they are reported
	// back to the originating connection only and never close it.
	HandleFrame(ctx context.Context, conn registry.Connector, raw []byte)

	// Disconnect tears down a closing connection: leaves every joined
	// room, unregisters presence, and fires the offline broadcast.
	Disconnect(conn registry.Connector)
}

// Interface guard
var _ Router = (*EventRouter)(nil)

// EventRouter validates, persists, and fans out every inbound event.
// Persist-then-broadcast is the invariant for chat, location, and
// job-status: a failed write must never produce a broadcast.
type EventRouter struct {
	logger     *slog.Logger
	hub        registry.Hubber
	gate       Authenticator
	bookings   BookingStore
	sink       MessageSink
	notifier   Notifier
	cache      HistoryCache
	dispatcher *Dispatcher

	maxMessageLen int
	evictPrior    bool
	replayDepth   int
}

type RouterParams struct {
	Logger     *slog.Logger
	Hub        registry.Hubber
	Gate       Authenticator
	Bookings   BookingStore
	Sink       MessageSink
	Notifier   Notifier
	Cache      HistoryCache
	Dispatcher *Dispatcher

	MaxMessageLen int
	EvictPrior    bool
	ReplayDepth   int
}

func NewEventRouter(p RouterParams) *EventRouter {
	return &EventRouter{
		logger:        p.Logger,
		hub:           p.Hub,
		gate:          p.Gate,
		bookings:      p.Bookings,
		sink:          p.Sink,
		notifier:      p.Notifier,
		cache:         p.Cache,
		dispatcher:    p.Dispatcher,
		maxMessageLen: p.MaxMessageLen,
		evictPrior:    p.EvictPrior,
		replayDepth:   p.ReplayDepth,
	}
}

func (r *EventRouter) HandleFrame(ctx context.Context, conn registry.Connector, raw []byte) {
	conn.Touch()

	ev, herr := model.DecodeInbound(raw)
	if herr != nil {
		r.replyError(conn, herr)
		return
	}
	if herr := r.route(ctx, conn, ev); herr != nil {
		r.replyError(conn, herr)
	}
}

// route dispatches on the closed inbound union. Adding a variant without a
// case here fails to handle it visibly in tests, not silently on the wire.
func (r *EventRouter) route(ctx context.Context, conn registry.Connector, ev model.InboundEvent) *model.HandlerError {
	switch e := ev.(type) {
	case *model.AuthenticateEvent:
		return r.onAuthenticate(ctx, conn, e)
	case *model.JoinRoomEvent:
		return r.onJoinRoom(ctx, conn, e)
	case *model.LeaveRoomEvent:
		return r.onLeaveRoom(conn, e)
	case *model.ChatMessageEvent:
		return r.onChatMessage(ctx, conn, e)
	case *model.LocationUpdateEvent:
		return r.onLocationUpdate(ctx, conn, e)
	case *model.JobStatusUpdateEvent:
		return r.onJobStatusUpdate(ctx, conn, e)
	case *model.TypingEvent:
		return r.onTyping(conn, e)
	case *model.JobOfferEvent:
		return r.onJobOffer(ctx, conn, e)
	case *model.JobAcceptEvent:
		return r.onJobAccept(ctx, conn, e)
	case *model.EmergencyAlertEvent:
		return r.onEmergencyAlert(conn, e)
	case *model.PingEvent:
		return r.onPing(conn)
	case *model.GetOnlineUsersEvent:
		return r.onGetOnlineUsers(conn)
	default:
		return model.NewHandlerError(model.ErrInvalidFormat, "unhandled event")
	}
}

// Disconnect removes the connection from every joined room (with user_left
// broadcasts), unregisters presence, and fires the offline status
// broadcast. Safe to call for unauthenticated connections.
func (r *EventRouter) Disconnect(conn registry.Connector) {
	for _, roomID := range conn.Rooms() {
		if r.hub.Rooms().Leave(conn, roomID) {
			r.broadcastRoomPresence(model.TypeUserLeft, conn, roomID)
		}
	}

	actor, authed := conn.Actor()
	if !authed {
		return
	}
	if r.hub.Presence().Unregister(actor.ID, conn.ID()) {
		r.broadcastStatus(actor, model.StatusOffline, conn.ID())
	}
}

// --- handlers ---

func (r *EventRouter) onAuthenticate(ctx context.Context, conn registry.Connector, ev *model.AuthenticateEvent) *model.HandlerError {
	actor, herr := r.gate.Authenticate(ctx, ev.Token, ev.Kind)
	if herr != nil {
		return herr
	}

	conn.SetActor(actor)
	displaced := r.hub.Presence().Register(conn)
	if displaced != nil {
		if r.evictPrior {
			r.logger.Info("evicting displaced session",
				slog.String("user_id", actor.ID),
				slog.String("conn_id", displaced.ID().String()),
			)
			displaced.Close()
		} else {
			r.logger.Warn("presence displaced, prior session lingers",
				slog.String("user_id", actor.ID),
				slog.String("conn_id", displaced.ID().String()),
			)
		}
	}

	r.reply(conn, &model.Authenticated{
		Type:      model.TypeAuthenticated,
		Timestamp: model.Epoch(),
		ActorID:   actor.ID,
		Kind:      actor.Kind,
		Name:      actor.DisplayName,
	})

	r.broadcastStatus(actor, model.StatusOnline, conn.ID())
	return nil
}

func (r *EventRouter) onJoinRoom(ctx context.Context, conn registry.Connector, ev *model.JoinRoomEvent) *model.HandlerError {
	actor, herr := r.requireAuth(conn)
	if herr != nil {
		return herr
	}
	if herr := r.checkRoomAccess(ctx, actor, ev.RoomID); herr != nil {
		return herr
	}

	history := r.hub.Rooms().Join(conn, ev.RoomID)
	if len(history) == 0 {
		// Cold start: the in-memory log is empty (fresh room or post
		// restart). The accelerator answers first; the sink query stays
		// authoritative when the accelerator is absent or cold.
		history = r.coldHistory(ctx, ev.RoomID)
		r.hub.Rooms().SeedHistory(ev.RoomID, history)
	}

	r.reply(conn, &model.MessageHistory{
		Type:      model.TypeMessageHistory,
		Timestamp: model.Epoch(),
		RoomID:    ev.RoomID,
		Messages:  history,
	})

	r.broadcastRoomPresence(model.TypeUserJoined, conn, ev.RoomID)
	return nil
}

func (r *EventRouter) onLeaveRoom(conn registry.Connector, ev *model.LeaveRoomEvent) *model.HandlerError {
	if _, herr := r.requireAuth(conn); herr != nil {
		return herr
	}
	// Idempotent: leaving twice, or a room never joined, is a silent no-op.
	if r.hub.Rooms().Leave(conn, ev.RoomID) {
		r.broadcastRoomPresence(model.TypeUserLeft, conn, ev.RoomID)
	}
	return nil
}

func (r *EventRouter) onChatMessage(ctx context.Context, conn registry.Connector, ev *model.ChatMessageEvent) *model.HandlerError {
	actor, herr := r.requireMembership(conn, ev.RoomID)
	if herr != nil {
		return herr
	}
	if len(ev.Message) > r.maxMessageLen {
		return model.NewHandlerError(model.ErrMessageTooLong, "message exceeds maximum length")
	}

	messageID, err := r.sink.SaveChatMessage(ctx, ev.RoomID, actor.ID, actor.Kind, ev.Message)
	if err != nil {
		r.logger.Error("chat persistence failed", slog.String("room_id", ev.RoomID), slog.Any("err", err))
		return model.Internal(err)
	}

	msg := &model.ChatBroadcast{
		Type:       model.TypeChatMessage,
		Timestamp:  model.Epoch(),
		MessageID:  messageID,
		RoomID:     ev.RoomID,
		SenderID:   actor.ID,
		SenderKind: actor.Kind,
		SenderName: actor.DisplayName,
		Message:    ev.Message,
	}
	r.hub.Rooms().BroadcastChat(ev.RoomID, msg, conn.ID())
	r.cache.Append(ctx, ev.RoomID, *msg, r.replayDepth)

	r.notifyOffline(ctx, ev.RoomID, actor.ID, msg)
	return nil
}

func (r *EventRouter) onLocationUpdate(ctx context.Context, conn registry.Connector, ev *model.LocationUpdateEvent) *model.HandlerError {
	actor, herr := r.requireMembership(conn, ev.RoomID)
	if herr != nil {
		return herr
	}
	if actor.Kind != model.KindProfessional {
		return model.NewHandlerError(model.ErrForbidden, "only professionals report location")
	}
	if ev.Latitude < -90 || ev.Latitude > 90 || ev.Longitude < -180 || ev.Longitude > 180 {
		return model.NewHandlerError(model.ErrInvalidCoordinates, "coordinates out of range")
	}

	if err := r.sink.SaveLocation(ctx, actor.ID, ev.RoomID, ev.Latitude, ev.Longitude, ev.Accuracy); err != nil {
		r.logger.Error("location persistence failed", slog.String("room_id", ev.RoomID), slog.Any("err", err))
		return model.Internal(err)
	}

	r.hub.Rooms().Broadcast(ev.RoomID, &model.LocationBroadcast{
		Type:           model.TypeLocationUpdate,
		Timestamp:      model.Epoch(),
		RoomID:         ev.RoomID,
		ProfessionalID: actor.ID,
		Name:           actor.DisplayName,
		Latitude:       ev.Latitude,
		Longitude:      ev.Longitude,
		Accuracy:       ev.Accuracy,
	}, conn.ID())
	return nil
}

func (r *EventRouter) onJobStatusUpdate(ctx context.Context, conn registry.Connector, ev *model.JobStatusUpdateEvent) *model.HandlerError {
	actor, herr := r.requireMembership(conn, ev.RoomID)
	if herr != nil {
		return herr
	}
	if !ev.Status.Valid() {
		return model.NewHandlerError(model.ErrInvalidStatus, "unknown job status")
	}

	if err := r.sink.UpdateJobStatus(ctx, ev.RoomID, ev.Status, ev.Notes, actor.ID); err != nil {
		r.logger.Error("status persistence failed", slog.String("room_id", ev.RoomID), slog.Any("err", err))
		return model.Internal(err)
	}

	// No exclusion: every participant, the updater included, sees the
	// transition.
	r.hub.Rooms().Broadcast(ev.RoomID, &model.JobStatusBroadcast{
		Type:          model.TypeJobStatusUpdate,
		Timestamp:     model.Epoch(),
		RoomID:        ev.RoomID,
		Status:        ev.Status,
		Notes:         ev.Notes,
		UpdatedBy:     actor.ID,
		UpdatedByName: actor.DisplayName,
	}, uuid.Nil)
	return nil
}

func (r *EventRouter) onTyping(conn registry.Connector, ev *model.TypingEvent) *model.HandlerError {
	actor, herr := r.requireMembership(conn, ev.RoomID)
	if herr != nil {
		return herr
	}
	// Ephemeral: no persistence, best-effort fan-out.
	r.hub.Rooms().Broadcast(ev.RoomID, &model.TypingBroadcast{
		Type:      model.TypeTyping,
		Timestamp: model.Epoch(),
		RoomID:    ev.RoomID,
		ActorID:   actor.ID,
		Name:      actor.DisplayName,
		IsTyping:  ev.IsTyping,
	}, conn.ID())
	return nil
}

func (r *EventRouter) onJobOffer(ctx context.Context, conn registry.Connector, ev *model.JobOfferEvent) *model.HandlerError {
	actor, herr := r.requireAuth(conn)
	if herr != nil {
		return herr
	}
	if actor.Kind != model.KindAdmin {
		return model.NewHandlerError(model.ErrForbidden, "only admins dispatch jobs")
	}
	return r.dispatcher.Offer(ctx, ev)
}

func (r *EventRouter) onJobAccept(ctx context.Context, conn registry.Connector, ev *model.JobAcceptEvent) *model.HandlerError {
	actor, herr := r.requireAuth(conn)
	if herr != nil {
		return herr
	}
	if actor.Kind != model.KindProfessional {
		return model.NewHandlerError(model.ErrForbidden, "only professionals accept jobs")
	}
	return r.dispatcher.Accept(ctx, conn, actor, ev.JobID)
}

func (r *EventRouter) onEmergencyAlert(conn registry.Connector, ev *model.EmergencyAlertEvent) *model.HandlerError {
	actor, herr := r.requireAuth(conn)
	if herr != nil {
		return herr
	}

	r.logger.Error("EMERGENCY ALERT",
		slog.String("user_id", actor.ID),
		slog.String("user_type", string(actor.Kind)),
		slog.String("room_id", ev.RoomID),
		slog.String("message", ev.Message),
	)

	r.hub.BroadcastKind(model.KindAdmin, &model.EmergencyBroadcast{
		Type:      model.TypeEmergencyAlert,
		Timestamp: model.Epoch(),
		RoomID:    ev.RoomID,
		ActorID:   actor.ID,
		Kind:      actor.Kind,
		Name:      actor.DisplayName,
		Message:   ev.Message,
	}, uuid.Nil)
	return nil
}

func (r *EventRouter) onPing(conn registry.Connector) *model.HandlerError {
	r.reply(conn, &model.Pong{Type: model.TypePong, Timestamp: model.Epoch()})
	return nil
}

func (r *EventRouter) onGetOnlineUsers(conn registry.Connector) *model.HandlerError {
	if _, herr := r.requireAuth(conn); herr != nil {
		return herr
	}
	r.reply(conn, &model.OnlineUsers{
		Type:      model.TypeOnlineUsers,
		Timestamp: model.Epoch(),
		Users:     r.hub.Presence().Snapshot(),
	})
	return nil
}

// --- helpers ---

func (r *EventRouter) requireAuth(conn registry.Connector) (model.Actor, *model.HandlerError) {
	actor, authed := conn.Actor()
	if !authed {
		return model.Actor{}, model.NewHandlerError(model.ErrAccessDenied, "authentication required")
	}
	return actor, nil
}

// requireMembership gates room-scoped events on a prior successful join,
// so the per-join ownership check cannot be bypassed.
func (r *EventRouter) requireMembership(conn registry.Connector, roomID string) (model.Actor, *model.HandlerError) {
	actor, herr := r.requireAuth(conn)
	if herr != nil {
		return model.Actor{}, herr
	}
	for _, joined := range conn.Rooms() {
		if joined == roomID {
			return actor, nil
		}
	}
	return model.Actor{}, model.NewHandlerError(model.ErrAccessDenied, "room not joined")
}

func (r *EventRouter) checkRoomAccess(ctx context.Context, actor model.Actor, roomID string) *model.HandlerError {
	if actor.Kind == model.KindAdmin {
		return nil
	}
	ok, err := r.bookings.IsParticipant(ctx, actor.ID, actor.Kind, roomID)
	if err != nil {
		r.logger.Error("ownership lookup failed", slog.String("room_id", roomID), slog.Any("err", err))
		return model.Internal(err)
	}
	if !ok {
		return model.NewHandlerError(model.ErrAccessDenied, "not a participant of this booking")
	}
	return nil
}

func (r *EventRouter) coldHistory(ctx context.Context, roomID string) []model.ChatBroadcast {
	if msgs, ok := r.cache.GetRecent(ctx, roomID, r.replayDepth); ok && len(msgs) > 0 {
		return msgs
	}

	stored, err := r.sink.GetRecentMessages(ctx, roomID, r.replayDepth)
	if err != nil {
		// History is best-effort on the cold path; the join itself must
		// not fail because the archive is unavailable.
		r.logger.Warn("cold history fetch failed", slog.String("room_id", roomID), slog.Any("err", err))
		return nil
	}
	msgs := make([]model.ChatBroadcast, 0, len(stored))
	for _, m := range stored {
		msgs = append(msgs, model.ChatBroadcast{
			Type:       model.TypeChatMessage,
			Timestamp:  m.CreatedAt,
			MessageID:  m.ID,
			RoomID:     m.RoomID,
			SenderID:   m.SenderID,
			SenderKind: m.SenderKind,
			SenderName: m.SenderName,
			Message:    m.Text,
		})
	}
	return msgs
}

// notifyOffline fans push notifications out to booking participants with no
// live connection. Fire-and-forget: failures are the notifier's problem.
func (r *EventRouter) notifyOffline(ctx context.Context, roomID, senderID string, msg *model.ChatBroadcast) {
	participants, err := r.bookings.Participants(ctx, roomID)
	if err != nil {
		r.logger.Warn("participant lookup failed", slog.String("room_id", roomID), slog.Any("err", err))
		return
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, p := range participants {
		if p.ActorID == senderID || r.hub.Presence().IsOnline(p.ActorID) {
			continue
		}
		p := p
		g.Go(func() error {
			r.notifier.PushOfflineNotification(gCtx, p.ActorID, msg)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *EventRouter) broadcastRoomPresence(eventType string, conn registry.Connector, roomID string) {
	actor, authed := conn.Actor()
	if !authed {
		return
	}
	r.hub.Rooms().Broadcast(roomID, &model.RoomPresence{
		Type:      eventType,
		Timestamp: model.Epoch(),
		RoomID:    roomID,
		ActorID:   actor.ID,
		Kind:      actor.Kind,
		Name:      actor.DisplayName,
	}, conn.ID())
}

// broadcastStatus is global by design: admins watch presence across every
// booking, not just rooms they joined.
func (r *EventRouter) broadcastStatus(actor model.Actor, status string, exclude uuid.UUID) {
	r.hub.BroadcastGlobal(&model.UserStatus{
		Type:      model.TypeUserStatus,
		Timestamp: model.Epoch(),
		ActorID:   actor.ID,
		Kind:      actor.Kind,
		Status:    status,
	}, exclude)
}

func (r *EventRouter) reply(conn registry.Connector, event any) {
	frame, err := model.Encode(event)
	if err != nil {
		r.logger.Error("reply encode failed", slog.Any("err", err))
		return
	}
	conn.Send(frame, sendTimeout)
}

func (r *EventRouter) replyError(conn registry.Connector, herr *model.HandlerError) {
	r.reply(conn, model.NewErrorEvent(herr))
}

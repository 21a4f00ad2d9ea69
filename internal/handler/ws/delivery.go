// Package ws is the WebSocket transport: it upgrades HTTP requests,
// owns the per-connection read and write pumps, and guarantees teardown
// runs exactly once per session regardless of how the session ends.
package ws

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/websocket"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
	"github.com/homespark/rt-coordination-service/internal/domain/registry"
	"github.com/homespark/rt-coordination-service/internal/service"
)

type WSHandler struct {
	logger   *slog.Logger
	hub      registry.Hubber
	router   service.Router
	upgrader websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, hub registry.Hubber, router service.Router) *WSHandler {
	return &WSHandler{
		logger: logger,
		hub:    hub,
		router: router,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Security: adjust for production
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}

	conn := h.hub.NewConnection(r.Context())
	pumpDone := make(chan struct{})

	// Teardown order: router first (presence and room broadcasts), then
	// stop the write pump, then hand the connection back to the hub. Drop
	// recycles the struct, so the pump must be gone before it runs.
	defer func() {
		h.router.Disconnect(conn)
		conn.Close()
		<-pumpDone
		h.hub.Drop(conn)
		ws.Close()
	}()

	h.logger.Info("ws opened", "conn_id", conn.ID())

	hello := model.ConnectionEstablished{
		Type:       model.TypeConnectionEstablished,
		ResourceID: conn.ID().String(),
		Timestamp:  model.Epoch(),
	}
	if frame, err := model.Encode(hello); err == nil {
		ws.WriteMessage(websocket.TextMessage, frame)
	}

	go func() {
		defer close(pumpDone)
		h.writePump(ws, conn)
	}()

	// Read pump. Frames from one connection are handled sequentially, so
	// per-client ordering holds end to end.
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("ws read failed", "conn_id", conn.ID(), "error", err)
			}
			return
		}
		h.handleFrame(conn, raw)
	}
}

// handleFrame isolates a panic in one frame to that frame: the session
// survives and later frames still run.
func (h *WSHandler) handleFrame(conn registry.Connector, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic while handling frame",
				"conn_id", conn.ID(),
				"panic", rec,
				"stack", string(debug.Stack()))
		}
	}()
	h.router.HandleFrame(conn.Context(), conn, raw)
}

// writePump drains the connection mailbox onto the socket. It exits when
// the session context is cancelled; the mailbox channel itself is never
// closed.
func (h *WSHandler) writePump(ws *websocket.Conn, conn registry.Connector) {
	for {
		select {
		case <-conn.Context().Done():
			ws.Close()
			return
		case frame := <-conn.Recv():
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Warn("ws send failed", "conn_id", conn.ID(), "error", err)
				conn.Close()
				return
			}
		}
	}
}

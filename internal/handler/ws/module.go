package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"

	"github.com/homespark/rt-coordination-service/config"
	"github.com/homespark/rt-coordination-service/internal/domain/registry"
)

var Module = fx.Module("transport-ws",
	fx.Provide(
		NewWSHandler,
		NewMux,
	),
	fx.Invoke(StartServer),
)

// NewMux wires the HTTP surface: the WebSocket endpoint plus a health
// probe exposing live hub counters.
func NewMux(handler *WSHandler, hub registry.Hubber) *chi.Mux {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)

	mux.Handle("/ws", handler)
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(hub.Stats())
	})
	return mux
}

func StartServer(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, mux *chi.Mux) {
	server := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: mux,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("http server listening", slog.String("addr", cfg.Server.Listen))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server failed", slog.Any("err", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			return server.Shutdown(ctx)
		},
	})
}

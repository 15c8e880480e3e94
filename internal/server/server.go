// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	orchestration "github.com/koscakluka/ema-speaker/core"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const scopeName = "github.com/koscakluka/ema-speaker/internal/server"

var logger = otelslog.NewLogger(scopeName)

// Speaker is the part of the orchestrator the HTTP surface drives.
type Speaker interface {
	Submit(text string) orchestration.Ack
	Interrupt() orchestration.InterruptResult
	ResetQueue() int
	Status() orchestration.Status
}

type Config struct {
	// APIKey has to be sent as X-API-Key or a bearer token, empty disables
	// auth
	APIKey         string
	AllowedOrigins []string
}

func NewRouter(speaker Speaker, cfg Config) *chi.Mux {
	h := &handler{speaker: speaker}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)

	r.Group(func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(APIKeyAuth(cfg.APIKey))
		}

		r.Post("/submit", h.Submit)
		r.Post("/queue/clean", h.CleanQueue)
		r.Post("/interrupt", h.Interrupt)
		r.Get("/status", h.Status)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled and then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(handler, "ema-speaker"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("speaker service listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// Package api serves the ledger emulator's HTTP endpoints.
package api

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shunichi-ikebuchi/settlement-books/internal/emulator/store"
)

// NewRouter wires the token endpoint, the authenticated journal API and a
// health check. A nil logger discards.
func NewRouter(s *store.Store, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tokens := NewTokenHandler(s)
	journals := NewJournalsHandler(s, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/oauth/token", tokens.Issue)

	r.Route("/api/1", func(r chi.Router) {
		r.Use(AuthMiddleware(s))
		r.Route("/journals", func(r chi.Router) {
			r.Get("/", journals.List)
			r.Post("/", journals.Create)
			r.Get("/{id}", journals.Get)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

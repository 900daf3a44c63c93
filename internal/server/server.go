// Package server exposes the document pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Praneeth-2602/brsr-backend/internal/auth"
	"github.com/Praneeth-2602/brsr-backend/internal/models"
	"github.com/Praneeth-2602/brsr-backend/internal/services"
)

// Submitter accepts a batch of uploaded files for one owner.
type Submitter interface {
	Submit(ctx context.Context, ownerID string, files []services.UploadFile) (*models.SubmitResult, error)
}

// Exporter builds an XLSX workbook for a list of document ids.
type Exporter interface {
	BuildWorkbook(ctx context.Context, ownerID string, ids []string) ([]byte, error)
}

// Server holds the handler dependencies. Everything is injected so tests can
// drive the API with fakes.
type Server struct {
	ingestion Submitter
	store     services.DocumentStore
	exporter  Exporter
	verifier  auth.Verifier

	uploadLimit int64
}

// NewServer wires the HTTP layer to the pipeline services.
func NewServer(ingestion Submitter, store services.DocumentStore, exporter Exporter, verifier auth.Verifier) *Server {
	return &Server{
		ingestion:   ingestion,
		store:       store,
		exporter:    exporter,
		verifier:    verifier,
		uploadLimit: 256 << 20,
	}
}

// Router builds the route tree. Everything under /documents requires a
// bearer token; health stays open for probes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(120 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/documents", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/upload", s.handleUpload)
		r.Get("/", s.handleList)
		r.Get("/{documentID}", s.handleGet)
		r.Post("/status", s.handleStatus)
		r.Post("/excel", s.handleExcel)
	})

	return r
}

// requireAuth validates the bearer token and stores the principal on the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			respondError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}
		principal, err := s.verifier.Verify(r.Context(), parts[1])
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response body", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

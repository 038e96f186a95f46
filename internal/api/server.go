package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/persist"
	"github.com/ajitpratap0/casegraph/internal/pipeline"
	"github.com/ajitpratap0/casegraph/internal/review"
	"github.com/ajitpratap0/casegraph/internal/store"
)

// maxDocumentBody bounds an ingest request.
const maxDocumentBody = 16 << 20

// Server is an HTTP API server that exposes case graph ingestion and reads.
type Server struct {
	store     store.GraphStore
	pipeline  *pipeline.Pipeline
	reviewer  *review.Manager
	logger    *slog.Logger
	authToken string // empty = no auth required
}

// NewServer creates a new Server with the given dependencies.
func NewServer(st store.GraphStore, p *pipeline.Pipeline, rev *review.Manager, logger *slog.Logger, authToken string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     st,
		pipeline:  p,
		reviewer:  rev,
		logger:    logger,
		authToken: authToken,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /v1/cases/{case}/documents", s.auth(s.handleIngest))
	mux.HandleFunc("GET /v1/cases/{case}/entities", s.auth(s.handleEntities))
	mux.HandleFunc("GET /v1/cases/{case}/entities/{id}", s.auth(s.handleGetEntity))
	mux.HandleFunc("GET /v1/cases/{case}/events", s.auth(s.handleEvents))
	mux.HandleFunc("GET /v1/cases/{case}/connections", s.auth(s.handleConnections))
	mux.HandleFunc("GET /v1/cases/{case}/alibis", s.auth(s.handleAlibis))
	mux.HandleFunc("GET /v1/cases/{case}/inconsistencies", s.auth(s.handleInconsistencies))
	mux.HandleFunc("GET /v1/cases/{case}/review", s.auth(s.handleReview))
	mux.HandleFunc("GET /v1/cases/{case}/stats", s.auth(s.handleStats))

	return mux
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ingestRequest is the body accepted by POST /v1/cases/{case}/documents.
type ingestRequest struct {
	Documents []models.Document `json:"documents"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("case")
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBody)
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		s.writeError(w, http.StatusBadRequest, "documents are required")
		return
	}
	for i := range req.Documents {
		if strings.TrimSpace(req.Documents[i].RawText) == "" {
			s.writeError(w, http.StatusBadRequest, "raw_text is required for every document")
			return
		}
		if t := req.Documents[i].DocumentType; t != "" && !t.IsValid() {
			s.writeError(w, http.StatusBadRequest, "invalid document type")
			return
		}
	}

	report, err := s.pipeline.Run(r.Context(), caseID, req.Documents)
	if err != nil {
		s.logger.Error("ingest failed", "case_id", caseID, "error", err)
		status := http.StatusInternalServerError
		var we *persist.WriteError
		if errors.As(err, &we) || errors.Is(err, store.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, "failed to ingest documents")
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// entitiesResponse is returned by GET /v1/cases/{case}/entities.
type entitiesResponse struct {
	Entities []models.Entity `json:"entities"`
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("case")
	q := r.URL.Query()

	entityType := models.EntityType(q.Get("type"))
	if entityType != "" && !entityType.IsValid() {
		s.writeError(w, http.StatusBadRequest, "invalid entity type")
		return
	}

	var (
		entities []models.Entity
		err      error
	)
	if query := q.Get("q"); query != "" {
		limit := 20
		if v := q.Get("limit"); v != "" {
			n, convErr := strconv.Atoi(v)
			if convErr != nil || n <= 0 {
				s.writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}
		entities, err = s.store.SearchEntities(r.Context(), caseID, query, limit)
	} else {
		entities, err = s.store.ListEntities(r.Context(), caseID, entityType)
	}
	if err != nil {
		s.logger.Error("failed to list entities", "case_id", caseID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list entities")
		return
	}
	if entities == nil {
		entities = []models.Entity{}
	}
	s.writeJSON(w, http.StatusOK, entitiesResponse{Entities: entities})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	caseID, id := r.PathValue("case"), r.PathValue("id")
	e, err := s.store.GetEntity(r.Context(), caseID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "entity not found")
			return
		}
		s.logger.Error("failed to get entity", "case_id", caseID, "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get entity")
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("case")
	events, err := s.store.ListTimelineEvents(r.Context(), caseID)
	if err != nil {
		s.logger.Error("failed to list events", "case_id", caseID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []models.TimelineEvent{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("case")
	conns, err := s.store.ListConnections(r.Context(), caseID)
	if err != nil {
		s.logger.Error("failed to list connections", "case_id", caseID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list connections")
		return
	}
	if conns == nil {
		conns = []models.Connection{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"connections": conns})
}

func (s *Server) handleAlibis(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("case")
	alibis, err := s.store.ListAlibis(r.Context(), caseID)
	if err != nil {
		s.logger.Error("failed to list alibis", "case_id", caseID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list alibis")
		return
	}
	if alibis == nil {
		alibis = []models.AlibiStatement{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"alibis": alibis})
}

func (s *Server) handleInconsistencies(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.runReview(w, r)
	if !ok {
		return
	}
	incs := rep.Inconsistencies
	if incs == nil {
		incs = []models.Inconsistency{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"inconsistencies": incs})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.runReview(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) runReview(w http.ResponseWriter, r *http.Request) (*review.Report, bool) {
	caseID := r.PathValue("case")
	rep, err := s.reviewer.Run(r.Context(), caseID)
	if err != nil {
		s.logger.Error("failed to build review", "case_id", caseID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to build review")
		return nil, false
	}
	return rep, true
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("case")
	stats, err := s.store.Stats(r.Context(), caseID)
	if err != nil {
		s.logger.Error("failed to get stats", "case_id", caseID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// --- helpers ---

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Package httpadapter is the read-only admin surface: health, metrics and
// protocol state for operators and scrapers.
package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sileme/sileme-backend/internal/domain"
	"github.com/sileme/sileme-backend/internal/usecase/will"
)

// StateReader is the part of the will machine the admin surface reads
type StateReader interface {
	Snapshot() will.Snapshot
	History(ctx context.Context) ([]domain.TransferRecord, error)
	Events(ctx context.Context) ([]domain.Event, error)
}

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// Handler serves the admin endpoints
type Handler struct {
	state    StateReader
	registry prometheus.Gatherer
	checks   map[string]HealthCheck
	logger   *slog.Logger
}

// NewHandler creates the admin handler. checks may be nil.
func NewHandler(state StateReader, registry prometheus.Gatherer, checks map[string]HealthCheck, logger *slog.Logger) *Handler {
	return &Handler{
		state:    state,
		registry: registry,
		checks:   checks,
		logger:   logger,
	}
}

// Router wires the admin endpoints
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	r.Get("/status", h.handleStatus)
	r.Get("/history", h.handleHistory)
	r.Get("/events", h.handleEvents)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": results})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStatusView(h.state.Snapshot()))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.state.History(r.Context())
	if err != nil {
		h.writeError(w, r, "list history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": newRecordViews(records)})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.state.Events(r.Context())
	if err != nil {
		h.writeError(w, r, "list events", err)
		return
	}
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{
			ID:        e.ID.String(),
			Kind:      e.Kind.String(),
			Timestamp: e.Timestamp,
			Details:   e.Details,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": views})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "admin request failed",
		"op", op,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": op + " failed"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

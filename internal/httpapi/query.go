package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/agentworld/alba/go/orchestrator/internal/db"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// QueryStore is the read slice of the datastore. *db.Client satisfies it.
type QueryStore interface {
	RecentLeads(ctx context.Context, limit int) ([]db.Lead, error)
	ListLeadsByStatus(ctx context.Context, status string, limit int) ([]db.Lead, error)
	RecentRuns(ctx context.Context, limit int) ([]db.Run, error)
}

// QueryHandler serves the newest-first lead and run listings.
type QueryHandler struct {
	store  QueryStore
	logger *zap.Logger
}

func NewQueryHandler(store QueryStore, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{store: store, logger: logger}
}

// RegisterRoutes registers the read routes on the provided mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/leads", h.handleLeads)
	mux.HandleFunc("/api/runs", h.handleRuns)
}

// handleLeads: GET /api/leads?limit=&status=
func (h *QueryHandler) handleLeads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	status := r.URL.Query().Get("status")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var (
		leads []db.Lead
		err   error
	)
	if status != "" {
		leads, err = h.store.ListLeadsByStatus(ctx, status, limit)
	} else {
		leads, err = h.store.RecentLeads(ctx, limit)
	}
	if err != nil {
		h.logger.Error("failed to list leads", zap.Error(err))
		http.Error(w, `{"error":"failed to list leads"}`, http.StatusInternalServerError)
		return
	}
	if leads == nil {
		leads = []db.Lead{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"leads": leads,
		"count": len(leads),
	})
}

// handleRuns: GET /api/runs?limit=
func (h *QueryHandler) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	runs, err := h.store.RecentRuns(ctx, limit)
	if err != nil {
		h.logger.Error("failed to list runs", zap.Error(err))
		http.Error(w, `{"error":"failed to list runs"}`, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

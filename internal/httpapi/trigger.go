// Package httpapi exposes the scheduler trigger and the read endpoints
// over plain HTTP. Handlers register themselves on a caller-owned mux.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentworld/alba/go/orchestrator/internal/db"
	"github.com/agentworld/alba/go/orchestrator/internal/workflows"
)

// Sweeper runs a named workflow across a client fleet.
// *workflows.Orchestrator satisfies it.
type Sweeper interface {
	Sweep(ctx context.Context, name string, clients []workflows.Client) (*workflows.SweepResult, error)
}

// ClientLister loads the client fleet. *db.Client satisfies it.
type ClientLister interface {
	ListClients(ctx context.Context) ([]db.ClientRecord, error)
}

// TriggerHandler runs the daily sweep when the external scheduler calls in.
type TriggerHandler struct {
	sweeper  Sweeper
	clients  ClientLister
	workflow string
	secret   string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewTriggerHandler(sweeper Sweeper, clients ClientLister, workflow, secret string, logger *zap.Logger) *TriggerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TriggerHandler{
		sweeper:  sweeper,
		clients:  clients,
		workflow: workflow,
		secret:   secret,
		timeout:  10 * time.Minute,
		logger:   logger,
	}
}

// RegisterRoutes registers the trigger route on the provided mux.
func (h *TriggerHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/cron/daily", h.handleTrigger)
}

// handleTrigger: GET /api/cron/daily with Authorization: Bearer <secret>.
// Schedulers retry on non-2xx, so a sweep with failed clients still
// returns 200; per-client outcomes are in the body.
func (h *TriggerHandler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	if h.secret != "" {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != h.secret {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	records, err := h.clients.ListClients(ctx)
	if err != nil {
		h.logger.Error("failed to load clients for sweep", zap.Error(err))
		http.Error(w, `{"error":"failed to load clients"}`, http.StatusInternalServerError)
		return
	}

	fleet := make([]workflows.Client, len(records))
	for i, rec := range records {
		fleet[i] = workflows.Client{ID: rec.ID, Name: rec.Name}
	}

	sweep, err := h.sweeper.Sweep(ctx, h.workflow, fleet)
	if err != nil {
		h.logger.Error("sweep failed", zap.String("workflow", h.workflow), zap.Error(err))
		http.Error(w, `{"error":"sweep failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sweep)
}

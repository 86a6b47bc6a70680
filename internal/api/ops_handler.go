package api

import (
	"context"
	"net/http"
	"time"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/api/shared"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/scheduler"
)

// EngineStatus is the body of GET /status.
type EngineStatus struct {
	BusDriver     string           `json:"bus_driver"`
	LedgerDriver  string           `json:"ledger_driver"`
	LeaseDriver   string           `json:"lease_driver"`
	LeaseHeld     bool             `json:"lease_held"`
	Channels      []string         `json:"channels"`
	Scheduler     scheduler.Status `json:"scheduler"`
	OutboxPending int64            `json:"outbox_pending"`
}

// ReadinessFunc returns nil when every dependency the engine needs is reachable.
type ReadinessFunc func(ctx context.Context) error

// StatusFunc builds the current EngineStatus.
type StatusFunc func(ctx context.Context) (*EngineStatus, error)

// OpsHandler serves the operational endpoints.
type OpsHandler struct {
	ready        ReadinessFunc
	status       StatusFunc
	probeTimeout time.Duration
}

// NewOpsHandler creates an OpsHandler.
func NewOpsHandler(ready ReadinessFunc, status StatusFunc) *OpsHandler {
	return &OpsHandler{ready: ready, status: status, probeTimeout: 3 * time.Second}
}

// Health reports that the process is alive.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the engine can serve traffic.
func (h *OpsHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.probeTimeout)
	defer cancel()

	if err := h.ready(ctx); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "not ready", err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// Status returns the engine status snapshot.
func (h *OpsHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.probeTimeout)
	defer cancel()

	st, err := h.status(ctx)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "status unavailable", err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, st)
}

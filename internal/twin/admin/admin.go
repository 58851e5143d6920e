// Package admin provides the /admin/* control plane of the story twin:
// state management, fault injection, request inspection, the simulated
// clock, runtime config and metrics.
package admin

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storyspoiler/storycheck/internal/twin/store"
	"github.com/storyspoiler/storycheck/internal/twin/twincore"
)

// StateStore is implemented by a twin's state to support reset and
// snapshot/restore.
type StateStore interface {
	// Snapshot returns the full state as a JSON-serializable value.
	Snapshot() any
	// LoadState replaces the full state from a JSON body.
	LoadState(data []byte) error
	// Reset clears all state and reloads seed data.
	Reset()
}

// ConfigProvider exposes the twin's runtime configuration.
type ConfigProvider interface {
	GetConfig() map[string]any
	UpdateConfig(updates map[string]any) error
}

// Handler serves the admin endpoints.
type Handler struct {
	state   StateStore
	mw      *twincore.Middleware
	clock   *store.Clock
	config  ConfigProvider
	metrics http.Handler
}

// NewHandler creates an admin handler. clock may be nil.
func NewHandler(state StateStore, mw *twincore.Middleware, clock *store.Clock) *Handler {
	return &Handler{
		state: state,
		mw:    mw,
		clock: clock,
	}
}

// SetConfigProvider enables GET/PATCH /admin/config.
func (h *Handler) SetConfigProvider(p ConfigProvider) {
	h.config = p
}

// SetMetrics enables GET /admin/metrics.
func (h *Handler) SetMetrics(m http.Handler) {
	h.metrics = m
}

// Routes mounts the admin endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/reset", h.handleReset)
		r.Get("/state", h.handleGetState)
		r.Post("/state", h.handleLoadState)
		r.Post("/fault/*", h.handleInjectFault)
		r.Delete("/fault/*", h.handleRemoveFault)
		r.Get("/faults", h.handleListFaults)
		r.Get("/requests", h.handleGetRequests)
		r.Post("/time/advance", h.handleTimeAdvance)
		r.Get("/time", h.handleGetTime)
		r.Get("/config", h.handleGetConfig)
		r.Patch("/config", h.handleUpdateConfig)
		r.Get("/metrics", h.handleMetrics)
		r.Get("/health", h.handleHealth)
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.state.Reset()
	h.mw.ReqLog.Clear()
	h.mw.Faults.Reset()
	if h.clock != nil {
		h.clock.Reset()
	}
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) handleLoadState(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}
	if err := h.state.LoadState(body); err != nil {
		twincore.Error(w, http.StatusBadRequest, "failed to load state: "+err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

func faultEndpoint(r *http.Request) string {
	return "/" + strings.Trim(chi.URLParam(r, "*"), "/")
}

func (h *Handler) handleInjectFault(w http.ResponseWriter, r *http.Request) {
	endpoint := faultEndpoint(r)
	if endpoint == "/" {
		twincore.Error(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	var fault twincore.FaultConfig
	if err := json.NewDecoder(r.Body).Decode(&fault); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid fault config: "+err.Error())
		return
	}
	if fault.Rate < 0 || fault.Rate > 1 {
		twincore.Error(w, http.StatusBadRequest, "rate must be between 0.0 and 1.0")
		return
	}
	h.mw.Faults.Set(endpoint, fault)
	twincore.JSON(w, http.StatusOK, map[string]any{
		"status":   "injected",
		"endpoint": endpoint,
		"fault":    h.mw.Faults.All()[endpoint],
	})
}

func (h *Handler) handleRemoveFault(w http.ResponseWriter, r *http.Request) {
	endpoint := faultEndpoint(r)
	if h.mw.Faults.Remove(endpoint) {
		twincore.JSON(w, http.StatusOK, map[string]any{"status": "removed", "endpoint": endpoint})
		return
	}
	twincore.Error(w, http.StatusNotFound, "no fault registered for "+endpoint)
}

func (h *Handler) handleListFaults(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.mw.Faults.All())
}

func (h *Handler) handleGetRequests(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, h.mw.ReqLog.Entries())
}

func (h *Handler) handleTimeAdvance(w http.ResponseWriter, r *http.Request) {
	if h.clock == nil {
		twincore.Error(w, http.StatusBadRequest, "simulated clock not configured")
		return
	}

	var req struct {
		Duration string `json:"duration"` // e.g. "24h", "30m"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid duration: "+err.Error())
		return
	}

	h.clock.Advance(d)
	twincore.JSON(w, http.StatusOK, map[string]any{
		"status":    "advanced",
		"duration":  d.String(),
		"offset":    h.clock.Offset().String(),
		"simulated": h.clock.Now().Format(time.RFC3339),
	})
}

func (h *Handler) handleGetTime(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"real": time.Now().Format(time.RFC3339)}
	if h.clock != nil {
		resp["simulated"] = h.clock.Now().Format(time.RFC3339)
		resp["offset"] = h.clock.Offset().String()
	}
	twincore.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		twincore.Error(w, http.StatusNotFound, "runtime config not available")
		return
	}
	twincore.JSON(w, http.StatusOK, h.config.GetConfig())
}

func (h *Handler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		twincore.Error(w, http.StatusNotFound, "runtime config not available")
		return
	}
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid config: "+err.Error())
		return
	}
	if err := h.config.UpdateConfig(updates); err != nil {
		twincore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, h.config.GetConfig())
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		twincore.Error(w, http.StatusNotFound, "metrics not enabled")
		return
	}
	h.metrics.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

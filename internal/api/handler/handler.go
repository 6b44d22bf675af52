// Package handler provides HTTP handlers for the inbound API surface:
// change-capture hooks, subscription registration, and health checks.
package handler

import (
	"net/http"
	"time"

	"github.com/scorepredictor/live-data/internal/api/respond"
	"github.com/scorepredictor/live-data/internal/config"
	"github.com/scorepredictor/live-data/internal/db"
	"github.com/scorepredictor/live-data/internal/notify"
	"github.com/scorepredictor/live-data/internal/push"
	"github.com/scorepredictor/live-data/internal/score"
	"github.com/scorepredictor/live-data/internal/subscription"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool       *db.Pool
	cfg        *config.Config
	scores     *score.Store
	pipeline   *notify.Pipeline
	dispatcher *notify.Dispatcher
	subs       *subscription.Store
	transport  *push.Client
}

// New creates a Handler with shared dependencies.
func New(pool *db.Pool, cfg *config.Config, scores *score.Store, pipeline *notify.Pipeline, dispatcher *notify.Dispatcher, subs *subscription.Store, transport *push.Client) *Handler {
	return &Handler{
		pool:       pool,
		cfg:        cfg,
		scores:     scores,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		subs:       subs,
		transport:  transport,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Predictor Live API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

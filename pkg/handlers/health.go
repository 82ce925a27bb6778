// Package handlers exposes the HTTP surface of the engine: health
// probes, the query and resume endpoints that drive the workflow, and
// the schema rebuild endpoint.
package handlers

import (
	"net/http"
	"runtime"

	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/config"
)

// PingResponse reports service identity and build information.
type PingResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	GoVersion   string `json:"go_version"`
	Environment string `json:"environment"`
}

// HealthHandler serves the liveness and identity probes.
type HealthHandler struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewHealthHandler(cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, logger: logger}
}

// RegisterRoutes registers the health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health answers liveness probes with a bare 200.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping returns service identity for debugging deployed instances.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	resp := PingResponse{
		Status:      "ok",
		Service:     "sqlpilot-engine",
		Version:     h.cfg.Version,
		GoVersion:   runtime.Version(),
		Environment: h.cfg.Env,
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("failed to encode ping response", zap.Error(err))
	}
}

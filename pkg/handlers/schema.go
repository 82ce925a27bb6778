package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// RebuildFunc refreshes the owned schema caches (graph, summary,
// column index) and reports how many columns were indexed.
type RebuildFunc func(ctx context.Context) (int, error)

// SchemaHandler exposes explicit cache invalidation for schema changes.
type SchemaHandler struct {
	rebuild RebuildFunc
	logger  *zap.Logger
}

func NewSchemaHandler(rebuild RebuildFunc, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{rebuild: rebuild, logger: logger.Named("schema_handler")}
}

// RegisterRoutes registers the schema endpoints on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/schema/rebuild", h.Rebuild)
}

// Rebuild handles POST /api/schema/rebuild.
func (h *SchemaHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	columns, err := h.rebuild(r.Context())
	if err != nil {
		h.logger.Error("schema rebuild failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "rebuild_failed", "failed to rebuild schema caches")
		return
	}
	h.logger.Info("schema caches rebuilt", zap.Int("columns", columns))
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"columns": columns,
	}); err != nil {
		h.logger.Error("failed to encode rebuild response", zap.Error(err))
	}
}

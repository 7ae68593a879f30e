package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/lumen/pkg/http"
)

// Pinger is anything whose reachability the health check reports on
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Limiter  string `json:"limiter,omitempty"`
}

type HealthHandler struct {
	db      Pinger
	limiter Pinger // nil for the in-memory limiter
	logger  *slog.Logger
}

func NewHealthHandler(db, limiter Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, limiter: limiter, logger: logger}
}

// Health reports 200 when every dependency answers within two seconds
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Database: "up"}
	status := http.StatusOK

	if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", slog.Any("error", err))
		resp.Status, resp.Database = "unhealthy", "down"
		status = http.StatusServiceUnavailable
	}

	if h.limiter != nil {
		resp.Limiter = "up"
		if err := h.limiter.HealthCheck(ctx); err != nil {
			h.logger.Warn("rate limiter health check failed", slog.Any("error", err))
			resp.Status, resp.Limiter = "unhealthy", "down"
			status = http.StatusServiceUnavailable
		}
	}

	pkghttp.WriteJSON(w, status, resp)
}

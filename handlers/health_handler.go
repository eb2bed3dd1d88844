package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/fleetops/api-gateway/utils"
	"go.uber.org/zap"
	"google.golang.org/grpc/connectivity"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ConnectionStater reports the state of the identity service connection
type ConnectionStater interface {
	State() connectivity.State
}

// HealthChecker checks a backing store
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	identity ConnectionStater
	db       HealthChecker // nil when no database is configured
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(identity ConnectionStater, db HealthChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		identity: identity,
		db:       db,
		logger:   logger,
	}
}

// HandleHealth handles GET /health and GET /healthz
// Liveness only; always 200 while the process serves requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.identity != nil {
		state := h.identity.State()
		switch state {
		case connectivity.Ready, connectivity.Idle:
			// idle connections reconnect on the next call
			checks["identity_service"] = "healthy"
		default:
			h.logger.Warn("identity service not ready", zap.String("state", state.String()))
			checks["identity_service"] = "unhealthy"
			allHealthy = false
		}
	}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			h.logger.Warn("database health check failed", zap.Error(err))
			checks["database"] = "unhealthy"
			allHealthy = false
		} else {
			checks["database"] = "healthy"
		}
	}

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	if !allHealthy {
		response.Status = "unavailable"
		_ = utils.WriteServiceUnavailable(w, response)
		return
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

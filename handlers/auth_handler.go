package handlers

import (
	"net/http"
	"time"

	"github.com/fleetops/api-gateway/middleware"
	"github.com/fleetops/api-gateway/models"
	"github.com/fleetops/api-gateway/repositories"
	"github.com/fleetops/api-gateway/utils"
	"go.uber.org/zap"
)

const (
	defaultSummaryWindow = 24 * time.Hour
	maxSummaryWindow     = 30 * 24 * time.Hour
)

// SecureResponse is the body of GET /secure
type SecureResponse struct {
	User *models.UserContext `json:"user"`
}

// EventSummaryResponse is the body of GET /auth/events/summary
type EventSummaryResponse struct {
	Since  time.Time                    `json:"since"`
	Counts map[models.AuthOutcome]int64 `json:"counts"`
}

// AuthHandler serves the authenticated endpoints
type AuthHandler struct {
	events repositories.AuthEventRepository // nil when no database is configured
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(events repositories.AuthEventRepository, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// HandleMe handles GET /auth/me and returns the attached user context
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserContextFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "")
		return
	}
	_ = utils.WriteOK(w, user)
}

// HandleSecure handles GET /secure
func (h *AuthHandler) HandleSecure(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserContextFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "")
		return
	}
	_ = utils.WriteOK(w, SecureResponse{User: user})
}

// HandleEventSummary handles GET /auth/events/summary?window=24h.
// It counts recorded authentication outcomes in the window.
func (h *AuthHandler) HandleEventSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	if h.events == nil {
		_ = utils.WriteServiceUnavailable(w, utils.ErrorResponse{
			Error:   utils.CodeUnavailable,
			Message: "Audit trail is not configured",
		})
		return
	}

	window := defaultSummaryWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 || parsed > maxSummaryWindow {
			_ = utils.WriteError(w, http.StatusBadRequest, utils.CodeBadRequest,
				"window must be a positive duration up to 720h", "")
			return
		}
		window = parsed
	}

	since := h.now().UTC().Add(-window)
	counts, err := h.events.CountByOutcome(ctx, since)
	if err != nil {
		h.logger.Error("failed to count auth events",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, EventSummaryResponse{
		Since:  since,
		Counts: counts,
	})
}

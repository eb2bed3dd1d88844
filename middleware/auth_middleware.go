package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/fleetops/api-gateway/models"
	"github.com/fleetops/api-gateway/observability"
	"github.com/fleetops/api-gateway/services"
	"github.com/fleetops/api-gateway/services/audit"
	"github.com/fleetops/api-gateway/utils"
	"go.uber.org/zap"
)

const bearerScheme = "Bearer"

// Authenticator turns a raw bearer token into an enriched user context
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*models.UserContext, error)
}

// AuthMiddleware guards routes with bearer-token authentication
type AuthMiddleware struct {
	authenticator Authenticator
	recorder      audit.Recorder
	metrics       *observability.AuthMetrics
	logger        *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. recorder and metrics may be nil.
func NewAuthMiddleware(authenticator Authenticator, recorder audit.Recorder, metrics *observability.AuthMetrics, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		recorder:      recorder,
		metrics:       metrics,
		logger:        logger,
	}
}

// RequireAuth rejects the request with 401 unless it carries a bearer token
// that verifies and enriches. On success the user context is attached to a
// fresh request context and next is called once.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := extractBearerToken(r)
		if !ok {
			// the pipeline is not consulted, so the outcome is counted here
			m.metrics.RecordOutcome(string(models.AuthOutcomeMissingCredentials))
			m.reject(w, r, services.ErrMissingCredentials)
			return
		}

		user, err := m.authenticator.Authenticate(ctx, token)
		if err != nil {
			m.reject(w, r, err)
			return
		}

		m.record(models.NewAuthEvent(models.AuthOutcomeSuccess, GetRequestIDFromContext(ctx), r.URL.Path, remoteIP(r)).
			WithUser(user))

		next.ServeHTTP(w, r.WithContext(WithUserContext(ctx, user)))
	})
}

// RequireRole allows the request only when the attached user has one of roles.
// It must be mounted after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			user, ok := GetUserContextFromContext(ctx)
			if !ok {
				m.logger.Error("user context not found",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "")
				return
			}

			if !user.HasRole(roles...) {
				m.metrics.RecordOutcome(string(models.AuthOutcomeForbidden))
				event := models.NewAuthEvent(models.AuthOutcomeForbidden, requestID, r.URL.Path, remoteIP(r)).WithUser(user)
				event.Reason = "insufficient_role"
				m.record(event)

				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("user_id", user.UserID),
					zap.String("role", string(user.Role)),
					zap.Error(services.ErrForbidden))
				_ = utils.WriteForbidden(w, "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// reject writes the generic 401. The body is the same for every failure class.
func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	requestID := GetRequestIDFromContext(r.Context())
	reason := services.ErrorReason(err)

	outcome := models.AuthOutcomeInvalidCredentials
	if services.IsAuthenticationError(err) {
		outcome = models.AuthOutcome(services.GetErrorType(err))
	} else {
		m.logger.Error("unclassified authentication error",
			zap.String("request_id", requestID),
			zap.Error(err))
	}

	event := models.NewAuthEvent(outcome, requestID, r.URL.Path, remoteIP(r))
	event.Reason = reason
	if subject, ok := services.GetErrorDetails(err)[services.DetailSubject].(string); ok {
		event.Subject = &subject
	}
	m.record(event)

	m.logger.Info("request rejected",
		zap.String("request_id", requestID),
		zap.String("class", string(outcome)),
		zap.String("reason", reason),
		zap.String("path", r.URL.Path))

	_ = utils.WriteUnauthorized(w, "")
}

func (m *AuthMiddleware) record(event *models.AuthEvent) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Record(event); err != nil {
		m.logger.Debug("auth event not recorded",
			zap.String("request_id", event.RequestID),
			zap.Error(err))
	}
}

// extractBearerToken returns the token from "Authorization: Bearer <token>".
// The scheme is case-sensitive, exactly one space separates it from the
// token, and the token may not contain further whitespace. A repeated
// Authorization header is rejected.
func extractBearerToken(r *http.Request) (string, bool) {
	values := r.Header.Values("Authorization")
	if len(values) != 1 {
		return "", false
	}

	scheme, token, found := strings.Cut(values[0], " ")
	if !found || scheme != bearerScheme || token == "" {
		return "", false
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return "", false
	}
	return token, true
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

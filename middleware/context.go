package middleware

import (
	"context"

	"github.com/fleetops/api-gateway/models"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions
type contextKey string

// UserContextKey is the context key for the enriched user context
const UserContextKey contextKey = "user_context"

// WithUserContext attaches the user context to ctx
func WithUserContext(ctx context.Context, user *models.UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUserContextFromContext retrieves the user context attached by RequireAuth
func GetUserContextFromContext(ctx context.Context) (*models.UserContext, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.UserContext)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}

package routes

import (
	"net/http"
	"time"

	"github.com/fleetops/api-gateway/app"
	"github.com/fleetops/api-gateway/models"
	"github.com/fleetops/api-gateway/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// go-chi/cors reads an empty origin list as "allow all", so no list means no CORS
	if origins := deps.Config.Server.AllowedOrigins; len(origins) > 0 {
		// bearer tokens travel in the Authorization header; cookies are never needed
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "WWW-Authenticate"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Health check endpoints; /health and /healthz share the liveness check
	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled && deps.MetricsRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		r.Get("/secure", deps.AuthHandler.HandleSecure)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/me", deps.AuthHandler.HandleMe)
			r.With(deps.AuthMiddleware.RequireRole(models.RoleOwner, models.RoleAdmin)).
				Get("/events/summary", deps.AuthHandler.HandleEventSummary)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "")
	})

	return r
}

// requestLogger writes one structured access log line per request
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr))
		})
	}
}

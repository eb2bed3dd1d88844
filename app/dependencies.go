package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleetops/api-gateway/config"
	"github.com/fleetops/api-gateway/firebase"
	"github.com/fleetops/api-gateway/handlers"
	"github.com/fleetops/api-gateway/identity"
	"github.com/fleetops/api-gateway/middleware"
	"github.com/fleetops/api-gateway/observability"
	"github.com/fleetops/api-gateway/repositories"
	"github.com/fleetops/api-gateway/repositories/postgres"
	"github.com/fleetops/api-gateway/services"
	"github.com/fleetops/api-gateway/services/audit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const auditStopTimeout = 5 * time.Second

// Dependencies holds everything the HTTP layer needs. It is built once at
// startup by NewDependencies and released by Close.
type Dependencies struct {
	// Infrastructure
	Config          *config.Config
	Logger          *zap.Logger
	MetricsRegistry *prometheus.Registry
	DB              *postgres.DB // nil when DATABASE_URL is not set

	// Authentication pipeline
	Verifier       *firebase.Verifier
	IdentityClient *identity.Client
	AuthService    *services.AuthService
	AuthMetrics    *observability.AuthMetrics
	AuthMiddleware *middleware.AuthMiddleware

	// Audit trail
	AuthEvents repositories.AuthEventRepository // nil when DATABASE_URL is not set
	Audit      *audit.Service                   // nil unless the audit worker pool runs
	Recorder   audit.Recorder

	// Handlers
	HealthHandler *handlers.HealthHandler
	AuthHandler   *handlers.AuthHandler
}

// Option customizes NewDependencies
type Option func(*options)

type options struct {
	identityDialOptions []grpc.DialOption
}

// WithIdentityDialOptions appends dial options to the identity service connection
func WithIdentityDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) {
		o.identityDialOptions = append(o.identityDialOptions, opts...)
	}
}

// NewDependencies creates and wires up all application dependencies.
// An identity service that cannot be reached within the dial timeout is fatal.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initMetrics()

	if err := deps.initVerifier(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	if err := deps.initIdentity(ctx, cfg, o.identityDialOptions); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize identity client: %w", err)
	}

	if err := deps.initAuditTrail(ctx, cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize audit trail: %w", err)
	}

	deps.AuthService = services.NewAuthService(
		deps.Verifier,
		identity.NewEnricher(deps.IdentityClient, logger),
		deps.AuthMetrics,
		logger,
		services.AuthServiceOptions{EnrichTimeout: cfg.Identity.CallTimeout},
	)
	deps.AuthMiddleware = middleware.NewAuthMiddleware(deps.AuthService, deps.Recorder, deps.AuthMetrics, logger)

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initMetrics() {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.MetricsRegistry = registry
	d.AuthMetrics = observability.NewAuthMetrics(registry)
}

// initVerifier initializes the Firebase Admin SDK. Missing or malformed
// credentials fail startup.
func (d *Dependencies) initVerifier(ctx context.Context, cfg *config.Config) error {
	verifier, err := firebase.NewVerifier(ctx, firebase.Config{
		ProjectID:       cfg.Firebase.ProjectID,
		ClientEmail:     cfg.Firebase.ClientEmail,
		PrivateKey:      cfg.Firebase.PrivateKey,
		CredentialsFile: cfg.Firebase.CredentialsFile,
		CheckRevoked:    cfg.Firebase.CheckRevoked,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.Verifier = verifier
	return nil
}

func (d *Dependencies) initIdentity(ctx context.Context, cfg *config.Config, dialOptions []grpc.DialOption) error {
	client, err := identity.NewClient(identity.Config{
		Address:     cfg.Identity.Address,
		CallTimeout: cfg.Identity.CallTimeout,
		TLS:         cfg.Identity.TLS,
		DialOptions: dialOptions,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.IdentityClient = client

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Identity.DialTimeout)
	defer cancel()
	if err := client.WaitReady(dialCtx); err != nil {
		return fmt.Errorf("identity service %s unreachable: %w", cfg.Identity.Address, err)
	}

	d.Logger.Info("identity service connected", zap.String("address", cfg.Identity.Address))
	return nil
}

// initAuditTrail connects the database when configured. Without a database
// authentication events are only logged.
func (d *Dependencies) initAuditTrail(ctx context.Context, cfg *config.Config) error {
	if cfg.Database == nil {
		d.Logger.Info("no database configured, auth events are logged only")
		d.Recorder = audit.NewLogRecorder(d.Logger)
		return nil
	}

	db, err := postgres.NewDB(ctx, *cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}
	d.AuthEvents = postgres.NewAuthEventRepository(db, d.Logger)

	if !cfg.Audit.Enabled {
		d.Recorder = audit.NewLogRecorder(d.Logger)
		return nil
	}

	service := audit.NewService(d.AuthEvents, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	if err := service.Start(); err != nil {
		return err
	}
	d.Audit = service
	d.Recorder = service
	return nil
}

func (d *Dependencies) initHandlers() {
	var dbCheck handlers.HealthChecker
	if d.DB != nil {
		dbCheck = d.DB
	}
	d.HealthHandler = handlers.NewHealthHandler(d.IdentityClient, dbCheck, d.Logger)
	d.AuthHandler = handlers.NewAuthHandler(d.AuthEvents, d.Logger)
}

// Close releases dependencies in reverse order of construction: the audit
// workers drain first, then the identity connection and the database close.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Audit != nil {
		stats := d.Audit.GetStats()
		d.Logger.Info("audit service totals",
			zap.Int("pending_events", stats.PendingEvents),
			zap.Int64("dropped_events", stats.Dropped))

		timeout := auditStopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
		d.Audit = nil
	}

	if d.IdentityClient != nil {
		if err := d.IdentityClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close identity client: %w", err))
		}
		d.IdentityClient = nil
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
		d.DB = nil
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}

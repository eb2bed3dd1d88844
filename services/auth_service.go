package services

import (
	"context"
	"time"

	"github.com/fleetops/api-gateway/models"
	"github.com/fleetops/api-gateway/observability"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// DefaultEnrichTimeout bounds the identity service call when no timeout is configured
const DefaultEnrichTimeout = 3 * time.Second

// TokenVerifier validates a raw ID token with the identity provider
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*models.DecodedIdentity, error)
}

// IdentityEnricher resolves organization and role for a verified identity
type IdentityEnricher interface {
	Enrich(ctx context.Context, identity *models.DecodedIdentity) (*models.UserContext, error)
}

// Stage is the position of one Authenticate call in the pipeline
type Stage int

const (
	StageStart Stage = iota
	StageVerifying
	StageVerified
	StageEnriching
	StageComplete
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageVerifying:
		return "verifying"
	case StageVerified:
		return "verified"
	case StageEnriching:
		return "enriching"
	case StageComplete:
		return "complete"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AuthServiceOptions tunes the pipeline
type AuthServiceOptions struct {
	EnrichTimeout time.Duration
}

// AuthService turns a raw bearer token into an enriched UserContext:
// verify with the provider, then enrich through the identity service.
// It holds no per-request state and is safe for concurrent use.
type AuthService struct {
	verifier      TokenVerifier
	enricher      IdentityEnricher
	metrics       *observability.AuthMetrics
	logger        *zap.Logger
	enrichTimeout time.Duration
}

// NewAuthService creates a new AuthService
func NewAuthService(verifier TokenVerifier, enricher IdentityEnricher, metrics *observability.AuthMetrics, logger *zap.Logger, opts AuthServiceOptions) *AuthService {
	timeout := opts.EnrichTimeout
	if timeout <= 0 {
		timeout = DefaultEnrichTimeout
	}

	return &AuthService{
		verifier:      verifier,
		enricher:      enricher,
		metrics:       metrics,
		logger:        logger,
		enrichTimeout: timeout,
	}
}

// Authenticate runs verification then enrichment. Enrichment never runs
// for a token that failed verification, and no partial UserContext is
// returned: the result is either a complete context or a *DomainError
// of type missing_credentials, invalid_credentials or enrichment_failed.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (*models.UserContext, error) {
	if rawToken == "" {
		return nil, s.fail(ctx, StageStart, ErrMissingCredentials)
	}

	start := time.Now()
	decoded, err := s.verifier.Verify(ctx, rawToken)
	s.metrics.ObserveStage(observability.StageVerify, start, err)
	if err != nil {
		return nil, s.fail(ctx, StageVerifying, NewDomainError(ErrorTypeInvalidCredentials, "token verification failed", err))
	}
	if decoded == nil || decoded.Subject == "" {
		return nil, s.fail(ctx, StageVerifying, NewDomainError(ErrorTypeInvalidCredentials, "verified token has no subject", nil))
	}

	s.logger.Debug("token verified",
		zap.String("stage", StageVerified.String()),
		zap.String("subject", decoded.Subject),
		zap.String("request_id", chimiddleware.GetReqID(ctx)),
	)

	enrichCtx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
	defer cancel()

	start = time.Now()
	user, err := s.enricher.Enrich(enrichCtx, decoded)
	s.metrics.ObserveStage(observability.StageEnrich, start, err)
	if err != nil {
		return nil, s.fail(ctx, StageEnriching, NewDomainError(ErrorTypeEnrichmentFailed, "identity enrichment failed", err).
			WithDetail(DetailSubject, decoded.Subject))
	}
	if user == nil || user.OrganizationID == "" || !user.Role.IsValid() {
		return nil, s.fail(ctx, StageEnriching, NewDomainError(ErrorTypeEnrichmentFailed, "incomplete user context", nil).
			WithDetail(DetailSubject, decoded.Subject))
	}

	s.metrics.RecordOutcome(string(models.AuthOutcomeSuccess))
	s.logger.Debug("authentication complete",
		zap.String("stage", StageComplete.String()),
		zap.String("user_id", user.UserID),
		zap.String("organization_id", user.OrganizationID),
		zap.String("role", string(user.Role)),
		zap.String("request_id", chimiddleware.GetReqID(ctx)),
	)

	return user, nil
}

// fail logs the failure class and reason and records the outcome.
// The token never appears in the log entry.
func (s *AuthService) fail(ctx context.Context, at Stage, err *DomainError) error {
	s.metrics.RecordOutcome(string(err.Type))
	s.logger.Warn("authentication failed",
		zap.String("stage", StageFailed.String()),
		zap.String("failed_at", at.String()),
		zap.String("class", string(err.Type)),
		zap.String("reason", ErrorReason(err)),
		zap.String("request_id", chimiddleware.GetReqID(ctx)),
		zap.NamedError("cause", err.Err),
	)
	return err
}

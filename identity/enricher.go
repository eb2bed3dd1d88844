package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleetops/api-gateway/models"
	"github.com/fleetops/api-gateway/utils"
	"go.uber.org/zap"
)

// ErrContractViolation is returned when the identity service answers with
// a response that breaks the contract (missing organization, unknown role).
var ErrContractViolation = errors.New("identity service contract violation")

// UserContextFetcher is the RPC surface the Enricher depends on
type UserContextFetcher interface {
	GetUserContext(ctx context.Context, req *GetUserContextRequest) (*UserContextResponse, error)
}

// Enricher resolves organization and role for a verified identity.
// Every call goes to the identity service; results are not cached so that
// role changes take effect on the next request.
type Enricher struct {
	client UserContextFetcher
	logger *zap.Logger
}

// NewEnricher creates a new Enricher
func NewEnricher(client UserContextFetcher, logger *zap.Logger) *Enricher {
	return &Enricher{
		client: client,
		logger: logger,
	}
}

// Enrich maps the decoded identity to a UserContext via GetUserContext
func (e *Enricher) Enrich(ctx context.Context, identity *models.DecodedIdentity) (*models.UserContext, error) {
	if identity == nil || identity.Subject == "" {
		return nil, errors.New("enrich: identity without subject")
	}

	resp, err := e.client.GetUserContext(ctx, &GetUserContextRequest{FirebaseUID: identity.Subject})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrContractViolation)
	}

	if err := utils.ValidateStruct(resp); err != nil {
		e.logger.Warn("identity service response rejected",
			zap.Any("fields", utils.GetValidationFields(err)))
		return nil, fmt.Errorf("%w: %v", ErrContractViolation, err)
	}

	role, ok := models.ParseRole(resp.Role)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized role", ErrContractViolation)
	}

	return &models.UserContext{
		UserID:         resp.UserID,
		Email:          resp.Email,
		OrganizationID: resp.OrganizationID,
		Role:           role,
	}, nil
}

package repositories

import (
	"context"
	"time"

	"github.com/fleetops/api-gateway/models"
)

// AuthEventRepository persists the authentication audit trail
type AuthEventRepository interface {
	// Insert stores one authentication decision
	Insert(ctx context.Context, event *models.AuthEvent) error

	// CountByOutcome returns the number of events per outcome since the given time
	CountByOutcome(ctx context.Context, since time.Time) (map[models.AuthOutcome]int64, error)
}

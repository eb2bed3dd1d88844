package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fleetops/api-gateway/models"
	"github.com/fleetops/api-gateway/repositories"
	"go.uber.org/zap"
)

// AuthEventRepository implements repositories.AuthEventRepository
type AuthEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuthEventRepository creates a new auth event repository
func NewAuthEventRepository(db *DB, logger *zap.Logger) repositories.AuthEventRepository {
	return &AuthEventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new auth event
func (r *AuthEventRepository) Insert(ctx context.Context, event *models.AuthEvent) error {
	query := `
		INSERT INTO auth_events (
			id, request_id, outcome, reason, subject, organization_id,
			role, path, remote_addr, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		nullString(event.RequestID),
		string(event.Outcome),
		nullString(event.Reason),
		event.Subject,
		event.OrganizationID,
		event.Role,
		event.Path,
		nullString(event.RemoteAddr),
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}

	r.logger.Debug("auth event inserted",
		zap.String("id", event.ID.String()),
		zap.String("outcome", string(event.Outcome)))
	return nil
}

// CountByOutcome returns event counts grouped by outcome since the given time
func (r *AuthEventRepository) CountByOutcome(ctx context.Context, since time.Time) (map[models.AuthOutcome]int64, error) {
	query := `
		SELECT outcome, COUNT(*)
		FROM auth_events
		WHERE occurred_at >= $1
		GROUP BY outcome
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count auth events: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.AuthOutcome]int64)
	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan auth event count: %w", err)
		}
		counts[models.AuthOutcome(outcome)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auth event counts: %w", err)
	}

	return counts, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

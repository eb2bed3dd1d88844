package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthOutcome is the classified result of one authentication attempt
type AuthOutcome string

const (
	AuthOutcomeSuccess            AuthOutcome = "success"
	AuthOutcomeMissingCredentials AuthOutcome = "missing_credentials"
	AuthOutcomeInvalidCredentials AuthOutcome = "invalid_credentials"
	AuthOutcomeEnrichmentFailed   AuthOutcome = "enrichment_failed"
	AuthOutcomeForbidden          AuthOutcome = "forbidden"
)

// AuthEvent is an audit trail entry for an authentication decision.
// It never carries token material.
type AuthEvent struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	RequestID      string      `json:"request_id" db:"request_id"`
	Outcome        AuthOutcome `json:"outcome" db:"outcome"`
	Reason         string      `json:"reason,omitempty" db:"reason"`
	Subject        *string     `json:"subject,omitempty" db:"subject"`
	OrganizationID *string     `json:"organization_id,omitempty" db:"organization_id"`
	Role           *string     `json:"role,omitempty" db:"role"`
	Path           string      `json:"path" db:"path"`
	RemoteAddr     string      `json:"remote_addr" db:"remote_addr"`
	OccurredAt     time.Time   `json:"occurred_at" db:"occurred_at"`
}

// TableName returns the table name for the AuthEvent model
func (AuthEvent) TableName() string {
	return "auth_events"
}

// NewAuthEvent creates a new AuthEvent instance
func NewAuthEvent(outcome AuthOutcome, requestID, path, remoteAddr string) *AuthEvent {
	return &AuthEvent{
		ID:         uuid.New(),
		RequestID:  requestID,
		Outcome:    outcome,
		Path:       path,
		RemoteAddr: remoteAddr,
		OccurredAt: time.Now().UTC(),
	}
}

// WithUser fills the identity columns from an enriched context
func (e *AuthEvent) WithUser(user *UserContext) *AuthEvent {
	if user == nil {
		return e
	}
	e.Subject = &user.UserID
	e.OrganizationID = &user.OrganizationID
	role := string(user.Role)
	e.Role = &role
	return e
}

// IsSuccess returns true if the event records a successful authentication
func (e *AuthEvent) IsSuccess() bool {
	return e.Outcome == AuthOutcomeSuccess
}

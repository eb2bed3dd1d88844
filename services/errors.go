package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleetops/api-gateway/firebase"
	"github.com/fleetops/api-gateway/identity"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeMissingCredentials ErrorType = "missing_credentials"
	ErrorTypeInvalidCredentials ErrorType = "invalid_credentials"
	ErrorTypeEnrichmentFailed   ErrorType = "enrichment_failed"
	ErrorTypeForbidden          ErrorType = "forbidden"
	ErrorTypeInternal           ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	// ErrMissingCredentials: no Authorization header, wrong scheme or empty token.
	ErrMissingCredentials = NewDomainError(ErrorTypeMissingCredentials, "missing credentials", nil)

	// ErrInvalidCredentials: the token failed provider verification. Not retried.
	ErrInvalidCredentials = NewDomainError(ErrorTypeInvalidCredentials, "invalid credentials", nil)

	// ErrEnrichmentFailed: the identity service call failed or returned an unusable context.
	ErrEnrichmentFailed = NewDomainError(ErrorTypeEnrichmentFailed, "identity enrichment failed", nil)

	// ErrForbidden: authenticated, but the role is not allowed on the route.
	ErrForbidden = NewDomainError(ErrorTypeForbidden, "insufficient role", nil)
)

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// DetailSubject is the detail key carrying the verified subject on enrichment failures
const DetailSubject = "subject"

// IsAuthenticationError reports whether err is one of the three classes that map to 401
func IsAuthenticationError(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeMissingCredentials, ErrorTypeInvalidCredentials, ErrorTypeEnrichmentFailed:
		return true
	}
	return false
}

// ErrorReason returns a short, payload-free label for the root cause of an
// authentication failure. It is safe for logs and metric labels.
func ErrorReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, firebase.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, firebase.ErrTokenRevoked):
		return "token_revoked"
	case errors.Is(err, firebase.ErrUserDisabled):
		return "user_disabled"
	case errors.Is(err, firebase.ErrInvalidSubject):
		return "invalid_subject"
	case errors.Is(err, firebase.ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, firebase.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, identity.ErrDeadlineExceeded):
		return "rpc_timeout"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, identity.ErrUnavailable):
		return "rpc_unavailable"
	case errors.Is(err, identity.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, identity.ErrContractViolation):
		return "contract_violation"
	case errors.Is(err, identity.ErrRPCFailed):
		return "rpc_failed"
	}

	if errType := GetErrorType(err); errType != "" {
		return string(errType)
	}
	return "unknown"
}

package utils

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in ErrorResponse.Error
const (
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeUnavailable  = "unavailable"
	CodeBadRequest   = "bad_request"
	CodeInternal     = "internal_error"
)

// bearerChallenge is sent with every 401
const bearerChallenge = `Bearer realm="api-gateway"`

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON encodes data as the response body with the given status.
// A nil data writes headers only.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes data with 200
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteError writes an ErrorResponse, falling back to fallback when message is empty
func WriteError(w http.ResponseWriter, status int, code, message, fallback string) error {
	if message == "" {
		message = fallback
	}
	return WriteJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// WriteUnauthorized writes a 401 with a Bearer challenge. Callers on the
// authentication path pass "" so every rejection has the same body.
func WriteUnauthorized(w http.ResponseWriter, message string) error {
	w.Header().Set("WWW-Authenticate", bearerChallenge)
	return WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message, "Authentication required")
}

// WriteForbidden writes a 403
func WriteForbidden(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusForbidden, CodeForbidden, message, "Insufficient role")
}

// WriteNotFound writes a 404
func WriteNotFound(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusNotFound, CodeNotFound, message, "Endpoint not found")
}

// WriteServiceUnavailable writes a 503 with data as the body
func WriteServiceUnavailable(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusServiceUnavailable, data)
}

// WriteInternalServerError writes a 500
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusInternalServerError, CodeInternal, message, "Internal server error")
}

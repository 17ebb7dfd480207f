// Package http exposes the permit token over HTTP.
// This includes the framework-neutral API, the gin server, JWT caller
// authentication and a Go client for the service.
package http

import (
	"net/http"

	mytoken "github.com/mytoken-labs/mytoken/go"
)

// StatusFor maps a token error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case mytoken.ErrCodeInvalidRequest,
		mytoken.ErrCodePermitExpired,
		mytoken.ErrCodeInvalidSignature:
		return http.StatusBadRequest
	case mytoken.ErrCodeUnauthorized:
		return http.StatusForbidden
	case mytoken.ErrCodeNonceMismatch:
		return http.StatusConflict
	case mytoken.ErrCodeInsufficientAllowance,
		mytoken.ErrCodeInsufficientBalance,
		mytoken.ErrCodeInvalidEmergencyAddress:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Caller context key shared by the gin and echo bindings
const CallerKey = "mytoken.caller"

// ============================================================================
// Convenience constructors
// ============================================================================

// NewClient creates a new token API client
func NewClient(config *ClientConfig) *Client {
	return NewTokenClient(config)
}

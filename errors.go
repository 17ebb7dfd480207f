package mytoken

import (
	"errors"
	"fmt"
)

// TokenError represents a rejected token operation.
// Every rejection leaves the ledger unchanged.
type TokenError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any TokenError carrying the same code, so callers can write
// errors.Is(err, mytoken.ErrNonceMismatch).
func (e *TokenError) Is(target error) bool {
	t, ok := target.(*TokenError)
	return ok && t.Code == e.Code
}

// Error codes
const (
	ErrCodePermitExpired           = "permit_expired"
	ErrCodeInvalidSignature        = "invalid_signature"
	ErrCodeNonceMismatch           = "nonce_mismatch"
	ErrCodeInsufficientAllowance   = "insufficient_allowance"
	ErrCodeInsufficientBalance     = "insufficient_balance"
	ErrCodeInvalidEmergencyAddress = "invalid_emergency_address"
	ErrCodeUnauthorized            = "unauthorized"
	ErrCodeInvalidRequest          = "invalid_request"
	ErrCodeInternal                = "internal_error"
)

// Sentinels for errors.Is
var (
	ErrExpired                 = &TokenError{Code: ErrCodePermitExpired, Message: "permit deadline has passed"}
	ErrInvalidSignature        = &TokenError{Code: ErrCodeInvalidSignature, Message: "invalid signature"}
	ErrNonceMismatch           = &TokenError{Code: ErrCodeNonceMismatch, Message: "nonce already consumed"}
	ErrInsufficientAllowance   = &TokenError{Code: ErrCodeInsufficientAllowance, Message: "insufficient allowance"}
	ErrInsufficientBalance     = &TokenError{Code: ErrCodeInsufficientBalance, Message: "insufficient balance"}
	ErrInvalidEmergencyAddress = &TokenError{Code: ErrCodeInvalidEmergencyAddress, Message: "emergency address is not set"}
	ErrUnauthorized            = &TokenError{Code: ErrCodeUnauthorized, Message: "caller is not authorized"}
	ErrInvalidRequest          = &TokenError{Code: ErrCodeInvalidRequest, Message: "invalid request"}
)

// NewTokenError creates a new token error
func NewTokenError(code, message string, details map[string]interface{}) *TokenError {
	return &TokenError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// ErrorCode returns the code of a TokenError in err's chain, or
// ErrCodeInternal for anything else.
func ErrorCode(err error) string {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Code
	}
	return ErrCodeInternal
}

package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable machine-readable failure codes. Integrations branch on these, so
// they are part of the wire contract.
const (
	CodeBadRequest        = "bad_request"
	CodeAuthError         = "auth_error"
	CodeInvalidKey        = "invalid_key"
	CodeInvalidHMAC       = "invalid_hmac"
	CodeInvalidSignature  = "invalid_signature"
	CodeUnsignedTimestamp = "unsigned_timestamp"
	CodeExpiredSignature  = "expired_signature"
	CodeInsufficientScope = "insufficient_scope"
	CodePermissionDenied  = "permission_denied"
)

// Error is a typed admission failure carrying the HTTP status and stable
// code. Never wraps secret material into its message.
type Error struct {
	Code    string
	Message string
	Status  int
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func NewError(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func WrapError(code string, status int, message string, cause error) *Error {
	return &Error{Code: code, Status: status, Message: message, cause: cause}
}

// AsError normalizes any verifier failure into an *Error; unexpected
// internal failures become an opaque 500 so no detail leaks to callers.
func AsError(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return WrapError(CodeAuthError, http.StatusInternalServerError, "authentication backend failure", err)
}

// Collaborator failure sentinels. Clients wrap these so verifiers can map
// them to the right taxonomy entry without importing the client packages.
var (
	// ErrInvalidToken: the identity provider rejected the credential.
	ErrInvalidToken = errors.New("identity token rejected")
	// ErrUpstreamUnavailable: vault / identity provider / orchestrator
	// unreachable. Never treated as success.
	ErrUpstreamUnavailable = errors.New("upstream collaborator unavailable")
)

package auth

import (
	"net/http"
	"strings"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/security"
)

// Scheme identifies which credential scheme a request presents. Selection is
// by marker presence in fixed priority order; exactly one verifier ever runs
// for a request, and its failure is terminal (no fall-through to the next).
type Scheme string

const (
	SchemeHMAC   Scheme = "hmac"
	SchemeAPIKey Scheme = "api_key"
	SchemeBearer Scheme = "bearer"
	SchemeNone   Scheme = "none"
)

const (
	APIKeyHeader      = "X-API-Key"
	AccessTokenHeader = "X-Access-Token"
)

// ClassifyRequest is a pure function over request headers.
func ClassifyRequest(r *http.Request) Scheme {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(authz, security.HMACScheme+" ") {
		return SchemeHMAC
	}
	if strings.TrimSpace(r.Header.Get(APIKeyHeader)) != "" {
		return SchemeAPIKey
	}
	if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return SchemeBearer
	}
	if strings.TrimSpace(r.Header.Get(AccessTokenHeader)) != "" {
		return SchemeBearer
	}
	return SchemeNone
}

// BearerToken extracts the raw bearer token from the Authorization header or
// the secondary access-token header.
func BearerToken(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return strings.TrimSpace(r.Header.Get(AccessTokenHeader))
}

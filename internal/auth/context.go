package auth

import (
	"context"
	"net/http"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
)

// Context is the unified output of every credential scheme: who is calling,
// for which tenant, with what authority. Built fresh per request, never
// persisted, never shared across requests.
type Context struct {
	SubjectID       string
	TenantID        string
	Role            string
	Scopes          []string
	RateLimitPerMin int
}

// HasScopes reports whether every required scope is held verbatim. The
// superadmin role and the wildcard scope bypass the check entirely.
func (c *Context) HasScopes(required ...string) bool {
	if c == nil {
		return false
	}
	if c.Role == domain.RoleSuperadmin {
		return true
	}
	held := make(map[string]struct{}, len(c.Scopes))
	for _, s := range c.Scopes {
		if s == domain.WildcardScope {
			return true
		}
		held[s] = struct{}{}
	}
	for _, want := range required {
		if _, ok := held[want]; !ok {
			return false
		}
	}
	return true
}

type ctxKey struct{}

func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

func FromContext(ctx context.Context) (*Context, bool) {
	ac, ok := ctx.Value(ctxKey{}).(*Context)
	return ac, ok
}

func FromRequest(r *http.Request) (*Context, bool) {
	return FromContext(r.Context())
}

// Verifier resolves one credential scheme into a Context or a typed failure.
// Malformed input is an error value, never a panic.
type Verifier interface {
	Verify(ctx context.Context, r *http.Request) (*Context, error)
}

// Identity is what the identity provider vouches for: the subject and email
// of a bearer-token holder. Tenant and role are joined locally.
type Identity struct {
	SubjectID string
	Email     string
}

// IdentityValidator is the identity-provider collaborator.
type IdentityValidator interface {
	Validate(ctx context.Context, token string) (*Identity, error)
}

// SecretResolver dereferences an opaque vault reference into the shared
// HMAC secret, just in time. Implementations must never log the plaintext.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

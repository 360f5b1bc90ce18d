package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/repository"
)

// BearerVerifier delegates token validation to the identity provider, then
// joins the authenticated subject to a local tenant/role link by email. A
// valid token without a local link is authenticated but unprovisioned,
// which is a different failure than an invalid credential.
type BearerVerifier struct {
	identity IdentityValidator
	tenants  repository.TenantRepository
}

func NewBearerVerifier(identity IdentityValidator, tenants repository.TenantRepository) *BearerVerifier {
	return &BearerVerifier{identity: identity, tenants: tenants}
}

func (v *BearerVerifier) Verify(ctx context.Context, r *http.Request) (*Context, error) {
	token := BearerToken(r)
	if token == "" {
		return nil, NewError(CodeAuthError, http.StatusUnauthorized, "missing bearer token")
	}

	ident, err := v.identity.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			return nil, WrapError(CodeAuthError, http.StatusInternalServerError, "identity provider unavailable", err)
		}
		return nil, NewError(CodeAuthError, http.StatusUnauthorized, "invalid or expired token")
	}

	link, err := v.tenants.FindLinkByEmail(ctx, ident.Email)
	if err != nil {
		if errors.Is(err, repository.ErrTenantLinkNotFound) {
			return nil, NewError(CodePermissionDenied, http.StatusForbidden, "user is not provisioned for any tenant")
		}
		return nil, WrapError(CodeAuthError, http.StatusInternalServerError, "tenant link lookup failed", err)
	}

	scopes := domain.SplitScopes(link.Scopes)
	if len(scopes) == 0 && (link.Role == domain.RoleAdmin || link.Role == domain.RoleSuperadmin) {
		scopes = []string{domain.WildcardScope}
	}

	return &Context{
		SubjectID: ident.SubjectID,
		TenantID:  link.TenantID,
		Role:      link.Role,
		Scopes:    scopes,
	}, nil
}

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/repository"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/security"
)

// APIKeyVerifier resolves the static-key scheme: the first 16 characters of
// the presented key locate the record, the full key is compared by hash in
// constant time. Revoked, expired and unknown keys are deliberately
// indistinguishable to the caller.
type APIKeyVerifier struct {
	keys   repository.APIKeyRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewAPIKeyVerifier(keys repository.APIKeyRepository, logger *slog.Logger) *APIKeyVerifier {
	return &APIKeyVerifier{keys: keys, logger: logger, now: time.Now}
}

func (v *APIKeyVerifier) Verify(ctx context.Context, r *http.Request) (*Context, error) {
	raw := strings.TrimSpace(r.Header.Get(APIKeyHeader))
	prefix, ok := security.KeyPrefix(raw)
	if !ok {
		return nil, NewError(CodeInvalidKey, http.StatusUnauthorized, "invalid api key")
	}

	key, err := v.keys.FindByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return nil, NewError(CodeInvalidKey, http.StatusUnauthorized, "invalid api key")
		}
		return nil, WrapError(CodeAuthError, http.StatusInternalServerError, "credential lookup failed", err)
	}
	if key.IsHMAC() || !key.Usable(v.now()) {
		return nil, NewError(CodeInvalidKey, http.StatusUnauthorized, "invalid api key")
	}
	if !security.ConstantTimeEqual(security.HashAPIKey(raw), key.KeyHash) {
		return nil, NewError(CodeInvalidKey, http.StatusUnauthorized, "invalid api key")
	}

	touchLastUsed(ctx, v.keys, v.logger, key.ID, v.now())

	return &Context{
		SubjectID:       key.ID,
		TenantID:        key.TenantID,
		Role:            domain.RoleMember,
		Scopes:          key.ScopeList(),
		RateLimitPerMin: key.RateLimitPerMin,
	}, nil
}

// touchLastUsed records key usage as a side effect; failures are logged and
// swallowed, never surfaced to the request.
func touchLastUsed(ctx context.Context, keys repository.APIKeyRepository, logger *slog.Logger, id string, at time.Time) {
	if err := keys.TouchLastUsed(ctx, id, at); err != nil && logger != nil {
		logger.Warn("failed to update key usage timestamp", "key_id", id, "error", err.Error())
	}
}

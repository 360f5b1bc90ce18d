package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/repository"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/security"
)

// HMACVerifier resolves machine-to-machine signed requests. The credential
// prefix locates a key record holding a vault reference; the shared secret
// is dereferenced just in time and exists only on this verifier's stack.
type HMACVerifier struct {
	keys    repository.APIKeyRepository
	secrets SecretResolver
	logger  *slog.Logger
	maxSkew time.Duration
	now     func() time.Time
}

func NewHMACVerifier(keys repository.APIKeyRepository, secrets SecretResolver, logger *slog.Logger, maxSkew time.Duration) *HMACVerifier {
	return &HMACVerifier{keys: keys, secrets: secrets, logger: logger, maxSkew: maxSkew, now: time.Now}
}

func (v *HMACVerifier) Verify(ctx context.Context, r *http.Request) (*Context, error) {
	parsed, err := security.ParseHMACAuthorization(r.Header.Get("Authorization"))
	if err != nil {
		return nil, NewError(CodeInvalidHMAC, http.StatusUnauthorized, "malformed hmac authorization")
	}

	key, err := v.keys.FindByPrefix(ctx, parsed.KeyPrefix)
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return nil, NewError(CodeInvalidHMAC, http.StatusUnauthorized, "unknown hmac credential")
		}
		return nil, WrapError(CodeAuthError, http.StatusInternalServerError, "credential lookup failed", err)
	}
	if !key.IsHMAC() || !key.Usable(v.now()) {
		return nil, NewError(CodeInvalidHMAC, http.StatusUnauthorized, "unknown hmac credential")
	}

	if err := v.checkFreshness(r, parsed); err != nil {
		return nil, err
	}

	secret, err := v.secrets.ResolveSecret(ctx, key.HMACSecretRef)
	if err != nil {
		// The secret ref is opaque and safe to log; the secret never is.
		if v.logger != nil {
			v.logger.Error("vault secret resolution failed", "secret_ref", key.HMACSecretRef, "error", err.Error())
		}
		return nil, WrapError(CodeAuthError, http.StatusInternalServerError, "secret resolution failed", err)
	}

	body, err := replayableBody(r)
	if err != nil {
		return nil, NewError(CodeBadRequest, http.StatusBadRequest, "unreadable request body")
	}
	stringToSign := security.StringToSign(r.Method, r.URL.Path, parsed.CredentialDate, parsed.SignedHeaders, r.Header.Get, body)
	if err := security.VerifySignature(secret, stringToSign, parsed.Signature); err != nil {
		return nil, NewError(CodeInvalidSignature, http.StatusUnauthorized, "signature verification failed")
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

// checkFreshness applies the two co-existing replay windows: strict when the
// caller supplies x-timestamp (which must itself be signed), legacy
// credential-date otherwise.
func (v *HMACVerifier) checkFreshness(r *http.Request, parsed *security.HMACAuthorization) error {
	now := v.now()
	if ts := r.Header.Get(security.TimestampHeader); ts != "" {
		signed := false
		for _, h := range parsed.SignedHeaders {
			if h == security.TimestampHeader {
				signed = true
				break
			}
		}
		if !signed {
			return NewError(CodeUnsignedTimestamp, http.StatusUnauthorized, "x-timestamp must be a signed header")
		}
		switch err := security.CheckStrictTimestamp(ts, now, v.maxSkew); {
		case errors.Is(err, security.ErrExpiredSignature):
			return NewError(CodeExpiredSignature, http.StatusUnauthorized, "request timestamp outside allowed window")
		case err != nil:
			return NewError(CodeInvalidHMAC, http.StatusUnauthorized, "unparseable x-timestamp")
		}
		return nil
	}
	if err := security.CheckLegacyDate(parsed.CredentialDate, now); err != nil {
		return NewError(CodeExpiredSignature, http.StatusUnauthorized, "credential date outside allowed window")
	}
	return nil
}

// replayableBody reads the full body and restores it so the handler can read
// it again after verification.
func replayableBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

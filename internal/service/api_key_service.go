package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/repository"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/security"
)

var (
	ErrKeyNotFound       = errors.New("api key not found")
	ErrKeyAlreadyRevoked = errors.New("api key already revoked")
)

// SecretWriter provisions new HMAC secrets into the vault.
type SecretWriter interface {
	StoreSecret(ctx context.Context, ref, value string) error
}

// CreateKeyInput describes a credential to provision. When HMAC is true the
// generated secret goes to the vault and only its reference is persisted.
type CreateKeyInput struct {
	TenantID        string
	Name            string
	Scopes          []string
	RateLimitPerMin int
	Environment     string
	HMAC            bool
	ExpiresAt       *time.Time
}

// CreatedKey carries the one-time plaintext material back to the caller.
// RawKey (and RawSecret for HMAC credentials) are never stored or shown again.
type CreatedKey struct {
	Key       *domain.APIKey
	RawKey    string
	RawSecret string
}

// APIKeyService provisions, lists and revokes tenant credentials.
type APIKeyService struct {
	keys   repository.APIKeyRepository
	vault  SecretWriter
	logger *slog.Logger
}

func NewAPIKeyService(keys repository.APIKeyRepository, vault SecretWriter, logger *slog.Logger) *APIKeyService {
	return &APIKeyService{keys: keys, vault: vault, logger: logger}
}

func (s *APIKeyService) Create(ctx context.Context, input CreateKeyInput) (*CreatedKey, error) {
	raw, prefix, hash, err := security.GenerateAPIKey(input.Environment)
	if err != nil {
		return nil, fmt.Errorf("generate key material: %w", err)
	}

	key := &domain.APIKey{
		ID:              uuid.New().String(),
		TenantID:        input.TenantID,
		Name:            input.Name,
		KeyPrefix:       prefix,
		KeyHash:         hash,
		Scopes:          domain.JoinScopes(input.Scopes),
		RateLimitPerMin: input.RateLimitPerMin,
		Environment:     input.Environment,
		ExpiresAt:       input.ExpiresAt,
	}

	created := &CreatedKey{Key: key, RawKey: raw}

	if input.HMAC {
		secret, err := security.GenerateHMACSecret()
		if err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
		ref := "hmac/" + key.ID
		if err := s.vault.StoreSecret(ctx, ref, secret); err != nil {
			return nil, fmt.Errorf("store signing secret: %w", err)
		}
		key.HMACSecretRef = ref
		created.RawSecret = secret
	}

	if err := s.keys.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("persist key: %w", err)
	}

	s.logger.Info("api key created",
		slog.String("key_id", key.ID),
		slog.String("tenant_id", key.TenantID),
		slog.String("prefix", key.KeyPrefix),
		slog.Bool("hmac", input.HMAC))
	return created, nil
}

func (s *APIKeyService) List(ctx context.Context, tenantID string) ([]domain.APIKey, error) {
	return s.keys.ListByTenant(ctx, tenantID)
}

// Revoke checks the key exists before attempting the revocation so the
// caller can tell "never existed" apart from "already revoked".
func (s *APIKeyService) Revoke(ctx context.Context, tenantID, keyID string) error {
	key, err := s.keys.FindByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return ErrKeyNotFound
		}
		return err
	}
	if key.TenantID != tenantID {
		return ErrKeyNotFound
	}
	if key.RevokedAt != nil {
		return ErrKeyAlreadyRevoked
	}

	if err := s.keys.Revoke(ctx, keyID, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrAPIKeyAlreadyRevoked) {
			return ErrKeyAlreadyRevoked
		}
		return err
	}
	s.logger.Info("api key revoked",
		slog.String("key_id", keyID),
		slog.String("tenant_id", tenantID))
	return nil
}

package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/observability"
)

var (
	ErrAPIKeyNotFound       = errors.New("api key not found")
	ErrAPIKeyAlreadyRevoked = errors.New("api key already revoked")
)

type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	FindByID(ctx context.Context, id string) (*domain.APIKey, error)
	FindByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.APIKey, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

type GormAPIKeyRepository struct{ db *gorm.DB }

func NewAPIKeyRepository(db *gorm.DB) APIKeyRepository {
	return &GormAPIKeyRepository{db: db}
}

func (r *GormAPIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	if err := r.db.WithContext(ctx).Create(key).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "api_key", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "api_key", "create", "success")
	return nil
}

func (r *GormAPIKeyRepository) FindByID(ctx context.Context, id string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "api_key", "find_by_id", "not_found")
			return nil, ErrAPIKeyNotFound
		}
		observability.RecordRepositoryOperation(ctx, "api_key", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "api_key", "find_by_id", "success")
	return &key, nil
}

func (r *GormAPIKeyRepository) FindByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := r.db.WithContext(ctx).Where("key_prefix = ?", strings.TrimSpace(prefix)).First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "api_key", "find_by_prefix", "not_found")
			return nil, ErrAPIKeyNotFound
		}
		observability.RecordRepositoryOperation(ctx, "api_key", "find_by_prefix", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "api_key", "find_by_prefix", "success")
	return &key, nil
}

func (r *GormAPIKeyRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.APIKey, error) {
	var keys []domain.APIKey
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at desc").Find(&keys).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "api_key", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "api_key", "list", "success")
	return keys, nil
}

// Revoke marks the key revoked. The caller is expected to have checked the
// key exists; zero affected rows here means it was already revoked, not that
// it is missing.
func (r *GormAPIKeyRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.APIKey{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "api_key", "revoke", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "api_key", "revoke", "already_revoked")
		return ErrAPIKeyAlreadyRevoked
	}
	observability.RecordRepositoryOperation(ctx, "api_key", "revoke", "success")
	return nil
}

func (r *GormAPIKeyRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "api_key", "touch_last_used", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "api_key", "touch_last_used", "success")
	return nil
}

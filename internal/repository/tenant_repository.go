package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/observability"
)

var (
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrTenantLinkNotFound = errors.New("tenant user link not found")
)

type TenantRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Tenant, error)
	Create(ctx context.Context, tenant *domain.Tenant) error
	FindLinkByEmail(ctx context.Context, email string) (*domain.TenantUserLink, error)
	CreateLink(ctx context.Context, link *domain.TenantUserLink) error
}

type GormTenantRepository struct{ db *gorm.DB }

func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &GormTenantRepository{db: db}
}

func (r *GormTenantRepository) FindByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "tenant", "find_by_id", "not_found")
			return nil, ErrTenantNotFound
		}
		observability.RecordRepositoryOperation(ctx, "tenant", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "tenant", "find_by_id", "success")
	return &tenant, nil
}

func (r *GormTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	if err := r.db.WithContext(ctx).Create(tenant).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "tenant", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "tenant", "create", "success")
	return nil
}

func (r *GormTenantRepository) FindLinkByEmail(ctx context.Context, email string) (*domain.TenantUserLink, error) {
	var link domain.TenantUserLink
	normalized := strings.ToLower(strings.TrimSpace(email))
	err := r.db.WithContext(ctx).Where("email = ?", normalized).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "tenant_user_link", "find_by_email", "not_found")
			return nil, ErrTenantLinkNotFound
		}
		observability.RecordRepositoryOperation(ctx, "tenant_user_link", "find_by_email", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "tenant_user_link", "find_by_email", "success")
	return &link, nil
}

func (r *GormTenantRepository) CreateLink(ctx context.Context, link *domain.TenantUserLink) error {
	link.Email = strings.ToLower(strings.TrimSpace(link.Email))
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "tenant_user_link", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "tenant_user_link", "create", "success")
	return nil
}

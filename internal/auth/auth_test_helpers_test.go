package auth

import (
	"context"
	"time"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/repository"
)

type fakeKeyRepo struct {
	keys       map[string]*domain.APIKey // by prefix
	touched    []string
	touchErr   error
	lookupErr  error
}

func (f *fakeKeyRepo) Create(context.Context, *domain.APIKey) error { return nil }

func (f *fakeKeyRepo) FindByID(ctx context.Context, id string) (*domain.APIKey, error) {
	for _, k := range f.keys {
		if k.ID == id {
			return k, nil
		}
	}
	return nil, repository.ErrAPIKeyNotFound
}

func (f *fakeKeyRepo) FindByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	key, ok := f.keys[prefix]
	if !ok {
		return nil, repository.ErrAPIKeyNotFound
	}
	return key, nil
}

func (f *fakeKeyRepo) ListByTenant(context.Context, string) ([]domain.APIKey, error) { return nil, nil }

func (f *fakeKeyRepo) Revoke(context.Context, string, time.Time) error { return nil }

func (f *fakeKeyRepo) TouchLastUsed(_ context.Context, id string, _ time.Time) error {
	f.touched = append(f.touched, id)
	return f.touchErr
}

type fakeTenantRepo struct {
	links map[string]*domain.TenantUserLink // by email
}

func (f *fakeTenantRepo) FindByID(context.Context, string) (*domain.Tenant, error) {
	return nil, repository.ErrTenantNotFound
}

func (f *fakeTenantRepo) Create(context.Context, *domain.Tenant) error { return nil }

func (f *fakeTenantRepo) FindLinkByEmail(_ context.Context, email string) (*domain.TenantUserLink, error) {
	link, ok := f.links[email]
	if !ok {
		return nil, repository.ErrTenantLinkNotFound
	}
	return link, nil
}

func (f *fakeTenantRepo) CreateLink(context.Context, *domain.TenantUserLink) error { return nil }

type fakeIdentity struct {
	identities map[string]*Identity // by token
	err        error
}

func (f *fakeIdentity) Validate(_ context.Context, token string) (*Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	ident, ok := f.identities[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return ident, nil
}

type fakeVault struct {
	secrets map[string]string
	err     error
}

func (f *fakeVault) ResolveSecret(_ context.Context, ref string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	secret, ok := f.secrets[ref]
	if !ok {
		return "", ErrUpstreamUnavailable
	}
	return secret, nil
}

package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/auth"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/repository"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memBronzeRepo deduplicates on (table, data_hash) like the real table does.
type memBronzeRepo struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemBronzeRepo() *memBronzeRepo {
	return &memBronzeRepo{seen: map[string]bool{}}
}

func (m *memBronzeRepo) InsertBatch(_ context.Context, table string, records []domain.BronzeRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var landed int64
	for i := range records {
		k := table + "|" + records[i].DataHash
		if !m.seen[k] {
			m.seen[k] = true
			landed++
		}
	}
	return landed, nil
}

func (m *memBronzeRepo) InsertOne(_ context.Context, table string, record *domain.BronzeRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := table + "|" + record.DataHash
	if m.seen[k] {
		return false, nil
	}
	m.seen[k] = true
	return true, nil
}

func (m *memBronzeRepo) CountByRun(context.Context, string, string) (int64, error) { return 0, nil }

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage { return &memStorage{objects: map[string][]byte{}} }

func (m *memStorage) Upload(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStorage) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object %s", key)
	}
	return data, nil
}

type noopOrchestrator struct{}

func (noopOrchestrator) TriggerRun(context.Context, string, string, string) (string, error) {
	return "orch-run", nil
}

type memKeyRepo struct {
	mu   sync.Mutex
	keys map[string]*domain.APIKey
}

func newMemKeyRepo() *memKeyRepo { return &memKeyRepo{keys: map[string]*domain.APIKey{}} }

func (m *memKeyRepo) Create(_ context.Context, key *domain.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *key
	cp.CreatedAt = time.Now().UTC()
	m.keys[key.ID] = &cp
	return nil
}

func (m *memKeyRepo) FindByID(_ context.Context, id string) (*domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok {
		return nil, repository.ErrAPIKeyNotFound
	}
	cp := *key
	return &cp, nil
}

func (m *memKeyRepo) FindByPrefix(_ context.Context, prefix string) (*domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range m.keys {
		if key.KeyPrefix == prefix {
			cp := *key
			return &cp, nil
		}
	}
	return nil, repository.ErrAPIKeyNotFound
}

func (m *memKeyRepo) ListByTenant(_ context.Context, tenantID string) ([]domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.APIKey
	for _, key := range m.keys {
		if key.TenantID == tenantID {
			out = append(out, *key)
		}
	}
	return out, nil
}

func (m *memKeyRepo) Revoke(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok || key.RevokedAt != nil {
		return repository.ErrAPIKeyAlreadyRevoked
	}
	key.RevokedAt = &at
	return nil
}

func (m *memKeyRepo) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key, ok := m.keys[id]; ok {
		key.LastUsedAt = &at
	}
	return nil
}

type memSecretWriter struct {
	mu     sync.Mutex
	stored map[string]string
}

func newMemSecretWriter() *memSecretWriter { return &memSecretWriter{stored: map[string]string{}} }

func (m *memSecretWriter) StoreSecret(_ context.Context, ref, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[ref] = value
	return nil
}

func newTestLandingService() *service.LandingService {
	return service.NewLandingService(newMemBronzeRepo(), newMemStorage(), noopOrchestrator{}, testLogger(), 500, 1<<20)
}

// admitted attaches an auth context and a chi route context so URL params
// resolve the way they do behind the real router.
func admitted(r *http.Request, ac *auth.Context, params map[string]string) *http.Request {
	ctx := r.Context()
	if ac != nil {
		ctx = auth.WithContext(ctx, ac)
	}
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	return r.WithContext(ctx)
}

func memberContext(scopes ...string) *auth.Context {
	return &auth.Context{
		SubjectID: "key-1",
		TenantID:  "tenant-1",
		Role:      domain.RoleMember,
		Scopes:    scopes,
	}
}

func adminContext() *auth.Context {
	return &auth.Context{
		SubjectID: "admin-1",
		TenantID:  "tenant-1",
		Role:      domain.RoleAdmin,
		Scopes:    []string{domain.WildcardScope},
	}
}

func do(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, r)
	return rec
}

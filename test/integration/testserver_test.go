package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/auth"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/database"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/handler"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/middleware"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/router"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/repository"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/security"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/service"
)

var dbSeq atomic.Int64

const (
	testIdentitySecret = "integration-test-identity-secret-0123456789"
	testBypassSecret   = "integration-bypass-secret"
	testTenantID       = "11111111-1111-1111-1111-111111111111"
)

type testServer struct {
	URL      string
	DB       *gorm.DB
	Keys     *service.APIKeyService
	KeyRepo  repository.APIKeyRepository
	Tenants  repository.TenantRepository
	Triggers *triggerRecorder
	close    func()
}

type triggerRecorder struct {
	mu   sync.Mutex
	runs []string
}

func (tr *triggerRecorder) TriggerRun(_ context.Context, _, _, locator string) (string, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.runs = append(tr.runs, locator)
	return fmt.Sprintf("orch-%d", len(tr.runs)), nil
}

func (tr *triggerRecorder) count() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.runs)
}

type memObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memObjectStorage) Upload(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memObjectStorage) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object %s", key)
	}
	return data, nil
}

// fakeVault is an in-process vault the real HTTP client talks to.
func newFakeVault() *httptest.Server {
	var mu sync.Mutex
	secrets := map[string]string{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ref, err := url.PathUnescape(strings.TrimPrefix(r.URL.Path, "/v1/secrets/"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			var payload struct {
				Value string `json:"value"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			secrets[ref] = payload.Value
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			value, ok := secrets[ref]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"value": value})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:integration%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("access sql.DB: %v", err)
	}
	// Shared-cache in-memory sqlite lives as long as one connection does.
	sqlDB.SetMaxIdleConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	vaultSrv := newFakeVault()
	vault := service.NewVaultClient(vaultSrv.URL, "test-token")

	keyRepo := repository.NewAPIKeyRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	bronzeRepo := repository.NewBronzeRepository(db)

	triggers := &triggerRecorder{}
	storage := &memObjectStorage{objects: map[string][]byte{}}
	landing := service.NewLandingService(bronzeRepo, storage, triggers, logger, 500, 1<<20)
	keySvc := service.NewAPIKeyService(keyRepo, vault, logger)

	identity := service.NewLocalIdentityValidator(testIdentitySecret)
	admission := middleware.NewAdmission(
		auth.NewHMACVerifier(keyRepo, vault, logger, 15*time.Minute),
		auth.NewAPIKeyVerifier(keyRepo, logger),
		auth.NewBearerVerifier(identity, tenantRepo),
		middleware.NewBypassEvaluator("development", testBypassSecret),
		logger,
	)
	rateLimiter := middleware.NewRateLimiter(middleware.NewLocalFixedWindowLimiter(), 300, 60, time.Minute, middleware.FailClosed, logger)
	idem := middleware.NewIdempotency(service.NewDBIdempotencyStore(db), "ingest", 24*time.Hour, logger)

	h := router.New(router.Dependencies{
		Admission:   admission,
		RateLimiter: rateLimiter,
		Idempotency: idem,
		Ingest:      handler.NewIngestHandler(landing),
		Keys:        handler.NewAPIKeyHandler(keySvc),
		Health:      handler.NewHealthHandler(db),
	})
	srv := httptest.NewServer(h)

	if err := tenantRepo.Create(context.Background(), &domain.Tenant{ID: testTenantID, Name: "Acme Foods", Slug: "acme-foods"}); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	ts := &testServer{
		URL:      srv.URL,
		DB:       db,
		Keys:     keySvc,
		KeyRepo:  keyRepo,
		Tenants:  tenantRepo,
		Triggers: triggers,
		close: func() {
			srv.Close()
			vaultSrv.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

// createStaticKey provisions a static credential and returns the one-time
// raw key plus its persisted record.
func (ts *testServer) createStaticKey(t *testing.T, name string, limit int, scopes ...string) (string, *domain.APIKey) {
	t.Helper()
	created, err := ts.Keys.Create(context.Background(), service.CreateKeyInput{
		TenantID:        testTenantID,
		Name:            name,
		Scopes:          scopes,
		RateLimitPerMin: limit,
		Environment:     "live",
	})
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	return created.RawKey, created.Key
}

func (ts *testServer) createHMACKey(t *testing.T, name string, scopes ...string) (*domain.APIKey, string) {
	t.Helper()
	created, err := ts.Keys.Create(context.Background(), service.CreateKeyInput{
		TenantID:    testTenantID,
		Name:        name,
		Scopes:      scopes,
		Environment: "live",
		HMAC:        true,
	})
	if err != nil {
		t.Fatalf("create hmac key: %v", err)
	}
	return created.Key, created.RawSecret
}

func (ts *testServer) linkUser(t *testing.T, email, role string, scopes ...string) {
	t.Helper()
	err := ts.Tenants.CreateLink(context.Background(), &domain.TenantUserLink{
		TenantID: testTenantID,
		Email:    email,
		Role:     role,
		Scopes:   domain.JoinScopes(scopes),
	})
	if err != nil {
		t.Fatalf("link user: %v", err)
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doRequest(t *testing.T, req *http.Request) (*http.Response, envelope) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode response %q: %v", raw, err)
		}
	}
	return resp, env
}

func ingestBody(ids ...string) []byte {
	var records []map[string]any
	for _, id := range ids {
		records = append(records, map[string]any{
			"source_record_id": id,
			"payload":          map[string]any{"sku": id, "name": "Item " + id},
		})
	}
	body, _ := json.Marshal(map[string]any{"records": records})
	return body
}

func mustToken(t *testing.T, subject, email string) string {
	t.Helper()
	token, err := security.SignIdentityToken(subject, email, testIdentitySecret, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func bearerRequest(t *testing.T, method, url, token string, body []byte) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func apiKeyPost(t *testing.T, url, rawKey string, body []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.APIKeyHeader, rawKey)
	return req
}

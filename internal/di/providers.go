package di

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/app"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/auth"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/config"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/database"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/handler"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/middleware"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/router"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/observability"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/repository"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(provideLogger)

var InfraSet = wire.NewSet(
	provideDB,
	provideRedis,
	provideStorage,
	provideVault,
	provideIdentityValidator,
	provideOrchestrator,
)

var RepositorySet = wire.NewSet(
	repository.NewAPIKeyRepository,
	repository.NewTenantRepository,
	repository.NewBronzeRepository,
)

var AuthSet = wire.NewSet(
	provideHMACVerifier,
	provideAPIKeyVerifier,
	provideBearerVerifier,
	provideBypassEvaluator,
)

var ServiceSet = wire.NewSet(
	provideLandingService,
	provideAPIKeyService,
	provideIdempotencyStore,
)

var HTTPSet = wire.NewSet(
	provideAdmission,
	provideRateLimiter,
	provideIdempotencyMiddleware,
	handler.NewIngestHandler,
	handler.NewAPIKeyHandler,
	handler.NewHealthHandler,
	provideRouterDependencies,
	router.New,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideIdempotencyCleaner, app.New)

func provideLogger(cfg *config.Config) *slog.Logger {
	return observability.NewLogger(cfg.LogLevel, cfg.Env)
}

func provideDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg.DatabaseURL, cfg.Env)
}

func provideRedis(cfg *config.Config) redis.UniversalClient {
	if !cfg.RedisEnabled {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
}

func provideStorage(cfg *config.Config) (service.ObjectStorage, error) {
	return service.NewMinIOStorage(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
}

func provideVault(cfg *config.Config) (*service.VaultClient, error) {
	if cfg.VaultBaseURL == "" {
		return nil, fmt.Errorf("VAULT_BASE_URL is required")
	}
	return service.NewVaultClient(cfg.VaultBaseURL, cfg.VaultToken), nil
}

func provideIdentityValidator(cfg *config.Config) auth.IdentityValidator {
	if cfg.IdentityBaseURL != "" {
		return service.NewRemoteIdentityClient(cfg.IdentityBaseURL)
	}
	return service.NewLocalIdentityValidator(cfg.IdentityJWTSecret)
}

func provideOrchestrator(cfg *config.Config) service.OrchestratorNotifier {
	if cfg.OrchestratorBaseURL == "" {
		return nil
	}
	return service.NewOrchestratorClient(cfg.OrchestratorBaseURL)
}

func provideHMACVerifier(keys repository.APIKeyRepository, vault *service.VaultClient, logger *slog.Logger, cfg *config.Config) *auth.HMACVerifier {
	return auth.NewHMACVerifier(keys, vault, logger, cfg.HMACMaxClockSkew)
}

func provideAPIKeyVerifier(keys repository.APIKeyRepository, logger *slog.Logger) *auth.APIKeyVerifier {
	return auth.NewAPIKeyVerifier(keys, logger)
}

func provideBearerVerifier(identity auth.IdentityValidator, tenants repository.TenantRepository) *auth.BearerVerifier {
	return auth.NewBearerVerifier(identity, tenants)
}

func provideBypassEvaluator(cfg *config.Config) *middleware.BypassEvaluator {
	return middleware.NewBypassEvaluator(cfg.Env, cfg.DevBypassSecret)
}

func provideLandingService(bronze repository.BronzeRepository, store service.ObjectStorage, orch service.OrchestratorNotifier, logger *slog.Logger, cfg *config.Config) *service.LandingService {
	return service.NewLandingService(bronze, store, orch, logger, cfg.LandingBatchSize, int(cfg.InlinePayloadLimit))
}

func provideAPIKeyService(keys repository.APIKeyRepository, vault *service.VaultClient, logger *slog.Logger) *service.APIKeyService {
	return service.NewAPIKeyService(keys, vault, logger)
}

func provideIdempotencyStore(cfg *config.Config, db *gorm.DB, client redis.UniversalClient) service.IdempotencyStore {
	if !cfg.IdempotencyEnabled {
		return nil
	}
	if cfg.IdempotencyRedisEnabled && client != nil {
		return service.NewRedisIdempotencyStore(client, "idem")
	}
	return service.NewDBIdempotencyStore(db)
}

func provideIdempotencyCleaner(store service.IdempotencyStore) app.IdempotencyCleaner {
	if dbStore, ok := store.(*service.DBIdempotencyStore); ok {
		return dbStore
	}
	return nil
}

func provideAdmission(hmac *auth.HMACVerifier, apiKey *auth.APIKeyVerifier, bearer *auth.BearerVerifier, bypass *middleware.BypassEvaluator, logger *slog.Logger) *middleware.Admission {
	return middleware.NewAdmission(hmac, apiKey, bearer, bypass, logger)
}

func provideRateLimiter(cfg *config.Config, client redis.UniversalClient, logger *slog.Logger) *middleware.RateLimiter {
	var limiter middleware.Limiter
	mode := middleware.FailClosed
	if cfg.RedisEnabled && client != nil {
		limiter = middleware.NewRedisFixedWindowLimiter(client, "ratelimit")
		mode = middleware.FailOpen
	} else {
		limiter = middleware.NewLocalFixedWindowLimiter()
	}
	return middleware.NewRateLimiter(limiter, cfg.DefaultReadLimitPerMin, cfg.DefaultWriteLimitPerMin, time.Minute, mode, logger)
}

func provideIdempotencyMiddleware(store service.IdempotencyStore, cfg *config.Config, logger *slog.Logger) *middleware.Idempotency {
	if store == nil {
		return nil
	}
	return middleware.NewIdempotency(store, "ingest", cfg.IdempotencyTTL, logger)
}

func provideRouterDependencies(
	admission *middleware.Admission,
	rateLimiter *middleware.RateLimiter,
	idempotency *middleware.Idempotency,
	ingest *handler.IngestHandler,
	keys *handler.APIKeyHandler,
	health *handler.HealthHandler,
) router.Dependencies {
	return router.Dependencies{
		Admission:   admission,
		RateLimiter: rateLimiter,
		Idempotency: idempotency,
		Ingest:      ingest,
		Keys:        keys,
		Health:      health,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// MigrationRunner opens the database and applies the schema, for the
// `migrate` subcommand.
type MigrationRunner struct {
	db *gorm.DB
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

func (m *MigrationRunner) Run() error {
	return database.Migrate(m.db)
}

// Package control wires the application together: storage selection,
// migrations, the provider registry, the prompt store, the retry
// executor, and the health/metrics HTTP server.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/rezoom-ai/promptgate/internal/core/config"
	"github.com/rezoom-ai/promptgate/internal/infra/llm/provider"
	"github.com/rezoom-ai/promptgate/internal/infra/llm/registry"
	"github.com/rezoom-ai/promptgate/internal/infra/llm/retry"
	"github.com/rezoom-ai/promptgate/internal/infra/rediscache"
	"github.com/rezoom-ai/promptgate/internal/infra/storage"
	"github.com/rezoom-ai/promptgate/internal/infra/storage/memory"
	"github.com/rezoom-ai/promptgate/internal/infra/storage/postgres"
	"github.com/rezoom-ai/promptgate/internal/prompting"
	"github.com/rezoom-ai/promptgate/internal/prompting/secret"
	"github.com/rezoom-ai/promptgate/migrations"
)

// Service is the assembled application.
type Service struct {
	cfg *config.AppConfig

	registry *registry.Registry
	store    *prompting.Store
	executor *retry.Executor
	server   *Server

	db    *postgres.DB
	cache *rediscache.Cache
	log   *slog.Logger
}

// NewService creates a Service with all dependencies initialized.
func NewService(cfg *config.AppConfig) (*Service, error) {
	log := slog.Default()

	// 1. Storage: PostgreSQL when configured, in-memory otherwise.
	var (
		templateRepo storage.TemplateRepository
		versionRepo  storage.VersionRepository
		abtestRepo   storage.ABTestRepository
		db           *postgres.DB
	)
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		goose.SetBaseFS(migrations.FS)
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "."); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		templateRepo = postgres.NewTemplateRepo(db)
		versionRepo = postgres.NewVersionRepo(db)
		abtestRepo = postgres.NewABTestRepo(db)
		log.Info("using PostgreSQL storage")
	} else {
		mem := memory.NewMemoryStorage()
		templateRepo = memory.NewTemplateRepo(mem)
		versionRepo = memory.NewVersionRepo(mem)
		abtestRepo = memory.NewABTestRepo(mem)
		log.Info("using memory storage")
	}

	// 2. Template cache: shared Redis when configured, else in-process.
	var (
		cache      prompting.Cache
		redisCache *rediscache.Cache
	)
	if cfg.Redis.URL != "" {
		var err error
		redisCache, err = rediscache.New(cfg.Redis, log)
		if err != nil {
			log.Warn("failed to connect to redis, using in-process cache", "error", err)
		} else {
			cache = redisCache
			log.Info("using redis template cache")
		}
	}

	// 3. Encryption codec, only when a key is configured.
	var codec *secret.Codec
	if cfg.Secret.EncryptionKey != "" {
		var err error
		codec, err = secret.NewCodec(cfg.Secret.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to init encryption: %w", err)
		}
	}

	store := prompting.NewStore(templateRepo, versionRepo, abtestRepo, cache, codec, log)

	// 4. Provider registry with periodic health checks.
	source := func() ([]config.ProviderConfig, error) {
		return cfg.ActiveProviders(), nil
	}
	reg := registry.New(source, registry.DefaultFactory, cfg.Registry.HealthCheckInterval, log)

	// 5. Retry executor shared by all provider calls.
	executor := retry.NewExecutor(retry.Policy{
		MaxRetries:        cfg.Retry.MaxRetries,
		InitialDelay:      cfg.Retry.InitialDelay,
		MaxDelay:          cfg.Retry.MaxDelay,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	})

	s := &Service{
		cfg:      cfg,
		registry: reg,
		store:    store,
		executor: executor,
		db:       db,
		cache:    redisCache,
		log:      log,
	}
	s.server = NewServer(s, cfg.Server.Port)
	return s, nil
}

// Start brings up the registry and the HTTP server.
func (s *Service) Start(ctx context.Context) error {
	if err := s.registry.Start(ctx); err != nil {
		return fmt.Errorf("failed to start provider registry: %w", err)
	}

	go func() {
		if err := s.server.Start(); err != nil {
			s.log.Error("health server failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts everything down.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("stopping promptgate...")

	if err := s.registry.Close(); err != nil {
		s.log.Warn("failed to close registry", "error", err)
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.log.Warn("failed to close redis", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("failed to close database", "error", err)
		}
	}

	return s.server.Stop(ctx)
}

// Prompts exposes the template store.
func (s *Service) Prompts() *prompting.Store { return s.store }

// Providers exposes the provider registry.
func (s *Service) Providers() *registry.Registry { return s.registry }

// Call sends a chat request to the named provider, retrying transient
// failures per the configured policy.
func (s *Service) Call(
	ctx context.Context,
	providerName string,
	req provider.ChatRequest,
) (*provider.ChatResponse, error) {
	p, err := s.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	result, err := s.executor.Do(ctx, func(ctx context.Context) (any, error) {
		return p.Call(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*provider.ChatResponse), nil
}

// Stream opens a streaming chat with the named provider. Streams are
// not retried: once chunks have been delivered the call is not safe to
// repeat.
func (s *Service) Stream(
	ctx context.Context,
	providerName string,
	req provider.ChatRequest,
) (<-chan provider.Chunk, error) {
	p, err := s.registry.Get(providerName)
	if err != nil {
		return nil, err
	}
	return p.Stream(ctx, req)
}

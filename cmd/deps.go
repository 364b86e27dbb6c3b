package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/batch"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/compute"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/compute/gemini"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/compute/workflow"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/listing"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/match"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/secrets"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/store"
)

const (
	defaultCacheDir       = ".match-cache"
	defaultComputeTimeout = 2 * time.Minute
)

// newCacheStore builds the object cache backend selected in the config.
func newCacheStore(cfg *CacheConfig) (store.Store, error) {
	backend := "filesystem"
	ttl := time.Duration(0)
	if cfg != nil {
		if cfg.Backend != "" {
			backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
		}
		ttl = cfg.TTL
	}

	switch backend {
	case "memory":
		return store.NewMemory(), nil
	case "filesystem":
		dir := defaultCacheDir
		if cfg != nil && cfg.Dir != "" {
			dir = cfg.Dir
		}
		return store.NewFilesystem(dir)
	case "redis":
		if cfg == nil || cfg.Redis == nil || cfg.Redis.URL == "" {
			return nil, fmt.Errorf("cache.redis.url is required for the redis backend")
		}
		return store.NewRedisFromURL(cfg.Redis.URL, cfg.Redis.Prefix, ttl)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", backend)
	}
}

// newComputeProvider builds the scoring provider selected in the config.
func newComputeProvider(ctx context.Context, cfg *ComputeConfig, logger *zap.Logger) (compute.Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("compute configuration is required")
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "workflow"
	}

	switch provider {
	case "workflow":
		if cfg.Workflow == nil || cfg.Workflow.Endpoint == "" {
			return nil, fmt.Errorf("compute.workflow.endpoint is required")
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name: "workflow api key",
			Env:  "WORKFLOW_API_KEY",
			File: cfg.Workflow.APIKeyFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set compute.workflow.api-key-file, WORKFLOW_API_KEY_FILE or WORKFLOW_API_KEY)", err)
		}

		clientLogger := logger.With(
			zap.String("provider", "workflow"),
			zap.String("endpoint", cfg.Workflow.Endpoint),
		)

		return workflow.New(cfg.Workflow.Endpoint, apiKey, cfg.Timeout, clientLogger), nil

	case "gemini":
		if cfg.Gemini == nil {
			return nil, fmt.Errorf("gemini configuration is required for the gemini provider")
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			Env:  "GEMINI_API_KEY",
			File: cfg.Gemini.APIKeyFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set compute.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
		}

		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
		if err != nil {
			return nil, err
		}

		providerLogger := logger.With(
			zap.String("provider", "gemini"),
			zap.String("model", generator.Model()),
		)

		return gemini.NewProvider(generator, cfg.Gemini.MaxLogLength, providerLogger), nil

	default:
		return nil, fmt.Errorf("unsupported compute provider: %s", cfg.Provider)
	}
}

// newCoordinator wires the store and provider into the batch coordinator.
func newCoordinator(ctx context.Context, config *Config, logger *zap.Logger) (*batch.Coordinator, error) {
	cacheStore, err := newCacheStore(config.Cache)
	if err != nil {
		return nil, fmt.Errorf("building cache store: %w", err)
	}

	provider, err := newComputeProvider(ctx, config.Compute, logger)
	if err != nil {
		return nil, fmt.Errorf("building compute provider: %w", err)
	}

	computeTimeout := defaultComputeTimeout
	if config.Compute != nil && config.Compute.Timeout > 0 {
		computeTimeout = config.Compute.Timeout
	}

	resolver := match.NewResolver(cacheStore, provider, computeTimeout, logger)

	concurrency, maxRetries, backoff := 0, 0, time.Duration(0)
	if config.Batch != nil {
		concurrency = config.Batch.Concurrency
		maxRetries = config.Batch.MaxRetries
		backoff = config.Batch.RetryBackoff
	}

	return batch.NewCoordinator(resolver, concurrency, maxRetries, backoff, logger), nil
}

// newListingSource builds the read-only job source selected in the config.
func newListingSource(ctx context.Context, cfg *ListingConfig) (listing.Source, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("listing configuration is required")
	}

	source := strings.ToLower(strings.TrimSpace(cfg.Source))
	if source == "" {
		source = "file"
	}

	switch source {
	case "file":
		if cfg.File == "" {
			return nil, nil, fmt.Errorf("listing.file is required for the file source")
		}
		return listing.NewFileSource(cfg.File), func() {}, nil
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, nil, fmt.Errorf("listing.postgres-url is required for the postgres source")
		}
		pg, err := listing.NewPostgresSource(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported listing source: %s", cfg.Source)
	}
}

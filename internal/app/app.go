// Package app wires the document store, optional shared tier and resolver
// from configuration. Both binaries start through Build.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/region-resolver/internal/cache/redisstore"
	"github.com/mohammed-shakir/region-resolver/internal/core/config"
	"github.com/mohammed-shakir/region-resolver/internal/core/health"
	"github.com/mohammed-shakir/region-resolver/internal/core/httpclient"
	"github.com/mohammed-shakir/region-resolver/internal/docstore"
	"github.com/mohammed-shakir/region-resolver/internal/index"
	"github.com/mohammed-shakir/region-resolver/internal/resolver"
)

type App struct {
	Resolver *resolver.Resolver
	Docs     *docstore.Cache
	Checks   map[string]health.Check

	redis *redisstore.Client
}

// Build connects to Redis when a shared tier is configured; a Redis that
// cannot be reached is a startup error.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if cfg.IndexBaseURL == "" {
		return nil, errors.New("app: index base url is required")
	}
	a := &App{Checks: map[string]health.Check{}}

	var backend docstore.Backend = docstore.NewHTTPBackend(httpclient.NewOutbound(cfg.FetchTimeout))
	if cfg.SharedTierEnabled() {
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("app: shared tier: %w", err)
		}
		a.redis = rc
		a.Checks["redis"] = rc.Ping
		backend = docstore.NewSharedTier(rc, backend, cfg.DocCacheTTL,
			docstore.WithOpTimeout(cfg.CacheOpTimeout),
			docstore.WithSharedLogger(logger),
		)
		logger.Info("shared document tier enabled", "redis", cfg.RedisAddr, "ttl", cfg.DocCacheTTL.String())
	}

	a.Docs = docstore.New(backend,
		docstore.WithTimeout(cfg.FetchTimeout),
		docstore.WithLogger(logger),
	)

	res, err := resolver.New(a.Docs, index.NewLayout(cfg.IndexBaseURL), resolver.Config{
		DetailedCountries:    cfg.DetailedCountries,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		GeometryCacheSize:    cfg.GeometryCacheSize,
	}, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Resolver = res
	return a, nil
}

func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

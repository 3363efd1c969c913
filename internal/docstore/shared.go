package docstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/region-resolver/internal/cache/keys"
	"github.com/mohammed-shakir/region-resolver/internal/core/observability"
)

// Store is the subset of the Redis client the shared tier needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// SharedTier fronts another backend with a store shared between processes.
// Store failures are logged and fall through to the next backend.
type SharedTier struct {
	store     Store
	next      Backend
	ttl       time.Duration
	namespace string
	opTimeout time.Duration
	logger    *slog.Logger
}

type SharedOption func(*SharedTier)

func WithNamespace(ns string) SharedOption {
	return func(s *SharedTier) { s.namespace = ns }
}

func WithOpTimeout(d time.Duration) SharedOption {
	return func(s *SharedTier) { s.opTimeout = d }
}

func WithSharedLogger(l *slog.Logger) SharedOption {
	return func(s *SharedTier) { s.logger = l }
}

func NewSharedTier(store Store, next Backend, ttl time.Duration, opts ...SharedOption) *SharedTier {
	s := &SharedTier{
		store:     store,
		next:      next,
		ttl:       ttl,
		namespace: "regions",
		opTimeout: 250 * time.Millisecond,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// returns context with timeout if set
func (s *SharedTier) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *SharedTier) Get(ctx context.Context, url string) ([]byte, error) {
	key := keys.DocKey(s.namespace, url)

	sctx, cancel := s.withTimeout(ctx)
	b, ok, err := s.store.Get(sctx, key)
	cancel()
	switch {
	case err != nil:
		s.logger.Warn("shared tier get error, continuing with fetch path", "url", url, "err", err)
	case ok:
		observability.IncDocCache("shared_tier_hit")
		return b, nil
	}

	b, err = s.next.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if !json.Valid(b) {
		// let the cache report the parse failure; do not share bad bodies
		return b, nil
	}

	sctx, cancel = s.withTimeout(ctx)
	defer cancel()
	if err := s.store.Set(sctx, key, b, s.ttl); err != nil {
		s.logger.Warn("shared tier set error", "url", url, "err", err)
	}
	return b, nil
}

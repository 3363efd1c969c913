// Package docstore fetches index and geometry documents by URL and keeps
// every successfully parsed document for the lifetime of the cache.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mohammed-shakir/region-resolver/internal/core/observability"
)

// Backend retrieves raw document bodies.
type Backend interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Document is a fetched body that is known to be valid JSON.
type Document struct {
	URL  string
	Body json.RawMessage
}

// Decode unmarshals the body into v, reporting failures as *ParseError.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Body, v); err != nil {
		return &ParseError{URL: d.URL, Err: err}
	}
	return nil
}

type call struct {
	done chan struct{}
	doc  Document
	err  error
}

// Cache is write-once per URL with no eviction. Concurrent requests for the
// same URL share a single backend fetch; failures are not stored.
type Cache struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	docs     map[string]Document
	inflight map[string]*call
}

type Option func(*Cache)

// WithTimeout bounds every backend fetch.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func New(b Backend, opts ...Option) *Cache {
	c := &Cache{
		backend:  b,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		docs:     make(map[string]Document),
		inflight: make(map[string]*call),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch returns the document at url. A caller that gives up only fails
// itself; the shared fetch keeps running for the others.
func (c *Cache) Fetch(ctx context.Context, url string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, &FetchError{URL: url, Err: err}
	}
	c.mu.Lock()
	if d, ok := c.docs[url]; ok {
		c.mu.Unlock()
		observability.IncDocCache("hit")
		return d, nil
	}
	cl, ok := c.inflight[url]
	if ok {
		observability.IncDocCache("shared")
	} else {
		cl = &call{done: make(chan struct{})}
		c.inflight[url] = cl
		observability.IncDocCache("miss")
		// detached from the caller: a cancelled caller must not fail the
		// others sharing this fetch; the fetch timeout still applies
		go c.run(context.WithoutCancel(ctx), url, cl)
	}
	c.mu.Unlock()

	select {
	case <-cl.done:
		return cl.doc, cl.err
	case <-ctx.Done():
		return Document{}, &FetchError{URL: url, Err: ctx.Err()}
	}
}

func (c *Cache) run(ctx context.Context, url string, cl *call) {
	cl.doc, cl.err = c.load(ctx, url)

	c.mu.Lock()
	if cl.err == nil {
		c.docs[url] = cl.doc
	}
	delete(c.inflight, url)
	c.mu.Unlock()
	close(cl.done)
}

func (c *Cache) load(ctx context.Context, url string) (Document, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := c.backend.Get(ctx, url)
	if err != nil {
		observability.IncFetchError("fetch")
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{URL: url, Err: err}
		}
		c.logger.Warn("document fetch failed", "url", url, "err", err)
		return Document{}, err
	}

	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		observability.IncFetchError("parse")
		perr := &ParseError{URL: url, Err: err}
		c.logger.Warn("document parse failed", "url", url, "err", perr)
		return Document{}, perr
	}
	c.logger.Debug("document cached", "url", url, "bytes", len(raw))
	return Document{URL: url, Body: raw}, nil
}

// Len reports how many documents are stored.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

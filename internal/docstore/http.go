package docstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammed-shakir/region-resolver/internal/core/observability"
)

// documents larger than this are rejected rather than buffered
const maxDocumentBytes = 64 << 20

// HTTPBackend reads documents from the remote document store.
type HTTPBackend struct {
	client *http.Client
}

func NewHTTPBackend(client *http.Client) *HTTPBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBackend{client: client}
}

func (h *HTTPBackend) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json, application/geo+json")

	start := time.Now()
	resp, err := h.client.Do(req)
	observability.ObserveUpstreamLatency("http", time.Since(start).Seconds())
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("do request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(b) > maxDocumentBytes {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("document exceeds %d bytes", maxDocumentBytes)}
	}
	return b, nil
}

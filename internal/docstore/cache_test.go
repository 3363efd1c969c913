package docstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newCountingServer(t *testing.T, h http.HandlerFunc) *countingServer {
	t.Helper()
	cs := &countingServer{hits: map[string]int{}}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		cs.hits[r.URL.Path]++
		cs.mu.Unlock()
		h(w, r)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *countingServer) count(path string) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.hits[path]
}

func TestFetch_SecondCallServedFromCache(t *testing.T) {
	srv := newCountingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"USA":{"name":"United States"}}`))
	})
	c := New(NewHTTPBackend(srv.Client()))
	ctx := context.Background()

	d1, err := c.Fetch(ctx, srv.URL+"/countries.json")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	d2, err := c.Fetch(ctx, srv.URL+"/countries.json")
	if err != nil {
		t.Fatalf("Fetch second: %v", err)
	}
	if string(d1.Body) != string(d2.Body) {
		t.Fatalf("cached body differs")
	}
	if n := srv.count("/countries.json"); n != 1 {
		t.Fatalf("upstream hits=%d want 1", n)
	}
	if c.Len() != 1 {
		t.Fatalf("Len=%d want 1", c.Len())
	}

	var v map[string]struct {
		Name string `json:"name"`
	}
	if err := d2.Decode(&v); err != nil || v["USA"].Name != "United States" {
		t.Fatalf("Decode: %v %+v", err, v)
	}
}

func TestFetch_ConcurrentCallersShareOneFetch(t *testing.T) {
	release := make(chan struct{})
	srv := newCountingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{}`))
	})
	c := New(NewHTTPBackend(srv.Client()))

	const n = 16
	var wg sync.WaitGroup
	var failures atomic.Int32
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			if _, err := c.Fetch(context.Background(), srv.URL+"/a.json"); err != nil {
				failures.Add(1)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("%d callers failed", failures.Load())
	}
	if got := srv.count("/a.json"); got != 1 {
		t.Fatalf("upstream hits=%d want 1", got)
	}
}

func TestFetch_StatusErrorIsFetchError_AndNotCached(t *testing.T) {
	srv := newCountingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	c := New(NewHTTPBackend(srv.Client()))

	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), srv.URL+"/missing.json")
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("want *FetchError, got %T %v", err, err)
		}
		if fe.StatusCode != http.StatusNotFound || fe.Body != "nope" {
			t.Fatalf("unexpected fetch error %+v", fe)
		}
	}
	if n := srv.count("/missing.json"); n != 2 {
		t.Fatalf("failures must not be cached; upstream hits=%d want 2", n)
	}
	if c.Len() != 0 {
		t.Fatalf("Len=%d want 0", c.Len())
	}
}

func TestFetch_InvalidBodyIsParseError(t *testing.T) {
	srv := newCountingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})
	c := New(NewHTTPBackend(srv.Client()))

	_, err := c.Fetch(context.Background(), srv.URL+"/bad.json")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want *ParseError, got %T %v", err, err)
	}
	if pe.URL != srv.URL+"/bad.json" {
		t.Fatalf("unexpected url %q", pe.URL)
	}
}

func TestFetch_TimeoutBoundsSlowUpstream(t *testing.T) {
	release := make(chan struct{})
	srv := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	c := New(NewHTTPBackend(srv.Client()), WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.Fetch(context.Background(), srv.URL+"/slow.json")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("want *FetchError, got %T %v", err, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded in chain, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not applied")
	}
}

type stubBackend struct {
	body []byte
	err  error
	n    int
}

func (s *stubBackend) Get(context.Context, string) ([]byte, error) {
	s.n++
	return s.body, s.err
}

func TestFetch_PlainBackendErrorIsWrapped(t *testing.T) {
	b := &stubBackend{err: errors.New("disk gone")}
	_, err := New(b).Fetch(context.Background(), "file:///x.json")
	var fe *FetchError
	if !errors.As(err, &fe) || fe.URL != "file:///x.json" {
		t.Fatalf("want wrapped *FetchError, got %T %v", err, err)
	}
}

func TestFetch_CancelledCallerDoesNotFailOthers(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	srv := newCountingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		started <- struct{}{}
		<-release
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	c := New(NewHTTPBackend(srv.Client()))
	url := srv.URL + "/slow.json"

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctxA, url)
		errA <- err
	}()
	<-started

	type result struct {
		doc Document
		err error
	}
	resB := make(chan result, 1)
	go func() {
		d, err := c.Fetch(context.Background(), url)
		resB <- result{d, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: want context.Canceled, got %v", err)
	}
	close(release)

	r := <-resB
	if r.err != nil {
		t.Fatalf("live caller failed with the other caller's cancellation: %v", r.err)
	}
	if string(r.doc.Body) != `{"ok":true}` {
		t.Fatalf("unexpected body %s", r.doc.Body)
	}
	if n := srv.count("/slow.json"); n != 1 {
		t.Fatalf("upstream hits=%d want 1", n)
	}
	if c.Len() != 1 {
		t.Fatalf("Len=%d want 1", c.Len())
	}
}

func TestFetch_AlreadyCancelledSkipsBackend(t *testing.T) {
	b := &stubBackend{body: []byte(`{}`)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(b).Fetch(ctx, "file:///x.json")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if b.n != 0 {
		t.Fatalf("backend called %d times", b.n)
	}
}

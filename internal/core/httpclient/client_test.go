package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewOutbound_SetsUserAgentAndTimeout(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewOutbound(2 * time.Second)
	if c.Timeout != 2*time.Second {
		t.Fatalf("timeout=%v", c.Timeout)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if got != userAgent {
		t.Fatalf("user agent=%q want %q", got, userAgent)
	}

	if NewOutbound(0).Timeout != 30*time.Second {
		t.Fatalf("zero timeout should fall back to default")
	}
}

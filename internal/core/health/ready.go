// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// Readiness runs every check with a shared deadline and answers 503 when
// any of them fails.
func Readiness(checks map[string]Check, timeout time.Duration) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	names := make([]string, 0, len(checks))
	for n := range checks {
		names = append(names, n)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status  string            `json:"status"`
			Failing map[string]string `json:"failing,omitempty"`
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		out := resp{Status: "ready"}
		for _, n := range names {
			if err := checks[n](ctx); err != nil {
				if out.Failing == nil {
					out.Failing = map[string]string{}
				}
				out.Failing[n] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(out.Failing) > 0 {
			out.Status = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"errors"
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

// Check returns nil when its dependency is usable.
type Check func(ctx context.Context) error

type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

// ConsumerCheck fails until the Kafka group has assigned partitions.
func ConsumerCheck(rr ReadinessReporter) Check {
	return func(context.Context) error {
		if ok, _ := rr.Readiness(); !ok {
			return errNotAssigned
		}
		return nil
	}
}

var errNotAssigned = errors.New("no partitions assigned")

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Readiness runs every check with a shared timeout and answers 503 if any
// fails.
func Readiness(timeout time.Duration, checks map[string]Check) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	names := make([]string, 0, len(checks))
	for n := range checks {
		names = append(names, n)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		out := readyResponse{Status: "ready", Checks: map[string]string{}}
		for _, n := range names {
			if err := checks[n](ctx); err != nil {
				out.Status = "not_ready"
				out.Checks[n] = err.Error()
				continue
			}
			out.Checks[n] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

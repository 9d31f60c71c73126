package health

import (
	"context"
	"net/http"
	"slices"
	"time"

	json "github.com/goccy/go-json"
)

// ReadinessReporter is implemented by the invalidation runner.
type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

// Pinger is a dependency checked on every readiness probe, e.g. Redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Readiness is ready when rr (if set) reports ready and every pinger
// answers within a second. Failing pingers are listed by name.
func Readiness(rr ReadinessReporter, pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status     string   `json:"status"`
			Partitions []int32  `json:"partitions,omitempty"`
			Failing    []string `json:"failing,omitempty"`
		}

		ready := true
		var parts []int32
		if rr != nil {
			ready, parts = rr.Readiness()
			if !ready {
				parts = nil
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		var failing []string
		for name, p := range pingers {
			if err := p.Ping(ctx); err != nil {
				failing = append(failing, name)
			}
		}
		slices.Sort(failing)
		if len(failing) > 0 {
			ready = false
		}

		out := resp{Status: "not_ready", Failing: failing}
		if ready {
			out.Status = "ready"
			out.Partitions = parts
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

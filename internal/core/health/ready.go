package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Checker is a dependency the service needs before it can serve, such as
// the descriptor store.
type Checker interface {
	Check(ctx context.Context) error
}

type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// ReadinessReporter is implemented by background consumers that become
// ready once they own partitions.
type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

type Options struct {
	Timeout  time.Duration
	Checks   map[string]Checker
	Consumer ReadinessReporter
}

func Readiness(opts Options) http.HandlerFunc {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status     string            `json:"status"`
			Checks     map[string]string `json:"checks,omitempty"`
			Partitions []int32           `json:"partitions,omitempty"`
		}
		ctx, cancel := context.WithTimeout(r.Context(), opts.Timeout)
		defer cancel()

		out := resp{Status: "ready"}
		ready := true
		if len(opts.Checks) > 0 {
			out.Checks = make(map[string]string, len(opts.Checks))
		}
		for name, c := range opts.Checks {
			if err := c.Check(ctx); err != nil {
				ready = false
				out.Checks[name] = err.Error()
				continue
			}
			out.Checks[name] = "ok"
		}
		if opts.Consumer != nil {
			ok, parts := opts.Consumer.Readiness()
			if ok {
				out.Partitions = parts
			} else {
				ready = false
			}
		}
		if !ready {
			out.Status = "not_ready"
		}

		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/pgtask/pkg/logger"
)

// Check is a named dependency probe used by ReadinessHandler.
type Check struct {
	Name  string
	Probe func(context.Context) error
}

// HealthStatus is the body written by the health handlers.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const (
	StatusAlive    = "alive"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// LivenessHandler always answers 200 while the process serves HTTP.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, HealthStatus{Status: StatusAlive})
	}
}

// ReadinessHandler runs every check with the request context, each bounded
// by timeout when it is positive. All checks run even after a failure so
// the body reports each dependency. Any failure answers 503.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		res := HealthStatus{Status: StatusReady, Checks: make(map[string]string, len(checks))}

		for _, c := range checks {
			ctx := r.Context()
			var cancel context.CancelFunc = func() {}
			if timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
			}
			err := c.Probe(ctx)
			cancel()

			if err != nil {
				log.WarnContext(r.Context(), "readiness check failed", slog.String("check", c.Name), logger.Error(err))
				res.Status = StatusNotReady
				res.Checks[c.Name] = err.Error()
				continue
			}
			res.Checks[c.Name] = "ok"
		}

		status := http.StatusOK
		if res.Status != StatusReady {
			status = http.StatusServiceUnavailable
		}
		WriteJSON(w, status, res)
	}
}

package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const healthResponse = `{"status":"ok"}`

// defaultHealthTimeout bounds the whole dependency probe.
const defaultHealthTimeout = 2 * time.Second

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports readiness of the configured dependencies.
type HealthHandler struct {
	Checks  map[string]HealthCheck
	Timeout time.Duration
	Logger  *slog.Logger
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ServeHTTP runs every check concurrently and answers 200 when all pass, 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.Checks))
		healthy = true
		g       errgroup.Group
	)
	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		check := h.Checks[name]
		g.Go(func() error {
			err := check(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				healthy = false
				results[name] = "down"
				if h.Logger != nil {
					h.Logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
				}
				return nil
			}
			results[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	noStore(w)
	if !healthy {
		WriteJSON(w, http.StatusServiceUnavailable, healthReport{Status: "degraded", Checks: results})
		return
	}
	WriteJSON(w, http.StatusOK, healthReport{Status: "ok", Checks: results})
}

package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker reports whether the process is ready to accept RPCs, e.g.
// whether Manager.RecoverState has completed.
type HealthChecker interface {
	Healthy() bool
}

// ReadyFlag is the HealthChecker cmd/ari flips once RecoverState and bus
// registration both complete, per spec.md §5's crash-recovery ordering.
type ReadyFlag struct {
	ready atomic.Bool
}

func (f *ReadyFlag) SetReady()     { f.ready.Store(true) }
func (f *ReadyFlag) Healthy() bool { return f.ready.Load() }

var _ HealthChecker = (*ReadyFlag)(nil)

// NewHTTPHandler builds the process's sidecar HTTP surface: /healthz for
// liveness/readiness probes and /metrics for Prometheus scraping.
func NewHTTPHandler(reg *prometheus.Registry, checker HealthChecker) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := http.StatusOK
		body := map[string]any{"status": "ok"}
		if checker != nil && !checker.Healthy() {
			status = http.StatusServiceUnavailable
			body["status"] = "recovering"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return r
}

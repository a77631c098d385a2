package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// OpsConfig lists what the operational endpoints expose.
type OpsConfig struct {
	// Gatherer backs /metrics. Nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Checks are run by /ready, keyed by dependency name.
	Checks map[string]Check

	// CheckTimeout bounds each readiness check. Default: 2s
	CheckTimeout time.Duration
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// NewOps builds the handler for /health, /ready and /metrics.
func NewOps(cfg OpsConfig, logger *slog.Logger) *Router {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 2 * time.Second
	}

	r := New(Recovery(logger), Logger(logger))

	r.Handle(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	// Liveness: the process is serving.
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		body := readiness{Status: "ok", Checks: make(map[string]string, len(cfg.Checks))}
		status := http.StatusOK

		for name, check := range cfg.Checks {
			ctx, cancel := context.WithTimeout(req.Context(), cfg.CheckTimeout)
			err := check(ctx)
			cancel()

			if err != nil {
				logger.Warn("readiness check failed", "check", name, "error", err)
				body.Checks[name] = err.Error()
				body.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			body.Checks[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})

	return r
}

// Package api wires the HTTP surface of the workflow engine: routing,
// request/response envelopes, and the handlers themselves.
package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/genflow-ai/genflow/api/handlers"
	"github.com/genflow-ai/genflow/history"
	"github.com/genflow-ai/genflow/internal/metrics"
)

// RouterConfig collects the dependencies of the HTTP router. Store, Metrics,
// and Checks are optional.
type RouterConfig struct {
	Runner  handlers.Runner
	Store   *history.Store
	Metrics *metrics.Collector
	Logger  *zap.Logger
	Version string
	Checks  []handlers.HealthCheck
}

// NewRouter builds the API mux. Routes follow the /api/v1 prefix convention;
// health and version endpoints sit at the root.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	wf := handlers.NewWorkflowHandler(cfg.Runner, cfg.Store, cfg.Metrics, logger)
	health := handlers.NewHealthHandler(cfg.Version, logger, cfg.Checks...)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion)

	mux.HandleFunc("POST /api/v1/workflow/validate", wf.HandleValidate)
	mux.HandleFunc("POST /api/v1/workflow/execute", wf.HandleExecute)
	mux.HandleFunc("POST /api/v1/workflow/steps", wf.HandleSteps)
	mux.HandleFunc("GET /api/v1/workflow/executions/{user_id}", wf.HandleListExecutions)
	mux.HandleFunc("GET /api/v1/workflow/execution/{id}", wf.HandleGetExecution)
	mux.HandleFunc("GET /api/v1/workflow/stats", wf.HandleStats)

	return instrument(mux, cfg.Metrics, logger)
}

// NewMetricsRouter builds the mux for the separate metrics listener. A nil
// gatherer falls back to the default registry.
func NewMetricsRouter(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	if gatherer == nil {
		mux.Handle("/metrics", promhttp.Handler())
	} else {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// instrument wraps the mux with request logging and HTTP metrics.
func instrument(next http.Handler, collector *metrics.Collector, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := handlers.NewResponseWriter(w)
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		if collector != nil {
			collector.RecordHTTPRequest(r.Method, r.URL.Path, rw.StatusCode, elapsed)
		}
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.StatusCode),
			zap.Duration("duration", elapsed),
		)
	})
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthCheck probes a single dependency.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckResult is the outcome of one dependency probe.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthStatus aggregates the probe results.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// HealthHandler serves liveness and readiness endpoints.
type HealthHandler struct {
	version string
	checks  []HealthCheck
	logger  *zap.Logger
}

// NewHealthHandler creates a health handler with the given dependency checks.
func NewHealthHandler(version string, logger *zap.Logger, checks ...HealthCheck) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		version: version,
		checks:  checks,
		logger:  logger.With(zap.String("component", "health")),
	}
}

// HandleHealth reports overall health including dependency checks.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:    "healthy",
		Version:   h.version,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(h.checks)),
	}

	code := http.StatusOK
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			h.logger.Warn("health check failed",
				zap.String("check", check.Name()),
				zap.Error(err),
			)
			status.Status = "degraded"
			status.Checks[check.Name()] = CheckResult{Status: "unhealthy", Message: err.Error()}
			code = http.StatusServiceUnavailable
			continue
		}
		status.Checks[check.Name()] = CheckResult{Status: "healthy"}
	}

	WriteJSON(w, code, status)
}

// HandleHealthz is a bare liveness probe.
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReady reports readiness, failing when any dependency check fails.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"check":  check.Name(),
				"error":  err.Error(),
			})
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleVersion reports the build version.
func (h *HealthHandler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"version": h.version})
}

// DatabaseHealthCheck probes the history database.
type DatabaseHealthCheck struct {
	DB *gorm.DB
}

func (c *DatabaseHealthCheck) Name() string { return "database" }

func (c *DatabaseHealthCheck) Check(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

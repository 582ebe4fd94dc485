package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler handles GET /health, the liveness probe.
// Returns 200 immediately; confirms the process is alive.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Dependency is a backing service the readiness probe pings.
type Dependency struct {
	Name     string
	Ping     func(ctx context.Context) error
	Optional bool // a failing optional dependency degrades nothing
}

// ReadinessHandler handles GET /health/ready.
type ReadinessHandler struct {
	deps     []Dependency
	features map[string]bool
}

// NewReadinessHandler checks deps on every call. features are reported as
// "enabled"/"disabled" without being pinged.
func NewReadinessHandler(deps []Dependency, features map[string]bool) *ReadinessHandler {
	return &ReadinessHandler{deps: deps, features: features}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
	Features     map[string]string           `json:"features,omitempty"`
}

func (h *ReadinessHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]dependencyStatus, len(h.deps))
	healthy := true

	for _, d := range h.deps {
		if err := d.Ping(ctx); err != nil {
			deps[d.Name] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			if !d.Optional {
				healthy = false
			}
			continue
		}
		deps[d.Name] = dependencyStatus{Status: "ok"}
	}

	var features map[string]string
	if len(h.features) > 0 {
		features = make(map[string]string, len(h.features))
		for name, on := range h.features {
			features[name] = "disabled"
			if on {
				features[name] = "enabled"
			}
		}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
		Features:     features,
	})
}

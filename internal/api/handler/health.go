package handler

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/api/response"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checks map[string]Check
	log    zerolog.Logger
}

// NewHealthHandler creates a HealthHandler. checks is keyed by dependency
// name, e.g. "mongodb" or "redis".
func NewHealthHandler(checks map[string]Check, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, log: log}
}

type dependencyStatus struct {
	Status string `json:"status"`
}

// Liveness handles GET /api/v1/healthcheck: 200 as long as the process serves requests.
//
// @Summary      Liveness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  response.OK
// @Router       /healthcheck [get]
func (h *HealthHandler) Liveness(c echo.Context) error {
	return response.Success(c, http.StatusOK, "OK", "service is up and running")
}

// Readiness handles GET /api/v1/healthcheck/ready: pings every dependency
// before declaring the service ready.
//
// @Summary      Readiness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  response.OK
// @Failure      503  {object}  response.Err
// @Router       /healthcheck/ready [get]
func (h *HealthHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string]dependencyStatus, len(names))
	var failed []string
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
			failed = append(failed, name)
			continue
		}
		deps[name] = dependencyStatus{Status: "ok"}
	}

	if len(failed) > 0 {
		return response.Error(c, http.StatusServiceUnavailable, "unavailable", "degraded: "+strings.Join(failed, ", "))
	}
	return response.Success(c, http.StatusOK, deps, "ok")
}

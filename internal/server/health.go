package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Sujin1135/mangonaut/internal/pipeline"
)

const healthCheckTimeout = 5 * time.Second

// componentHealth is one provider's health.
type componentHealth struct {
	Status string `json:"status"`
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentHealth `json:"components"`
}

// HealthHandler probes every provider and reports aggregate health.
type HealthHandler struct {
	source pipeline.ErrorSource
	scm    pipeline.Scm
	llm    pipeline.Llm
	logger *zap.Logger
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(source pipeline.ErrorSource, scm pipeline.Scm, llm pipeline.Llm, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{source: source, scm: scm, llm: llm, logger: logger}
}

// Handle processes GET /health. The three provider checks run
// concurrently; the response is always 200, with DEGRADED status when
// any provider is down.
func (h *HealthHandler) Handle(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	checks := []struct {
		name  string
		check func() bool
	}{
		{h.source.Name(), func() bool { return h.source.HealthCheck(ctx) }},
		{h.scm.Name(), func() bool { return h.scm.HealthCheck(ctx) }},
		{h.llm.Name(), func() bool { return h.llm.HealthCheck(ctx) }},
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	components := make(map[string]componentHealth, len(checks))
	for _, probe := range checks {
		wg.Add(1)
		go func(name string, check func() bool) {
			defer wg.Done()
			status := "DOWN"
			if check() {
				status = "UP"
			}
			mu.Lock()
			components[name] = componentHealth{Status: status}
			mu.Unlock()
		}(probe.name, probe.check)
	}
	wg.Wait()

	overall := "UP"
	for name, component := range components {
		if component.Status != "UP" {
			overall = "DEGRADED"
			h.logger.Warn("component unhealthy", zap.String("component", name))
		}
	}

	return c.JSON(http.StatusOK, healthResponse{
		Status:     overall,
		Components: components,
	})
}

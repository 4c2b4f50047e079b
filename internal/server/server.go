// Package server exposes the HTTP boundary: the Sentry webhook endpoint
// and the aggregate health check.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Sujin1135/mangonaut/internal/config"
)

// webhookBodyLimit caps incoming payloads; Sentry alert bodies are far
// below this.
const webhookBodyLimit = "1M"

// Server wires the handlers into an echo instance.
type Server struct {
	echo   *echo.Echo
	logger *zap.Logger
	cfg    config.ServerConfig
}

// New creates the HTTP server.
func New(cfg config.ServerConfig, webhook *WebhookHandler, health *HealthHandler, logger *zap.Logger) (*Server, error) {
	if webhook == nil {
		return nil, fmt.Errorf("webhook handler cannot be nil")
	}
	if health == nil {
		return nil, fmt.Errorf("health handler cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(webhookBodyLimit))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 60 * time.Second

	e.POST("/webhooks/sentry", webhook.Handle)
	e.GET("/health", health.Handle)

	return &Server{echo: e, logger: logger, cfg: cfg}, nil
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Package sentry adapts the Sentry REST API to the pipeline's error
// source port, normalizing the latest event of an issue into a domain
// ErrorEvent.
package sentry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Sujin1135/mangonaut/internal/apperr"
	"github.com/Sujin1135/mangonaut/internal/config"
	"github.com/Sujin1135/mangonaut/internal/domain"
)

// Client fetches error events from Sentry.
type Client struct {
	baseURL    string
	token      config.Secret
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Sentry client from configuration.
func NewClient(cfg config.SentryConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Name identifies the error source.
func (c *Client) Name() string { return "sentry" }

// FetchEvent retrieves the latest event of an issue and maps it to the
// domain model.
func (c *Client) FetchEvent(ctx context.Context, issueID string) (*domain.ErrorEvent, error) {
	var payload eventResponse
	if err := c.get(ctx, fmt.Sprintf("/api/0/issues/%s/events/latest/", issueID), &payload); err != nil {
		return nil, err
	}
	return payload.toDomain(issueID), nil
}

// HealthCheck reports whether the Sentry API answers at all.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/0/", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.token.Value())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < http.StatusBadRequest
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return apperr.Wrap(apperr.CodeSentryAPI, "building sentry request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token.Value())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.CodeSentryAPI, "calling sentry", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return apperr.Wrap(apperr.CodeSentryAPI, "reading sentry response", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return apperr.Newf(apperr.CodeNotFound, "sentry resource not found: %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		return apperr.Newf(apperr.CodeSentryAPI, "sentry returned %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Wrap(apperr.CodeSentryAPI, "decoding sentry response", err)
	}
	return nil
}

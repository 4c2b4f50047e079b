package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func performHealth(t *testing.T, h *HealthHandler) healthResponse {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Handle(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthAllUp(t *testing.T) {
	h := NewHealthHandler(
		&fakeSource{healthy: true},
		&fakeScm{healthy: true},
		&fakeLlm{healthy: true},
		nil)

	resp := performHealth(t, h)
	assert.Equal(t, "UP", resp.Status)
	assert.Equal(t, "UP", resp.Components["sentry"].Status)
	assert.Equal(t, "UP", resp.Components["github"].Status)
	assert.Equal(t, "UP", resp.Components["claude"].Status)
}

func TestHealthDegraded(t *testing.T) {
	h := NewHealthHandler(
		&fakeSource{healthy: true},
		&fakeScm{healthy: false},
		&fakeLlm{healthy: true},
		nil)

	resp := performHealth(t, h)
	assert.Equal(t, "DEGRADED", resp.Status)
	assert.Equal(t, "DOWN", resp.Components["github"].Status)
	assert.Equal(t, "UP", resp.Components["sentry"].Status)
}

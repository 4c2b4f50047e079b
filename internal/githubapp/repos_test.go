package githubapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryCacheRefresh(t *testing.T) {
	var mints atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/app/installations/67890/access_tokens":
			mints.Add(1)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"token":      "ghs_cache",
				"expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			})
		case "/installation/repositories":
			assert.Equal(t, "Bearer ghs_cache", r.Header.Get("Authorization"))
			assert.Equal(t, "100", r.URL.Query().Get("per_page"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"repositories": []map[string]any{
					{"id": 1, "name": "backend", "full_name": "acme/backend", "default_branch": "main"},
					{"id": 2, "name": "frontend", "full_name": "acme/frontend", "default_branch": "develop"},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	cache := NewRepositoryCache(newTestProvider(t, srv.URL), srv.URL, time.Minute, nil)
	assert.Empty(t, cache.Repositories())

	require.NoError(t, cache.Refresh(context.Background()))

	repos := cache.Repositories()
	require.Len(t, repos, 2)
	assert.Equal(t, "acme/backend", repos[0].FullName)
	assert.Equal(t, "develop", repos[1].DefaultBranch)
}

func TestRepositoryCacheKeepsOldListOnFailure(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/app/installations/67890/access_tokens":
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"token":      "ghs_cache",
				"expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			})
		case "/installation/repositories":
			if !healthy {
				http.Error(w, "boom", http.StatusBadGateway)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"repositories": []map[string]any{
					{"id": 1, "name": "backend", "full_name": "acme/backend", "default_branch": "main"},
				},
			})
		}
	}))
	defer srv.Close()

	cache := NewRepositoryCache(newTestProvider(t, srv.URL), srv.URL, time.Minute, nil)
	require.NoError(t, cache.Refresh(context.Background()))
	require.Len(t, cache.Repositories(), 1)

	healthy = false
	assert.Error(t, cache.Refresh(context.Background()))
	assert.Len(t, cache.Repositories(), 1, "stale list must survive a failed refresh")
}

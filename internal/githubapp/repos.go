package githubapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Sujin1135/mangonaut/internal/apperr"
)

// Repository is one repository the App installation can reach.
type Repository struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
}

type cachedRepositories struct {
	repositories []Repository
	fetchedAt    time.Time
}

// RepositoryCache keeps a best-effort-fresh list of the installation's
// repositories. Refreshes happen at startup and on a fixed interval;
// reads never block and may observe a stale list.
type RepositoryCache struct {
	tokens     *TokenProvider
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	ttl        time.Duration

	cached atomic.Pointer[cachedRepositories]
}

// NewRepositoryCache creates an empty cache; call Refresh or Run to
// populate it.
func NewRepositoryCache(tokens *TokenProvider, baseURL string, ttl time.Duration, logger *zap.Logger) *RepositoryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &RepositoryCache{
		tokens:     tokens,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		ttl:        ttl,
	}
	c.cached.Store(&cachedRepositories{})
	return c
}

// Repositories returns the cached list, possibly empty or stale.
func (c *RepositoryCache) Repositories() []Repository {
	return c.cached.Load().repositories
}

// Refresh fetches the installation's repositories and replaces the cache
// wholesale.
func (c *RepositoryCache) Refresh(ctx context.Context) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/installation/repositories?per_page=100", nil)
	if err != nil {
		return apperr.Wrap(apperr.CodeGitHubAPI, "building repository listing request", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersionHeader)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.CodeGitHubAPI, "listing installation repositories", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return apperr.Wrap(apperr.CodeGitHubAPI, "reading repository listing", err)
	}
	if resp.StatusCode != http.StatusOK {
		return apperr.Newf(apperr.CodeGitHubAPI, "repository listing returned %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		Repositories []Repository `json:"repositories"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apperr.Wrap(apperr.CodeGitHubAPI, "decoding repository listing", err)
	}

	c.cached.Store(&cachedRepositories{
		repositories: parsed.Repositories,
		fetchedAt:    time.Now(),
	})
	c.logger.Info("cached installation repositories",
		zap.Int("count", len(parsed.Repositories)))
	return nil
}

// Run refreshes immediately and then on every tick until ctx is
// cancelled. Refresh failures are logged and the previous list stays in
// place.
func (c *RepositoryCache) Run(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Error("initial repository refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Error("repository refresh failed", zap.Error(err))
			}
		}
	}
}

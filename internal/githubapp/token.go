// Package githubapp implements the GitHub App credential lifecycle:
// minting short-lived app JWTs, exchanging them for installation access
// tokens, caching the result, and keeping a best-effort list of the
// repositories the installation can reach.
package githubapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Sujin1135/mangonaut/internal/apperr"
	"github.com/Sujin1135/mangonaut/internal/config"
)

const (
	acceptHeader     = "application/vnd.github+json"
	apiVersionHeader = "2022-11-28"

	// jwtClockSkew backdates iat to tolerate clock drift between this
	// host and GitHub.
	jwtClockSkew = 60 * time.Second
	jwtLifetime  = 10 * time.Minute

	// staleWindow is how long before expiry a cached token stops being
	// served and a fresh one is minted.
	staleWindow = 5 * time.Minute
)

// cachedToken pairs a token with its expiry. The pair is swapped
// atomically as a unit; fields are never mutated after construction.
type cachedToken struct {
	token     string
	expiresAt time.Time
}

func (c *cachedToken) stale(now time.Time) bool {
	return !now.Before(c.expiresAt.Add(-staleWindow))
}

// TokenProvider mints and caches installation access tokens for one
// GitHub App installation. It is safe for concurrent use: reads hit the
// cache without locking, and a single mutator refreshes at a time.
type TokenProvider struct {
	cfg        config.GitHubConfig
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	cached atomic.Pointer[cachedToken]
	mintMu sync.Mutex
}

// NewTokenProvider creates a provider from the GitHub App configuration.
// The private key is parsed per mint so a malformed key fails individual
// token requests instead of startup.
func NewTokenProvider(cfg config.GitHubConfig, logger *zap.Logger) *TokenProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

// Token returns a valid installation access token, minting one only when
// the cached token is within the stale window of its expiry.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if cached := p.cached.Load(); cached != nil && !cached.stale(p.now()) {
		return cached.token, nil
	}

	p.mintMu.Lock()
	defer p.mintMu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if cached := p.cached.Load(); cached != nil && !cached.stale(p.now()) {
		return cached.token, nil
	}

	minted, err := p.mint(ctx)
	if err != nil {
		return "", err
	}
	p.cached.Store(minted)
	p.logger.Debug("minted installation token",
		zap.Time("expires_at", minted.expiresAt))
	return minted.token, nil
}

// installationTokenResponse is the token-issuance payload.
type installationTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (p *TokenProvider) mint(ctx context.Context) (*cachedToken, error) {
	assertion, err := p.appJWT()
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", p.cfg.BaseURL, p.cfg.InstallationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGitHubAPI, "building token request", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersionHeader)
	req.Header.Set("Authorization", "Bearer "+assertion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGitHubAPI, "exchanging app assertion", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGitHubAPI, "reading token response", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.CodeGitHubAPI, "token exchange returned %d: %s", resp.StatusCode, body)
	}

	var parsed installationTokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.CodeGitHubAPI, "decoding token response", err)
	}
	if parsed.Token == "" {
		return nil, apperr.New(apperr.CodeGitHubAPI, "token exchange returned an empty token")
	}
	return &cachedToken{token: parsed.Token, expiresAt: parsed.ExpiresAt}, nil
}

// appJWT builds the RS256-signed bearer assertion identifying the App.
func (p *TokenProvider) appJWT() (string, error) {
	key, err := ParsePrivateKey(p.cfg.PrivateKey.Value())
	if err != nil {
		return "", err
	}

	now := p.now()
	claims := jwt.RegisteredClaims{
		Issuer:    p.cfg.AppID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-jwtClockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtLifetime)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeConfiguration, "signing app assertion", err)
	}
	return signed, nil
}

package githubapp

import (
	"context"

	"golang.org/x/oauth2"
)

// tokenSource adapts TokenProvider to oauth2.TokenSource so the GitHub
// API client refreshes installation tokens transparently.
type tokenSource struct {
	ctx      context.Context
	provider *TokenProvider
}

// TokenSource returns an oauth2.TokenSource bound to ctx. The provider's
// own cache makes per-request Token calls cheap.
func (p *TokenProvider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, provider: p}
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	token, err := s.provider.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	cached := s.provider.cached.Load()
	return &oauth2.Token{AccessToken: token, Expiry: cached.expiresAt}, nil
}

// Package github adapts the GitHub REST API to the pipeline's SCM port.
// All calls authenticate with short-lived installation tokens supplied by
// the credential cache.
package github

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Sujin1135/mangonaut/internal/apperr"
	"github.com/Sujin1135/mangonaut/internal/domain"
)

// Client talks to GitHub on behalf of the App installation.
type Client struct {
	gh     *gh.Client
	logger *zap.Logger
}

// NewClient builds a GitHub client over the given token source. baseURL
// points at the API root and is overridable for GitHub Enterprise and
// tests.
func NewClient(ts oauth2.TokenSource, baseURL string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = 60 * time.Second

	client := gh.NewClient(httpClient)
	if baseURL != "" && baseURL != "https://api.github.com" {
		parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeConfiguration, "invalid github base url", err)
		}
		client.BaseURL = parsed
	}
	return &Client{gh: client, logger: logger}, nil
}

// Name identifies the SCM provider.
func (c *Client) Name() string { return "github" }

// GetFileContent fetches and decodes a file at the given ref.
func (c *Client) GetFileContent(ctx context.Context, repo domain.RepoID, path, ref string) (string, error) {
	file, _, _, err := c.gh.Repositories.GetContents(ctx, repo.Owner, repo.Repo, path,
		&gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", apperr.Wrap(apperr.CodeGitHubAPI, "fetching file "+path, err)
	}
	if file == nil {
		return "", apperr.Newf(apperr.CodeGitHubAPI, "path is not a file: %s", path)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", apperr.Wrap(apperr.CodeGitHubAPI, "decoding file "+path, err)
	}
	return content, nil
}

// ResolveFilePaths maps bare filenames to repository paths by walking the
// recursive git tree at ref. A filename resolves to the first blob whose
// path ends with it; unmatched filenames are absent from the result.
func (c *Client) ResolveFilePaths(ctx context.Context, repo domain.RepoID, filenames []string, ref string) (map[string]string, error) {
	tree, _, err := c.gh.Git.GetTree(ctx, repo.Owner, repo.Repo, ref, true)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGitHubAPI, "fetching git tree", err)
	}

	resolved := make(map[string]string, len(filenames))
	for _, filename := range filenames {
		for _, entry := range tree.Entries {
			if entry.GetType() != "blob" {
				continue
			}
			if strings.HasSuffix(entry.GetPath(), filename) {
				resolved[filename] = entry.GetPath()
				break
			}
		}
	}
	return resolved, nil
}

// CreateBranch points a new head branch at the tip of the base branch.
func (c *Client) CreateBranch(ctx context.Context, repo domain.RepoID, base, head string) error {
	ref, _, err := c.gh.Git.GetRef(ctx, repo.Owner, repo.Repo, "refs/heads/"+base)
	if err != nil {
		return apperr.Wrap(apperr.CodeGitHubAPI, "resolving base branch "+base, err)
	}

	_, _, err = c.gh.Git.CreateRef(ctx, repo.Owner, repo.Repo, &gh.Reference{
		Ref:    gh.String("refs/heads/" + head),
		Object: &gh.GitObject{SHA: ref.Object.SHA},
	})
	if err != nil {
		return apperr.Wrap(apperr.CodeGitHubAPI, "creating branch "+head, err)
	}
	return nil
}

// CommitFiles writes each change to the branch as its own commit via the
// contents API. Existing files need their current blob SHA, so each write
// is preceded by a lookup; a missing file means create.
func (c *Client) CommitFiles(ctx context.Context, repo domain.RepoID, branch string, changes []domain.FileChange, message string) error {
	for _, change := range changes {
		opts := &gh.RepositoryContentFileOptions{
			Message: gh.String(message),
			Content: []byte(change.Modified),
			Branch:  gh.String(branch),
		}

		existing, _, resp, err := c.gh.Repositories.GetContents(ctx, repo.Owner, repo.Repo, change.File,
			&gh.RepositoryContentGetOptions{Ref: branch})
		switch {
		case err == nil && existing != nil:
			opts.SHA = existing.SHA
		case resp != nil && resp.StatusCode == http.StatusNotFound:
			// New file, no SHA needed.
		case err != nil:
			return apperr.Wrap(apperr.CodeGitHubAPI, "checking existing file "+change.File, err)
		}

		if opts.SHA != nil {
			_, _, err = c.gh.Repositories.UpdateFile(ctx, repo.Owner, repo.Repo, change.File, opts)
		} else {
			_, _, err = c.gh.Repositories.CreateFile(ctx, repo.Owner, repo.Repo, change.File, opts)
		}
		if err != nil {
			return apperr.Wrap(apperr.CodeGitHubAPI, "committing file "+change.File, err)
		}
	}
	return nil
}

// CreatePullRequest opens a pull request and applies any labels. Label
// application failures are logged and swallowed; the PR already exists.
func (c *Client) CreatePullRequest(ctx context.Context, repo domain.RepoID, params domain.PrParams) (*domain.PrResult, error) {
	pr, _, err := c.gh.PullRequests.Create(ctx, repo.Owner, repo.Repo, &gh.NewPullRequest{
		Title: gh.String(params.Title),
		Body:  gh.String(params.Body),
		Head:  gh.String(params.HeadBranch),
		Base:  gh.String(params.BaseBranch),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGitHubAPI, "creating pull request", err)
	}

	if len(params.Labels) > 0 {
		_, _, err = c.gh.Issues.AddLabelsToIssue(ctx, repo.Owner, repo.Repo, pr.GetNumber(), params.Labels)
		if err != nil {
			c.logger.Warn("failed to label pull request",
				zap.Int("number", pr.GetNumber()),
				zap.Error(err))
		}
	}

	return &domain.PrResult{
		Number:  pr.GetNumber(),
		URL:     pr.GetURL(),
		HTMLURL: pr.GetHTMLURL(),
		State:   pr.GetState(),
	}, nil
}

// HasOpenPR reports whether an open pull request already exists for the
// head branch. Lookup failures count as no duplicate so a flaky API call
// cannot block remediation.
func (c *Client) HasOpenPR(ctx context.Context, repo domain.RepoID, headBranch string) bool {
	prs, _, err := c.gh.PullRequests.List(ctx, repo.Owner, repo.Repo, &gh.PullRequestListOptions{
		Head:  repo.Owner + ":" + headBranch,
		State: "open",
	})
	if err != nil {
		c.logger.Warn("duplicate PR check failed", zap.String("head", headBranch), zap.Error(err))
		return false
	}
	return len(prs) > 0
}

// HealthCheck reports whether the GitHub API is reachable.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, _, err := c.gh.Zen(ctx)
	return err == nil
}

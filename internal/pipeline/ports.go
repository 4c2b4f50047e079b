// Package pipeline orchestrates error remediation: fetch the error from
// its tracker, analyze it against repository source with an LLM, and gate
// the proposal into a pull request. Stages depend only on the narrow port
// interfaces below so providers can be swapped in tests.
package pipeline

import (
	"context"

	"github.com/Sujin1135/mangonaut/internal/domain"
)

// ErrorSource provides error events from a tracker.
type ErrorSource interface {
	Name() string
	FetchEvent(ctx context.Context, issueID string) (*domain.ErrorEvent, error)
	HealthCheck(ctx context.Context) bool
}

// Scm provides repository reads and writes on a code host.
type Scm interface {
	Name() string
	GetFileContent(ctx context.Context, repo domain.RepoID, path, ref string) (string, error)
	ResolveFilePaths(ctx context.Context, repo domain.RepoID, filenames []string, ref string) (map[string]string, error)
	CreateBranch(ctx context.Context, repo domain.RepoID, base, head string) error
	CommitFiles(ctx context.Context, repo domain.RepoID, branch string, changes []domain.FileChange, message string) error
	CreatePullRequest(ctx context.Context, repo domain.RepoID, params domain.PrParams) (*domain.PrResult, error)
	HasOpenPR(ctx context.Context, repo domain.RepoID, headBranch string) bool
	HealthCheck(ctx context.Context) bool
}

// Llm provides fix proposals for error events.
type Llm interface {
	Name() string
	AnalyzeError(ctx context.Context, event *domain.ErrorEvent, sourceFiles map[string]string) (*domain.FixResult, error)
	HealthCheck(ctx context.Context) bool
}

package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Sujin1135/mangonaut/internal/domain"
)

type mockErrorSource struct{ mock.Mock }

func (m *mockErrorSource) Name() string { return "mock-source" }

func (m *mockErrorSource) FetchEvent(ctx context.Context, issueID string) (*domain.ErrorEvent, error) {
	args := m.Called(ctx, issueID)
	event, _ := args.Get(0).(*domain.ErrorEvent)
	return event, args.Error(1)
}

func (m *mockErrorSource) HealthCheck(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

type mockScm struct{ mock.Mock }

func (m *mockScm) Name() string { return "mock-scm" }

func (m *mockScm) GetFileContent(ctx context.Context, repo domain.RepoID, path, ref string) (string, error) {
	args := m.Called(ctx, repo, path, ref)
	return args.String(0), args.Error(1)
}

func (m *mockScm) ResolveFilePaths(ctx context.Context, repo domain.RepoID, filenames []string, ref string) (map[string]string, error) {
	args := m.Called(ctx, repo, filenames, ref)
	resolved, _ := args.Get(0).(map[string]string)
	return resolved, args.Error(1)
}

func (m *mockScm) CreateBranch(ctx context.Context, repo domain.RepoID, base, head string) error {
	return m.Called(ctx, repo, base, head).Error(0)
}

func (m *mockScm) CommitFiles(ctx context.Context, repo domain.RepoID, branch string, changes []domain.FileChange, message string) error {
	return m.Called(ctx, repo, branch, changes, message).Error(0)
}

func (m *mockScm) CreatePullRequest(ctx context.Context, repo domain.RepoID, params domain.PrParams) (*domain.PrResult, error) {
	args := m.Called(ctx, repo, params)
	result, _ := args.Get(0).(*domain.PrResult)
	return result, args.Error(1)
}

func (m *mockScm) HasOpenPR(ctx context.Context, repo domain.RepoID, headBranch string) bool {
	return m.Called(ctx, repo, headBranch).Bool(0)
}

func (m *mockScm) HealthCheck(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

type mockLlm struct{ mock.Mock }

func (m *mockLlm) Name() string { return "mock-llm" }

func (m *mockLlm) AnalyzeError(ctx context.Context, event *domain.ErrorEvent, sourceFiles map[string]string) (*domain.FixResult, error) {
	args := m.Called(ctx, event, sourceFiles)
	result, _ := args.Get(0).(*domain.FixResult)
	return result, args.Error(1)
}

func (m *mockLlm) HealthCheck(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Sujin1135/mangonaut/internal/domain"
)

var analyzerRepo = domain.RepoID{Owner: "acme", Repo: "backend"}

func frameFor(filename string) domain.StackFrame {
	return domain.StackFrame{Filename: filename, Function: "fn", LineNo: 1, InApp: true}
}

func eventWithFrames(frames ...domain.StackFrame) *domain.ErrorEvent {
	return &domain.ErrorEvent{ID: "issue-1", StackTrace: frames}
}

func TestAnalyzeDeduplicatesFilenames(t *testing.T) {
	scm := &mockScm{}
	llm := &mockLlm{}

	// Two frames name the same file; only one fetch may happen.
	event := eventWithFrames(frameFor("a/Runner.kt"), frameFor("a/Runner.kt"))

	scm.On("GetFileContent", mock.Anything, analyzerRepo, "src/a/Runner.kt", "main").
		Return("content", nil).Once()
	llm.On("AnalyzeError", mock.Anything, event, map[string]string{"a/Runner.kt": "content"}).
		Return(&domain.FixResult{}, nil)

	_, err := NewAnalyzer(scm, llm, nil).Analyze(context.Background(), AnalyzeParams{
		Event:       event,
		Repo:        analyzerRepo,
		Ref:         "main",
		SourceRoots: []string{"src/"},
	})
	require.NoError(t, err)
	scm.AssertExpectations(t)
	llm.AssertExpectations(t)
}

func TestAnalyzeIsolatesFetchFailures(t *testing.T) {
	scm := &mockScm{}
	llm := &mockLlm{}

	event := eventWithFrames(frameFor("Good.kt"), frameFor("Bad.kt"))

	scm.On("GetFileContent", mock.Anything, analyzerRepo, "src/Good.kt", "main").
		Return("good content", nil)
	scm.On("GetFileContent", mock.Anything, analyzerRepo, "src/Bad.kt", "main").
		Return("", errors.New("not found"))
	// The bundle contains only the file that fetched successfully.
	llm.On("AnalyzeError", mock.Anything, event, map[string]string{"Good.kt": "good content"}).
		Return(&domain.FixResult{}, nil)

	_, err := NewAnalyzer(scm, llm, nil).Analyze(context.Background(), AnalyzeParams{
		Event:       event,
		Repo:        analyzerRepo,
		Ref:         "main",
		SourceRoots: []string{"src/"},
	})
	require.NoError(t, err)
	llm.AssertExpectations(t)
}

func TestAnalyzeTriesRootsInOrder(t *testing.T) {
	scm := &mockScm{}
	llm := &mockLlm{}

	event := eventWithFrames(frameFor("App.kt"))

	scm.On("GetFileContent", mock.Anything, analyzerRepo, "src/main/kotlin/App.kt", "main").
		Return("", errors.New("404")).Once()
	scm.On("GetFileContent", mock.Anything, analyzerRepo, "src/test/kotlin/App.kt", "main").
		Return("found here", nil).Once()
	llm.On("AnalyzeError", mock.Anything, event, map[string]string{"App.kt": "found here"}).
		Return(&domain.FixResult{}, nil)

	_, err := NewAnalyzer(scm, llm, nil).Analyze(context.Background(), AnalyzeParams{
		Event:       event,
		Repo:        analyzerRepo,
		Ref:         "main",
		SourceRoots: []string{"src/main/kotlin/", "src/test/kotlin/"},
	})
	require.NoError(t, err)
	scm.AssertExpectations(t)
}

func TestAnalyzeCapsFileCount(t *testing.T) {
	scm := &mockScm{}
	llm := &mockLlm{}

	var frames []domain.StackFrame
	for i := 0; i < maxFilesToFetch+5; i++ {
		frames = append(frames, frameFor(fmt.Sprintf("File%02d.kt", i)))
	}
	event := eventWithFrames(frames...)

	scm.On("GetFileContent", mock.Anything, analyzerRepo, mock.Anything, "main").
		Return("content", nil)
	llm.On("AnalyzeError", mock.Anything, event, mock.Anything).
		Return(&domain.FixResult{}, nil)

	_, err := NewAnalyzer(scm, llm, nil).Analyze(context.Background(), AnalyzeParams{
		Event: event,
		Repo:  analyzerRepo,
		Ref:   "main",
	})
	require.NoError(t, err)
	scm.AssertNumberOfCalls(t, "GetFileContent", maxFilesToFetch)
}

func TestAnalyzeSkipsLibraryFrames(t *testing.T) {
	scm := &mockScm{}
	llm := &mockLlm{}

	library := domain.StackFrame{Filename: "java/lang/Thread.java", Function: "run", InApp: false}
	event := eventWithFrames(frameFor("Mine.kt"), library)

	scm.On("GetFileContent", mock.Anything, analyzerRepo, "Mine.kt", "main").
		Return("mine", nil)
	llm.On("AnalyzeError", mock.Anything, event, map[string]string{"Mine.kt": "mine"}).
		Return(&domain.FixResult{}, nil)

	_, err := NewAnalyzer(scm, llm, nil).Analyze(context.Background(), AnalyzeParams{
		Event: event,
		Repo:  analyzerRepo,
		Ref:   "main",
	})
	require.NoError(t, err)
	scm.AssertNumberOfCalls(t, "GetFileContent", 1)
}

func TestAnalyzeTreeStrategy(t *testing.T) {
	scm := &mockScm{}
	llm := &mockLlm{}

	event := eventWithFrames(frameFor("io/app/Runner.kt"), frameFor("Missing.kt"))

	scm.On("ResolveFilePaths", mock.Anything, analyzerRepo, []string{"io/app/Runner.kt", "Missing.kt"}, "main").
		Return(map[string]string{"io/app/Runner.kt": "src/io/app/Runner.kt"}, nil)
	scm.On("GetFileContent", mock.Anything, analyzerRepo, "src/io/app/Runner.kt", "main").
		Return("resolved content", nil)
	llm.On("AnalyzeError", mock.Anything, event, map[string]string{"io/app/Runner.kt": "resolved content"}).
		Return(&domain.FixResult{}, nil)

	_, err := NewAnalyzer(scm, llm, nil).Analyze(context.Background(), AnalyzeParams{
		Event:    event,
		Repo:     analyzerRepo,
		Ref:      "main",
		Strategy: StrategyTree,
	})
	require.NoError(t, err)
	scm.AssertExpectations(t)
}

func TestAnalyzeTreeResolutionFailureDegradesToEmptyBundle(t *testing.T) {
	scm := &mockScm{}
	llm := &mockLlm{}

	event := eventWithFrames(frameFor("App.kt"))

	scm.On("ResolveFilePaths", mock.Anything, analyzerRepo, []string{"App.kt"}, "main").
		Return(nil, errors.New("tree too large"))
	llm.On("AnalyzeError", mock.Anything, event, map[string]string{}).
		Return(&domain.FixResult{}, nil)

	_, err := NewAnalyzer(scm, llm, nil).Analyze(context.Background(), AnalyzeParams{
		Event:    event,
		Repo:     analyzerRepo,
		Ref:      "main",
		Strategy: StrategyTree,
	})
	require.NoError(t, err)
	llm.AssertExpectations(t)
}

func TestAnalyzePropagatesLlmError(t *testing.T) {
	scm := &mockScm{}
	llm := &mockLlm{}

	event := eventWithFrames()
	llm.On("AnalyzeError", mock.Anything, event, mock.Anything).
		Return(nil, errors.New("model overloaded"))

	_, err := NewAnalyzer(scm, llm, nil).Analyze(context.Background(), AnalyzeParams{
		Event: event,
		Repo:  analyzerRepo,
		Ref:   "main",
	})
	assert.Error(t, err)
}

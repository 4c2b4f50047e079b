package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/Sujin1135/mangonaut/internal/domain"
)

// maxFilesToFetch bounds the number of source files sent to the LLM per
// analysis.
const maxFilesToFetch = 10

// Path resolution strategies.
const (
	StrategyRoots = "roots"
	StrategyTree  = "tree"
)

// Analyzer turns an error event into a fix proposal by bundling the
// relevant source files and delegating to the LLM.
type Analyzer struct {
	scm    Scm
	llm    Llm
	logger *zap.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(scm Scm, llm Llm, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{scm: scm, llm: llm, logger: logger}
}

// AnalyzeParams are the inputs for one analysis.
type AnalyzeParams struct {
	Event       *domain.ErrorEvent
	Repo        domain.RepoID
	Ref         string
	SourceRoots []string
	// Strategy selects path resolution: StrategyRoots concatenates each
	// source root with the frame filename, StrategyTree searches the git
	// tree for a suffix match. Empty means StrategyRoots.
	Strategy string
}

// Analyze fetches the source files referenced by the event's application
// frames and asks the LLM for a fix. File-level failures are isolated:
// a filename that cannot be resolved or fetched is dropped from the
// bundle and analysis proceeds with the rest.
func (a *Analyzer) Analyze(ctx context.Context, p AnalyzeParams) (*domain.FixResult, error) {
	filenames := collectFilenames(p.Event.ApplicationStackFrames())
	sourceFiles := a.fetchSourceFiles(ctx, p, filenames)

	a.logger.Info("analyzing error",
		zap.String("issue_id", p.Event.ID),
		zap.Int("frames", len(filenames)),
		zap.Int("files_fetched", len(sourceFiles)))

	return a.llm.AnalyzeError(ctx, p.Event, sourceFiles)
}

// collectFilenames deduplicates frame filenames preserving first-seen
// order, capped at maxFilesToFetch.
func collectFilenames(frames []domain.StackFrame) []string {
	seen := make(map[string]struct{}, len(frames))
	var filenames []string
	for _, frame := range frames {
		if _, ok := seen[frame.Filename]; ok {
			continue
		}
		seen[frame.Filename] = struct{}{}
		filenames = append(filenames, frame.Filename)
		if len(filenames) == maxFilesToFetch {
			break
		}
	}
	return filenames
}

func (a *Analyzer) fetchSourceFiles(ctx context.Context, p AnalyzeParams, filenames []string) map[string]string {
	if p.Strategy == StrategyTree {
		return a.fetchViaTree(ctx, p, filenames)
	}
	return a.fetchViaRoots(ctx, p, filenames)
}

// fetchViaRoots tries each source root in order until a fetch succeeds
// for the filename. Failures are swallowed per file.
func (a *Analyzer) fetchViaRoots(ctx context.Context, p AnalyzeParams, filenames []string) map[string]string {
	roots := p.SourceRoots
	if len(roots) == 0 {
		roots = []string{""}
	}

	files := make(map[string]string, len(filenames))
	for _, filename := range filenames {
		for _, root := range roots {
			content, err := a.scm.GetFileContent(ctx, p.Repo, root+filename, p.Ref)
			if err != nil {
				continue
			}
			files[filename] = content
			break
		}
		if _, ok := files[filename]; !ok {
			a.logger.Debug("source file not found under any root",
				zap.String("filename", filename))
		}
	}
	return files
}

// fetchViaTree resolves all filenames against the repository tree in one
// call, then fetches each resolved path. A resolution failure degrades to
// an empty bundle rather than aborting the analysis.
func (a *Analyzer) fetchViaTree(ctx context.Context, p AnalyzeParams, filenames []string) map[string]string {
	resolved, err := a.scm.ResolveFilePaths(ctx, p.Repo, filenames, p.Ref)
	if err != nil {
		a.logger.Warn("file path resolution failed", zap.Error(err))
		return map[string]string{}
	}

	files := make(map[string]string, len(resolved))
	for _, filename := range filenames {
		path, ok := resolved[filename]
		if !ok {
			continue
		}
		content, err := a.scm.GetFileContent(ctx, p.Repo, path, p.Ref)
		if err != nil {
			a.logger.Debug("source file fetch failed",
				zap.String("path", path), zap.Error(err))
			continue
		}
		files[filename] = content
	}
	return files
}

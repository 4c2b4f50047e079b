// Package mapping resolves an error tracker's project slug to the
// repository that holds its source.
package mapping

import (
	"go.uber.org/zap"

	"github.com/Sujin1135/mangonaut/internal/config"
	"github.com/Sujin1135/mangonaut/internal/domain"
	"github.com/Sujin1135/mangonaut/internal/githubapp"
	"github.com/Sujin1135/mangonaut/internal/pipeline"
)

// Mapping ties a tracker project to a repository and how to read it.
type Mapping struct {
	Repo          domain.RepoID
	DefaultBranch string
	SourceRoots   []string
	Strategy      string
}

// RepoLister supplies the installed repositories known to the App.
type RepoLister interface {
	Repositories() []githubapp.Repository
}

// Resolver looks up mappings: explicit project configuration first, then
// the installed-repository cache as a name-match fallback.
type Resolver struct {
	projects []config.ProjectConfig
	repos    RepoLister
	logger   *zap.Logger
}

// NewResolver creates a Resolver. repos may be nil to disable the
// dynamic fallback.
func NewResolver(projects []config.ProjectConfig, repos RepoLister, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{projects: projects, repos: repos, logger: logger}
}

// FindMapping returns the mapping for a project slug, or nil when the
// project is unknown.
func (r *Resolver) FindMapping(slug string) *Mapping {
	for _, p := range r.projects {
		if p.SourceProject != slug {
			continue
		}
		repo, err := domain.ParseRepoID(p.ScmRepo)
		if err != nil {
			r.logger.Warn("project has an invalid scm_repo",
				zap.String("project", slug),
				zap.String("scm_repo", p.ScmRepo),
				zap.Error(err))
			return nil
		}
		m := &Mapping{
			Repo:          repo,
			DefaultBranch: p.DefaultBranch,
			SourceRoots:   p.SourceRoots,
			Strategy:      p.ResolveStrategy,
		}
		if m.DefaultBranch == "" {
			m.DefaultBranch = "main"
		}
		if m.Strategy == "" {
			m.Strategy = pipeline.StrategyRoots
		}
		return m
	}

	if r.repos == nil {
		return nil
	}
	for _, repo := range r.repos.Repositories() {
		if repo.Name != slug {
			continue
		}
		id, err := domain.ParseRepoID(repo.FullName)
		if err != nil {
			continue
		}
		branch := repo.DefaultBranch
		if branch == "" {
			branch = "main"
		}
		r.logger.Info("resolved project via installed repositories",
			zap.String("project", slug),
			zap.String("repo", repo.FullName))
		return &Mapping{
			Repo:          id,
			DefaultBranch: branch,
			Strategy:      pipeline.StrategyTree,
		}
	}
	return nil
}

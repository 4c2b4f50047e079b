package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Sujin1135/mangonaut/internal/apperr"
	"github.com/Sujin1135/mangonaut/internal/domain"
)

// PRGate decides whether a fix proposal becomes a pull request and, when
// it does, performs the branch/commit/PR sequence.
type PRGate struct {
	scm    Scm
	logger *zap.Logger
}

// NewPRGate creates a PRGate.
func NewPRGate(scm Scm, logger *zap.Logger) *PRGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PRGate{scm: scm, logger: logger}
}

// GateParams are the inputs for one gate evaluation.
type GateParams struct {
	Event         *domain.ErrorEvent
	Fix           *domain.FixResult
	Repo          domain.RepoID
	BaseBranch    string
	BranchPrefix  string
	Labels        []string
	MinConfidence domain.Confidence
}

// MaybeCreatePr runs the gate predicates in order, short-circuiting at
// the first failure with a nil result and no error. The head branch name
// is deterministic (prefix + issue id), so duplicate webhooks for the
// same issue land on the duplicate-PR check instead of opening parallel
// PRs. Remote failures past the gates are returned with the failing step
// named; a partially created branch is left in place.
func (g *PRGate) MaybeCreatePr(ctx context.Context, p GateParams) (*domain.PrResult, error) {
	log := g.logger.With(zap.String("issue_id", p.Event.ID))

	if !p.Fix.CanCreateAutoPr(p.MinConfidence) {
		log.Info("fix does not qualify for an automatic PR",
			zap.String("confidence", p.Fix.Confidence.String()),
			zap.String("min_confidence", p.MinConfidence.String()),
			zap.Int("changes", len(p.Fix.Changes)))
		return nil, nil
	}

	headBranch := p.BranchPrefix + p.Event.ID

	if g.scm.HasOpenPR(ctx, p.Repo, headBranch) {
		log.Info("open PR already exists, skipping", zap.String("head", headBranch))
		return nil, nil
	}

	changes := realChanges(p.Fix.Changes)
	if len(changes) == 0 {
		log.Info("all proposed changes are no-ops, skipping")
		return nil, nil
	}

	if err := g.scm.CreateBranch(ctx, p.Repo, p.BaseBranch, headBranch); err != nil {
		return nil, apperr.Wrap(apperr.CodeGitHubAPI, "create branch step failed", err)
	}
	if err := g.scm.CommitFiles(ctx, p.Repo, headBranch, changes, commitMessage(p.Fix)); err != nil {
		return nil, apperr.Wrap(apperr.CodeGitHubAPI, "commit step failed", err)
	}

	result, err := g.scm.CreatePullRequest(ctx, p.Repo, domain.PrParams{
		Title:      p.Fix.PrTitle,
		Body:       p.Fix.PrBody,
		BaseBranch: p.BaseBranch,
		HeadBranch: headBranch,
		Labels:     p.Labels,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGitHubAPI, "open pull request step failed", err)
	}

	log.Info("pull request created",
		zap.Int("number", result.Number),
		zap.String("url", result.HTMLURL))
	return result, nil
}

// realChanges filters out proposals whose modified content equals the
// original.
func realChanges(changes []domain.FileChange) []domain.FileChange {
	var filtered []domain.FileChange
	for _, c := range changes {
		if c.HasChanges() {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// commitMessage synthesizes a commit message from the fix: the PR title
// as the subject, change descriptions as the body.
func commitMessage(fix *domain.FixResult) string {
	subject := fix.PrTitle
	if subject == "" {
		subject = "fix: automated remediation"
	}

	var b strings.Builder
	b.WriteString(subject)
	for _, c := range fix.Changes {
		if c.Description == "" {
			continue
		}
		if b.Len() == len(subject) {
			b.WriteString("\n")
		}
		b.WriteString("\n- " + c.File + ": " + c.Description)
	}
	return b.String()
}

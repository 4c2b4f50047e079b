package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Sujin1135/mangonaut/internal/apperr"
	"github.com/Sujin1135/mangonaut/internal/domain"
)

// Processor runs the full remediation pipeline for one error alert.
type Processor struct {
	source   ErrorSource
	analyzer *Analyzer
	gate     *PRGate
	logger   *zap.Logger
	metrics  *Metrics
}

// NewProcessor creates a Processor. metrics may be nil.
func NewProcessor(source ErrorSource, analyzer *Analyzer, gate *PRGate, logger *zap.Logger, metrics *Metrics) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		source:   source,
		analyzer: analyzer,
		gate:     gate,
		logger:   logger,
		metrics:  metrics,
	}
}

// ProcessParams are the inputs for one pipeline invocation, assembled by
// the boundary from the webhook payload and the project mapping.
type ProcessParams struct {
	IssueID       string
	SourceProject string
	Repo          domain.RepoID
	BaseBranch    string
	SourceRoots   []string
	Strategy      string
	BranchPrefix  string
	Labels        []string
	MinConfidence domain.Confidence
	AutoPr        bool
}

// ProcessResult is the aggregate outcome of one invocation. PrResult is
// nil when no PR was created, whether gated out or disabled.
type ProcessResult struct {
	Event             *domain.ErrorEvent
	AnalysisCompleted bool
	PrResult          *domain.PrResult
}

// Process fetches, analyzes, and conditionally remediates one alert.
// Stages run sequentially; a fetch or analysis failure terminates only
// this invocation.
func (p *Processor) Process(ctx context.Context, params ProcessParams) (*ProcessResult, error) {
	ctx, span := Tracer().Start(ctx, "pipeline.process",
		trace.WithAttributes(
			attribute.String("issue_id", params.IssueID),
			attribute.String("project", params.SourceProject),
			attribute.String("repo", params.Repo.String()),
		))
	defer span.End()

	start := time.Now()
	log := p.logger.With(
		zap.String("issue_id", params.IssueID),
		zap.String("project", params.SourceProject))

	log.Info("processing error alert")

	event, err := p.source.FetchEvent(ctx, params.IssueID)
	if err != nil {
		return nil, p.fail(ctx, span, params, "fetching error event", err)
	}
	log.Info("fetched error event", zap.String("title", event.Title))

	fix, err := p.analyzer.Analyze(ctx, AnalyzeParams{
		Event:       event,
		Repo:        params.Repo,
		Ref:         params.BaseBranch,
		SourceRoots: params.SourceRoots,
		Strategy:    params.Strategy,
	})
	if err != nil {
		return nil, p.fail(ctx, span, params, "analyzing error", err)
	}
	log.Info("analysis completed",
		zap.String("confidence", fix.Confidence.String()),
		zap.Int("changes", len(fix.Changes)))

	var prResult *domain.PrResult
	if params.AutoPr {
		prResult, err = p.gate.MaybeCreatePr(ctx, GateParams{
			Event:         event,
			Fix:           fix,
			Repo:          params.Repo,
			BaseBranch:    params.BaseBranch,
			BranchPrefix:  params.BranchPrefix,
			Labels:        params.Labels,
			MinConfidence: params.MinConfidence,
		})
		if err != nil {
			return nil, p.fail(ctx, span, params, "creating pull request", err)
		}
	} else {
		log.Info("auto PR disabled, skipping PR creation")
	}

	span.SetStatus(codes.Ok, "")
	p.metrics.RecordProcessed(ctx, params.SourceProject, prResult != nil, time.Since(start).Seconds())

	return &ProcessResult{
		Event:             event,
		AnalysisCompleted: true,
		PrResult:          prResult,
	}, nil
}

func (p *Processor) fail(ctx context.Context, span trace.Span, params ProcessParams, stage string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	p.metrics.RecordFailed(ctx, params.SourceProject, string(apperr.CodeOf(err)))
	p.logger.Error("pipeline stage failed",
		zap.String("issue_id", params.IssueID),
		zap.String("stage", stage),
		zap.Error(err))
	return err
}

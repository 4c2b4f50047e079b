package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Sujin1135/mangonaut/internal/apperr"
	"github.com/Sujin1135/mangonaut/internal/config"
	"github.com/Sujin1135/mangonaut/internal/dispatch"
	"github.com/Sujin1135/mangonaut/internal/domain"
	"github.com/Sujin1135/mangonaut/internal/mapping"
	"github.com/Sujin1135/mangonaut/internal/pipeline"
)

const signatureHeader = "Sentry-Hook-Signature"

// webhookRequest is the Sentry issue-alert payload, reduced to the
// fields the pipeline needs.
type webhookRequest struct {
	Action string `json:"action"`
	Data   struct {
		Issue struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Project struct {
				ID   string `json:"id"`
				Name string `json:"name"`
				Slug string `json:"slug"`
			} `json:"project"`
		} `json:"issue"`
	} `json:"data"`
}

// webhookResponse is the boundary's uniform response body.
type webhookResponse struct {
	Status  string               `json:"status"`
	Message string               `json:"message,omitempty"`
	Code    string               `json:"code,omitempty"`
	Data    *webhookResponseData `json:"data,omitempty"`
}

type webhookResponseData struct {
	IssueID           string `json:"issue_id"`
	JobID             string `json:"job_id,omitempty"`
	AnalysisCompleted bool   `json:"analysis_completed"`
	PrURL             string `json:"pr_url,omitempty"`
}

// WebhookHandler receives Sentry issue alerts and hands them to the
// pipeline, synchronously or through the dispatch pool.
type WebhookHandler struct {
	secret        config.Secret
	behavior      config.BehaviorConfig
	minConfidence domain.Confidence
	resolver      *mapping.Resolver
	processor     *pipeline.Processor
	pool          *dispatch.Pool
	logger        *zap.Logger
}

// NewWebhookHandler creates the webhook handler. pool may be nil when
// async dispatch is disabled.
func NewWebhookHandler(
	sentryCfg config.SentryConfig,
	behavior config.BehaviorConfig,
	resolver *mapping.Resolver,
	processor *pipeline.Processor,
	pool *dispatch.Pool,
	logger *zap.Logger,
) (*WebhookHandler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	minConfidence, err := domain.ParseConfidence(behavior.MinConfidence)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConfiguration, "invalid behavior.min_confidence", err)
	}
	return &WebhookHandler{
		secret:        sentryCfg.WebhookSecret,
		behavior:      behavior,
		minConfidence: minConfidence,
		resolver:      resolver,
		processor:     processor,
		pool:          pool,
		logger:        logger,
	}, nil
}

// Handle processes POST /webhooks/sentry.
func (h *WebhookHandler) Handle(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return h.fail(c, apperr.Wrap(apperr.CodeWebhookParse, "reading request body", err))
	}

	if !VerifySignature(body, c.Request().Header.Get(signatureHeader), h.secret.Value()) {
		h.logger.Warn("invalid webhook signature")
		return h.fail(c, apperr.New(apperr.CodeWebhookValidation, "invalid signature"))
	}

	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return h.fail(c, apperr.Wrap(apperr.CodeWebhookParse, "parsing webhook payload", err))
	}

	h.logger.Info("received webhook",
		zap.String("action", req.Action),
		zap.String("issue_id", req.Data.Issue.ID),
		zap.String("project", req.Data.Issue.Project.Slug))

	if req.Action != "created" && req.Action != "triggered" {
		return c.JSON(http.StatusOK, webhookResponse{
			Status:  "ignored",
			Message: "action not supported: " + req.Action,
		})
	}

	slug := req.Data.Issue.Project.Slug
	m := h.resolver.FindMapping(slug)
	if m == nil {
		return c.JSON(http.StatusOK, webhookResponse{
			Status:  "ignored",
			Message: "no mapping configured for project: " + slug,
		})
	}

	params := pipeline.ProcessParams{
		IssueID:       req.Data.Issue.ID,
		SourceProject: slug,
		Repo:          m.Repo,
		BaseBranch:    m.DefaultBranch,
		SourceRoots:   m.SourceRoots,
		Strategy:      m.Strategy,
		BranchPrefix:  h.behavior.BranchPrefix,
		Labels:        h.behavior.Labels,
		MinConfidence: h.minConfidence,
		AutoPr:        h.behavior.AutoPr,
	}

	if h.behavior.Async && h.pool != nil {
		return h.handleAsync(c, params)
	}
	return h.handleSync(c, params)
}

// handleAsync hands the invocation to the worker pool and returns before
// processing completes. Pipeline failures are logged, never surfaced.
func (h *WebhookHandler) handleAsync(c echo.Context, params pipeline.ProcessParams) error {
	jobID, err := h.pool.Submit("process-error-alert", func(ctx context.Context) {
		if _, err := h.processor.Process(ctx, params); err != nil {
			h.logger.Error("async processing failed",
				zap.String("issue_id", params.IssueID),
				zap.Error(err))
		}
	})
	if err != nil {
		h.logger.Error("failed to enqueue webhook", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, webhookResponse{
			Status:  "error",
			Code:    string(apperr.CodeOf(err)),
			Message: "processing queue is full",
		})
	}

	h.logger.Info("webhook accepted for async processing",
		zap.String("issue_id", params.IssueID),
		zap.String("job_id", jobID))
	return c.JSON(http.StatusAccepted, webhookResponse{
		Status:  "accepted",
		Message: "processing started",
		Data:    &webhookResponseData{IssueID: params.IssueID, JobID: jobID},
	})
}

func (h *WebhookHandler) handleSync(c echo.Context, params pipeline.ProcessParams) error {
	result, err := h.processor.Process(c.Request().Context(), params)
	if err != nil {
		return h.fail(c, err)
	}

	data := &webhookResponseData{
		IssueID:           result.Event.ID,
		AnalysisCompleted: result.AnalysisCompleted,
	}
	if result.PrResult != nil {
		data.PrURL = result.PrResult.HTMLURL
	}
	return c.JSON(http.StatusOK, webhookResponse{
		Status:  "success",
		Message: "error processed successfully",
		Data:    data,
	})
}

// fail renders an error with its taxonomy code at the mapped status.
func (h *WebhookHandler) fail(c echo.Context, err error) error {
	return c.JSON(apperr.HTTPStatus(err), webhookResponse{
		Status:  "error",
		Code:    string(apperr.CodeOf(err)),
		Message: err.Error(),
	})
}

// Package llm analyzes error events with a language model and turns the
// model's answer into a structured fix proposal.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Sujin1135/mangonaut/internal/apperr"
	"github.com/Sujin1135/mangonaut/internal/config"
	"github.com/Sujin1135/mangonaut/internal/domain"
)

const analysisMaxTokens = 4096

// Client drives error analysis through a langchaingo model.
type Client struct {
	model   llms.Model
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient builds a Claude-backed client from configuration.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (*Client, error) {
	model, err := anthropic.New(
		anthropic.WithToken(cfg.APIKey.Value()),
		anthropic.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConfiguration, "creating llm client", err)
	}
	return newClient(model, logger), nil
}

func newClient(model llms.Model, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		model: model,
		// Anthropic rate limits are generous for this volume; one request
		// per second with a small burst keeps retries from stampeding.
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		logger:  logger,
	}
}

// Name identifies the LLM provider.
func (c *Client) Name() string { return "claude" }

// AnalyzeError asks the model for a fix proposal given the error and the
// fetched source files, and parses the structured reply.
func (c *Client) AnalyzeError(ctx context.Context, event *domain.ErrorEvent, sourceFiles map[string]string) (*domain.FixResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.CodeLLMAPI, "waiting for rate limiter", err)
	}

	prompt := buildAnalysisPrompt(event, sourceFiles)
	reply, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithMaxTokens(analysisMaxTokens),
		llms.WithTemperature(0))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeLLMAPI, "analyzing error", err)
	}
	if reply == "" {
		return nil, apperr.New(apperr.CodeLLMAPI, "empty response from model")
	}

	result, err := parseAnalysisReply(reply)
	if err != nil {
		c.logger.Warn("unparseable llm reply", zap.Int("reply_len", len(reply)), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// HealthCheck sends a minimal request; the API has no dedicated health
// endpoint.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := llms.GenerateFromSinglePrompt(ctx, c.model, "ping", llms.WithMaxTokens(10))
	return err == nil
}

func buildAnalysisPrompt(event *domain.ErrorEvent, sourceFiles map[string]string) string {
	var trace strings.Builder
	for _, frame := range event.ApplicationStackFrames() {
		fmt.Fprintf(&trace, "  at %s (%s:%d)\n", frame.Function, frame.Filename, frame.LineNo)
	}

	filenames := make([]string, 0, len(sourceFiles))
	for name := range sourceFiles {
		filenames = append(filenames, name)
	}
	sort.Strings(filenames)

	var files strings.Builder
	for i, name := range filenames {
		if i > 0 {
			files.WriteString("\n\n")
		}
		fmt.Fprintf(&files, "=== %s ===\n%s", name, sourceFiles[name])
	}

	return fmt.Sprintf(`You are an expert software engineer analyzing an error to propose a fix.

## Error Information
**Type:** %s
**Message:** %s
**Title:** %s

## Stack Trace (Application Code Only)
%s
## Related Source Files
%s

## Task
Analyze this error and provide a fix. Respond in the following JSON format:

`+"```json"+`
{
  "analysis": "Brief explanation of what went wrong",
  "rootCause": "The fundamental cause of the error",
  "confidence": "HIGH" | "MEDIUM" | "LOW",
  "changes": [
    {
      "file": "path/to/file.kt",
      "description": "What this change does",
      "original": "original code snippet",
      "modified": "modified code snippet"
    }
  ],
  "prTitle": "fix: Brief description of the fix",
  "prBody": "Detailed PR description in markdown"
}
`+"```"+`

Important:
- Only propose changes if you are confident they will fix the issue
- Set confidence to LOW if you're unsure or need more context
- Keep changes minimal and focused on the fix`,
		event.ErrorType, event.ErrorMessage, event.Title, trace.String(), files.String())
}

var jsonBlockPattern = regexp.MustCompile("(?s)```json\\s*(.+?)\\s*```")

type analysisReply struct {
	Analysis   string `json:"analysis"`
	RootCause  string `json:"rootCause"`
	Confidence string `json:"confidence"`
	Changes    []struct {
		File        string `json:"file"`
		Description string `json:"description"`
		Original    string `json:"original"`
		Modified    string `json:"modified"`
	} `json:"changes"`
	PrTitle string `json:"prTitle"`
	PrBody  string `json:"prBody"`
}

// parseAnalysisReply extracts the fenced JSON block from the model's
// reply, tolerating surrounding prose; a reply with no fence is treated
// as raw JSON.
func parseAnalysisReply(reply string) (*domain.FixResult, error) {
	payload := reply
	if m := jsonBlockPattern.FindStringSubmatch(reply); m != nil {
		payload = m[1]
	}

	var parsed analysisReply
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, apperr.Wrap(apperr.CodeLLMParse, "decoding analysis reply", err)
	}

	confidence, err := domain.ParseConfidence(strings.ToUpper(parsed.Confidence))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeLLMParse, "invalid confidence", err)
	}

	result := &domain.FixResult{
		Analysis:   parsed.Analysis,
		RootCause:  parsed.RootCause,
		Confidence: confidence,
		PrTitle:    parsed.PrTitle,
		PrBody:     parsed.PrBody,
	}
	for _, change := range parsed.Changes {
		result.Changes = append(result.Changes, domain.FileChange{
			File:        change.File,
			Description: change.Description,
			Original:    change.Original,
			Modified:    change.Modified,
		})
	}
	return result, nil
}

package sentry

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Sujin1135/mangonaut/internal/domain"
)

// eventResponse is the shape of GET /api/0/issues/{id}/events/latest/.
// Entries are polymorphic on "type"; only exception and breadcrumbs
// entries matter here, everything else is skipped.
type eventResponse struct {
	EventID     string       `json:"eventID"`
	Title       string       `json:"title"`
	Message     string       `json:"message"`
	DateCreated string       `json:"dateCreated"`
	Project     string       `json:"project"`
	Release     string       `json:"release"`
	Tags        []tagDTO     `json:"tags"`
	Entries     []entryDTO   `json:"entries"`
	Request     *requestDTO  `json:"request"`
}

type tagDTO struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type entryDTO struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type exceptionData struct {
	Values []exceptionDTO `json:"values"`
}

type exceptionDTO struct {
	Type       string `json:"type"`
	Value      string `json:"value"`
	Stacktrace *struct {
		Frames []frameDTO `json:"frames"`
	} `json:"stacktrace"`
}

type frameDTO struct {
	Filename    string   `json:"filename"`
	Module      string   `json:"module"`
	Function    string   `json:"function"`
	LineNo      int      `json:"lineNo"`
	ColNo       int      `json:"colNo"`
	PreContext  []string `json:"preContext"`
	ContextLine string   `json:"contextLine"`
	PostContext []string `json:"postContext"`
	InApp       bool     `json:"inApp"`
}

type breadcrumbData struct {
	Values []breadcrumbDTO `json:"values"`
}

type breadcrumbDTO struct {
	Timestamp string         `json:"timestamp"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Level     string         `json:"level"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
}

type requestDTO struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers"`
	QueryString string            `json:"queryString"`
	Data        map[string]any    `json:"data"`
}

func (r *eventResponse) toDomain(issueID string) *domain.ErrorEvent {
	exc := r.firstException()

	event := &domain.ErrorEvent{
		ID:            issueID,
		Title:         r.Title,
		ErrorType:     "Exception",
		ErrorMessage:  r.Message,
		Tags:          map[string]string{},
		Release:       r.Release,
		SourceProject: r.Project,
		Timestamp:     parseTime(r.DateCreated),
	}
	if event.Title == "" {
		event.Title = "Unknown Error"
	}
	if exc != nil {
		if exc.Type != "" {
			event.ErrorType = exc.Type
		}
		if exc.Value != "" {
			event.ErrorMessage = exc.Value
		}
		if exc.Stacktrace != nil {
			for _, f := range exc.Stacktrace.Frames {
				event.StackTrace = append(event.StackTrace, f.toDomain())
			}
		}
	}
	for _, t := range r.Tags {
		event.Tags[t.Key] = t.Value
	}
	for _, b := range r.breadcrumbs() {
		event.Breadcrumbs = append(event.Breadcrumbs, domain.Breadcrumb{
			Timestamp: parseTime(b.Timestamp),
			Category:  b.Category,
			Message:   b.Message,
			Level:     b.Level,
			Type:      b.Type,
			Data:      b.Data,
		})
	}
	if r.Request != nil {
		event.Request = &domain.RequestContext{
			URL:         r.Request.URL,
			Method:      r.Request.Method,
			Headers:     r.Request.Headers,
			QueryString: r.Request.QueryString,
			Data:        r.Request.Data,
		}
	}
	return event
}

func (r *eventResponse) firstException() *exceptionDTO {
	for _, e := range r.Entries {
		if e.Type != "exception" {
			continue
		}
		var data exceptionData
		if err := json.Unmarshal(e.Data, &data); err != nil || len(data.Values) == 0 {
			continue
		}
		return &data.Values[0]
	}
	return nil
}

func (r *eventResponse) breadcrumbs() []breadcrumbDTO {
	for _, e := range r.Entries {
		if e.Type != "breadcrumbs" {
			continue
		}
		var data breadcrumbData
		if err := json.Unmarshal(e.Data, &data); err != nil {
			continue
		}
		return data.Values
	}
	return nil
}

func (f frameDTO) toDomain() domain.StackFrame {
	frame := domain.StackFrame{
		Filename:    resolveFilename(f.Filename, f.Module),
		Function:    f.Function,
		LineNo:      f.LineNo,
		ColNo:       f.ColNo,
		PreContext:  f.PreContext,
		ContextLine: f.ContextLine,
		PostContext: f.PostContext,
		InApp:       f.InApp,
	}
	if frame.Function == "" {
		frame.Function = "unknown"
	}
	return frame
}

// resolveFilename rebuilds a source path from JVM-style frames, where the
// SDK reports a bare file name ("SentryTestRunner.kt") and the package as
// a dotted module ("io.contents.collector.SentryTestRunner"). The package
// part of the module becomes the directory prefix. Frames that already
// carry a path are left alone.
func resolveFilename(filename, module string) string {
	if filename == "" {
		return "unknown"
	}
	if module == "" || strings.Contains(filename, "/") {
		return filename
	}
	pkg := module
	if i := strings.LastIndex(module, "."); i >= 0 {
		pkg = module[:i]
	}
	return strings.ReplaceAll(pkg, ".", "/") + "/" + filename
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now()
	}
	return t
}

// Package domain holds the core value types of the error-remediation
// pipeline: normalized error events, LLM fix proposals, and pull request
// parameters. Types here are plain data with small derivation methods and
// carry no I/O.
package domain

import "time"

// ErrorEvent is a normalized error fetched from an error tracker.
// It is built once by the source adapter and never mutated afterwards.
type ErrorEvent struct {
	ID            string
	Title         string
	ErrorType     string
	ErrorMessage  string
	StackTrace    []StackFrame
	Breadcrumbs   []Breadcrumb
	Tags          map[string]string
	Request       *RequestContext
	Release       string
	SourceProject string
	Timestamp     time.Time
}

// ApplicationStackFrames returns the frames flagged as application code,
// preserving their original order.
func (e *ErrorEvent) ApplicationStackFrames() []StackFrame {
	var frames []StackFrame
	for _, f := range e.StackTrace {
		if f.InApp {
			frames = append(frames, f)
		}
	}
	return frames
}

// StackFrame is a single frame within an error's stack trace.
type StackFrame struct {
	Filename    string
	Function    string
	LineNo      int
	ColNo       int
	PreContext  []string
	ContextLine string
	PostContext []string
	// InApp marks frames originating from the user's own code, as opposed
	// to library or framework code.
	InApp bool
}

// Breadcrumb records a user or system action leading up to the error.
type Breadcrumb struct {
	Timestamp time.Time
	Category  string
	Message   string
	Level     string
	Type      string
	Data      map[string]any
}

// RequestContext carries the HTTP request details for web errors.
type RequestContext struct {
	URL         string
	Method      string
	Headers     map[string]string
	QueryString string
	Data        map[string]any
}

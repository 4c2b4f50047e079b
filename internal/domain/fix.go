package domain

import "fmt"

// Confidence expresses how certain an analysis is that its proposed change
// fixes the error. Values are ordered: LOW < MEDIUM < HIGH.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

// String returns the canonical upper-case name.
func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "LOW"
	case ConfidenceMedium:
		return "MEDIUM"
	case ConfidenceHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("Confidence(%d)", int(c))
	}
}

// Rank returns the ordinal used for threshold comparisons.
func (c Confidence) Rank() int { return int(c) }

// ParseConfidence converts a name ("LOW", "MEDIUM", "HIGH") into a
// Confidence. The comparison is exact; callers normalize case first.
func ParseConfidence(s string) (Confidence, error) {
	switch s {
	case "LOW":
		return ConfidenceLow, nil
	case "MEDIUM":
		return ConfidenceMedium, nil
	case "HIGH":
		return ConfidenceHigh, nil
	default:
		return ConfidenceLow, fmt.Errorf("unknown confidence %q", s)
	}
}

// FixResult is the structured outcome of an LLM analysis.
type FixResult struct {
	Analysis   string
	RootCause  string
	Confidence Confidence
	Changes    []FileChange
	PrTitle    string
	PrBody     string
}

// CanCreateAutoPr reports whether the result qualifies for an automatic
// pull request: confidence at or above the configured minimum, and at
// least one proposed change.
func (r *FixResult) CanCreateAutoPr(min Confidence) bool {
	return r.Confidence.Rank() >= min.Rank() && len(r.Changes) > 0
}

// FileChange is one proposed source modification.
type FileChange struct {
	File        string
	Description string
	Original    string
	Modified    string
}

// HasChanges reports whether the modified content actually differs from
// the original. No-op changes must never reach a commit.
func (c *FileChange) HasChanges() bool { return c.Original != c.Modified }

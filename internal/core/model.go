package core

import (
	"strings"
	"time"
)

// Status is the outcome of a review
type Status string

const (
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// SubjectKind distinguishes text submissions from image submissions
type SubjectKind string

const (
	SubjectText  SubjectKind = "text"
	SubjectImage SubjectKind = "image"
)

// Rule is a locally editable keyword rule
type Rule struct {
	ID          string   `json:"id"`
	Keywords    []string `json:"keywords"`
	Description string   `json:"description"`
}

// Content joins the keywords back into their space-delimited source form
func (r Rule) Content() string {
	return strings.Join(r.Keywords, " ")
}

// Verdict is the normalized outcome returned to callers
type Verdict struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Approved reports whether the verdict approves the subject
func (v *Verdict) Approved() bool {
	return v.Status == StatusApproved
}

// MatchResult is the outcome of checking text against the local rules
type MatchResult struct {
	Matched bool
	Rule    *Rule
	Keyword string
}

// Finding is a single per-category message reported by the provider
type Finding struct {
	Type    int
	SubType int
	Message string
}

// ProviderVerdict is the provider's answer after it has been decoded at the
// censor boundary
type ProviderVerdict struct {
	ConclusionType int
	Conclusion     string
	Findings       []Finding
	LogID          string
}

// CacheEntry is a remote verdict remembered for a subject digest
type CacheEntry struct {
	Key       string
	Status    Status
	Reason    string
	LastSeen  time.Time
	ExpiresAt time.Time
}

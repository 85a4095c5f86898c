package ports

import (
	"context"

	"github.com/mikey/content-review/internal/core"
)

// Reviewer produces verdicts for submitted content
type Reviewer interface {
	// ReviewText reviews a text submission
	ReviewText(ctx context.Context, text string) (*core.Verdict, error)

	// ReviewImage reviews an image submission
	ReviewImage(ctx context.Context, image []byte) (*core.Verdict, error)
}

// RuleEditor exposes the rule set to editing surfaces
type RuleEditor interface {
	// CurrentRules returns the rule snapshot in stored order
	CurrentRules() []core.Rule

	// ReplaceAll rewrites the complete rule set
	ReplaceAll(rules []core.Rule) error
}

package keyword

import (
	"strings"

	"github.com/mikey/content-review/internal/core"
	"go.uber.org/zap"
)

// RuleSource provides the rule snapshot to match against
type RuleSource interface {
	CurrentRules() []core.Rule
}

// Matcher checks text against the keyword rules before any network call
type Matcher struct {
	rules  RuleSource
	logger *zap.Logger
}

// NewMatcher creates a new keyword matcher
func NewMatcher(rules RuleSource, logger *zap.Logger) *Matcher {
	return &Matcher{
		rules:  rules,
		logger: logger,
	}
}

// Check returns the first rule, in stored order, having a keyword that
// occurs in text. Keywords are tried in declared order and compared as
// case-sensitive substrings.
func (m *Matcher) Check(text string) core.MatchResult {
	rules := m.rules.CurrentRules()
	for i := range rules {
		rule := &rules[i]
		for _, kw := range rule.Keywords {
			if kw == "" || !strings.Contains(text, kw) {
				continue
			}
			if m.logger != nil {
				m.logger.Debug("Keyword rule matched",
					zap.String("rule_id", rule.ID),
					zap.String("keyword", kw))
			}
			matched := *rule
			return core.MatchResult{Matched: true, Rule: &matched, Keyword: kw}
		}
	}
	return core.MatchResult{}
}

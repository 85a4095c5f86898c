package core

import "fmt"

// ConclusionCompliant is the provider conclusion type meaning "compliant"
const ConclusionCompliant = 1

// NormalizeProviderVerdict maps a provider answer onto a Verdict. Only the
// compliant conclusion type approves; anything else rejects with the most
// specific message available.
func NormalizeProviderVerdict(pv *ProviderVerdict) *Verdict {
	if pv.ConclusionType == ConclusionCompliant {
		return &Verdict{Status: StatusApproved}
	}

	reason := pv.Conclusion
	if len(pv.Findings) > 0 && pv.Findings[0].Message != "" {
		reason = pv.Findings[0].Message
	}
	if reason == "" {
		reason = fmt.Sprintf("conclusion type %d", pv.ConclusionType)
	}
	return &Verdict{Status: StatusRejected, Reason: reason}
}

// RuleViolation builds the verdict for a local rule hit
func RuleViolation(m MatchResult) *Verdict {
	return &Verdict{
		Status: StatusRejected,
		Reason: fmt.Sprintf("violates rule: %s (matched keyword: %s)", m.Rule.Description, m.Keyword),
	}
}

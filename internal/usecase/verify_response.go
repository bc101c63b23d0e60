package usecase

import (
	"context"
	"strings"

	"sigil/internal/domain"
)

// DecisionEngine lets an external policy override the built-in enforcement
// table. The OPA adapter implements this.
type DecisionEngine interface {
	Decide(ctx context.Context, summary domain.EnforcementSummary) (domain.EnforcementAction, error)
}

type VerifyResponseResult struct {
	Text    string                    `json:"text"`
	Results []domain.MatchResult      `json:"results"`
	Summary domain.EnforcementSummary `json:"summary"`
}

// VerifyResponse runs the full pipeline over free text: extract claims,
// match them against recent signed executions, then enforce.
type VerifyResponse struct {
	Extractor ClaimExtractor
	Matcher   *MatchClaims
	Policy    EnforcementConfig
	Decisions DecisionEngine
}

const refusalText = "This response was withheld: it contains tool-result claims that could not be verified against any signed execution."

func (uc *VerifyResponse) Execute(ctx context.Context, text string) (*VerifyResponseResult, error) {
	claims := uc.Extractor.Extract(text)
	results, err := uc.Matcher.Execute(ctx, claims)
	if err != nil {
		return nil, err
	}

	summary := Enforce(results, uc.Policy)
	if uc.Decisions != nil {
		action, err := uc.Decisions.Decide(ctx, summary)
		if err != nil {
			return nil, err
		}
		summary.Action = action
	}

	out := &VerifyResponseResult{
		Results: results,
		Summary: summary,
	}
	switch summary.Action {
	case domain.ActionBlock:
		out.Text = refusalText
	case domain.ActionAnnotate:
		out.Text = annotate(text, results)
	default:
		out.Text = text
	}
	return out, nil
}

// annotate marks each claim-bearing line with its verification verdict,
// leaving all other prose untouched.
func annotate(text string, results []domain.MatchResult) string {
	verdicts := make(map[string]bool, len(results))
	for _, r := range results {
		verdicts[r.Claim.Text] = r.Verified
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		verified, ok := verdicts[strings.TrimSpace(line)]
		if !ok {
			continue
		}
		if verified {
			lines[i] = line + " ✓ [verified]"
		} else {
			lines[i] = "⚠ [unverified] " + line
		}
	}
	return strings.Join(lines, "\n")
}

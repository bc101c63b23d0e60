package usecase

import "sigil/internal/domain"

// EnforcementConfig tunes how match results turn into a pass/annotate/block
// decision. Enforcement is a pure function of the results and this config.
type EnforcementConfig struct {
	Mode domain.EnforcementMode
	// BlockUnverified replaces annotation with a block in strict mode.
	BlockUnverified bool
	// StrongClaimConfidence is the extractor confidence at or above which a
	// claim counts as clearly tool-invocation-shaped. Permissive mode only
	// polices those.
	StrongClaimConfidence float64
}

const defaultStrongClaimConfidence = 0.6

// Enforce classifies a response's match results. Permissive mode lets weak,
// prose-shaped claims through unexamined; strict mode demands every claim be
// verified.
func Enforce(results []domain.MatchResult, cfg EnforcementConfig) domain.EnforcementSummary {
	strong := cfg.StrongClaimConfidence
	if strong <= 0 {
		strong = defaultStrongClaimConfidence
	}

	summary := domain.EnforcementSummary{
		Action:      domain.ActionPass,
		TotalClaims: len(results),
		Scores:      make([]float64, 0, len(results)),
	}

	offending := 0
	for _, r := range results {
		summary.Scores = append(summary.Scores, r.Score)
		if r.Verified {
			summary.VerifiedClaims++
			continue
		}
		summary.UnverifiedClaims++
		if cfg.Mode == domain.ModeStrict || r.Claim.Confidence >= strong {
			offending++
		}
	}

	if offending > 0 {
		if cfg.Mode == domain.ModeStrict && cfg.BlockUnverified {
			summary.Action = domain.ActionBlock
		} else {
			summary.Action = domain.ActionAnnotate
		}
	}
	return summary
}

package usecase

import (
	"testing"

	"sigil/internal/domain"
)

func matchResult(verified bool, score, confidence float64) domain.MatchResult {
	return domain.MatchResult{
		Claim:    domain.Claim{Text: "claim", Confidence: confidence},
		Score:    score,
		Verified: verified,
	}
}

func TestEnforce(t *testing.T) {
	cases := []struct {
		name       string
		results    []domain.MatchResult
		cfg        EnforcementConfig
		action     domain.EnforcementAction
		verified   int
		unverified int
	}{
		{
			name:   "no claims pass",
			cfg:    EnforcementConfig{Mode: domain.ModeStrict, BlockUnverified: true},
			action: domain.ActionPass,
		},
		{
			name: "all verified pass",
			results: []domain.MatchResult{
				matchResult(true, 0.9, 0.8),
				matchResult(true, 0.5, 0.9),
			},
			cfg:      EnforcementConfig{Mode: domain.ModeStrict, BlockUnverified: true},
			action:   domain.ActionPass,
			verified: 2,
		},
		{
			name: "permissive ignores weak unverified claims",
			results: []domain.MatchResult{
				matchResult(false, 0.1, 0.4),
			},
			cfg:        EnforcementConfig{Mode: domain.ModePermissive},
			action:     domain.ActionPass,
			unverified: 1,
		},
		{
			name: "permissive annotates strong unverified claims",
			results: []domain.MatchResult{
				matchResult(false, 0.1, 0.8),
			},
			cfg:        EnforcementConfig{Mode: domain.ModePermissive},
			action:     domain.ActionAnnotate,
			unverified: 1,
		},
		{
			name: "strict annotates any unverified claim",
			results: []domain.MatchResult{
				matchResult(true, 0.9, 0.8),
				matchResult(false, 0.1, 0.3),
			},
			cfg:        EnforcementConfig{Mode: domain.ModeStrict},
			action:     domain.ActionAnnotate,
			verified:   1,
			unverified: 1,
		},
		{
			name: "strict with blocking blocks",
			results: []domain.MatchResult{
				matchResult(false, 0.0, 0.3),
			},
			cfg:        EnforcementConfig{Mode: domain.ModeStrict, BlockUnverified: true},
			action:     domain.ActionBlock,
			unverified: 1,
		},
		{
			name: "block only applies in strict mode",
			results: []domain.MatchResult{
				matchResult(false, 0.0, 0.9),
			},
			cfg:        EnforcementConfig{Mode: domain.ModePermissive, BlockUnverified: true},
			action:     domain.ActionAnnotate,
			unverified: 1,
		},
		{
			name: "custom strong-claim bar",
			results: []domain.MatchResult{
				matchResult(false, 0.1, 0.5),
			},
			cfg:        EnforcementConfig{Mode: domain.ModePermissive, StrongClaimConfidence: 0.5},
			action:     domain.ActionAnnotate,
			unverified: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			summary := Enforce(tc.results, tc.cfg)
			if summary.Action != tc.action {
				t.Fatalf("action = %q, want %q", summary.Action, tc.action)
			}
			if summary.TotalClaims != len(tc.results) {
				t.Fatalf("total = %d, want %d", summary.TotalClaims, len(tc.results))
			}
			if summary.VerifiedClaims != tc.verified || summary.UnverifiedClaims != tc.unverified {
				t.Fatalf("verified/unverified = %d/%d, want %d/%d",
					summary.VerifiedClaims, summary.UnverifiedClaims, tc.verified, tc.unverified)
			}
			if len(summary.Scores) != len(tc.results) {
				t.Fatalf("scores len = %d, want %d", len(summary.Scores), len(tc.results))
			}
		})
	}
}

package domain

import "time"

// Claim is a span of free text asserting that a tool was used. Claims are
// ephemeral: produced per verification pass, never persisted.
type Claim struct {
	Text         string    `json:"text"`
	ToolHint     string    `json:"tool_hint,omitempty"`
	ClaimedValue string    `json:"claimed_value,omitempty"`
	Pattern      string    `json:"pattern,omitempty"`
	Confidence   float64   `json:"confidence"`
	ExtractedAt  time.Time `json:"extracted_at"`
}

// MatchResult pairs a claim with its best-scoring signed execution, if any.
// Score is the capped weighted sum of the matcher sub-scores.
type MatchResult struct {
	Claim     Claim            `json:"claim"`
	Execution *SignedExecution `json:"execution,omitempty"`
	Score     float64          `json:"score"`
	Verified  bool             `json:"verified"`
}

type EnforcementMode string

const (
	ModePermissive EnforcementMode = "permissive"
	ModeStrict     EnforcementMode = "strict"
)

type EnforcementAction string

const (
	ActionPass     EnforcementAction = "pass"
	ActionAnnotate EnforcementAction = "annotate"
	ActionBlock    EnforcementAction = "block"
)

// EnforcementSummary is the structured outcome of one enforcement pass.
type EnforcementSummary struct {
	Action           EnforcementAction `json:"action"`
	TotalClaims      int               `json:"total_claims"`
	VerifiedClaims   int               `json:"verified_claims"`
	UnverifiedClaims int               `json:"unverified_claims"`
	Scores           []float64         `json:"scores,omitempty"`
}

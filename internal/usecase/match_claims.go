package usecase

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sigil/internal/claimscan"
	"sigil/internal/domain"
)

// Scoring weights. A candidate's total is the capped sum; the heuristic
// triages claims, it proves nothing.
const (
	weightToolExact   = 0.5
	weightToolPartial = 0.3
	weightKeyword     = 0.4
	weightInput       = 0.3
	weightOutput      = 0.2
	weightRecency     = 0.1
)

type MatcherConfig struct {
	// Window bounds how far back candidate executions are searched.
	Window time.Duration
	// Threshold is the inclusive acceptance score.
	Threshold float64
	// LevelThresholds overrides Threshold per trust level of the matched
	// execution, letting high-trust tools demand a tighter match.
	LevelThresholds map[domain.TrustLevel]float64
}

const (
	defaultMatchWindow    = 2 * time.Minute
	defaultMatchThreshold = 0.3
)

func (c MatcherConfig) window() time.Duration {
	if c.Window > 0 {
		return c.Window
	}
	return defaultMatchWindow
}

func (c MatcherConfig) thresholdFor(exec *domain.SignedExecution) float64 {
	if exec != nil && c.LevelThresholds != nil {
		if t, ok := c.LevelThresholds[exec.TrustLevel]; ok {
			return t
		}
	}
	if c.Threshold > 0 {
		return c.Threshold
	}
	return defaultMatchThreshold
}

// MatchClaims scores claims against the recent execution window. Results
// are deterministic for a fixed registry snapshot: candidates arrive
// newest-first and only a strictly higher score displaces the current best,
// so ties resolve to the most recent execution.
type MatchClaims struct {
	Store  ExecutionStore
	Config MatcherConfig
	Now    Clock
}

func (uc *MatchClaims) Execute(ctx context.Context, claims []domain.Claim) ([]domain.MatchResult, error) {
	candidates, err := uc.Store.Recent(ctx, "", uc.Config.window())
	if err != nil {
		return nil, err
	}
	now := uc.now()

	results := make([]domain.MatchResult, 0, len(claims))
	for _, claim := range claims {
		results = append(results, uc.matchOne(claim, candidates, now))
	}
	return results, nil
}

func (uc *MatchClaims) matchOne(claim domain.Claim, candidates []domain.SignedExecution, now time.Time) domain.MatchResult {
	res := domain.MatchResult{Claim: claim}
	for i := range candidates {
		score := uc.score(claim, candidates[i], now)
		if score > res.Score {
			res.Score = score
			res.Execution = &candidates[i]
		}
	}
	res.Verified = res.Execution != nil && res.Score >= uc.Config.thresholdFor(res.Execution)
	return res
}

func (uc *MatchClaims) score(claim domain.Claim, exec domain.SignedExecution, now time.Time) float64 {
	text := strings.ToLower(claim.Text)
	toolID := strings.ToLower(exec.ToolID)

	score := toolSimilarity(strings.ToLower(claim.ToolHint), toolID)
	score += weightKeyword * keywordOverlap(text, toolID)
	if containsAnyScalar(text, exec.Input) {
		score += weightInput
	}
	if containsAnyScalar(text, exec.Output) {
		score += weightOutput
	}
	score += recencyCredit(exec.SignedAt, now, uc.Config.window())

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func toolSimilarity(hint, toolID string) float64 {
	if hint == "" {
		return 0
	}
	if hint == toolID || strings.Contains(toolID, hint) || strings.Contains(hint, toolID) {
		return weightToolExact
	}
	hintTokens := splitTokens(hint)
	for _, tok := range splitTokens(toolID) {
		for _, ht := range hintTokens {
			if tok == ht {
				return weightToolPartial
			}
		}
	}
	return 0
}

// keywordOverlap returns the fraction of domain keywords present in the
// claim text that also appear in the tool id.
func keywordOverlap(text, toolID string) float64 {
	var inClaim, shared int
	for _, kw := range claimscan.DomainKeywords() {
		if !strings.Contains(text, kw) {
			continue
		}
		inClaim++
		if strings.Contains(toolID, kw) {
			shared++
		}
	}
	if inClaim == 0 {
		return 0
	}
	return float64(shared) / float64(inClaim)
}

func recencyCredit(signedAt, now time.Time, window time.Duration) float64 {
	elapsed := now.Sub(signedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= window {
		return 0
	}
	return weightRecency * (1 - float64(elapsed)/float64(window))
}

var claimNumberRe = regexp.MustCompile(`-?[\d,]+\.?\d*`)

// containsAnyScalar reports whether any leaf scalar of the JSON document
// appears in the claim text, verbatim for strings and within rounding
// tolerance for numbers.
func containsAnyScalar(text string, raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false
	}
	claimNums := numbersIn(text)
	return scalarInText(text, claimNums, doc)
}

func scalarInText(text string, claimNums []float64, v any) bool {
	switch val := v.(type) {
	case map[string]any:
		for _, child := range val {
			if scalarInText(text, claimNums, child) {
				return true
			}
		}
	case []any:
		for _, child := range val {
			if scalarInText(text, claimNums, child) {
				return true
			}
		}
	case string:
		// Single characters match almost any prose; skip them.
		if len(val) > 1 && strings.Contains(text, strings.ToLower(val)) {
			return true
		}
	case float64:
		if strings.Contains(text, strconv.FormatFloat(val, 'f', -1, 64)) {
			return true
		}
		for _, n := range claimNums {
			if math.Abs(n-val) < 0.5 {
				return true
			}
		}
	case bool:
		if strings.Contains(text, strconv.FormatBool(val)) {
			return true
		}
	}
	return false
}

func numbersIn(text string) []float64 {
	var out []float64
	for _, tok := range claimNumberRe.FindAllString(text, -1) {
		n, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", ""), 64)
		if err == nil {
			out = append(out, n)
		}
	}
	return out
}

func splitTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func (uc *MatchClaims) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}

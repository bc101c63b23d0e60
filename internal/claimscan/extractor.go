// Package claimscan extracts tool-result claims from free-form text. A
// claim is a sentence asserting that some tool produced some value; the
// matcher later pairs claims against signed executions.
package claimscan

import (
	"strings"
	"time"

	"sigil/internal/domain"
)

// Extractor scans text line by line against a compiled pattern set.
// Instances are immutable after construction and safe for concurrent use.
type Extractor struct {
	patterns []Pattern
	now      func() time.Time
}

type Option func(*Extractor)

// WithNow overrides the extraction timestamp source.
func WithNow(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithPatterns replaces the default pattern set.
func WithPatterns(patterns []Pattern) Option {
	return func(e *Extractor) { e.patterns = patterns }
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		patterns: DefaultPatterns(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns one claim per line that matches any pattern, deduplicated
// by claim text. Lines yield at most one claim; the first matching pattern
// wins.
func (e *Extractor) Extract(text string) []domain.Claim {
	var claims []domain.Claim
	seen := make(map[string]struct{})
	ts := e.now()

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, p := range e.patterns {
			m := p.Regex.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			claim := e.buildClaim(line, p, m, ts)
			if _, dup := seen[claim.Text]; dup {
				break
			}
			seen[claim.Text] = struct{}{}
			claims = append(claims, claim)
			break
		}
	}
	return claims
}

func (e *Extractor) buildClaim(line string, p Pattern, m []string, ts time.Time) domain.Claim {
	c := domain.Claim{
		Text:        line,
		Pattern:     p.Name,
		ExtractedAt: ts,
	}
	if p.ToolGroup > 0 && p.ToolGroup < len(m) {
		c.ToolHint = resolveToolHint(m[p.ToolGroup])
	}
	if c.ToolHint == "" {
		c.ToolHint = inferTool(line)
	}
	if p.ValueGroup > 0 && p.ValueGroup < len(m) {
		c.ClaimedValue = extractValue(m[p.ValueGroup])
	}
	if c.ClaimedValue == "" {
		c.ClaimedValue = extractValue(line)
	}
	c.Confidence = scoreConfidence(line, c)
	return c
}

func normalizeToolHint(s string) string {
	return strings.ToLower(strings.Trim(s, ".,;:!? "))
}

// resolveToolHint maps captured domain nouns ("temperature") to their tool
// family ("weather"); explicit tool names pass through untouched.
func resolveToolHint(s string) string {
	s = normalizeToolHint(s)
	if s == "" || strings.Contains(s, "_") {
		return s
	}
	for _, fam := range impliedTools {
		if s == fam.tool {
			return s
		}
		for _, w := range fam.words {
			if s == w {
				return fam.tool
			}
		}
	}
	return s
}

// inferTool guesses a tool family from vocabulary when the line names none.
func inferTool(line string) string {
	if m := toolTokenRe.FindStringSubmatch(line); m != nil {
		return normalizeToolHint(m[1])
	}
	lower := strings.ToLower(line)
	for _, fam := range impliedTools {
		for _, w := range fam.words {
			if strings.Contains(lower, w) {
				return fam.tool
			}
		}
	}
	return ""
}

// extractValue pulls the most specific data token out of a fragment:
// unit-qualified numbers beat currency beats quoted strings beats bare
// numbers.
func extractValue(s string) string {
	if v := unitValueRe.FindString(s); v != "" {
		return strings.TrimSpace(v)
	}
	if v := currencyValueRe.FindString(s); v != "" {
		return v
	}
	if m := quotedValueRe.FindStringSubmatch(s); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}
	return plainNumberRe.FindString(s)
}

// scoreConfidence rates how strongly the line reads as a tool-result
// assertion, in [0.1, 1.0].
func scoreConfidence(line string, c domain.Claim) float64 {
	score := 0.3
	if c.ToolHint != "" {
		score += 0.3
	}
	if c.ClaimedValue != "" {
		score += 0.2
	}
	lower := strings.ToLower(line)
	for _, kw := range []string{"api", "tool", "service", "returned", "retrieved", "checked"} {
		if strings.Contains(lower, kw) {
			score += 0.1
			break
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// DomainKeywords exposes the shared vocabulary list for overlap scoring.
func DomainKeywords() []string {
	out := make([]string, len(domainKeywords))
	copy(out, domainKeywords)
	return out
}

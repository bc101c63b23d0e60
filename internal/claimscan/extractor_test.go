package claimscan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToolInvocationClaims(t *testing.T) {
	ex := NewExtractor()

	claims := ex.Extract("I checked weather_api and London is 18°C")
	require.Len(t, claims, 1)
	assert.Equal(t, "weather_api", claims[0].ToolHint)
	assert.Equal(t, "18°C", claims[0].ClaimedValue)
	assert.GreaterOrEqual(t, claims[0].Confidence, 0.6)
}

func TestExtractToolSuffixReport(t *testing.T) {
	ex := NewExtractor()

	claims := ex.Extract("The lookup failed twice.\nstock_api returned: MSFT is trading at $400")
	require.Len(t, claims, 1)
	assert.Equal(t, "stock_api", claims[0].ToolHint)
	assert.Equal(t, "$400", claims[0].ClaimedValue)
}

func TestExtractImpliedTool(t *testing.T) {
	ex := NewExtractor()

	claims := ex.Extract("The current temperature is 21°C right now")
	require.NotEmpty(t, claims)
	assert.Equal(t, "weather", claims[0].ToolHint)
}

func TestExtractImpliedToolIsDeterministic(t *testing.T) {
	ex := NewExtractor()

	// Vocabulary from two tool families on one line; "price" (stock) outranks
	// "balance" (finance), and the winner must not vary between runs.
	text := "As of now, the price and balance are 100"
	for i := 0; i < 500; i++ {
		claims := ex.Extract(text)
		require.NotEmpty(t, claims, "iteration %d", i)
		require.Equal(t, "stock", claims[0].ToolHint, "iteration %d", i)
	}
}

func TestExtractIgnoresPlainProse(t *testing.T) {
	ex := NewExtractor()

	claims := ex.Extract("Paris is the capital of France.\nIt has great museums.")
	assert.Empty(t, claims)
}

func TestExtractDeduplicatesLines(t *testing.T) {
	ex := NewExtractor()

	text := "I checked weather_api and it is sunny\nI checked weather_api and it is sunny"
	claims := ex.Extract(text)
	assert.Len(t, claims, 1)
}

func TestExtractValuePriorities(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unit beats number", "price is 42.5% today", "42.5%"},
		{"currency", "balance shows $1,250.75", "$1,250.75"},
		{"quoted", `status is "degraded" currently`, "degraded"},
		{"bare number", "count is 17", "17"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractValue(tt.in))
		})
	}
}

func TestLoadPatternsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.yaml")
	content := `
patterns:
  - name: ticket_lookup
    regex: '(?i)ticket\s+(\S+)\s+is\s+(.+)'
    tool_group: 0
    value_group: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	patterns, err := LoadPatterns(path)
	require.NoError(t, err)
	assert.Len(t, patterns, len(DefaultPatterns())+1)

	ex := NewExtractor(WithPatterns(patterns))
	claims := ex.Extract("ticket JIRA-42 is resolved")
	require.Len(t, claims, 1)
	assert.Equal(t, "ticket_lookup", claims[0].Pattern)
}

func TestLoadPatternsRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()

	for name, content := range map[string]string{
		"bad regex":    "patterns:\n  - name: broken\n    regex: '('\n",
		"missing name": "patterns:\n  - regex: 'x'\n",
		"group range":  "patterns:\n  - name: g\n    regex: 'x'\n    value_group: 3\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := LoadPatterns(path)
			assert.Error(t, err)
		})
	}
}

func TestDisableDefaults(t *testing.T) {
	cfg := FileConfig{DisableDefaults: true, Patterns: []PatternConfig{{Name: "only", Regex: "x"}}}
	patterns, err := cfg.Compile()
	require.NoError(t, err)
	assert.Len(t, patterns, 1)
}

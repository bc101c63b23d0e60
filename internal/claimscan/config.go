package claimscan

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML shape for operator-supplied pattern extensions.
// Custom patterns are appended after the built-in set; disable_defaults
// drops the built-ins entirely.
type FileConfig struct {
	DisableDefaults bool            `yaml:"disable_defaults"`
	Patterns        []PatternConfig `yaml:"patterns"`
}

type PatternConfig struct {
	Name       string `yaml:"name"`
	Regex      string `yaml:"regex"`
	ToolGroup  int    `yaml:"tool_group"`
	ValueGroup int    `yaml:"value_group"`
}

// LoadPatterns reads a YAML pattern file and returns the effective pattern
// set. An empty path yields the defaults unchanged.
func LoadPatterns(path string) ([]Pattern, error) {
	if path == "" {
		return DefaultPatterns(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern config: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse pattern config: %w", err)
	}
	return cfg.Compile()
}

// Compile validates and compiles the configured patterns, merging them with
// the defaults unless disabled.
func (c FileConfig) Compile() ([]Pattern, error) {
	var out []Pattern
	if !c.DisableDefaults {
		out = DefaultPatterns()
	}
	for i, pc := range c.Patterns {
		if pc.Name == "" {
			return nil, fmt.Errorf("pattern %d: missing name", i)
		}
		re, err := regexp.Compile(pc.Regex)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pc.Name, err)
		}
		if pc.ToolGroup > re.NumSubexp() || pc.ValueGroup > re.NumSubexp() {
			return nil, fmt.Errorf("pattern %q: group index out of range", pc.Name)
		}
		out = append(out, Pattern{
			Name:       pc.Name,
			Regex:      re,
			ToolGroup:  pc.ToolGroup,
			ValueGroup: pc.ValueGroup,
		})
	}
	return out, nil
}

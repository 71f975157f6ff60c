package config

import (
	"time"

	"github.com/JiLiZART/fast-staged/internal/task"
)

// Source identifies which cascade candidate a config was loaded from.
type Source string

const (
	SourceTOML        Source = "toml"
	SourceJSON        Source = "json"
	SourceYAML        Source = "yaml"
	SourcePackageJSON Source = "package.json"
)

// PatternRule binds one glob pattern to the commands run for every staged
// file it matches. Rules keep declaration order; the matcher stops at the
// first pattern that hits.
type PatternRule struct {
	Pattern  string
	Commands []string
}

// Group is one named config section after normalization. Timeout is
// already resolved against the top-level default; zero means no limit.
type Group struct {
	Name    string
	Timeout time.Duration
	Order   task.ExecutionOrder
	Rules   []PatternRule
}

// Config is a loaded, validated configuration. Groups keep declaration
// order, which fixes matching precedence for the whole run.
type Config struct {
	Path    string
	Source  Source
	Timeout time.Duration
	Groups  []Group
}

// Patterns returns every declared pattern in declaration order, for error
// reporting and doctor output.
func (c *Config) Patterns() []string {
	var out []string
	for _, g := range c.Groups {
		for _, r := range g.Rules {
			out = append(out, r.Pattern)
		}
	}
	return out
}

// Package match pairs staged files with the commands configured for them.
package match

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/JiLiZART/fast-staged/internal/config"
	"github.com/JiLiZART/fast-staged/internal/log"
	"github.com/JiLiZART/fast-staged/internal/task"
)

// NoMatchError reports that staged files exist but none of them matched a
// configured pattern.
type NoMatchError struct {
	Patterns []string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("No files matched any patterns. Patterns checked: %s", strings.Join(e.Patterns, ", "))
}

// Items builds the work list for a run. Each file gets the commands of the
// first pattern that matches it, scanning groups and patterns in
// declaration order; later matches for the same file never fire. Files
// matching nothing are dropped. If files were staged but nothing produced
// a command, the result is a NoMatchError carrying every configured
// pattern.
func Items(cfg *config.Config, files []string) ([]task.WorkItem, error) {
	m := newMatcher()

	var items []task.WorkItem
	for _, file := range files {
		group, rule, ok := m.firstMatch(cfg, file)
		if !ok {
			continue
		}
		for _, command := range rule.Commands {
			items = append(items, task.WorkItem{
				File:    file,
				Command: command,
				Group:   group.Name,
				Timeout: group.Timeout,
				Order:   group.Order,
			})
		}
	}

	if len(items) == 0 && len(files) > 0 {
		return nil, &NoMatchError{Patterns: cfg.Patterns()}
	}
	return items, nil
}

// matcher memoizes compiled patterns across the files of one run. A nil
// entry marks a pattern that failed to compile; it matches nothing.
type matcher struct {
	compiled map[string]glob.Glob
}

func newMatcher() *matcher {
	return &matcher{compiled: make(map[string]glob.Glob)}
}

func (m *matcher) firstMatch(cfg *config.Config, file string) (*config.Group, *config.PatternRule, bool) {
	for gi := range cfg.Groups {
		group := &cfg.Groups[gi]
		for ri := range group.Rules {
			rule := &group.Rules[ri]
			if m.matches(rule.Pattern, file) {
				return group, rule, true
			}
		}
	}
	return nil, nil, false
}

func (m *matcher) matches(pattern, file string) bool {
	g, seen := m.compiled[pattern]
	if !seen {
		// '/' as separator keeps a bare * inside one path segment, so
		// "*.js" stays a same-directory pattern and "src/**" crosses.
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			log.Warn("skipping glob pattern that does not compile", "pattern", pattern, "error", err)
			m.compiled[pattern] = nil
			return false
		}
		g = compiled
		m.compiled[pattern] = g
	}
	if g == nil {
		return false
	}
	return g.Match(file)
}

package match

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/JiLiZART/fast-staged/internal/config"
	"github.com/JiLiZART/fast-staged/internal/log"
	"github.com/JiLiZART/fast-staged/internal/task"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Timeout: 30 * time.Second,
		Groups: []config.Group{
			{
				Name:    "js",
				Timeout: 10 * time.Second,
				Order:   task.OrderParallel,
				Rules: []config.PatternRule{
					{Pattern: "*.js", Commands: []string{"eslint $FILE", "prettier --check $FILE"}},
					{Pattern: "src/*.js", Commands: []string{"eslint $FILE"}},
				},
			},
			{
				Name:    "docs",
				Timeout: 30 * time.Second,
				Order:   task.OrderSequential,
				Rules: []config.PatternRule{
					{Pattern: "*.md", Commands: []string{"mdlint $FILE"}},
				},
			},
		},
	}
}

func TestItems_PairsFilesWithCommands(t *testing.T) {
	items, err := Items(testConfig(), []string{"app.js", "readme.md"})
	if err != nil {
		t.Fatalf("Items() = %v", err)
	}

	// app.js matched *.js with two commands, readme.md matched *.md with
	// one.
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3: %+v", len(items), items)
	}

	first := items[0]
	if first.File != "app.js" || first.Command != "eslint $FILE" || first.Group != "js" {
		t.Errorf("items[0] = %+v", first)
	}
	if first.Timeout != 10*time.Second {
		t.Errorf("items[0] timeout = %v, want the group's resolved value", first.Timeout)
	}
	if first.Order != task.OrderParallel {
		t.Errorf("items[0] order = %s", first.Order)
	}

	if items[1].Command != "prettier --check $FILE" {
		t.Errorf("items[1] = %+v, want the second command of the same rule", items[1])
	}

	md := items[2]
	if md.File != "readme.md" || md.Group != "docs" || md.Order != task.OrderSequential {
		t.Errorf("items[2] = %+v", md)
	}
}

func TestItems_FirstPatternInGroupWins(t *testing.T) {
	cfg := &config.Config{
		Groups: []config.Group{
			{
				Name:  "js",
				Order: task.OrderParallel,
				Rules: []config.PatternRule{
					{Pattern: "src/*.js", Commands: []string{"eslint --strict $FILE"}},
					{Pattern: "src/app.js", Commands: []string{"eslint $FILE"}},
				},
			},
		},
	}

	items, err := Items(cfg, []string{"src/app.js"})
	if err != nil {
		t.Fatalf("Items() = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %+v, want exactly one (first pattern only)", items)
	}
	if items[0].Command != "eslint --strict $FILE" {
		t.Errorf("command = %q, want the first declared pattern's command", items[0].Command)
	}
}

func TestItems_FirstGroupWins(t *testing.T) {
	cfg := &config.Config{
		Groups: []config.Group{
			{
				Name:  "zeta",
				Order: task.OrderParallel,
				Rules: []config.PatternRule{{Pattern: "*.md", Commands: []string{"mdlint $FILE"}}},
			},
			{
				Name:  "alpha",
				Order: task.OrderParallel,
				Rules: []config.PatternRule{{Pattern: "*.md", Commands: []string{"prettier --check $FILE"}}},
			},
		},
	}

	items, err := Items(cfg, []string{"notes.md"})
	if err != nil {
		t.Fatalf("Items() = %v", err)
	}
	if len(items) != 1 || items[0].Group != "zeta" {
		t.Fatalf("items = %+v, want one item from the first declared group", items)
	}
}

func TestItems_UnmatchedFilesDropped(t *testing.T) {
	items, err := Items(testConfig(), []string{"app.js", "binary.png"})
	if err != nil {
		t.Fatalf("Items() = %v", err)
	}
	for _, item := range items {
		if item.File == "binary.png" {
			t.Errorf("unmatched file produced work: %+v", item)
		}
	}
}

func TestItems_StarStaysInsideDirectory(t *testing.T) {
	// "*.js" is a same-directory pattern; files under src/ need their own
	// rule.
	cfg := &config.Config{
		Groups: []config.Group{
			{
				Name:  "js",
				Order: task.OrderParallel,
				Rules: []config.PatternRule{{Pattern: "*.js", Commands: []string{"eslint $FILE"}}},
			},
		},
	}

	_, err := Items(cfg, []string{"src/app.js"})
	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("Items() = %v, want NoMatchError for a nested file", err)
	}

	items, err := Items(cfg, []string{"top.js"})
	if err != nil || len(items) != 1 {
		t.Fatalf("Items() = %+v, %v; want a match at the top level", items, err)
	}
}

func TestItems_NoMatches(t *testing.T) {
	_, err := Items(testConfig(), []string{"binary.png"})
	if err == nil {
		t.Fatal("Items() = nil, want NoMatchError")
	}

	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("error type = %T, want *NoMatchError", err)
	}

	// Every configured pattern, in declaration order.
	want := []string{"*.js", "src/*.js", "*.md"}
	if len(noMatch.Patterns) != len(want) {
		t.Fatalf("patterns = %v, want %v", noMatch.Patterns, want)
	}
	for i := range want {
		if noMatch.Patterns[i] != want[i] {
			t.Fatalf("patterns = %v, want %v", noMatch.Patterns, want)
		}
	}

	if !strings.HasPrefix(err.Error(), "No files matched any patterns. Patterns checked: ") {
		t.Errorf("Error() = %q, want the patterns-checked wording", err.Error())
	}
}

func TestItems_NoStagedFilesIsNotAnError(t *testing.T) {
	items, err := Items(testConfig(), nil)
	if err != nil {
		t.Fatalf("Items() = %v, want nil for empty input", err)
	}
	if len(items) != 0 {
		t.Fatalf("items = %+v, want none", items)
	}
}

func TestItems_MatchWithoutCommandsStillClaimsFile(t *testing.T) {
	// A matching rule with no commands produces no work, but the file does
	// not fall through to later groups.
	cfg := &config.Config{
		Groups: []config.Group{
			{
				Name:  "noop",
				Order: task.OrderParallel,
				Rules: []config.PatternRule{{Pattern: "*.md", Commands: nil}},
			},
			{
				Name:  "docs",
				Order: task.OrderParallel,
				Rules: []config.PatternRule{{Pattern: "*.md", Commands: []string{"mdlint $FILE"}}},
			},
		},
	}

	_, err := Items(cfg, []string{"readme.md"})
	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("Items() = %v, want NoMatchError once the claiming group adds no work", err)
	}
}

func TestItems_InvalidPatternMatchesNothing(t *testing.T) {
	cfg := &config.Config{
		Groups: []config.Group{
			{
				Name:  "broken",
				Order: task.OrderParallel,
				Rules: []config.PatternRule{{Pattern: "[", Commands: []string{"true"}}},
			},
			{
				Name:  "js",
				Order: task.OrderParallel,
				Rules: []config.PatternRule{{Pattern: "*.js", Commands: []string{"eslint $FILE"}}},
			},
		},
	}

	items, err := Items(cfg, []string{"app.js"})
	if err != nil {
		t.Fatalf("Items() = %v", err)
	}
	if len(items) != 1 || items[0].Group != "js" {
		t.Fatalf("items = %+v, want the later group to still match", items)
	}
}

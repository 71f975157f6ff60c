package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JiLiZART/fast-staged/internal/task"
)

// candidates is the cascade, checked in order against the working
// directory. The first hit wins; there is no merging across files.
var candidates = []struct {
	name   string
	source Source
}{
	{".fast-staged.toml", SourceTOML},
	{"fast-staged.toml", SourceTOML},
	{".fast-staged.json", SourceJSON},
	{"fast-staged.json", SourceJSON},
	{".fast-staged.yaml", SourceYAML},
	{"fast-staged.yaml", SourceYAML},
	{"package.json", SourcePackageJSON},
}

// NotFoundError reports that no cascade candidate exists in the search
// directory.
type NotFoundError struct {
	Checked []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Configuration file not found. Checked paths: %s", strings.Join(e.Checked, ", "))
}

// InvalidError reports a config file that exists but cannot be used.
type InvalidError struct {
	Path    string
	Details string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("Invalid configuration in %s: %s", e.Path, e.Details)
}

// Find locates the first cascade candidate in dir and returns its path and
// format.
func Find(dir string) (string, Source, error) {
	checked := make([]string, 0, len(candidates))
	for _, c := range candidates {
		path := filepath.Join(dir, c.name)
		checked = append(checked, path)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, c.source, nil
		}
	}
	return "", "", &NotFoundError{Checked: checked}
}

// Load finds, parses and validates the configuration for dir.
func Load(dir string) (*Config, error) {
	path, source, err := Find(dir)
	if err != nil {
		return nil, err
	}
	return LoadFile(path, source)
}

// LoadFile parses and validates one specific config file, bypassing the
// cascade. Used by --config and by config subcommands.
func LoadFile(path string, source Source) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &InvalidError{Path: path, Details: fmt.Sprintf("Failed to read file: %v", err)}
	}

	var doc document
	switch source {
	case SourceTOML:
		doc, err = parseTOML(raw)
	case SourceJSON:
		doc, err = parseJSON(raw)
	case SourceYAML:
		doc, err = parseYAML(raw)
	case SourcePackageJSON:
		doc, err = parsePackageJSON(raw)
	default:
		err = fmt.Errorf("unsupported config format %q", source)
	}
	if err != nil {
		return nil, &InvalidError{Path: path, Details: err.Error()}
	}

	cfg, err := normalize(doc)
	if err != nil {
		return nil, &InvalidError{Path: path, Details: err.Error()}
	}
	cfg.Path = path
	cfg.Source = source
	return cfg, nil
}

// SourceForPath guesses the format of an explicitly named config file.
func SourceForPath(path string) Source {
	base := filepath.Base(path)
	if base == "package.json" {
		return SourcePackageJSON
	}
	switch filepath.Ext(base) {
	case ".toml":
		return SourceTOML
	case ".yaml", ".yml":
		return SourceYAML
	default:
		return SourceJSON
	}
}

// document is the format-independent parse result, order preserved.
type document struct {
	timeout string
	groups  []rawGroup
}

type rawGroup struct {
	name    string
	timeout string
	order   string
	rules   []PatternRule
}

// normalize resolves timeouts against the top-level default, applies the
// parallel default and rejects values no run could honor. A timeout that
// does not parse is an error here, not a silent no-limit.
func normalize(doc document) (*Config, error) {
	cfg := &Config{}

	if doc.timeout != "" {
		d, err := parseTimeout(doc.timeout)
		if err != nil {
			return nil, err
		}
		cfg.Timeout = d
	}

	for _, rg := range doc.groups {
		g := Group{
			Name:    rg.name,
			Timeout: cfg.Timeout,
			Order:   task.OrderParallel,
			Rules:   rg.rules,
		}

		if rg.timeout != "" {
			d, err := parseTimeout(rg.timeout)
			if err != nil {
				return nil, fmt.Errorf("group '%s': %v", rg.name, err)
			}
			g.Timeout = d
		}

		switch rg.order {
		case "", string(task.OrderParallel):
			g.Order = task.OrderParallel
		case string(task.OrderSequential):
			g.Order = task.OrderSequential
		default:
			return nil, fmt.Errorf("group '%s': execution_order must be 'parallel' or 'sequential' (got %q)", rg.name, rg.order)
		}

		for _, rule := range g.Rules {
			if rule.Pattern == "" {
				return nil, fmt.Errorf("group '%s': empty pattern", rg.name)
			}
		}

		cfg.Groups = append(cfg.Groups, g)
	}

	return cfg, nil
}

func parseTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: expected a duration like \"30s\" or \"500ms\"", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", s)
	}
	return d, nil
}

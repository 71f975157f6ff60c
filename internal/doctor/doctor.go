// Package doctor validates fast-staged configuration and environment.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/gobwas/glob"

	"github.com/JiLiZART/fast-staged/internal/config"
	"github.com/JiLiZART/fast-staged/internal/gitindex"
	"github.com/JiLiZART/fast-staged/internal/history"
	"github.com/JiLiZART/fast-staged/internal/task"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid       bool    `json:"valid"`
	ConfigPath  string  `json:"config_path,omitempty"`
	StagedFiles int     `json:"staged_files"`
	Errors      []Issue `json:"errors,omitempty"`
	Warnings    []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates the configuration, the repository, and the tools a run
// would need.
type Doctor struct {
	dir        string
	configFile string
	reader     gitindex.Reader
}

// New creates a Doctor checking from dir. A non-empty configFile pins the
// config check to that file instead of the discovery cascade.
func New(dir, configFile string, reader gitindex.Reader) *Doctor {
	return &Doctor{dir: dir, configFile: configFile, reader: reader}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	cfg := d.checkConfig(r)
	if cfg != nil {
		d.checkPatterns(r, cfg)
		d.checkCommands(r, cfg)
		d.warnSequentialOnly(r, cfg)
	}
	d.checkGit(r)
	d.checkState(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// checkConfig resolves the cascade, or the pinned file, and loads whatever
// it hits. Returns nil when no usable config exists; pattern and command
// checks are skipped then.
func (d *Doctor) checkConfig(r *Result) *config.Config {
	cfg, err := d.loadConfig()
	if err != nil {
		d.addError(r, "config", "", err.Error())
		return nil
	}
	r.ConfigPath = cfg.Path
	return cfg
}

func (d *Doctor) loadConfig() (*config.Config, error) {
	if d.configFile != "" {
		return config.LoadFile(d.configFile, config.SourceForPath(d.configFile))
	}
	return config.Load(d.dir)
}

// checkPatterns compiles every configured glob.
func (d *Doctor) checkPatterns(r *Result, cfg *config.Config) {
	for _, g := range cfg.Groups {
		for _, rule := range g.Rules {
			field := fmt.Sprintf("groups.%s", g.Name)
			if _, err := glob.Compile(rule.Pattern, '/'); err != nil {
				d.addError(r, "patterns", field,
					fmt.Sprintf("pattern %q does not compile: %v", rule.Pattern, err))
			}
			if len(rule.Commands) == 0 {
				d.addWarning(r, "patterns", field,
					fmt.Sprintf("pattern %q has no commands; matching files produce no work", rule.Pattern))
			}
		}
	}
}

// checkCommands probes PATH for every distinct command, reporting each miss.
func (d *Doctor) checkCommands(r *Result, cfg *config.Config) {
	seen := make(map[string]struct{})
	for _, g := range cfg.Groups {
		for _, rule := range g.Rules {
			for _, command := range rule.Commands {
				if _, ok := seen[command]; ok {
					continue
				}
				seen[command] = struct{}{}

				if _, err := exec.LookPath(task.LookupTarget(command)); err != nil {
					d.addError(r, "commands", fmt.Sprintf("groups.%s", g.Name),
						fmt.Sprintf("command %q not found in PATH", command))
				}
			}
		}
	}
}

// checkGit verifies the repository and counts staged files.
func (d *Doctor) checkGit(r *Result) {
	snap, err := d.reader.Read(d.dir)
	if err != nil {
		var notRepo *gitindex.NotRepositoryError
		switch {
		case errors.As(err, &notRepo):
			d.addError(r, "git", "", err.Error())
		case errors.Is(err, gitindex.ErrNoStagedFiles):
			d.addWarning(r, "git", "", "no staged files; a run would abort until 'git add' stages something")
		default:
			d.addError(r, "git", "", err.Error())
		}
		return
	}
	r.StagedFiles = len(snap.Files)
}

// checkState verifies the history directory can be created and written.
func (d *Doctor) checkState(r *Result) {
	dir, err := history.StateDir()
	if err != nil {
		d.addError(r, "state", "", err.Error())
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		d.addError(r, "state", "", fmt.Sprintf("cannot create state directory %s: %v", dir, err))
		return
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		d.addError(r, "state", "", fmt.Sprintf("state directory %s is not writable: %v", dir, err))
		return
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
}

// warnSequentialOnly flags configs where no group can run in parallel.
func (d *Doctor) warnSequentialOnly(r *Result, cfg *config.Config) {
	if len(cfg.Groups) == 0 {
		return
	}
	for _, g := range cfg.Groups {
		if g.Order != task.OrderSequential {
			return
		}
	}
	d.addWarning(r, "config", "", "every group runs sequentially; tasks never execute in parallel")
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.ConfigPath != "" {
		fmt.Fprintf(&b, "Config: %s\n", r.ConfigPath)
	}
	fmt.Fprintf(&b, "Staged files: %d\n", r.StagedFiles)

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Everything looks good.\n")
		return b.String()
	case r.Valid:
		fmt.Fprintf(&b, "Usable (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Problems found (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

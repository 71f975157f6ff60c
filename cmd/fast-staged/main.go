package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/JiLiZART/fast-staged/internal/config"
	"github.com/JiLiZART/fast-staged/internal/doctor"
	"github.com/JiLiZART/fast-staged/internal/events"
	"github.com/JiLiZART/fast-staged/internal/gitindex"
	"github.com/JiLiZART/fast-staged/internal/history"
	"github.com/JiLiZART/fast-staged/internal/lock"
	"github.com/JiLiZART/fast-staged/internal/log"
	"github.com/JiLiZART/fast-staged/internal/match"
	"github.com/JiLiZART/fast-staged/internal/report"
	"github.com/JiLiZART/fast-staged/internal/task"
	"github.com/JiLiZART/fast-staged/internal/tui/runview"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// pollInterval is the cadence of the plain renderer's pool polling, the
// same 33ms the TUI uses.
const pollInterval = 33 * time.Millisecond

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		return runRun(nil)
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	if cmd == "--version" {
		return runVersion(args)
	}

	switch cmd {
	case "run":
		if hasHelpFlag(args) {
			printRunHelp()
			return 0
		}
		return runRun(args)
	case "config":
		return runConfigNoun(args)
	case "history":
		return runHistoryNoun(args)
	case "doctor":
		if hasHelpFlag(args) {
			printDoctorHelp()
			return 0
		}
		return runDoctor(args)
	case "version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		// A bare flag means an implicit run: "fast-staged --no-tui".
		if strings.HasPrefix(cmd, "-") {
			return runRun(cliArgs)
		}
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 2
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: fast-staged version [--json]")
		return 2
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("fast-staged %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalizedBuildTime, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalizedBuildTime
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`fast-staged - Run configured commands against git staged files

Usage:
  fast-staged [run] [flags]
  fast-staged <noun> <action> [flags]

Run:
  run               Match staged files against the config and run every
                    command, with live progress (default command)

Config Commands:
  config check      Validate the configuration
  config show       Print the resolved configuration

History Commands:
  history list      List recent runs
  history show <id> Show one recorded run with its task results

Diagnostics:
  doctor            Check config, commands, git state, and the state dir

General:
  --version         Show version information
  version           Show version information
  help              Show this help message

Use 'fast-staged <noun> help' for resource-specific flags.
`)
}

// --- RUN ---

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to a config file (skips discovery)")
	dir := fs.String("dir", ".", "Working directory")
	noTUI := fs.Bool("no-tui", false, "Plain line-by-line output instead of the TUI")
	noHistory := fs.Bool("no-history", false, "Do not record this run")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: fast-staged run [--config PATH] [--dir PATH] [--no-tui] [--no-history] [--log-level LEVEL]")
		return 2
	}

	log.Setup(*logLevel)
	logger := log.WithComponent("main")

	// The original resolves the staged set before it even looks for a
	// config, so an empty index wins over a missing config file.
	snap, err := gitindex.NewIndexReader().Read(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg, err := loadRunConfig(*configPath, *dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	items, err := match.Items(cfg, snap.Files)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	stateDir, err := history.StateDir()
	if err != nil {
		logger.Warn("state directory unavailable, running without the run lock", "error", err)
	} else {
		runLock, lockErr := lock.Acquire(stateDir, snap.RootDir)
		if lockErr != nil {
			fmt.Fprintln(os.Stderr, lockErr)
			return 1
		}
		defer runLock.Release()
	}

	runID := uuid.NewString()
	runLogger := log.WithRun(runID)
	runLogger.Info("starting run",
		"version", version,
		"config", cfg.Path,
		"files", len(snap.Files),
		"tasks", len(items))

	// Size the ring so a run's full event stream survives for the plain
	// renderer's backfill.
	hub := events.NewHub(2*len(items) + 16)
	pool := task.NewPool(
		task.WithDir(snap.RootDir),
		task.WithHub(hub),
		task.WithLogger(log.WithComponent("pool")),
	)

	startedAt := time.Now()
	hub.Publish(events.TypeRunStarted, events.RunEvent{
		RunID: runID,
		Tasks: len(items),
		Files: len(snap.Files),
	})

	if err := pool.Dispatch(items); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	var elapsed time.Duration
	var completed bool
	if !*noTUI && isatty.IsTerminal(os.Stdout.Fd()) {
		elapsed, completed = observeTUI(pool, hub, len(snap.Files), startedAt)
	} else {
		elapsed, completed = observePlain(pool, hub, len(snap.Files), startedAt)
	}

	hub.Publish(events.TypeRunCompleted, events.RunEvent{
		RunID:     runID,
		Tasks:     pool.Len(),
		Files:     len(snap.Files),
		Failed:    pool.FailedCount(),
		TimedOut:  pool.TimeoutCount(),
		ElapsedMS: elapsed.Milliseconds(),
	})

	fmt.Print(report.Build(pool, len(snap.Files), elapsed))
	if !completed {
		fmt.Fprintln(os.Stderr, "Run interrupted before every task finished.")
	}

	if !*noHistory {
		recordRun(runLogger, pool, snap, cfg, runID, startedAt, elapsed)
	}

	if !completed || pool.FailedCount() > 0 || pool.TimeoutCount() > 0 {
		return 1
	}
	return 0
}

// loadRunConfig loads an explicit file when --config was given and runs the
// discovery cascade otherwise.
func loadRunConfig(configPath, dir string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath, config.SourceForPath(configPath))
	}
	return config.Load(dir)
}

// observeTUI runs the BubbleTea view until the pool completes or the user
// quits. It reports the run's elapsed time and whether every task finished.
func observeTUI(pool *task.Pool, hub *events.Hub, fileCount int, startedAt time.Time) (time.Duration, bool) {
	p := tea.NewProgram(runview.New(pool, fileCount))
	final, err := p.Run()
	if err != nil {
		// No usable terminal after all; fall back to the plain loop so
		// the run still finishes and reports.
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return observePlain(pool, hub, fileCount, startedAt)
	}

	if m, ok := final.(runview.Model); ok && pool.IsComplete() {
		return m.Elapsed(), true
	}
	return time.Since(startedAt), pool.IsComplete()
}

// observePlain drives the pool without a TUI: every finished task prints
// one line, failures print their message indented underneath. Events come
// from the hub's ring, which keeps the output complete even if the live
// channel drops a send.
func observePlain(pool *task.Pool, hub *events.Hub, fileCount int, startedAt time.Time) (time.Duration, bool) {
	fmt.Printf("Running %d tasks for %d file(s)...\n", pool.Len(), fileCount)

	sub, cancel := hub.Subscribe()
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastID int64
	flush := func() {
		for _, ev := range hub.SnapshotSince(lastID) {
			lastID = ev.ID
			printFinishedTask(ev)
		}
	}

	for !pool.IsComplete() {
		select {
		case <-sigCh:
			flush()
			return time.Since(startedAt), false
		case <-sub:
			// Wakeup only; the ring below is the source of truth.
		case <-ticker.C:
			for {
				joined, err := pool.PullCompleted()
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
				if !joined {
					break
				}
			}
		}
		flush()
	}

	elapsed := time.Since(startedAt)
	flush()
	return elapsed, true
}

func printFinishedTask(ev events.Event) {
	if ev.Type != events.TypeTaskFinished {
		return
	}
	te, ok := events.DecodeTask(ev)
	if !ok {
		return
	}

	st := task.Status(te.Status)
	line := fmt.Sprintf("%s %s: %s", st.Symbol(), te.File, te.Command)
	if st == task.StatusDone || st == task.StatusFailed {
		line = fmt.Sprintf("%s - %dms", line, te.DurationMS)
	}
	fmt.Println(line)

	if te.Failure != "" {
		for _, detail := range strings.Split(strings.TrimRight(te.Failure, "\n"), "\n") {
			fmt.Printf("    %s\n", detail)
		}
	}
}

// recordRun persists the finished run. History is best effort: every
// failure lands in the log and never in the exit code.
func recordRun(logger *slog.Logger, pool *task.Pool, snap *gitindex.Snapshot, cfg *config.Config, runID string, startedAt time.Time, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbPath, err := history.DefaultDBPath()
	if err != nil {
		logger.Warn("history disabled", "error", err)
		return
	}
	store, err := history.Open(ctx, dbPath)
	if err != nil {
		logger.Warn("failed to open history store", "path", dbPath, "error", err)
		return
	}
	defer store.Close()

	fingerprint, err := config.Fingerprint(cfg.Path)
	if err != nil {
		logger.Warn("failed to fingerprint config", "path", cfg.Path, "error", err)
	}

	rec := history.RunRecord{
		ID:                runID,
		RepoRoot:          snap.RootDir,
		StartedAt:         startedAt.UTC(),
		FinishedAt:        startedAt.Add(elapsed).UTC(),
		ElapsedMS:         elapsed.Milliseconds(),
		TotalMS:           pool.TotalExecutionTime().Milliseconds(),
		FileCount:         len(snap.Files),
		TaskCount:         pool.Len(),
		FailedCount:       pool.FailedCount(),
		TimeoutCount:      pool.TimeoutCount(),
		ConfigPath:        cfg.Path,
		ConfigFingerprint: fingerprint,
	}

	for _, t := range pool.Tasks() {
		st := t.Status()
		if st == task.StatusDone {
			rec.DoneCount++
		}

		tr := history.TaskRecord{
			File:    t.File(),
			Command: t.Command(),
			Group:   t.Group(),
			Status:  string(st),
		}
		if d, ok := t.Duration(); ok {
			ms := d.Milliseconds()
			tr.DurationMS = &ms
		}
		if msg := t.FailureMessage(); msg != "" {
			failure := msg
			tr.Failure = &failure
		}
		rec.Tasks = append(rec.Tasks, tr)
	}

	if err := store.Record(ctx, rec); err != nil {
		logger.Warn("failed to record run", "run_id", runID, "error", err)
		return
	}
	logger.Debug("run recorded", "run_id", runID, "path", dbPath)
}

func printRunHelp() {
	fmt.Println("Usage: fast-staged run [flags]")
	fmt.Println()
	fmt.Println("Run every configured command against the repository's staged files.")
	fmt.Println("This is the default command: 'fast-staged' alone does the same.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --config PATH      Use PATH instead of the discovery cascade")
	fmt.Println("  --dir PATH         Working directory (default \".\")")
	fmt.Println("  --no-tui           Plain line-by-line output instead of the TUI")
	fmt.Println("  --no-history       Do not record this run")
	fmt.Println("  --log-level LEVEL  debug, info, warn, or error (default \"warn\")")
	fmt.Println()
	fmt.Println("Exit codes:")
	fmt.Println("  0  Every task finished as done")
	fmt.Println("  1  A task failed or timed out, or the run could not start")
	fmt.Println("  2  Usage errors")
}

// --- CONFIG ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 2
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 2
	}
}

type configCheckResult struct {
	Valid    bool   `json:"valid"`
	Path     string `json:"path,omitempty"`
	Error    string `json:"error,omitempty"`
	Groups   int    `json:"groups"`
	Patterns int    `json:"patterns"`
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to a config file (skips discovery)")
	dir := fs.String("dir", ".", "Directory whose cascade is checked")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: fast-staged config check [--config PATH] [--dir PATH] [--json]")
		return 2
	}

	res := configCheckResult{Valid: true}
	cfg, err := loadRunConfig(*configPath, *dir)
	if err != nil {
		res.Valid = false
		res.Error = err.Error()
	} else {
		res.Path = cfg.Path
		res.Groups = len(cfg.Groups)
		res.Patterns = len(cfg.Patterns())
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(data))
	} else if res.Valid {
		fmt.Printf("Configuration valid: %s\n", res.Path)
		fmt.Printf("Groups: %d, patterns: %d\n", res.Groups, res.Patterns)
	} else {
		fmt.Fprintln(os.Stderr, res.Error)
	}

	if !res.Valid {
		return 1
	}
	return 0
}

// configView flattens a loaded Config for config show output. Timeouts
// render as duration strings and zero values disappear.
type configView struct {
	Path    string      `json:"path" yaml:"path"`
	Source  string      `json:"source" yaml:"source"`
	Timeout string      `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Groups  []groupView `json:"groups" yaml:"groups"`
}

type groupView struct {
	Name     string     `json:"name" yaml:"name"`
	Timeout  string     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Order    string     `json:"execution_order" yaml:"execution_order"`
	Patterns []ruleView `json:"patterns" yaml:"patterns"`
}

type ruleView struct {
	Pattern  string   `json:"pattern" yaml:"pattern"`
	Commands []string `json:"commands" yaml:"commands"`
}

func newConfigView(cfg *config.Config) configView {
	v := configView{Path: cfg.Path, Source: string(cfg.Source)}
	if cfg.Timeout > 0 {
		v.Timeout = cfg.Timeout.String()
	}
	for _, g := range cfg.Groups {
		gv := groupView{Name: g.Name, Order: string(g.Order)}
		if g.Timeout > 0 {
			gv.Timeout = g.Timeout.String()
		}
		for _, r := range g.Rules {
			gv.Patterns = append(gv.Patterns, ruleView{Pattern: r.Pattern, Commands: r.Commands})
		}
		v.Groups = append(v.Groups, gv)
	}
	return v
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to a config file (skips discovery)")
	dir := fs.String("dir", ".", "Directory whose cascade is shown")
	jsonOut := fs.Bool("json", false, "Output as JSON instead of YAML")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: fast-staged config show [--config PATH] [--dir PATH] [--json]")
		return 2
	}

	cfg, err := loadRunConfig(*configPath, *dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	view := newConfigView(cfg)
	if *jsonOut {
		data, _ := json.MarshalIndent(view, "", "  ")
		fmt.Println(string(data))
	} else {
		data, _ := yaml.Marshal(view)
		fmt.Print(string(data))
	}
	return 0
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprint(w, `Usage: fast-staged config <action> [flags]

Actions:
  check    Validate the configuration the cascade (or --config) resolves
  show     Print the resolved configuration as YAML (or --json)

Use 'fast-staged config <action> --help' for action flags.
`)
}

func printConfigCheckHelp() {
	fmt.Println("Usage: fast-staged config check [--config PATH] [--dir PATH] [--json]")
	fmt.Println("Validate configuration discovery, syntax, and schema. Exit 1 when invalid.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: fast-staged config show [--config PATH] [--dir PATH] [--json]")
	fmt.Println("Print the resolved configuration: groups, patterns, commands, timeouts.")
}

// --- HISTORY ---

func runHistoryNoun(args []string) int {
	if len(args) < 1 {
		printHistoryNounHelp(os.Stderr)
		return 2
	}
	if isHelpToken(args[0]) {
		printHistoryNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			printHistoryListHelp()
			return 0
		}
		return runHistoryList(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printHistoryShowHelp()
			return 0
		}
		return runHistoryShow(actionArgs)
	case "help":
		printHistoryNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown history action: %s\n", action)
		return 2
	}
}

func openHistoryStore(ctx context.Context) (*history.Store, error) {
	dbPath, err := history.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return history.Open(ctx, dbPath)
}

func runHistoryList(args []string) int {
	fs := flag.NewFlagSet("history list", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "Maximum number of runs to list")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: fast-staged history list [--limit N] [--json]")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := openHistoryStore(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		return 1
	}
	defer store.Close()

	runs, err := store.Recent(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(runs, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return 0
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %d task(s) for %d file(s), %d failed, %d timed out, %dms\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.TaskCount, r.FileCount, r.FailedCount, r.TimeoutCount, r.ElapsedMS)
	}
	return 0
}

func runHistoryShow(args []string) int {
	fs := flag.NewFlagSet("history show", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: fast-staged history show <run-id> [--json]")
		return 2
	}
	runID := fs.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := openHistoryStore(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		return 1
	}
	defer store.Close()

	rec, err := store.Get(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read run: %v\n", err)
		return 1
	}
	if rec == nil {
		fmt.Fprintf(os.Stderr, "Run not found: %s\n", runID)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	fmt.Print(formatRunRecord(rec))
	return 0
}

func formatRunRecord(rec *history.RunRecord) string {
	var b strings.Builder

	fingerprint := rec.ConfigFingerprint
	if len(fingerprint) > 12 {
		fingerprint = fingerprint[:12]
	}

	fmt.Fprintf(&b, "Run:        %s\n", rec.ID)
	fmt.Fprintf(&b, "Repository: %s\n", rec.RepoRoot)
	fmt.Fprintf(&b, "Started:    %s\n", rec.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(&b, "Finished:   %s\n", rec.FinishedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(&b, "Config:     %s (blake3 %s)\n", rec.ConfigPath, fingerprint)
	fmt.Fprintf(&b, "Tasks:      %d for %d file(s): %d done, %d failed, %d timed out\n",
		rec.TaskCount, rec.FileCount, rec.DoneCount, rec.FailedCount, rec.TimeoutCount)
	fmt.Fprintf(&b, "Elapsed:    %dms (execution %dms)\n", rec.ElapsedMS, rec.TotalMS)

	if len(rec.Tasks) > 0 {
		b.WriteString("\n")
	}
	for _, t := range rec.Tasks {
		line := fmt.Sprintf("%s %s: %s", task.Status(t.Status).Symbol(), t.File, t.Command)
		if t.DurationMS != nil {
			line = fmt.Sprintf("%s - %dms", line, *t.DurationMS)
		}
		fmt.Fprintf(&b, "  %s\n", line)
		if t.Failure != nil {
			for _, detail := range strings.Split(strings.TrimRight(*t.Failure, "\n"), "\n") {
				fmt.Fprintf(&b, "      %s\n", detail)
			}
		}
	}
	return b.String()
}

func printHistoryNounHelp(w *os.File) {
	fmt.Fprint(w, `Usage: fast-staged history <action> [flags]

Actions:
  list         List recent runs, newest first
  show <id>    Show one recorded run with its task results

Use 'fast-staged history <action> --help' for action flags.
`)
}

func printHistoryListHelp() {
	fmt.Println("Usage: fast-staged history list [--limit N] [--json]")
	fmt.Println("List recent runs, newest first (default limit 20).")
}

func printHistoryShowHelp() {
	fmt.Println("Usage: fast-staged history show <run-id> [--json]")
	fmt.Println("Show one recorded run: counts, config fingerprint, and task results.")
}

// --- DOCTOR ---

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to a config file (skips discovery)")
	dir := fs.String("dir", ".", "Directory to check")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: fast-staged doctor [--config PATH] [--dir PATH] [--json]")
		return 2
	}

	result := doctor.New(*dir, *configPath, gitindex.NewIndexReader()).Validate()

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render doctor JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func printDoctorHelp() {
	fmt.Println("Usage: fast-staged doctor [--config PATH] [--dir PATH] [--json]")
	fmt.Println()
	fmt.Println("Check everything a run needs: config discovery and syntax, glob")
	fmt.Println("patterns, command availability in PATH, the git repository and its")
	fmt.Println("staged files, and the state directory. Exit 1 when any check fails.")
}

// --- HELPERS ---

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if isHelpToken(arg) {
			return true
		}
	}
	return false
}

// Package report renders the end-of-run summary shared by the TUI and plain
// mode.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/JiLiZART/fast-staged/internal/task"
)

// Source is the slice of the pool the report reads. *task.Pool satisfies it.
type Source interface {
	Len() int
	DisplayLines() []task.DisplayLine
	AggregateStats() map[string]task.CommandStat
	TotalExecutionTime() time.Duration
}

// Build renders the final run report from a completed pool. fileCount is the
// number of staged files the run saw; elapsed is wall time measured by the
// caller.
func Build(src Source, fileCount int, elapsed time.Duration) string {
	var out strings.Builder

	fmt.Fprintf(&out, "Ran %d tasks for %d file(s) in %dms\n", src.Len(), fileCount, elapsed.Milliseconds())
	fmt.Fprintf(&out, "\n")

	for _, line := range src.DisplayLines() {
		fmt.Fprintf(&out, "  %s\n", line.Text)
	}

	if lines := StatLines(src.AggregateStats()); len(lines) > 0 {
		fmt.Fprintf(&out, "\nCommand Statistics\n")
		for _, line := range lines {
			fmt.Fprintf(&out, "  %s\n", line)
		}
	}

	fmt.Fprintf(&out, "\nTotal execution time: %dms | Elapsed: %dms\n",
		src.TotalExecutionTime().Milliseconds(), elapsed.Milliseconds())

	return out.String()
}

// StatLines formats per-command statistics, one line per command, sorted
// case-insensitively. Durations accumulate only from finished tasks, so a
// command can show executions with a zero total while its tasks still run.
func StatLines(stats map[string]task.CommandStat) []string {
	lines := make([]string, 0, len(stats))
	for command, stat := range stats {
		totalMS := stat.Total.Milliseconds()
		var avgMS int64
		if stat.Count > 0 {
			avgMS = totalMS / int64(stat.Count)
		}
		lines = append(lines, fmt.Sprintf("%s: %d execution(s), total %dms, avg %dms",
			command, stat.Count, totalMS, avgMS))
	}
	sort.Slice(lines, func(i, j int) bool {
		return strings.ToLower(lines[i]) < strings.ToLower(lines[j])
	})
	return lines
}

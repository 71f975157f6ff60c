package task

import (
	"sync"
	"sync/atomic"
	"time"
)

// Task tracks one command execution against one file. Fields that change
// together share a mutex; fields read on independent hot paths get their
// own. Renderers poll Status and StartedAt at ~30Hz while the runner owns
// the transitions, so a single coarse lock would serialize every read
// against every write.
//
// Terminal transitions follow a fixed order: status first, then duration
// recorded and startedAt cleared, then done flips true. Once Done reports
// true, Duration is guaranteed to return a value.
type Task struct {
	file    string
	command string
	group   string
	timeout time.Duration

	statusMu sync.Mutex
	status   Status
	failure  string

	startedMu sync.Mutex
	startedAt time.Time

	durationMu  sync.Mutex
	duration    time.Duration
	hasDuration bool

	done atomic.Bool
}

func newTask(item WorkItem) *Task {
	return &Task{
		file:    item.File,
		command: item.Command,
		group:   item.Group,
		timeout: item.Timeout,
		status:  StatusWaiting,
	}
}

// File returns the staged path this task runs against.
func (t *Task) File() string { return t.file }

// Command returns the raw command string, used both for execution and as
// the aggregation key in stats.
func (t *Task) Command() string { return t.command }

// Group returns the config group the task came from.
func (t *Task) Group() string { return t.group }

// Status returns the current lifecycle state.
func (t *Task) Status() Status {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	return t.status
}

// FailureMessage returns the diagnostic attached to a failed task, or ""
// for every other status.
func (t *Task) FailureMessage() string {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	return t.failure
}

// StartedAt returns the execution start time while the task is in flight.
// It reports false before the task starts and again after it finishes,
// because the start time is cleared during the terminal transition.
func (t *Task) StartedAt() (time.Time, bool) {
	t.startedMu.Lock()
	defer t.startedMu.Unlock()
	return t.startedAt, !t.startedAt.IsZero()
}

// Duration returns the measured wall-clock run time. It reports false
// until the task reaches a terminal status.
func (t *Task) Duration() (time.Duration, bool) {
	t.durationMu.Lock()
	defer t.durationMu.Unlock()
	return t.duration, t.hasDuration
}

// Done reports whether the task has fully completed its terminal
// transition, including recording the duration.
func (t *Task) Done() bool { return t.done.Load() }

// markRunning moves a waiting task to running and stamps the start time.
// It does nothing if the task already reached a terminal status.
func (t *Task) markRunning(now time.Time) {
	t.statusMu.Lock()
	if t.status.Terminal() {
		t.statusMu.Unlock()
		return
	}
	t.status = StatusRunning
	t.statusMu.Unlock()

	t.startedMu.Lock()
	t.startedAt = now
	t.startedMu.Unlock()
}

// finish drives the terminal transition. The first caller wins; later
// calls are no-ops, which keeps terminal statuses monotonic even if a
// runner races its own timeout path.
func (t *Task) finish(status Status, failure string) {
	now := time.Now()

	t.statusMu.Lock()
	if t.status.Terminal() {
		t.statusMu.Unlock()
		return
	}
	t.status = status
	t.failure = failure
	t.statusMu.Unlock()

	t.startedMu.Lock()
	started := t.startedAt
	t.startedAt = time.Time{}
	t.startedMu.Unlock()

	var elapsed time.Duration
	if !started.IsZero() {
		elapsed = now.Sub(started)
	}

	t.durationMu.Lock()
	t.duration = elapsed
	t.hasDuration = true
	t.durationMu.Unlock()

	t.done.Store(true)
}

package task

import "time"

// Status is the lifecycle state of a single command execution. The three
// terminal statuses are final: a task never transitions out of them.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
)

// Terminal reports whether the status is one of done, failed or timeout.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusTimeout
}

// Symbol returns the one-glyph marker used by the renderers.
func (s Status) Symbol() string {
	switch s {
	case StatusDone:
		return "✓"
	case StatusFailed:
		return "✗"
	case StatusRunning:
		return "⟳"
	case StatusTimeout:
		return "⏱"
	default:
		return "⏳"
	}
}

// ExecutionOrder is a group's dispatch policy.
type ExecutionOrder string

const (
	OrderParallel   ExecutionOrder = "parallel"
	OrderSequential ExecutionOrder = "sequential"
)

// WorkItem is one (file, command) pairing produced by the matcher and
// consumed exactly once by the pool during dispatch. Timeout is already
// resolved (group value falling back to the config default); zero means
// no limit.
type WorkItem struct {
	File    string
	Command string
	Group   string
	Timeout time.Duration
	Order   ExecutionOrder
}

// CommandStat aggregates all tasks sharing one command string. Total covers
// terminal tasks only; tasks still waiting or running contribute zero.
type CommandStat struct {
	Count int
	Total time.Duration
}

// DisplayLine is one rendered task row plus the status that drove it, so
// renderers can color without re-deriving state.
type DisplayLine struct {
	Text   string
	Status Status
}

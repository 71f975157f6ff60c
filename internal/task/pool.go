package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JiLiZART/fast-staged/internal/events"
	"github.com/JiLiZART/fast-staged/internal/log"
)

// unitResult is sent exactly once per execution unit, success or crash.
type unitResult struct {
	err error
}

// Pool owns a batch of tasks and the execution units that run them. An
// execution unit is one goroutine: a parallel task gets its own, a
// sequential group shares one for the whole chain.
//
// outstanding counts units not yet joined and is the only completion
// signal; task statuses never drive it. Dispatch increments it once per
// unit, PullCompleted decrements it once per joined unit.
type Pool struct {
	mu          sync.Mutex
	tasks       []*Task
	outstanding int
	completions chan unitResult

	dir    string
	hub    *events.Hub
	logger *slog.Logger
	runFn  func(t *Task)
}

// Option configures a Pool.
type Option func(*Pool)

// WithDir sets the working directory for spawned commands, normally the
// repository root.
func WithDir(dir string) Option {
	return func(p *Pool) { p.dir = dir }
}

// WithHub routes task lifecycle events to the hub.
func WithHub(h *events.Hub) Option {
	return func(p *Pool) { p.hub = h }
}

// WithLogger overrides the pool's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// NewPool returns an empty pool. It accepts work exactly once, via
// Dispatch.
func NewPool(opts ...Option) *Pool {
	p := &Pool{dir: "."}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.WithComponent("pool")
	}
	if p.runFn == nil {
		p.runFn = func(t *Task) { runTask(t, p.dir, p.logger) }
	}
	return p
}

// Dispatch validates the batch, registers every task and spawns the
// execution units. Validation is all or nothing: if any command is missing
// from PATH, no task is created and no process starts.
//
// Items sharing a group name form one group; groups keep the order their
// first item appeared in, and the first item also fixes the group's
// execution policy. Sequential groups become a single unit running their
// tasks strictly in order, with no early exit when one fails.
func (p *Pool) Dispatch(items []WorkItem) error {
	if err := checkCommands(items); err != nil {
		return err
	}

	names := make([]string, 0)
	groups := make(map[string][]WorkItem)
	for _, item := range items {
		if _, ok := groups[item.Group]; !ok {
			names = append(names, item.Group)
		}
		groups[item.Group] = append(groups[item.Group], item)
	}

	p.mu.Lock()
	if p.completions != nil {
		p.mu.Unlock()
		return errors.New("pool already dispatched")
	}

	var units [][]*Task
	for _, name := range names {
		members := groups[name]
		if members[0].Order == OrderSequential {
			chain := make([]*Task, 0, len(members))
			for _, item := range members {
				t := newTask(item)
				p.tasks = append(p.tasks, t)
				chain = append(chain, t)
			}
			units = append(units, chain)
			continue
		}
		for _, item := range members {
			t := newTask(item)
			p.tasks = append(p.tasks, t)
			units = append(units, []*Task{t})
		}
	}

	p.completions = make(chan unitResult, len(units))
	p.outstanding = len(units)
	p.mu.Unlock()

	p.logger.Debug("dispatching work",
		"tasks", len(items),
		"units", len(units),
		"groups", len(names))

	for _, chain := range units {
		go p.runUnit(chain)
	}
	return nil
}

// runUnit drives one execution unit to completion and reports the join
// exactly once, even if a task runner panics mid-chain.
func (p *Pool) runUnit(chain []*Task) {
	defer func() {
		res := unitResult{}
		if r := recover(); r != nil {
			res.err = fmt.Errorf("Task join error: execution unit panicked: %v", r)
		}
		p.completions <- res
	}()

	for _, t := range chain {
		p.runOne(t)
	}
}

func (p *Pool) runOne(t *Task) {
	p.publishTask(events.TypeTaskStarted, t)
	p.runFn(t)
	p.publishTask(events.TypeTaskFinished, t)
}

func (p *Pool) publishTask(eventType string, t *Task) {
	if p.hub == nil {
		return
	}
	var durMS int64
	if d, ok := t.Duration(); ok {
		durMS = d.Milliseconds()
	}
	p.hub.Publish(eventType, events.TaskEvent{
		File:       t.File(),
		Command:    t.Command(),
		Group:      t.Group(),
		Status:     string(t.Status()),
		DurationMS: durMS,
		Failure:    t.FailureMessage(),
	})
}

// PullCompleted joins at most one finished execution unit without
// blocking. It reports whether a unit was joined; the error surfaces a
// crashed unit and still counts that unit as joined, so one crash never
// stalls the drain of the others.
func (p *Pool) PullCompleted() (bool, error) {
	p.mu.Lock()
	ch := p.completions
	p.mu.Unlock()
	if ch == nil {
		return false, nil
	}

	select {
	case res := <-ch:
		p.mu.Lock()
		p.outstanding--
		p.mu.Unlock()
		if res.err != nil {
			p.logger.Error("execution unit crashed", "error", res.err)
		}
		return true, res.err
	default:
		return false, nil
	}
}

// IsComplete reports whether every dispatched execution unit has been
// joined.
func (p *Pool) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding == 0
}

// Outstanding returns the number of execution units not yet joined.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding
}

// Len returns the number of registered tasks.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// IsEmpty reports whether the pool holds no tasks.
func (p *Pool) IsEmpty() bool { return p.Len() == 0 }

// Tasks returns the registered tasks in creation order. The slice is a
// copy; the tasks are shared.
func (p *Pool) Tasks() []*Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Task, len(p.tasks))
	copy(out, p.tasks)
	return out
}

// Statuses returns a point-in-time snapshot of every task's status, in
// creation order.
func (p *Pool) Statuses() []Status {
	tasks := p.Tasks()
	out := make([]Status, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Status())
	}
	return out
}

// AggregateStats buckets tasks by raw command string. Every task counts
// toward its command's Count immediately; Total accumulates only the
// durations of tasks that reached a terminal status.
func (p *Pool) AggregateStats() map[string]CommandStat {
	stats := make(map[string]CommandStat)
	for _, t := range p.Tasks() {
		stat := stats[t.Command()]
		stat.Count++
		if t.Done() {
			if d, ok := t.Duration(); ok {
				stat.Total += d
			}
		}
		stats[t.Command()] = stat
	}
	return stats
}

// TotalExecutionTime sums the durations of tasks that finished as done or
// failed. Timed-out tasks are excluded: their measured time reflects the
// limit plus kill latency, not real work.
func (p *Pool) TotalExecutionTime() time.Duration {
	var total time.Duration
	for _, t := range p.Tasks() {
		st := t.Status()
		if st != StatusDone && st != StatusFailed {
			continue
		}
		if d, ok := t.Duration(); ok {
			total += d
		}
	}
	return total
}

// DisplayLines renders one row per task in creation order. Done and failed
// rows carry the measured duration; waiting, running and timed-out rows do
// not.
func (p *Pool) DisplayLines() []DisplayLine {
	tasks := p.Tasks()
	lines := make([]DisplayLine, 0, len(tasks))
	for _, t := range tasks {
		st := t.Status()
		text := fmt.Sprintf("%s %s: %s", st.Symbol(), t.File(), t.Command())
		if st == StatusDone || st == StatusFailed {
			if d, ok := t.Duration(); ok {
				text = fmt.Sprintf("%s - %dms", text, d.Milliseconds())
			}
		}
		lines = append(lines, DisplayLine{Text: text, Status: st})
	}
	return lines
}

// FailedCount returns the number of tasks currently in the failed status.
func (p *Pool) FailedCount() int {
	return p.countStatus(StatusFailed)
}

// TimeoutCount returns the number of tasks currently in the timeout
// status.
func (p *Pool) TimeoutCount() int {
	return p.countStatus(StatusTimeout)
}

func (p *Pool) countStatus(want Status) int {
	n := 0
	for _, t := range p.Tasks() {
		if t.Status() == want {
			n++
		}
	}
	return n
}

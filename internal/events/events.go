package events

import "encoding/json"

// Event types published during a run.
const (
	TypeRunStarted   = "run.started"
	TypeTaskStarted  = "task.started"
	TypeTaskFinished = "task.finished"
	TypeRunCompleted = "run.completed"
)

// TaskEvent is the payload for task.started and task.finished.
type TaskEvent struct {
	File       string `json:"file"`
	Command    string `json:"command"`
	Group      string `json:"group"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Failure    string `json:"failure,omitempty"`
}

// RunEvent is the payload for run.started and run.completed.
type RunEvent struct {
	RunID     string `json:"run_id"`
	Tasks     int    `json:"tasks"`
	Files     int    `json:"files"`
	Failed    int    `json:"failed,omitempty"`
	TimedOut  int    `json:"timed_out,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
}

// DecodeTask unpacks a TaskEvent payload. It reports false for events of
// other types or with malformed data.
func DecodeTask(ev Event) (TaskEvent, bool) {
	if ev.Type != TypeTaskStarted && ev.Type != TypeTaskFinished {
		return TaskEvent{}, false
	}
	var te TaskEvent
	if err := json.Unmarshal(ev.Data, &te); err != nil {
		return TaskEvent{}, false
	}
	return te, true
}

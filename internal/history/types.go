package history

import "time"

// RunRecord is one completed run. Tasks is populated by Get and left nil by
// Recent.
type RunRecord struct {
	ID                string       `json:"id"`
	RepoRoot          string       `json:"repo_root"`
	StartedAt         time.Time    `json:"started_at"`
	FinishedAt        time.Time    `json:"finished_at"`
	ElapsedMS         int64        `json:"elapsed_ms"`
	TotalMS           int64        `json:"total_ms"`
	FileCount         int          `json:"file_count"`
	TaskCount         int          `json:"task_count"`
	DoneCount         int          `json:"done_count"`
	FailedCount       int          `json:"failed_count"`
	TimeoutCount      int          `json:"timeout_count"`
	ConfigPath        string       `json:"config_path"`
	ConfigFingerprint string       `json:"config_fingerprint"`
	Tasks             []TaskRecord `json:"tasks,omitempty"`
}

// TaskRecord is one task of a recorded run, in dispatch order.
type TaskRecord struct {
	File       string  `json:"file"`
	Command    string  `json:"command"`
	Group      string  `json:"group"`
	Status     string  `json:"status"`
	DurationMS *int64  `json:"duration_ms,omitempty"`
	Failure    *string `json:"failure,omitempty"`
}

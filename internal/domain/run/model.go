package run

import "time"

// Status represents the lifecycle status of a batch run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	// StatusPartial marks a finished run with failure slots.
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Run is one batch over a bin root.
type Run struct {
	ID         string     `json:"id"`
	Root       string     `json:"root"`
	Status     Status     `json:"status"`
	Planned    int        `json:"planned"`
	Bins       int        `json:"bins"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// BinStatus is the outcome of one bin.
type BinStatus string

const (
	BinOK     BinStatus = "ok"
	BinFailed BinStatus = "failed"
)

// BinOutcome is the recorded result of one bin of a run.
type BinOutcome struct {
	RunID      string    `json:"run_id"`
	Index      int       `json:"index"`
	Name       string    `json:"name"`
	Dir        string    `json:"dir"`
	Status     BinStatus `json:"status"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error,omitempty"`
	FitQuality *int      `json:"fit_quality,omitempty"`
	LogLike    *float64  `json:"loglike,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Detail is a run with its bins in index order.
type Detail struct {
	Run  Run          `json:"run"`
	Bins []BinOutcome `json:"bins"`
}

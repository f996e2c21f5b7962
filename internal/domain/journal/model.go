package journal

import "time"

// EntryType represents the kind of pipeline event.
type EntryType string

const (
	TypePhaseWritten  EntryType = "phase_written"
	TypeBinsGenerated EntryType = "bins_generated"
	TypeRunStarted    EntryType = "run_started"
	TypeRunFinished   EntryType = "run_finished"
	TypeBinFailed     EntryType = "bin_failed"
)

// Entry is one event in the pipeline journal.
type Entry struct {
	ID        int64     `json:"id"`
	Type      EntryType `json:"type"`
	RunID     *string   `json:"run_id,omitempty"`
	Path      string    `json:"path,omitempty"`
	Summary   string    `json:"summary"`
	Details   string    `json:"details,omitempty"` // JSON object
	CreatedAt time.Time `json:"created_at"`
}

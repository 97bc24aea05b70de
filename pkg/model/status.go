package model

import "time"

// SyncState is the lifecycle state of the sync orchestrator
type SyncState string

const (
	SyncIdle      SyncState = "idle"
	SyncRunning   SyncState = "running"
	SyncCompleted SyncState = "completed"
	SyncStopped   SyncState = "stopped"
	SyncFailed    SyncState = "failed"
)

// Progress holds the counters of one sync run
type Progress struct {
	Pages            int `json:"pages"`
	RecordsArchived  int `json:"records_archived"`
	RecordsSkipped   int `json:"records_skipped"`
	ArtifactsFetched int `json:"artifacts_fetched"`
	ArtifactsMissing int `json:"artifacts_missing"`
}

// SyncStatus is the control-surface view of the orchestrator. It is a
// value copy; callers cannot mutate the live run through it.
type SyncStatus struct {
	State      SyncState  `json:"state"`
	RunID      string     `json:"run_id,omitempty"`
	Progress   Progress   `json:"progress"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

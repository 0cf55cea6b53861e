// Package state keeps a local SQLite history of published datasets and
// sync runs.
package state

import (
	"time"
)

// RunStatus is the outcome of a sync run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Operation names the command that started a run.
type Operation string

// Operations recorded in the history.
const (
	OpPublish  Operation = "publish"
	OpAlter    Operation = "alter"
	OpClear    Operation = "clear"
	OpRefresh  Operation = "refresh"
	OpSimulate Operation = "simulate"
)

// Dataset is a push dataset created by publish.
type Dataset struct {
	ID              string
	Name            string
	Group           string
	RetentionPolicy string
	ModelPath       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SyncRun is one execution of a dataset operation.
type SyncRun struct {
	ID          string
	Operation   Operation
	DatasetID   string
	DatasetName string
	Status      RunStatus
	Rows        int64
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Duration returns how long the run took, or zero while it is running.
func (r *SyncRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// TableWrite records the rows a run wrote to one table.
type TableWrite struct {
	RunID     string
	Table     string
	Rows      int64
	Cleared   bool
	WrittenAt time.Time
}

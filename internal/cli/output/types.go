package output

import (
	"time"

	"github.com/leapstack-labs/pushset/pkg/pushschema"
)

// CheckFileResult is the JSON form of one checked model file.
type CheckFileResult struct {
	Path          string                               `json:"path"`
	Compatible    bool                                 `json:"compatible"`
	Tables        []pushschema.UnsupportedTable        `json:"unsupported_tables"`
	Measures      []pushschema.UnsupportedMeasure      `json:"unsupported_measures"`
	Relationships []pushschema.UnsupportedRelationship `json:"unsupported_relationships"`
	Error         string                               `json:"error,omitempty"`
}

// CheckOutput is the JSON output of the check command.
type CheckOutput struct {
	Files      []CheckFileResult `json:"files"`
	Compatible bool              `json:"compatible"`
}

// GenerateOutput is the JSON output of the generate command.
type GenerateOutput struct {
	Input  string            `json:"input"`
	Output string            `json:"output"`
	Report pushschema.Report `json:"report"`
}

// DepsNode is one measure in the dependency output.
type DepsNode struct {
	Name        string   `json:"name"`
	Table       string   `json:"table"`
	Unsupported bool     `json:"unsupported,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	UsedBy      []string `json:"used_by,omitempty"`
}

// DepsLevel groups measures that only reference measures of earlier levels.
type DepsLevel struct {
	Level    int        `json:"level"`
	Measures []DepsNode `json:"measures"`
}

// DepsOutput is the JSON output of the deps command.
type DepsOutput struct {
	Levels        []DepsLevel `json:"levels,omitempty"`
	Cycle         []string    `json:"cycle,omitempty"`
	TotalMeasures int         `json:"total_measures"`
	TotalEdges    int         `json:"total_edges"`
}

// TableSyncResult reports one table touched by a sync operation.
type TableSyncResult struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// SyncOutput is the JSON output of publish, alter, clear and refresh.
type SyncOutput struct {
	Operation string             `json:"operation"`
	DatasetID string             `json:"dataset_id,omitempty"`
	Dataset   string             `json:"dataset"`
	Tables    []TableSyncResult  `json:"tables,omitempty"`
	Removed   *pushschema.Report `json:"removed,omitempty"`
	Duration  time.Duration      `json:"duration_ns"`
}

// HistoryEntry is one recorded sync run.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Dataset   string    `json:"dataset"`
	Status    string    `json:"status"`
	Rows      int       `json:"rows"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration,omitempty"`
}

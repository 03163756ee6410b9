package model

import "time"

// CyclePhase is the driver's coarse position within a cycle.
type CyclePhase string

const (
	PhaseIdle        CyclePhase = "idle"
	PhaseDiscovering CyclePhase = "discovering"
	PhaseScanning    CyclePhase = "scanning"
)

// Idle reports whether no cycle is running. The zero phase counts as idle.
func (p CyclePhase) Idle() bool {
	return p == "" || p == PhaseIdle
}

// CycleStatus is the persisted view of the current (or last) cycle.
type CycleStatus struct {
	CycleID     string     `json:"cycle_id,omitempty"`
	Phase       CyclePhase `json:"phase"`
	Target      *Target    `json:"target,omitempty"`
	StartedAt   time.Time  `json:"started_at,omitzero"`
	UpdatedAt   time.Time  `json:"updated_at,omitzero"`
	FinishedAt  time.Time  `json:"finished_at,omitzero"`
	AssetsTotal int        `json:"assets_total"`
	AssetsDone  int        `json:"assets_done"`
	LastError   string     `json:"last_error,omitempty"`
}

// Counter names, persisted cumulatively across restarts.
const (
	CounterAssetsScanned             = "assets_scanned"
	CounterReportsCreated            = "reports_created"
	CounterDuplicatesRejected        = "duplicates_rejected"
	CounterNoFindings                = "no_findings"
	CounterClassificationUnavailable = "classification_unavailable"
	CounterProcessingErrors          = "processing_errors"
	CounterSubmissionsSucceeded      = "submissions_succeeded"
	CounterSubmissionsFailed         = "submissions_failed"
	CounterCyclesCompleted           = "cycles_completed"
	CounterCyclesFailed              = "cycles_failed"
)

// CounterNames lists every counter in display order.
var CounterNames = []string{
	CounterAssetsScanned,
	CounterReportsCreated,
	CounterDuplicatesRejected,
	CounterNoFindings,
	CounterClassificationUnavailable,
	CounterProcessingErrors,
	CounterSubmissionsSucceeded,
	CounterSubmissionsFailed,
	CounterCyclesCompleted,
	CounterCyclesFailed,
}

// Counters maps counter name to value.
type Counters map[string]int64

package pipeline

import (
	"time"

	"github.com/raysh454/hunter/internal/model"
)

type EventType string

const (
	EventCycleStarted  EventType = "cycle_started"
	EventPhase         EventType = "phase"
	EventAssetDone     EventType = "asset_done"
	EventReportOpened  EventType = "report_opened"
	EventReportUpdated EventType = "report_updated"
	EventCycleFinished EventType = "cycle_finished"
)

// Asset outcomes carried by EventAssetDone.
const (
	OutcomeReported                  = "reported"
	OutcomeNoFindings                = "no_findings"
	OutcomeDuplicate                 = "duplicate"
	OutcomeClassificationUnavailable = "classification_unavailable"
	OutcomeError                     = "error"
	OutcomeInterrupted               = "interrupted"
)

type Event struct {
	Type      EventType          `json:"type"`
	CycleID   string             `json:"cycle_id"`
	Phase     model.CyclePhase   `json:"phase,omitempty"`
	Asset     model.Asset        `json:"asset,omitempty"`
	Outcome   string             `json:"outcome,omitempty"`
	ReportID  string             `json:"report_id,omitempty"`
	Status    model.ReportStatus `json:"status,omitempty"`
	Error     string             `json:"error,omitempty"`
	Processed int                `json:"processed,omitempty"`
	Total     int                `json:"total,omitempty"`
	Time      time.Time          `json:"time"`
}

// Observer receives pipeline events. Observe must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

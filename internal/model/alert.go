package model

import "time"

// AlertKind says why an alert was raised.
type AlertKind string

const (
	AlertCriticalFinding  AlertKind = "critical_finding"
	AlertSubmissionResult AlertKind = "submission_result"
	AlertProcessingError  AlertKind = "processing_error"
	AlertCycleError       AlertKind = "cycle_error"
)

// Alert is the payload handed to every notification sink.
type Alert struct {
	Kind     AlertKind `json:"kind"`
	Title    string    `json:"title"`
	Asset    Asset     `json:"asset,omitempty"`
	Target   *Target   `json:"target,omitempty"`
	ReportID string    `json:"report_id,omitempty"`

	Severity       int      `json:"severity"`
	Verdict        string   `json:"verdict,omitempty"`
	BountyEstimate *float64 `json:"bounty_estimate,omitempty"`
	Status         string   `json:"status,omitempty"`

	// Details holds free text: a submission guide, the change summary or an error.
	Details string    `json:"details,omitempty"`
	Time    time.Time `json:"time"`
}

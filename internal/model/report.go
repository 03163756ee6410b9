package model

import "time"

// ReportStatus is the lifecycle state of a report.
type ReportStatus string

const (
	ReportPending          ReportStatus = "pending"
	ReportCritical         ReportStatus = "critical"
	ReportSubmitted        ReportStatus = "submitted"
	ReportSubmissionFailed ReportStatus = "submission_failed"
)

// Terminal reports whether no further transitions are allowed.
func (s ReportStatus) Terminal() bool {
	return s == ReportSubmitted || s == ReportSubmissionFailed
}

// Valid reports whether s is one of the known states.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPending, ReportCritical, ReportSubmitted, ReportSubmissionFailed:
		return true
	}
	return false
}

// Report is the persisted record of novel findings and their submission.
type Report struct {
	ID     string       `json:"id" yaml:"id"`
	Asset  Asset        `json:"asset" yaml:"asset"`
	Target Target       `json:"target" yaml:"target"`
	Title  string       `json:"title" yaml:"title"`
	Status ReportStatus `json:"status" yaml:"status"`

	Findings    AggregatedFindings `json:"findings" yaml:"findings"`
	Fingerprint string             `json:"fingerprint" yaml:"fingerprint"`

	// SubmissionNote carries the platform response or the manual submission guide.
	SubmissionNote string `json:"submission_note,omitempty" yaml:"submission_note,omitempty"`

	// SubmissionRef is the platform's identifier for an automated submission.
	SubmissionRef string `json:"submission_ref,omitempty" yaml:"submission_ref,omitempty"`

	// Attempts counts submission attempts made for this report.
	Attempts int `json:"attempts" yaml:"attempts"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// ReportFilter narrows report listings. Zero values match everything.
type ReportFilter struct {
	Status ReportStatus
	Asset  Asset
	Limit  int
}

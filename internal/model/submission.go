package model

// SubmissionKind distinguishes automated submissions from manual guides.
type SubmissionKind string

const (
	SubmissionAutomated   SubmissionKind = "automated"
	SubmissionManualGuide SubmissionKind = "manual_guide"
)

// SubmissionOutcome is what a submission sink produced for a report.
type SubmissionOutcome struct {
	Kind SubmissionKind `json:"kind"`

	// Sink names the sink that handled the report.
	Sink string `json:"sink"`

	// Reference is the platform's id for the submitted report, if any.
	Reference string `json:"reference,omitempty"`

	// Note is the platform response summary or the rendered manual guide.
	Note string `json:"note,omitempty"`
}

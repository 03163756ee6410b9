package model

// Classification is the classifier's opinion of a combined scan output.
type Classification struct {
	Verdict        string   `json:"verdict"`
	PriorityScore  int      `json:"priority_score"`
	BountyEstimate *float64 `json:"bounty_estimate,omitempty"`
}

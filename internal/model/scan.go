package model

import "time"

// ScanResult is the output of one adapter run against one asset.
type ScanResult struct {
	// Adapter is the name of the adapter that produced the result.
	Adapter string `json:"adapter"`

	// RawText is the adapter's textual output. Empty when the run failed.
	RawText string `json:"raw_text,omitempty"`

	// Succeeded reports whether the adapter finished without error.
	Succeeded bool `json:"succeeded"`

	// Error describes the failure ("timeout" when the adapter exceeded its budget).
	Error string `json:"error,omitempty"`

	// Duration is how long the orchestrator waited for the adapter.
	Duration time.Duration `json:"duration"`
}

// ScanResults holds one result per adapter, in adapter invocation order.
type ScanResults []ScanResult

// ByName indexes the results by adapter name.
func (r ScanResults) ByName() map[string]ScanResult {
	out := make(map[string]ScanResult, len(r))
	for _, res := range r {
		out[res.Adapter] = res
	}
	return out
}

// AllFailed is true when no adapter succeeded, including the empty set.
func (r ScanResults) AllFailed() bool {
	for _, res := range r {
		if res.Succeeded {
			return false
		}
	}
	return true
}

// Succeeded returns the successful results in order.
func (r ScanResults) Succeeded() ScanResults {
	out := make(ScanResults, 0, len(r))
	for _, res := range r {
		if res.Succeeded {
			out = append(out, res)
		}
	}
	return out
}

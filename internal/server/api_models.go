package server

// StartCycleRequest optionally names the target of an on-demand cycle. With
// an empty scope the next configured target is used.
type StartCycleRequest struct {
	Platform string `json:"platform" example:"hackerone"`
	Program  string `json:"program" example:"acme"`
	Scope    string `json:"scope" example:"*.acme.com"`
	Priority int    `json:"priority" example:"8"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// StatsResponse carries the cumulative pipeline counters. DedupDegraded is
// set when the fingerprint store could not be loaded at startup.
type StatsResponse struct {
	Counters      map[string]int64 `json:"counters"`
	DedupDegraded bool             `json:"dedup_degraded" example:"false"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"not found"`
}

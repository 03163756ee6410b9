package model

// Asset is a normalized URL or host under test. Assets are produced by the
// discovery feed and live only for the duration of a cycle.
type Asset string

func (a Asset) String() string { return string(a) }

// Target is the bug bounty program picked for a cycle.
type Target struct {
	// Platform names the bounty platform (e.g. "hackerone", "bugcrowd").
	// It selects the submission sink.
	Platform string `json:"platform" yaml:"platform" mapstructure:"platform"`

	// Program is the program handle on the platform.
	Program string `json:"program" yaml:"program" mapstructure:"program"`

	// Scope is the domain or URL handed to the discovery feed.
	Scope string `json:"scope" yaml:"scope" mapstructure:"scope"`

	// Priority ranks the program from 0 to 10. Low priority targets are skipped.
	Priority int `json:"priority" yaml:"priority" mapstructure:"priority"`
}

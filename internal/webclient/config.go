package webclient

import "time"

type Client string

const (
	ClientNetHTTP  Client = "nethttp"
	ClientChromedp Client = "chromedp"
)

// Config selects and tunes a WebClient backend.
type Config struct {
	Client Client `mapstructure:"client"`

	// Timeout bounds a single request (or page render for chromedp).
	Timeout time.Duration `mapstructure:"timeout"`

	UserAgent string `mapstructure:"user_agent"`

	// RateLimit caps requests per second across the client. Zero disables it.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`

	// IdleAfter is how long the network must be quiet before a chromedp render
	// is considered finished.
	IdleAfter time.Duration `mapstructure:"idle_after"`
	Headless  bool          `mapstructure:"headless"`
}

func DefaultConfig() Config {
	return Config{
		Client:    ClientNetHTTP,
		Timeout:   30 * time.Second,
		UserAgent: "hunter/1.0 (+authorized security testing)",
		Burst:     1,
		IdleAfter: 2 * time.Second,
		Headless:  true,
	}
}

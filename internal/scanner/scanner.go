// Package scanner runs independent scan adapters against an asset.
package scanner

import (
	"context"
	"time"

	"github.com/raysh454/hunter/internal/model"
)

// Adapter runs one scanner against one asset and returns its textual output.
// Implementations must return promptly once ctx is done.
type Adapter interface {
	Name() string
	Scan(ctx context.Context, asset model.Asset) (string, error)
}

// AdapterConfig describes one configured adapter.
type AdapterConfig struct {
	Name string `mapstructure:"name"`

	// Type is one of "command", "burp" or "surface".
	Type string `mapstructure:"type"`

	// Timeout overrides Config.AdapterTimeout for this adapter.
	Timeout time.Duration `mapstructure:"timeout"`

	Disabled bool `mapstructure:"disabled"`

	// command
	Command   string   `mapstructure:"command"`
	Args      []string `mapstructure:"args"`
	ExitCodes []int    `mapstructure:"exit_codes"`

	// burp
	Endpoint     string        `mapstructure:"endpoint"`
	APIKey       string        `mapstructure:"api_key"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Config for the orchestrator and its adapter set.
type Config struct {
	// AdapterTimeout bounds an adapter without its own Timeout.
	AdapterTimeout time.Duration `mapstructure:"adapter_timeout"`

	// MaxParallel caps concurrently running adapters per asset. Zero runs
	// every adapter at once.
	MaxParallel int `mapstructure:"max_parallel"`

	Adapters []AdapterConfig `mapstructure:"adapters"`
}

func DefaultConfig() Config {
	return Config{
		AdapterTimeout: 10 * time.Minute,
		Adapters: []AdapterConfig{
			{Name: "surface", Type: TypeSurface, Timeout: time.Minute},
			{
				Name:    "nuclei",
				Type:    TypeCommand,
				Command: "nuclei",
				Args:    []string{"-u", "{{asset}}", "-severity", "medium,high,critical", "-nc", "-silent"},
				Timeout: 20 * time.Minute,
			},
			{
				Name:      "nikto",
				Type:      TypeCommand,
				Command:   "nikto",
				Args:      []string{"-host", "{{asset}}", "-nointeractive"},
				ExitCodes: []int{0, 1},
			},
		},
	}
}

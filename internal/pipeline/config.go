package pipeline

import (
	"time"

	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/report"
)

type Config struct {
	// Workers caps how many assets are processed at once.
	Workers int `mapstructure:"workers"`

	// CycleInterval is the sleep between cycles in Run.
	CycleInterval time.Duration `mapstructure:"cycle_interval"`

	// ShutdownGrace is how long in-flight assets may keep running after
	// cancellation before their context is cancelled too.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`

	CriticalThreshold int `mapstructure:"critical_threshold"`
	MinTargetPriority int `mapstructure:"min_target_priority"`

	Targets []model.Target `mapstructure:"targets"`
}

func DefaultConfig() Config {
	return Config{
		Workers:           3,
		CycleInterval:     5 * time.Minute,
		ShutdownGrace:     30 * time.Second,
		CriticalThreshold: report.DefaultCriticalThreshold,
		MinTargetPriority: 5,
	}
}

// Package alert fans alerts out to notification sinks with per-sink retry
// and rate limiting.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/retry"
)

// ErrUnknownSink is recorded for a job naming a sink that is not configured.
var ErrUnknownSink = errors.New("unknown alert sink")

// Sink delivers one alert.
type Sink interface {
	Name() string
	Send(ctx context.Context, a model.Alert) error
}

// StatusError is a non-2xx sink response.
type StatusError struct {
	Sink   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded %d: %s", e.Sink, e.Status, e.Body)
}

type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIURL   string `mapstructure:"api_url"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

type Config struct {
	Retry         retry.Policy `mapstructure:"retry"`
	RatePerSecond float64      `mapstructure:"rate_per_second"`
	Burst         int          `mapstructure:"burst"`

	Discord  DiscordConfig  `mapstructure:"discord"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Slack    SlackConfig    `mapstructure:"slack"`
}

func DefaultConfig() Config {
	return Config{
		Retry:         retry.DefaultPolicy(),
		RatePerSecond: 1,
		Burst:         5,
		Discord:       DiscordConfig{Username: "hunter"},
		Telegram:      TelegramConfig{APIURL: "https://api.telegram.org"},
	}
}

// Job is one alert addressed to a set of sinks. An empty Sinks means every
// configured sink.
type Job struct {
	Alert model.Alert
	Sinks []string
}

// Outcome is the delivery result for one sink.
type Outcome struct {
	Sink      string
	Delivered bool
	Attempts  int
	Err       error
}

// Result maps sink name to its outcome.
type Result map[string]Outcome

// Failed returns the sinks that did not deliver, sorted.
func (r Result) Failed() []string {
	var out []string
	for name, o := range r {
		if !o.Delivered {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// AllDelivered is true when every addressed sink delivered.
func (r Result) AllDelivered() bool { return len(r.Failed()) == 0 }

// Severity labels used in sink messages.
func SeverityLabel(severity int) string {
	switch {
	case severity >= 8:
		return "CRITICAL"
	case severity >= 6:
		return "HIGH"
	case severity >= 4:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// headline is the one-line summary every sink leads with.
func headline(a model.Alert) string {
	switch a.Kind {
	case model.AlertCriticalFinding:
		return fmt.Sprintf("Vulnerability detected (%s)", SeverityLabel(a.Severity))
	case model.AlertSubmissionResult:
		return "Submission " + a.Status
	case model.AlertProcessingError:
		return "Asset processing error"
	case model.AlertCycleError:
		return "Cycle error"
	}
	return string(a.Kind)
}

// Package submission hands reports to bug bounty platforms, either through
// an API or as a rendered manual submission guide.
package submission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/retry"
	"github.com/raysh454/hunter/internal/webclient"
)

// Sink submits one report.
type Sink interface {
	Name() string
	Submit(ctx context.Context, r *model.Report) (model.SubmissionOutcome, error)
}

// ErrUnreadableResponse means the platform accepted a submission but its
// reply could not be parsed. The report exists upstream, so the request must
// not be repeated.
var ErrUnreadableResponse = errors.New("unreadable success response")

// StatusError is a non-2xx platform response.
type StatusError struct {
	Sink   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded %d: %s", e.Sink, e.Status, e.Body)
}

// Retryable reports whether the platform may accept the same request later.
func (e *StatusError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout
}

type HackerOneConfig struct {
	APIURL   string `mapstructure:"api_url"`
	Username string `mapstructure:"username"`
	Token    string `mapstructure:"token"`
}

type Config struct {
	Retry     retry.Policy    `mapstructure:"retry"`
	HackerOne HackerOneConfig `mapstructure:"hackerone"`

	// GuideTemplate overrides the built-in manual guide template.
	GuideTemplate string `mapstructure:"guide_template"`
}

func DefaultConfig() Config {
	return Config{
		Retry:     retry.DefaultPolicy(),
		HackerOne: HackerOneConfig{APIURL: "https://api.hackerone.com/v1"},
	}
}

// Registry picks the sink for a target's platform. Platforms without a
// registered sink get the fallback.
type Registry struct {
	sinks    map[string]Sink
	fallback Sink
}

func NewRegistry(fallback Sink) *Registry {
	return &Registry{sinks: make(map[string]Sink), fallback: fallback}
}

func (r *Registry) Register(platform string, s Sink) {
	r.sinks[strings.ToLower(platform)] = s
}

func (r *Registry) For(platform string) Sink {
	if s, ok := r.sinks[strings.ToLower(platform)]; ok {
		return s
	}
	return r.fallback
}

// Build registers the guide sink as fallback and the HackerOne sink when
// credentials are configured.
func Build(cfg Config, wc webclient.WebClient) (*Registry, error) {
	guide, err := NewGuideSink(cfg.GuideTemplate)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry(guide)
	if cfg.HackerOne.Token != "" {
		reg.Register("hackerone", NewHackerOneSink(cfg.HackerOne, wc))
	}
	return reg, nil
}

// Submitter submits reports through the registry with bounded retries.
type Submitter struct {
	registry *Registry
	policy   retry.Policy
	logger   logging.Logger
}

func NewSubmitter(reg *Registry, policy retry.Policy, logger logging.Logger) *Submitter {
	return &Submitter{
		registry: reg,
		policy:   policy,
		logger:   logger.With(logging.Field{Key: "component", Value: "submission"}),
	}
}

// Submit returns the outcome and the number of attempts made. A manual
// guide is a successful outcome.
func (s *Submitter) Submit(ctx context.Context, r *model.Report) (model.SubmissionOutcome, int, error) {
	sink := s.registry.For(r.Target.Platform)
	var out model.SubmissionOutcome
	attempts, err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		o, err := sink.Submit(ctx, r)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && !se.Retryable() {
				return retry.Permanent(err)
			}
			if errors.Is(err, ErrUnreadableResponse) {
				return retry.Permanent(err)
			}
			return err
		}
		out = o
		return nil
	}, func(attempt int, err error, next time.Duration) {
		s.logger.Warn("submission attempt failed",
			logging.Field{Key: "report_id", Value: r.ID},
			logging.Field{Key: "sink", Value: sink.Name()},
			logging.Field{Key: "attempt", Value: attempt},
			logging.Field{Key: "error", Value: err},
			logging.Field{Key: "retry_in", Value: next.String()})
	})
	if err != nil {
		s.logger.Error("submission failed",
			logging.Field{Key: "report_id", Value: r.ID},
			logging.Field{Key: "sink", Value: sink.Name()},
			logging.Field{Key: "attempts", Value: attempts},
			logging.Field{Key: "error", Value: err})
		return model.SubmissionOutcome{Sink: sink.Name()}, attempts, fmt.Errorf("submit report %s via %s: %w", r.ID, sink.Name(), err)
	}
	return out, attempts, nil
}

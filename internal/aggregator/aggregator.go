// Package aggregator merges adapter outputs into one labeled text and asks
// the classifier for a verdict.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raysh454/hunter/internal/classifier"
	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/retry"
)

var (
	// ErrNoFindings means no adapter produced usable output.
	ErrNoFindings = errors.New("no findings")

	// ErrClassificationUnavailable means the classifier failed on every attempt.
	ErrClassificationUnavailable = errors.New("classification unavailable")
)

type Config struct {
	// Timeout bounds a single classifier attempt.
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   retry.Policy  `mapstructure:",squash"`
}

func DefaultConfig() Config {
	return Config{Timeout: 2 * time.Minute, Retry: retry.DefaultPolicy()}
}

type Aggregator struct {
	cfg        Config
	classifier classifier.Classifier
	logger     logging.Logger
}

func New(cfg Config, c classifier.Classifier, logger logging.Logger) *Aggregator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Aggregator{
		cfg:        cfg,
		classifier: c,
		logger:     logger.With(logging.Field{Key: "component", Value: "aggregator"}),
	}
}

// Combine concatenates the non-blank output of successful results as
// "## <adapter> Output\n<text>" sections separated by a blank line, in
// result order. It also returns the contributing adapter names.
func Combine(results model.ScanResults) (string, []string) {
	var sections []string
	var names []string
	for _, r := range results {
		if !r.Succeeded || strings.TrimSpace(r.RawText) == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("## %s Output\n%s", r.Adapter, r.RawText))
		names = append(names, r.Adapter)
	}
	return strings.Join(sections, "\n\n"), names
}

// Aggregate combines the results and classifies them. It returns
// ErrNoFindings when nothing usable was produced and wraps
// ErrClassificationUnavailable when every classifier attempt failed.
func (a *Aggregator) Aggregate(ctx context.Context, asset model.Asset, results model.ScanResults) (*model.AggregatedFindings, error) {
	text, names := Combine(results)
	if text == "" {
		return nil, ErrNoFindings
	}

	var verdict model.Classification
	attempts, err := retry.Do(ctx, a.cfg.Retry, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
		c, err := a.classifier.Classify(cctx, text)
		if err != nil {
			return err
		}
		verdict = c
		return nil
	}, func(attempt int, err error, next time.Duration) {
		a.logger.Warn("classifier attempt failed",
			logging.Field{Key: "asset", Value: asset.String()},
			logging.Field{Key: "attempt", Value: attempt},
			logging.Field{Key: "error", Value: err},
			logging.Field{Key: "retry_in", Value: next.String()})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Error("classifier unavailable",
			logging.Field{Key: "asset", Value: asset.String()},
			logging.Field{Key: "attempts", Value: attempts},
			logging.Field{Key: "error", Value: err})
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrClassificationUnavailable, attempts, err)
	}

	return &model.AggregatedFindings{
		Asset:          asset,
		CombinedText:   text,
		Verdict:        verdict.Verdict,
		PriorityScore:  classifier.Clamp(verdict.PriorityScore),
		BountyEstimate: verdict.BountyEstimate,
		Adapters:       names,
	}, nil
}

package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
)

// ErrTimeout is the error text recorded for an adapter that exceeded its budget.
const ErrTimeout = "timeout"

var tracer = otel.Tracer("github.com/raysh454/hunter/internal/scanner")

type boundAdapter struct {
	adapter Adapter
	timeout time.Duration
}

// Orchestrator fans an asset out to every adapter concurrently. One adapter's
// failure, panic or timeout never affects another's result.
type Orchestrator struct {
	adapters    []boundAdapter
	maxParallel int
	logger      logging.Logger
}

// NewOrchestrator binds adapters to their timeouts: the matching
// AdapterConfig.Timeout by name, else cfg.AdapterTimeout.
func NewOrchestrator(cfg Config, adapters []Adapter, logger logging.Logger) *Orchestrator {
	def := cfg.AdapterTimeout
	if def <= 0 {
		def = DefaultConfig().AdapterTimeout
	}
	overrides := make(map[string]time.Duration)
	for _, ac := range cfg.Adapters {
		if ac.Timeout > 0 {
			overrides[ac.Name] = ac.Timeout
		}
	}
	bound := make([]boundAdapter, 0, len(adapters))
	for _, a := range adapters {
		t, ok := overrides[a.Name()]
		if !ok {
			t = def
		}
		bound = append(bound, boundAdapter{adapter: a, timeout: t})
	}
	return &Orchestrator{
		adapters:    bound,
		maxParallel: cfg.MaxParallel,
		logger:      logger.With(logging.Field{Key: "component", Value: "scanner"}),
	}
}

// Adapters returns the adapter names in invocation order.
func (o *Orchestrator) Adapters() []string {
	out := make([]string, len(o.adapters))
	for i, b := range o.adapters {
		out[i] = b.adapter.Name()
	}
	return out
}

// Run invokes every adapter and returns one result per adapter, in
// invocation order. It always returns a complete set; callers check
// AllFailed.
func (o *Orchestrator) Run(ctx context.Context, asset model.Asset) model.ScanResults {
	results := make(model.ScanResults, len(o.adapters))

	var g errgroup.Group
	if o.maxParallel > 0 {
		g.SetLimit(o.maxParallel)
	}
	for i, b := range o.adapters {
		g.Go(func() error {
			results[i] = o.invoke(ctx, b, asset)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.Succeeded {
			failed++
		}
	}
	o.logger.Info("scan finished",
		logging.Field{Key: "asset", Value: asset.String()},
		logging.Field{Key: "adapters", Value: len(results)},
		logging.Field{Key: "failed", Value: failed})
	return results
}

type scanOutcome struct {
	text string
	err  error
}

func (o *Orchestrator) invoke(ctx context.Context, b boundAdapter, asset model.Asset) model.ScanResult {
	name := b.adapter.Name()
	ctx, span := tracer.Start(ctx, "scanner.adapter")
	span.SetAttributes(attribute.String("adapter", name), attribute.String("asset", asset.String()))
	defer span.End()

	actx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan scanOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- scanOutcome{err: fmt.Errorf("adapter panic: %v", r)}
			}
		}()
		text, err := b.adapter.Scan(actx, asset)
		done <- scanOutcome{text: text, err: err}
	}()

	res := model.ScanResult{Adapter: name}
	select {
	case out := <-done:
		res.Duration = time.Since(start)
		switch {
		case out.err == nil:
			res.Succeeded = true
			res.RawText = out.text
		case errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			res.Error = ErrTimeout
		default:
			res.Error = out.err.Error()
		}
	case <-actx.Done():
		// stop waiting; the adapter sees the cancelled context
		res.Duration = time.Since(start)
		if ctx.Err() != nil {
			res.Error = ctx.Err().Error()
		} else {
			res.Error = ErrTimeout
		}
	}

	if !res.Succeeded {
		span.SetStatus(codes.Error, res.Error)
		o.logger.Warn("adapter failed",
			logging.Field{Key: "adapter", Value: name},
			logging.Field{Key: "asset", Value: asset.String()},
			logging.Field{Key: "error", Value: res.Error},
			logging.Field{Key: "duration", Value: res.Duration.String()})
	}
	return res
}

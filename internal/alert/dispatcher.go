package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/retry"
)

type boundSink struct {
	sink    Sink
	limiter *rate.Limiter
}

// Dispatcher delivers each job to its sinks concurrently. Every sink has its
// own retry loop and rate limiter, so a failing or slow sink never holds up
// the others.
type Dispatcher struct {
	sinks  map[string]boundSink
	order  []string
	policy retry.Policy
	logger logging.Logger
}

func NewDispatcher(cfg Config, sinks []Sink, logger logging.Logger) *Dispatcher {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := max(cfg.Burst, 1)

	d := &Dispatcher{
		sinks:  make(map[string]boundSink, len(sinks)),
		policy: cfg.Retry,
		logger: logger.With(logging.Field{Key: "component", Value: "alert"}),
	}
	for _, s := range sinks {
		if _, dup := d.sinks[s.Name()]; dup {
			continue
		}
		d.sinks[s.Name()] = boundSink{sink: s, limiter: rate.NewLimiter(limit, burst)}
		d.order = append(d.order, s.Name())
	}
	return d
}

// Sinks returns the configured sink names.
func (d *Dispatcher) Sinks() []string {
	return append([]string(nil), d.order...)
}

// Notify sends a to every configured sink.
func (d *Dispatcher) Notify(ctx context.Context, a model.Alert) Result {
	return d.Dispatch(ctx, &Job{Alert: a})
}

// Dispatch blocks until every addressed sink delivered or exhausted its
// retries.
func (d *Dispatcher) Dispatch(ctx context.Context, job *Job) Result {
	if job.Alert.Time.IsZero() {
		job.Alert.Time = time.Now().UTC()
	}
	names := job.Sinks
	if len(names) == 0 {
		names = d.order
	}

	res := make(Result, len(names))
	targets := make([]boundSink, 0, len(names))
	for _, name := range names {
		if _, done := res[name]; done {
			continue
		}
		b, ok := d.sinks[name]
		if !ok {
			res[name] = Outcome{Sink: name, Err: fmt.Errorf("%w: %s", ErrUnknownSink, name)}
			continue
		}
		res[name] = Outcome{Sink: name}
		targets = append(targets, b)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, b := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := d.deliver(ctx, b, job.Alert)
			mu.Lock()
			res[b.sink.Name()] = o
			mu.Unlock()
		}()
	}
	wg.Wait()
	return res
}

func (d *Dispatcher) deliver(ctx context.Context, b boundSink, a model.Alert) Outcome {
	name := b.sink.Name()
	attempts, err := retry.Do(ctx, d.policy, func(ctx context.Context) error {
		if err := b.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		return b.sink.Send(ctx, a)
	}, func(attempt int, err error, next time.Duration) {
		d.logger.Debug("alert attempt failed",
			logging.Field{Key: "sink", Value: name},
			logging.Field{Key: "attempt", Value: attempt},
			logging.Field{Key: "error", Value: err},
			logging.Field{Key: "retry_in", Value: next.String()})
	})
	if err != nil {
		d.logger.Error("alert delivery failed",
			logging.Field{Key: "sink", Value: name},
			logging.Field{Key: "kind", Value: string(a.Kind)},
			logging.Field{Key: "attempts", Value: attempts},
			logging.Field{Key: "error", Value: err})
		return Outcome{Sink: name, Attempts: attempts, Err: err}
	}
	return Outcome{Sink: name, Delivered: true, Attempts: attempts}
}

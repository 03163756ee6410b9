// Package pipeline drives hunting cycles: pick a target, discover its
// assets and push each asset through scan, aggregation, dedup, reporting,
// submission and alerting on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/raysh454/hunter/internal/alert"
	"github.com/raysh454/hunter/internal/discovery"
	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/report"
)

// ErrCycleInProgress is returned when a cycle is requested while one runs.
var ErrCycleInProgress = errors.New("cycle already in progress")

var tracer = otel.Tracer("github.com/raysh454/hunter/internal/pipeline")

type Scanner interface {
	Run(ctx context.Context, asset model.Asset) model.ScanResults
}

type Aggregator interface {
	Aggregate(ctx context.Context, asset model.Asset, results model.ScanResults) (*model.AggregatedFindings, error)
}

type Gate interface {
	Admit(ctx context.Context, f *model.AggregatedFindings) bool
}

type Reports interface {
	Open(ctx context.Context, target model.Target, f *model.AggregatedFindings) (*model.Report, error)
	Apply(ctx context.Context, r *model.Report, ev report.Event, u report.Update) error
	Previous(ctx context.Context, asset model.Asset) *model.Report
}

type Submitter interface {
	Submit(ctx context.Context, r *model.Report) (model.SubmissionOutcome, int, error)
}

type Notifier interface {
	Notify(ctx context.Context, a model.Alert) alert.Result
}

// StatusStore persists cycle status and cumulative counters.
type StatusStore interface {
	SaveCycleStatus(ctx context.Context, st model.CycleStatus) error
	LoadCycleStatus(ctx context.Context) (model.CycleStatus, error)
	IncrementCounter(ctx context.Context, name string, delta int64) error
	LoadCounters(ctx context.Context) (model.Counters, error)
}

// Deps are the driver's collaborators. Metrics and Observer may be nil.
type Deps struct {
	Targets    *TargetSource
	Feed       discovery.Feed
	Scanner    Scanner
	Aggregator Aggregator
	Gate       Gate
	Reports    Reports
	Submitter  Submitter
	Alerts     Notifier
	Status     StatusStore
	Metrics    *Metrics
	Observer   Observer
}

type Driver struct {
	cfg    Config
	deps   Deps
	logger logging.Logger
	now    func() time.Time

	running sync.Mutex

	statusMu sync.Mutex
	status   model.CycleStatus
}

func New(cfg Config, deps Deps, logger logging.Logger) *Driver {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = def.CycleInterval
	}
	if cfg.ShutdownGrace < 0 {
		cfg.ShutdownGrace = 0
	}
	if deps.Targets == nil {
		deps.Targets = NewTargetSource(cfg.Targets, cfg.MinTargetPriority)
	}
	return &Driver{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(logging.Field{Key: "component", Value: "pipeline"}),
		now:    func() time.Time { return time.Now().UTC() },
		status: model.CycleStatus{Phase: model.PhaseIdle},
	}
}

// Run loops RunCycle with CycleInterval between cycles until ctx is done.
// Cycle failures are logged and never end the loop.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("driver started",
		logging.Field{Key: "workers", Value: d.cfg.Workers},
		logging.Field{Key: "interval", Value: d.cfg.CycleInterval.String()})
	for {
		if _, err := d.RunCycle(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn("cycle ended with error", logging.Field{Key: "error", Value: err})
		}
		select {
		case <-ctx.Done():
			d.logger.Info("driver stopped")
			return nil
		case <-time.After(d.cfg.CycleInterval):
		}
	}
}

// RunCycle runs one cycle over the next eligible target. When no target is
// eligible it returns the idle status without doing anything.
func (d *Driver) RunCycle(ctx context.Context) (model.CycleStatus, error) {
	if !d.running.TryLock() {
		return d.Status(), ErrCycleInProgress
	}
	defer d.running.Unlock()

	target, ok := d.deps.Targets.Next()
	if !ok {
		d.logger.Info("no eligible target, skipping cycle",
			logging.Field{Key: "min_priority", Value: d.cfg.MinTargetPriority})
		return d.Status(), nil
	}
	return d.cycle(ctx, target)
}

// RunCycleFor runs one cycle over target regardless of its priority.
func (d *Driver) RunCycleFor(ctx context.Context, target model.Target) (model.CycleStatus, error) {
	if !d.running.TryLock() {
		return d.Status(), ErrCycleInProgress
	}
	defer d.running.Unlock()
	return d.cycle(ctx, target)
}

// Status returns the in-memory view of the current or last cycle.
func (d *Driver) Status() model.CycleStatus {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	return d.status
}

func (d *Driver) cycle(ctx context.Context, target model.Target) (model.CycleStatus, error) {
	cycleID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "pipeline.cycle")
	span.SetAttributes(attribute.String("cycle_id", cycleID), attribute.String("scope", target.Scope))
	defer span.End()

	logger := d.logger.With(logging.Field{Key: "cycle_id", Value: cycleID})
	logger.Info("cycle started",
		logging.Field{Key: "platform", Value: target.Platform},
		logging.Field{Key: "program", Value: target.Program},
		logging.Field{Key: "scope", Value: target.Scope})

	now := d.now()
	t := target
	d.updateStatus(ctx, func(st *model.CycleStatus) {
		*st = model.CycleStatus{
			CycleID:   cycleID,
			Phase:     model.PhaseDiscovering,
			Target:    &t,
			StartedAt: now,
		}
	})
	d.emit(Event{Type: EventCycleStarted, CycleID: cycleID, Phase: model.PhaseDiscovering})

	assets, err := d.deps.Feed.Discover(ctx, target.Scope)
	if err != nil {
		err = fmt.Errorf("discover %s: %w", target.Scope, err)
		span.SetStatus(codes.Error, err.Error())
		return d.failCycle(ctx, logger, cycleID, &t, err), err
	}
	if len(assets) == 0 {
		logger.Info("no assets discovered")
		return d.finishCycle(ctx, cycleID, nil), nil
	}

	d.updateStatus(ctx, func(st *model.CycleStatus) {
		st.Phase = model.PhaseScanning
		st.AssetsTotal = len(assets)
	})
	d.emit(Event{Type: EventPhase, CycleID: cycleID, Phase: model.PhaseScanning, Total: len(assets)})

	d.scan(ctx, logger, cycleID, target, assets)

	if err := ctx.Err(); err != nil {
		logger.Warn("cycle cancelled", logging.Field{Key: "error", Value: err})
		return d.finishCycle(ctx, cycleID, err), err
	}
	return d.finishCycle(ctx, cycleID, nil), nil
}

// scan feeds assets to a fixed pool of workers. Once ctx is done no new
// asset starts; running ones keep a detached context for ShutdownGrace.
func (d *Driver) scan(ctx context.Context, logger logging.Logger, cycleID string, target model.Target, assets []string) {
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			logger.Warn("cancellation requested, draining in-flight assets",
				logging.Field{Key: "grace", Value: d.cfg.ShutdownGrace.String()})
			timer := time.NewTimer(d.cfg.ShutdownGrace)
			defer timer.Stop()
			select {
			case <-timer.C:
				cancelWork()
			case <-done:
			}
		case <-done:
		}
	}()

	queue := make(chan model.Asset)
	var wg sync.WaitGroup
	for range min(d.cfg.Workers, len(assets)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for asset := range queue {
				outcome := d.processAsset(workCtx, logger, cycleID, target, asset)
				var processed int
				d.updateStatus(workCtx, func(st *model.CycleStatus) {
					st.AssetsDone++
					processed = st.AssetsDone
				})
				d.emit(Event{Type: EventAssetDone, CycleID: cycleID, Asset: asset, Outcome: outcome,
					Processed: processed, Total: len(assets)})
			}
		}()
	}

feed:
	for _, a := range assets {
		select {
		case <-ctx.Done():
			break feed
		case queue <- model.Asset(a):
		}
	}
	close(queue)
	wg.Wait()
	close(done)
}

func (d *Driver) finishCycle(ctx context.Context, cycleID string, cause error) model.CycleStatus {
	ctx = context.WithoutCancel(ctx)
	if cause == nil {
		d.count(ctx, model.CounterCyclesCompleted)
	} else {
		d.count(ctx, model.CounterCyclesFailed)
	}
	st := d.updateStatus(ctx, func(st *model.CycleStatus) {
		st.Phase = model.PhaseIdle
		st.FinishedAt = d.now()
		if cause != nil {
			st.LastError = cause.Error()
		}
	})
	ev := Event{Type: EventCycleFinished, CycleID: cycleID, Phase: model.PhaseIdle,
		Processed: st.AssetsDone, Total: st.AssetsTotal}
	if cause != nil {
		ev.Error = cause.Error()
	}
	d.emit(ev)
	d.logger.Info("cycle finished",
		logging.Field{Key: "cycle_id", Value: cycleID},
		logging.Field{Key: "assets", Value: st.AssetsTotal},
		logging.Field{Key: "done", Value: st.AssetsDone})
	return st
}

func (d *Driver) failCycle(ctx context.Context, logger logging.Logger, cycleID string, target *model.Target, err error) model.CycleStatus {
	logger.Error("cycle failed", logging.Field{Key: "error", Value: err})
	st := d.finishCycle(ctx, cycleID, err)
	d.deps.Alerts.Notify(context.WithoutCancel(ctx), model.Alert{
		Kind:    model.AlertCycleError,
		Title:   "Cycle " + cycleID + " failed",
		Target:  target,
		Details: err.Error(),
	})
	return st
}

// updateStatus mutates the in-memory status, persists it and returns a copy.
// A failed save is logged only.
func (d *Driver) updateStatus(ctx context.Context, mutate func(*model.CycleStatus)) model.CycleStatus {
	d.statusMu.Lock()
	mutate(&d.status)
	d.status.UpdatedAt = d.now()
	st := d.status
	if err := d.deps.Status.SaveCycleStatus(context.WithoutCancel(ctx), st); err != nil {
		d.logger.Error("persist cycle status failed", logging.Field{Key: "error", Value: err})
	}
	d.statusMu.Unlock()
	d.deps.Metrics.setPhase(st.Phase)
	return st
}

func (d *Driver) count(ctx context.Context, name string) {
	d.deps.Metrics.inc(name)
	if err := d.deps.Status.IncrementCounter(context.WithoutCancel(ctx), name, 1); err != nil {
		d.logger.Error("persist counter failed",
			logging.Field{Key: "counter", Value: name},
			logging.Field{Key: "error", Value: err})
	}
}

func (d *Driver) emit(ev Event) {
	if d.deps.Observer == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = d.now()
	}
	d.deps.Observer.Observe(ev)
}

// Counters returns the persisted cumulative counters.
func (d *Driver) Counters(ctx context.Context) (model.Counters, error) {
	return d.deps.Status.LoadCounters(ctx)
}

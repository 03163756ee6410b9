package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
)

// Application is the global runtime state container.
// It holds config and the core services that are shared across modules
// (components, orchestrator, logger). Pass Application into modules that
// need access to the global state rather than using package-level variables.
type Application struct {
	Config *Config
	Logger logging.Logger

	Components *Components
	Events     *EventHub
	Orch       *Orchestrator

	// internal context for the driver loop
	ctx    context.Context
	cancel context.CancelFunc
	loop   sync.WaitGroup
}

// NewApplication builds every component from cfg.
func NewApplication(ctx context.Context, cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	hub := NewEventHub()
	comps, err := NewComponents(ctx, cfg, hub, logger)
	if err != nil {
		return nil, err
	}
	orch := NewOrchestrator(cfg, comps.Driver, comps.Store, hub, logger)
	orch.WatchDedup(comps.Gate)
	appCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Application{
		Config:     cfg,
		Logger:     logger,
		Components: comps,
		Events:     hub,
		Orch:       orch,
		ctx:        appCtx,
		cancel:     cancel,
	}, nil
}

// Start runs the driver loop in the background until Shutdown.
func (a *Application) Start() error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application starting",
		logging.Field{Key: "targets", Value: len(a.Components.Targets.Targets())},
		logging.Field{Key: "adapters", Value: a.Components.Scanner.Adapters()},
		logging.Field{Key: "alert_sinks", Value: a.Components.Alerts.Sinks()},
		logging.Field{Key: "dedup_degraded", Value: a.Orch.DedupDegraded()})
	a.loop.Add(1)
	go func() {
		defer a.loop.Done()
		_ = a.Components.Driver.Run(a.ctx)
	}()
	return nil
}

// RunOnce runs a single cycle in the foreground. A nil target takes the
// next configured one.
func (a *Application) RunOnce(ctx context.Context, target *model.Target) (model.CycleStatus, error) {
	if target != nil {
		return a.Components.Driver.RunCycleFor(ctx, *target)
	}
	return a.Components.Driver.RunCycle(ctx)
}

// Shutdown stops the driver loop, waits for in-flight work (bounded by ctx
// and the pipeline shutdown grace) and releases resources.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")

	a.cancel()
	a.Orch.Close()

	wait := a.Config.Pipeline.ShutdownGrace + 5*time.Second
	shutdownCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	done := make(chan struct{})
	go func() {
		a.loop.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		a.Logger.Warn("driver did not stop in time", logging.Field{Key: "waited", Value: wait.String()})
	}

	a.Events.Close()
	if err := a.Components.Close(); err != nil {
		return fmt.Errorf("closing components: %w", err)
	}
	return nil
}

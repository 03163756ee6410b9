package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/pipeline"
)

type JobEventType string

const (
	JobEventStatus   JobEventType = "status"
	JobEventProgress JobEventType = "progress"
	JobEventResult   JobEventType = "result"
)

type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	// For status changes
	Status JobStatus `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`

	// For progress
	Processed int             `json:"processed,omitempty"`
	Total     int             `json:"total,omitempty"`
	Pipeline  *pipeline.Event `json:"event,omitempty"`
}

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

func (s JobStatus) finished() bool {
	return s == JobDone || s == JobFailed || s == JobCanceled
}

// Job is one on-demand cycle. Target is nil when the next configured
// target was used.
type Job struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Target    *model.Target      `json:"target,omitempty"`
	CycleID   string             `json:"cycle_id,omitempty"`
	Status    JobStatus          `json:"status"`
	Error     string             `json:"error,omitempty"`
	Result    *model.CycleStatus `json:"result,omitempty"`
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitzero"`
	Events    chan JobEvent      `json:"-"`
}

// CycleRunner runs pipeline cycles. *pipeline.Driver implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context) (model.CycleStatus, error)
	RunCycleFor(ctx context.Context, target model.Target) (model.CycleStatus, error)
	Status() model.CycleStatus
}

// Store is the read side the API needs. *store.DB implements it.
type Store interface {
	GetReport(ctx context.Context, id string) (*model.Report, error)
	ListReports(ctx context.Context, f model.ReportFilter) ([]*model.Report, error)
	LoadCycleStatus(ctx context.Context) (model.CycleStatus, error)
	LoadCounters(ctx context.Context) (model.Counters, error)
}

// HealthReporter is implemented by components that can keep running in a
// degraded mode, such as the dedup gate when its fingerprint store is gone.
type HealthReporter interface {
	Degraded() bool
}

type Orchestrator struct {
	cfg    *Config
	runner CycleRunner
	store  Store
	hub    *EventHub
	dedup  HealthReporter
	logger logging.Logger

	jobsMu     sync.Mutex
	jobs       map[string]*Job
	jobCancels map[string]context.CancelFunc
	active     string
	wg         sync.WaitGroup
}

// NewOrchestrator ties together config, the cycle runner, the store and the
// event hub.
func NewOrchestrator(cfg *Config, runner CycleRunner, st Store, hub *EventHub, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if hub == nil {
		hub = NewEventHub()
	}
	return &Orchestrator{
		cfg:        cfg,
		runner:     runner,
		store:      st,
		hub:        hub,
		logger:     logger.With(logging.Field{Key: "component", Value: "orchestrator"}),
		jobs:       make(map[string]*Job),
		jobCancels: make(map[string]context.CancelFunc),
	}
}

// Events returns the hub the pipeline publishes to.
func (o *Orchestrator) Events() *EventHub { return o.hub }

// WatchDedup makes the dedup gate's health visible through DedupDegraded.
func (o *Orchestrator) WatchDedup(h HealthReporter) { o.dedup = h }

// DedupDegraded reports whether dedup is running without its persisted
// fingerprints, in which case old findings may be reported again.
func (o *Orchestrator) DedupDegraded() bool {
	return o.dedup != nil && o.dedup.Degraded()
}

func (o *Orchestrator) emitJobEvent(job *Job, ev JobEvent) {
	ev.JobID = job.ID
	// Non-blocking send; drop if buffer is full.
	select {
	case job.Events <- ev:
	default:
	}
}

func (o *Orchestrator) update(jobID string, mutate func(*Job)) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if j, ok := o.jobs[jobID]; ok {
		mutate(j)
	}
}

// StartCycleJob runs one cycle in the background. A nil target takes the
// next configured target; an explicit one bypasses the priority filter.
// The job outlives ctx; cancel it with CancelJob.
func (o *Orchestrator) StartCycleJob(ctx context.Context, target *model.Target) (*Job, error) {
	if !o.runner.Status().Phase.Idle() {
		return nil, pipeline.ErrCycleInProgress
	}

	o.jobsMu.Lock()
	if o.active != "" {
		o.jobsMu.Unlock()
		return nil, pipeline.ErrCycleInProgress
	}
	o.pruneLocked(time.Now().UTC())
	job := &Job{
		ID:        uuid.New().String(),
		Type:      "cycle",
		Target:    target,
		Status:    JobPending,
		StartedAt: time.Now().UTC(),
		Events:    make(chan JobEvent, 64),
	}
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.jobs[job.ID] = job
	o.jobCancels[job.ID] = cancel
	o.active = job.ID
	o.wg.Add(1)
	snapshot := *job
	o.jobsMu.Unlock()

	o.emitJobEvent(job, JobEvent{Type: JobEventStatus, Status: JobPending})

	go o.runJob(jobCtx, cancel, job)
	return &snapshot, nil
}

func (o *Orchestrator) runJob(ctx context.Context, cancel context.CancelFunc, job *Job) {
	defer o.wg.Done()
	defer func() {
		cancel()
		o.jobsMu.Lock()
		delete(o.jobCancels, job.ID)
		if o.active == job.ID {
			o.active = ""
		}
		o.jobsMu.Unlock()
		// Close events channel so websocket loop can terminate cleanly
		close(job.Events)
	}()

	events, unsubscribe := o.hub.Subscribe(64)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		o.forward(job, events)
	}()

	o.update(job.ID, func(j *Job) { j.Status = JobRunning })
	o.emitJobEvent(job, JobEvent{Type: JobEventStatus, Status: JobRunning})

	var (
		st  model.CycleStatus
		err error
	)
	if job.Target != nil {
		st, err = o.runner.RunCycleFor(ctx, *job.Target)
	} else {
		st, err = o.runner.RunCycle(ctx)
	}

	unsubscribe()
	<-forwarded

	status, msg := JobDone, ""
	switch {
	case ctx.Err() != nil:
		status, msg = JobCanceled, ctx.Err().Error()
	case err != nil:
		status, msg = JobFailed, err.Error()
	case st.LastError != "":
		status, msg = JobFailed, st.LastError
	}

	o.update(job.ID, func(j *Job) {
		j.Status = status
		j.Error = msg
		j.Result = &st
		j.EndedAt = time.Now().UTC()
	})

	evType := JobEventResult
	if status != JobDone {
		evType = JobEventStatus
	}
	o.emitJobEvent(job, JobEvent{Type: evType, Status: status, Error: msg,
		Processed: st.AssetsDone, Total: st.AssetsTotal})
	o.logger.Info("cycle job finished",
		logging.Field{Key: "job_id", Value: job.ID},
		logging.Field{Key: "cycle_id", Value: st.CycleID},
		logging.Field{Key: "status", Value: string(status)})
}

// forward relays the job's own cycle events into its Events channel.
func (o *Orchestrator) forward(job *Job, events <-chan pipeline.Event) {
	cycleID := ""
	for ev := range events {
		if cycleID == "" {
			if ev.Type != pipeline.EventCycleStarted {
				continue
			}
			cycleID = ev.CycleID
			o.update(job.ID, func(j *Job) { j.CycleID = cycleID })
		}
		if ev.CycleID != cycleID {
			continue
		}
		o.emitJobEvent(job, JobEvent{Type: JobEventProgress, Processed: ev.Processed, Total: ev.Total, Pipeline: &ev})
	}
}

func (o *Orchestrator) CancelJob(jobID string) {
	o.jobsMu.Lock()
	cancel := o.jobCancels[jobID]
	o.jobsMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// GetJob returns a snapshot of the job, or nil.
func (o *Orchestrator) GetJob(jobID string) *Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return nil
	}
	snapshot := *j
	return &snapshot
}

// ListJobs returns job snapshots, newest first.
func (o *Orchestrator) ListJobs() []Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	o.pruneLocked(time.Now().UTC())
	out := make([]Job, 0, len(o.jobs))
	for _, j := range o.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.After(out[k].StartedAt) })
	return out
}

func (o *Orchestrator) pruneLocked(now time.Time) {
	if o.cfg.JobRetentionTime <= 0 {
		return
	}
	for id, j := range o.jobs {
		if j.Status.finished() && !j.EndedAt.IsZero() && now.Sub(j.EndedAt) > o.cfg.JobRetentionTime {
			delete(o.jobs, id)
		}
	}
}

// Status is the live cycle status while a cycle runs, otherwise the last
// persisted one.
func (o *Orchestrator) Status(ctx context.Context) model.CycleStatus {
	live := o.runner.Status()
	if !live.Phase.Idle() || o.store == nil {
		return live
	}
	st, err := o.store.LoadCycleStatus(ctx)
	if err != nil {
		o.logger.Warn("loading cycle status", logging.Field{Key: "error", Value: err})
		return live
	}
	if live.CycleID != "" && live.UpdatedAt.After(st.UpdatedAt) {
		return live
	}
	return st
}

func (o *Orchestrator) Counters(ctx context.Context) (model.Counters, error) {
	if o.store == nil {
		return nil, errors.New("no store configured")
	}
	c, err := o.store.LoadCounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading counters: %w", err)
	}
	return c, nil
}

func (o *Orchestrator) ListReports(ctx context.Context, f model.ReportFilter) ([]*model.Report, error) {
	if o.store == nil {
		return nil, errors.New("no store configured")
	}
	return o.store.ListReports(ctx, f)
}

func (o *Orchestrator) GetReport(ctx context.Context, id string) (*model.Report, error) {
	if o.store == nil {
		return nil, errors.New("no store configured")
	}
	return o.store.GetReport(ctx, id)
}

// Close cancels running jobs and waits for them to finish.
func (o *Orchestrator) Close() {
	o.jobsMu.Lock()
	for _, cancel := range o.jobCancels {
		cancel()
	}
	o.jobsMu.Unlock()
	o.wg.Wait()
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/hunter/internal/aggregator"
	"github.com/raysh454/hunter/internal/alert"
	"github.com/raysh454/hunter/internal/dedup"
	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/report"
	"github.com/raysh454/hunter/internal/retry"
	"github.com/raysh454/hunter/internal/scanner"
	"github.com/raysh454/hunter/internal/store"
	"github.com/raysh454/hunter/internal/submission"
	"github.com/raysh454/hunter/internal/testutil"
)

var fastPolicy = retry.Policy{MaxRetries: 2, Base: 2, Unit: time.Millisecond}

// perAssetAdapter reports a finding that names the asset, so different
// assets never deduplicate against each other.
type perAssetAdapter struct {
	name  string
	delay time.Duration

	active, peak atomic.Int32
}

func (a *perAssetAdapter) Name() string { return a.name }

func (a *perAssetAdapter) Scan(ctx context.Context, asset model.Asset) (string, error) {
	n := a.active.Add(1)
	defer a.active.Add(-1)
	for {
		p := a.peak.Load()
		if n <= p || a.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "[high] sqli at " + asset.String(), nil
}

type harness struct {
	driver     *Driver
	db         *store.DB
	feed       *testutil.DummyFeed
	classifier *testutil.DummyClassifier
	submit     *testutil.DummySubmissionSink
	sink       *testutil.DummyAlertSink
	registry   *prometheus.Registry

	mu     sync.Mutex
	events []Event
}

type harnessOpts struct {
	adapters []scanner.Adapter
	cfg      Config
	agg      Aggregator
	submit   submission.Sink
}

func newHarness(t *testing.T, o harnessOpts) *harness {
	t.Helper()
	logger := &testutil.DummyLogger{}
	db, err := store.Open(filepath.Join(t.TempDir(), "hunter.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		db:         db,
		feed:       &testutil.DummyFeed{},
		classifier: &testutil.DummyClassifier{Result: model.Classification{Verdict: "SQL injection", PriorityScore: 9}},
		submit:     &testutil.DummySubmissionSink{SinkName: "h1", Outcome: model.SubmissionOutcome{Reference: "77", Note: "filed"}},
		sink:       &testutil.DummyAlertSink{SinkName: "chat"},
		registry:   prometheus.NewRegistry(),
	}
	if o.adapters == nil {
		o.adapters = []scanner.Adapter{&perAssetAdapter{name: "nuclei"}}
	}
	agg := o.agg
	if agg == nil {
		agg = aggregator.New(aggregator.Config{Timeout: time.Second, Retry: fastPolicy}, h.classifier, logger)
	}
	var submitSink submission.Sink = h.submit
	if o.submit != nil {
		submitSink = o.submit
	}
	cfg := o.cfg
	if cfg.Targets == nil {
		cfg.Targets = []model.Target{{Platform: "hackerone", Program: "acme", Scope: "*.acme.test", Priority: 8}}
	}
	if cfg.MinTargetPriority == 0 {
		cfg.MinTargetPriority = 5
	}

	deps := Deps{
		Feed:       h.feed,
		Scanner:    scanner.NewOrchestrator(scanner.Config{AdapterTimeout: time.Second}, o.adapters, logger),
		Aggregator: agg,
		Gate:       dedup.NewGate(context.Background(), &testutil.DummyFingerprintStore{}, logger),
		Reports:    report.NewLifecycle(db, nil, report.DefaultCriticalThreshold, logger),
		Submitter:  submission.NewSubmitter(submission.NewRegistry(submitSink), fastPolicy, logger),
		Alerts:     alert.NewDispatcher(alert.Config{Retry: fastPolicy}, []alert.Sink{h.sink}, logger),
		Status:     db,
		Metrics:    NewMetrics(h.registry),
		Observer: ObserverFunc(func(ev Event) {
			h.mu.Lock()
			h.events = append(h.events, ev)
			h.mu.Unlock()
		}),
	}
	h.driver = New(cfg, deps, logger)
	return h
}

func (h *harness) counters(t *testing.T) model.Counters {
	t.Helper()
	c, err := h.driver.Counters(context.Background())
	require.NoError(t, err)
	return c
}

func (h *harness) alertsOf(kind model.AlertKind) []model.Alert {
	var out []model.Alert
	for _, a := range h.sink.Delivered() {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func (h *harness) reports(t *testing.T) []*model.Report {
	t.Helper()
	rs, err := h.db.ListReports(context.Background(), model.ReportFilter{})
	require.NoError(t, err)
	return rs
}

// ─── Scenarios ─────────────────────────────────────────────────────────

func TestCycle_EmptyAdapterOutputCreatesNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{adapters: []scanner.Adapter{
		&testutil.DummyAdapter{AdapterName: "burp", Output: ""},
		&testutil.DummyAdapter{AdapterName: "nuclei", Output: "   "},
		&testutil.DummyAdapter{AdapterName: "payloads", Output: "\n"},
	}})
	h.feed.Assets = []string{"https://t.example/login"}

	st, err := h.driver.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.PhaseIdle, st.Phase)
	assert.Empty(t, h.reports(t))
	assert.Empty(t, h.sink.Delivered())
	assert.Zero(t, h.classifier.Calls)
	c := h.counters(t)
	assert.EqualValues(t, 1, c[model.CounterNoFindings])
	assert.EqualValues(t, 1, c[model.CounterAssetsScanned])
}

func TestCycle_IdenticalFindingsAdmittedOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{
		adapters: []scanner.Adapter{&testutil.DummyAdapter{AdapterName: "nuclei", Output: "[high] shared vuln", Delay: 10 * time.Millisecond}},
		cfg:      Config{Workers: 2},
	})
	h.feed.Assets = []string{"https://a.acme.test", "https://b.acme.test"}

	_, err := h.driver.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.reports(t), 1)
	c := h.counters(t)
	assert.EqualValues(t, 1, c[model.CounterReportsCreated])
	assert.EqualValues(t, 1, c[model.CounterDuplicatesRejected])
}

func TestCycle_CriticalReportSubmittedAfterRetry(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.submit.FailTimes = 1
	h.feed.Assets = []string{"https://a.acme.test"}

	_, err := h.driver.RunCycle(context.Background())
	require.NoError(t, err)

	rs := h.reports(t)
	require.Len(t, rs, 1)
	assert.Equal(t, model.ReportSubmitted, rs[0].Status)
	assert.Equal(t, 2, rs[0].Attempts)
	assert.Equal(t, "77", rs[0].SubmissionRef)

	crit := h.alertsOf(model.AlertCriticalFinding)
	require.Len(t, crit, 1)
	assert.Equal(t, rs[0].ID, crit[0].ReportID)
	assert.Equal(t, "first report for this asset", crit[0].Details)
	sub := h.alertsOf(model.AlertSubmissionResult)
	require.Len(t, sub, 1)
	assert.Equal(t, string(model.ReportSubmitted), sub[0].Status)
	assert.EqualValues(t, 1, h.counters(t)[model.CounterSubmissionsSucceeded])
}

func TestCycle_SubmissionExhausted(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.classifier.Result.PriorityScore = 4
	h.submit.AlwaysFail = true
	h.feed.Assets = []string{"https://a.acme.test"}

	_, err := h.driver.RunCycle(context.Background())
	require.NoError(t, err)

	rs := h.reports(t)
	require.Len(t, rs, 1)
	assert.Equal(t, model.ReportSubmissionFailed, rs[0].Status)
	assert.Equal(t, 3, rs[0].Attempts)
	assert.Empty(t, h.alertsOf(model.AlertCriticalFinding), "pending reports raise no critical alert")
	assert.Len(t, h.alertsOf(model.AlertSubmissionResult), 1)
	assert.EqualValues(t, 1, h.counters(t)[model.CounterSubmissionsFailed])
}

func TestCycle_ClassifierUnavailableSkipsAsset(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.classifier.Err = errors.New("quota exceeded")
	h.feed.Assets = []string{"https://a.acme.test"}

	_, err := h.driver.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.reports(t))
	assert.EqualValues(t, 1, h.counters(t)[model.CounterClassificationUnavailable])
	assert.Empty(t, h.alertsOf(model.AlertProcessingError))
}

type panickyAggregator struct {
	inner Aggregator
	bad   model.Asset
}

func (p panickyAggregator) Aggregate(ctx context.Context, asset model.Asset, res model.ScanResults) (*model.AggregatedFindings, error) {
	if asset == p.bad {
		panic("nil map write")
	}
	return p.inner.Aggregate(ctx, asset, res)
}

func TestCycle_AssetPanicIsIsolated(t *testing.T) {
	t.Parallel()
	cls := &testutil.DummyClassifier{Result: model.Classification{Verdict: "x", PriorityScore: 3}}
	h := newHarness(t, harnessOpts{
		agg: panickyAggregator{
			inner: aggregator.New(aggregator.Config{Retry: fastPolicy}, cls, &testutil.DummyLogger{}),
			bad:   "https://b.acme.test",
		},
	})
	h.feed.Assets = []string{"https://a.acme.test", "https://b.acme.test", "https://c.acme.test"}

	st, err := h.driver.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.AssetsDone)
	assert.Len(t, h.reports(t), 2)

	errs := h.alertsOf(model.AlertProcessingError)
	require.Len(t, errs, 1)
	assert.Equal(t, model.Asset("https://b.acme.test"), errs[0].Asset)
	assert.Contains(t, errs[0].Details, "nil map write")
	assert.EqualValues(t, 1, h.counters(t)[model.CounterProcessingErrors])
}

func TestCycle_DiscoveryFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.feed.Err = errors.New("dns down")

	st, err := h.driver.RunCycle(context.Background())
	assert.ErrorContains(t, err, "dns down")
	assert.Equal(t, model.PhaseIdle, st.Phase)
	assert.Contains(t, st.LastError, "dns down")

	persisted, err := h.db.LoadCycleStatus(context.Background())
	require.NoError(t, err)
	assert.Contains(t, persisted.LastError, "dns down")
	assert.Len(t, h.alertsOf(model.AlertCycleError), 1)
	assert.EqualValues(t, 1, h.counters(t)[model.CounterCyclesFailed])
}

func TestCycle_EmptyDiscoveryIsNothingToDo(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})

	st, err := h.driver.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.AssetsTotal)
	assert.Empty(t, h.sink.Delivered())
	assert.EqualValues(t, 1, h.counters(t)[model.CounterCyclesCompleted])
	assert.Equal(t, []string{"*.acme.test"}, h.feed.Scopes)
}

// ─── Driver behavior ───────────────────────────────────────────────────

func TestCycle_WorkerPoolIsBounded(t *testing.T) {
	t.Parallel()
	ad := &perAssetAdapter{name: "slow", delay: 30 * time.Millisecond}
	h := newHarness(t, harnessOpts{adapters: []scanner.Adapter{ad}, cfg: Config{Workers: 2}})
	h.classifier.Result.PriorityScore = 2
	for i := range 6 {
		h.feed.Assets = append(h.feed.Assets, fmt.Sprintf("https://%d.acme.test", i))
	}

	st, err := h.driver.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, st.AssetsDone)
	assert.LessOrEqual(t, ad.peak.Load(), int32(2))
	assert.Len(t, h.reports(t), 6)
}

func TestCycle_StatusAndEvents(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{})
	h.classifier.Result.PriorityScore = 2
	h.feed.Assets = []string{"https://a.acme.test", "https://b.acme.test"}

	st, err := h.driver.RunCycle(context.Background())
	require.NoError(t, err)

	persisted, err := h.db.LoadCycleStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, st.CycleID, persisted.CycleID)
	assert.Equal(t, model.PhaseIdle, persisted.Phase)
	assert.Equal(t, 2, persisted.AssetsTotal)
	assert.Equal(t, 2, persisted.AssetsDone)
	require.NotNil(t, persisted.Target)
	assert.Equal(t, "acme", persisted.Target.Program)
	assert.False(t, persisted.FinishedAt.IsZero())

	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.events)
	assert.Equal(t, EventCycleStarted, h.events[0].Type)
	assert.Equal(t, EventCycleFinished, h.events[len(h.events)-1].Type)

	assert.Equal(t, 2.0, promtest.ToFloat64(h.driver.deps.Metrics.events.WithLabelValues(model.CounterReportsCreated)))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.driver.deps.Metrics.phase.WithLabelValues(string(model.PhaseIdle))))
}

func TestRunCycle_RejectsConcurrentCycle(t *testing.T) {
	t.Parallel()
	ad := &perAssetAdapter{name: "slow", delay: 200 * time.Millisecond}
	h := newHarness(t, harnessOpts{adapters: []scanner.Adapter{ad}})
	h.feed.Assets = []string{"https://a.acme.test"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.driver.RunCycle(context.Background())
	}()
	require.Eventually(t, func() bool { return h.driver.Status().Phase == model.PhaseScanning }, time.Second, 5*time.Millisecond)

	_, err := h.driver.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)
	<-done
}

func TestRunCycle_CancellationStopsNewAssets(t *testing.T) {
	t.Parallel()
	ad := &perAssetAdapter{name: "slow", delay: 50 * time.Millisecond}
	h := newHarness(t, harnessOpts{adapters: []scanner.Adapter{ad}, cfg: Config{Workers: 1, ShutdownGrace: time.Second}})
	h.classifier.Result.PriorityScore = 2
	for i := range 10 {
		h.feed.Assets = append(h.feed.Assets, fmt.Sprintf("https://%d.acme.test", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(70*time.Millisecond, cancel)
	st, err := h.driver.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, st.AssetsDone, 10)
	assert.Positive(t, st.AssetsDone)
	assert.Equal(t, model.PhaseIdle, st.Phase)

	rs := h.reports(t)
	assert.Len(t, rs, st.AssetsDone, "the in-flight asset finished within the grace period")
	assert.EqualValues(t, 1, h.counters(t)[model.CounterCyclesFailed])
}

func TestRunCycle_GraceExpiryCancelsInFlight(t *testing.T) {
	t.Parallel()
	ad := &perAssetAdapter{name: "hang", delay: time.Hour}
	h := newHarness(t, harnessOpts{adapters: []scanner.Adapter{ad}, cfg: Config{Workers: 1, ShutdownGrace: 20 * time.Millisecond}})
	h.feed.Assets = []string{"https://a.acme.test"}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	start := time.Now()
	_, err := h.driver.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

// hangingSubmission blocks until its context is cancelled.
type hangingSubmission struct {
	entered chan struct{}
	once    sync.Once
}

func (s *hangingSubmission) Name() string { return "h1" }

func (s *hangingSubmission) Submit(ctx context.Context, _ *model.Report) (model.SubmissionOutcome, error) {
	s.once.Do(func() { close(s.entered) })
	<-ctx.Done()
	return model.SubmissionOutcome{}, ctx.Err()
}

func TestRunCycle_CancelDuringSubmitLeavesReportOpen(t *testing.T) {
	t.Parallel()
	sub := &hangingSubmission{entered: make(chan struct{})}
	h := newHarness(t, harnessOpts{submit: sub, cfg: Config{Workers: 1, ShutdownGrace: 20 * time.Millisecond}})
	h.feed.Assets = []string{"https://a.acme.test"}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sub.entered
		cancel()
	}()
	_, err := h.driver.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	rs := h.reports(t)
	require.Len(t, rs, 1)
	assert.Equal(t, model.ReportCritical, rs[0].Status, "an interrupted submission is not a terminal failure")
	assert.Empty(t, rs[0].SubmissionNote)

	assert.Len(t, h.alertsOf(model.AlertCriticalFinding), 1)
	assert.Empty(t, h.alertsOf(model.AlertProcessingError))
	assert.Empty(t, h.alertsOf(model.AlertSubmissionResult))
	c := h.counters(t)
	assert.Zero(t, c[model.CounterSubmissionsFailed])
	assert.Zero(t, c[model.CounterProcessingErrors])
	assert.EqualValues(t, 1, c[model.CounterReportsCreated])
}

func TestRunCycle_NoEligibleTarget(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{cfg: Config{Targets: []model.Target{{Scope: "low.test", Priority: 2}}}})
	st, err := h.driver.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.PhaseIdle, st.Phase)
	assert.Empty(t, h.feed.Scopes)

	_, err = h.driver.RunCycleFor(context.Background(), model.Target{Scope: "manual.test"})
	require.NoError(t, err)
	assert.Equal(t, []string{"manual.test"}, h.feed.Scopes)
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOpts{cfg: Config{CycleInterval: 10 * time.Millisecond}})
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	require.NoError(t, h.driver.Run(ctx))
	assert.GreaterOrEqual(t, h.counters(t)[model.CounterCyclesCompleted], int64(2))
}

// ─── TargetSource ──────────────────────────────────────────────────────

func TestTargetSource_RoundRobinSkipsLowPriority(t *testing.T) {
	t.Parallel()
	src := NewTargetSource([]model.Target{
		{Program: "a", Priority: 9},
		{Program: "b", Priority: 3},
		{Program: "c", Priority: 5},
	}, 5)

	var got []string
	for range 4 {
		tg, ok := src.Next()
		require.True(t, ok)
		got = append(got, tg.Program)
	}
	assert.Equal(t, []string{"a", "c", "a", "c"}, got)

	_, ok := NewTargetSource(nil, 5).Next()
	assert.False(t, ok)
}

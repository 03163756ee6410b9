// Package testutil provides shared test doubles for use across package tests.
// The dummies satisfy the production interfaces structurally so that no
// package under test has to import another package's internals.
package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ErrorCount returns the number of error entries, safe for concurrent use.
func (l *DummyLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient.
// By default it returns body "ok:<url>" with status 200. Handler, when set,
// produces the response instead. Set FailURLs[url] = true to force an error.
type DummyWebClient struct {
	ResponseDelay time.Duration
	FailURLs      map[string]bool
	Handler       func(req *webclient.Request) (*webclient.Response, error)

	mu       sync.Mutex
	Requests []*webclient.Request
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if d.FailURLs != nil && d.FailURLs[req.URL] {
		return nil, errors.New("dummy fetch fail for " + req.URL)
	}
	if d.Handler != nil {
		resp, err := d.Handler(req)
		if resp != nil {
			resp.Request = req
			if resp.Headers == nil {
				resp.Headers = http.Header{}
			}
		}
		return resp, err
	}

	return &webclient.Response{
		Request:    req,
		Headers:    http.Header{},
		Body:       []byte("ok:" + req.URL),
		StatusCode: http.StatusOK,
		FetchedAt:  time.Now(),
	}, nil
}

func (d *DummyWebClient) Get(ctx context.Context, url string) (*webclient.Response, error) {
	return d.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: url})
}

func (d *DummyWebClient) Close() error { return nil }

// RequestCount returns how many requests were made.
func (d *DummyWebClient) RequestCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Requests)
}

// ─── Fingerprint store ─────────────────────────────────────────────────

// DummyFingerprintStore implements dedup.Store in memory.
type DummyFingerprintStore struct {
	LoadErr   error
	AppendErr error

	mu  sync.Mutex
	fps []model.Fingerprint
}

func (s *DummyFingerprintStore) LoadFingerprints(context.Context) ([]model.Fingerprint, error) {
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	return s.Snapshot(), nil
}

func (s *DummyFingerprintStore) AppendFingerprint(_ context.Context, fp model.Fingerprint) error {
	if s.AppendErr != nil {
		return s.AppendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.fps {
		if have == fp {
			return nil
		}
	}
	s.fps = append(s.fps, fp)
	return nil
}

// Snapshot returns a copy of the stored fingerprints.
func (s *DummyFingerprintStore) Snapshot() []model.Fingerprint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Fingerprint(nil), s.fps...)
}

// ─── Scan adapter ──────────────────────────────────────────────────────

// DummyAdapter implements scanner.Adapter. With Delay set it sleeps (honoring
// ctx) before answering; with Panic set it panics.
type DummyAdapter struct {
	AdapterName string
	Output      string
	Err         error
	Delay       time.Duration
	Panic       bool

	mu    sync.Mutex
	Calls int
}

func (d *DummyAdapter) Name() string { return d.AdapterName }

func (d *DummyAdapter) Scan(ctx context.Context, asset model.Asset) (string, error) {
	d.mu.Lock()
	d.Calls++
	d.mu.Unlock()
	if d.Panic {
		panic("dummy adapter panic")
	}
	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if d.Err != nil {
		return "", d.Err
	}
	return d.Output, nil
}

// ─── Classifier ────────────────────────────────────────────────────────

// DummyClassifier implements classifier.Classifier. It fails the first
// FailTimes calls with Err (or a generic error) and then returns Result.
type DummyClassifier struct {
	Result    model.Classification
	Err       error
	FailTimes int
	Delay     time.Duration

	mu    sync.Mutex
	Calls int
	Texts []string
}

func (d *DummyClassifier) Classify(ctx context.Context, text string) (model.Classification, error) {
	d.mu.Lock()
	d.Calls++
	call := d.Calls
	d.Texts = append(d.Texts, text)
	d.mu.Unlock()

	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return model.Classification{}, ctx.Err()
		}
	}
	if call <= d.FailTimes {
		if d.Err != nil {
			return model.Classification{}, d.Err
		}
		return model.Classification{}, errors.New("dummy classifier failure")
	}
	if d.Err != nil && d.FailTimes == 0 {
		return model.Classification{}, d.Err
	}
	return d.Result, nil
}

// ─── Notification sink ─────────────────────────────────────────────────

// DummyAlertSink implements alert.Sink. It fails the first FailTimes sends,
// or every send when AlwaysFail is set.
type DummyAlertSink struct {
	SinkName   string
	FailTimes  int
	AlwaysFail bool
	Delay      time.Duration

	mu     sync.Mutex
	Calls  int
	Alerts []model.Alert
}

func (d *DummyAlertSink) Name() string { return d.SinkName }

func (d *DummyAlertSink) Send(ctx context.Context, a model.Alert) error {
	d.mu.Lock()
	d.Calls++
	call := d.Calls
	d.mu.Unlock()

	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if d.AlwaysFail || call <= d.FailTimes {
		return errors.New(d.SinkName + " unavailable")
	}
	d.mu.Lock()
	d.Alerts = append(d.Alerts, a)
	d.mu.Unlock()
	return nil
}

// Delivered returns a copy of the alerts delivered so far.
func (d *DummyAlertSink) Delivered() []model.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Alert(nil), d.Alerts...)
}

// CallCount returns the number of Send calls.
func (d *DummyAlertSink) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Calls
}

// ─── Submission sink ───────────────────────────────────────────────────

// DummySubmissionSink implements submission.Sink.
type DummySubmissionSink struct {
	SinkName   string
	Outcome    model.SubmissionOutcome
	FailTimes  int
	AlwaysFail bool

	mu    sync.Mutex
	Calls int
}

func (d *DummySubmissionSink) Name() string { return d.SinkName }

func (d *DummySubmissionSink) Submit(_ context.Context, r *model.Report) (model.SubmissionOutcome, error) {
	d.mu.Lock()
	d.Calls++
	call := d.Calls
	d.mu.Unlock()
	if d.AlwaysFail || call <= d.FailTimes {
		return model.SubmissionOutcome{}, errors.New(d.SinkName + " rejected " + r.ID)
	}
	out := d.Outcome
	if out.Kind == "" {
		out.Kind = model.SubmissionAutomated
	}
	out.Sink = d.SinkName
	return out, nil
}

// ─── Discovery feed ────────────────────────────────────────────────────

// DummyFeed implements discovery.Feed.
type DummyFeed struct {
	Assets []string
	Err    error

	mu     sync.Mutex
	Scopes []string
}

func (d *DummyFeed) Name() string { return "dummy" }

func (d *DummyFeed) Discover(_ context.Context, scope string) ([]string, error) {
	d.mu.Lock()
	d.Scopes = append(d.Scopes, scope)
	d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	return append([]string(nil), d.Assets...), nil
}

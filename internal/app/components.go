package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/raysh454/hunter/internal/aggregator"
	"github.com/raysh454/hunter/internal/alert"
	"github.com/raysh454/hunter/internal/classifier"
	"github.com/raysh454/hunter/internal/dedup"
	"github.com/raysh454/hunter/internal/discovery"
	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/pipeline"
	"github.com/raysh454/hunter/internal/report"
	"github.com/raysh454/hunter/internal/scanner"
	"github.com/raysh454/hunter/internal/store"
	"github.com/raysh454/hunter/internal/submission"
	"github.com/raysh454/hunter/internal/webclient"
)

// DatabaseFile is the sqlite file name under the storage root.
const DatabaseFile = "hunter.db"

// DatabasePath is where the store of cfg lives.
func DatabasePath(cfg *Config) string {
	return filepath.Join(cfg.StorageRoot, DatabaseFile)
}

// Components are the long-lived services behind one hunter process.
type Components struct {
	Store *store.DB

	// WebClient is the configured backend (net/http or chromedp) used for
	// page fetches. APIClient is always net/http and talks JSON APIs.
	WebClient webclient.WebClient
	APIClient webclient.WebClient

	Scanner    *scanner.Orchestrator
	Classifier classifier.Classifier
	Aggregator *aggregator.Aggregator
	Gate       *dedup.Gate
	Exporter   *report.FileExporter
	Reports    *report.Lifecycle
	Submitter  *submission.Submitter
	Alerts     *alert.Dispatcher
	Feed       *discovery.MultiFeed
	Targets    *pipeline.TargetSource

	Registry *prometheus.Registry
	Metrics  *pipeline.Metrics
	Driver   *pipeline.Driver
}

// NewComponents builds every service from cfg. Events from the driver go
// to observer (may be nil). On error everything opened so far is closed.
func NewComponents(ctx context.Context, cfg *Config, observer pipeline.Observer, logger logging.Logger) (*Components, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Components{}
	built := false
	defer func() {
		if !built {
			_ = c.Close()
		}
	}()

	var err error
	if err := os.MkdirAll(cfg.StorageRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root %s: %w", cfg.StorageRoot, err)
	}

	c.Store, err = store.Open(DatabasePath(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	c.WebClient, err = webclient.NewWebClient(cfg.WebClient, logger)
	if err != nil {
		return nil, fmt.Errorf("creating web client: %w", err)
	}
	apiClient, err := webclient.NewAPIClient(cfg.WebClient, logger)
	if err != nil {
		return nil, fmt.Errorf("creating api client: %w", err)
	}
	c.APIClient = apiClient

	adapters, err := scanner.Build(cfg.Scanner.Adapters, c.APIClient, logger)
	if err != nil {
		return nil, fmt.Errorf("building scan adapters: %w", err)
	}
	if len(adapters) == 0 {
		return nil, errors.New("no scan adapters enabled")
	}
	c.Scanner = scanner.NewOrchestrator(cfg.Scanner, adapters, logger)

	c.Classifier, err = classifier.New(ctx, cfg.Classifier, logger)
	if err != nil {
		return nil, fmt.Errorf("creating classifier: %w", err)
	}
	c.Aggregator = aggregator.New(cfg.Aggregator, c.Classifier, logger)
	c.Gate = dedup.NewGate(ctx, c.Store, logger)

	var exporter report.Exporter
	if cfg.ExportReports {
		c.Exporter, err = report.NewFileExporter(filepath.Join(cfg.StorageRoot, "reports"))
		if err != nil {
			return nil, fmt.Errorf("creating report exporter: %w", err)
		}
		exporter = c.Exporter
	}
	c.Reports = report.NewLifecycle(c.Store, exporter, cfg.Pipeline.CriticalThreshold, logger)

	reg, err := submission.Build(cfg.Submission, c.APIClient)
	if err != nil {
		return nil, fmt.Errorf("building submission sinks: %w", err)
	}
	c.Submitter = submission.NewSubmitter(reg, cfg.Submission.Retry, logger)

	sinks := alert.Build(cfg.Alert, c.APIClient)
	if len(sinks) == 0 {
		logger.Warn("no alert sinks configured; alerts will only be logged")
	}
	c.Alerts = alert.NewDispatcher(cfg.Alert, sinks, logger)

	c.Feed, err = discovery.Build(cfg.Discovery, c.WebClient, logger)
	if err != nil {
		return nil, fmt.Errorf("building discovery feeds: %w", err)
	}

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = pipeline.NewMetrics(c.Registry)

	c.Targets = pipeline.NewTargetSource(cfg.Pipeline.Targets, cfg.Pipeline.MinTargetPriority)
	c.Driver = pipeline.New(cfg.Pipeline, pipeline.Deps{
		Targets:    c.Targets,
		Feed:       c.Feed,
		Scanner:    c.Scanner,
		Aggregator: c.Aggregator,
		Gate:       c.Gate,
		Reports:    c.Reports,
		Submitter:  c.Submitter,
		Alerts:     c.Alerts,
		Status:     c.Store,
		Metrics:    c.Metrics,
		Observer:   observer,
	}, logger)

	built = true
	return c, nil
}

// Close releases clients and the store.
func (c *Components) Close() error {
	var errs []error
	if closer, ok := c.Classifier.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if c.WebClient != nil {
		errs = append(errs, c.WebClient.Close())
	}
	if c.APIClient != nil {
		errs = append(errs, c.APIClient.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}

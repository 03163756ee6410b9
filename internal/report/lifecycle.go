package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/hunter/internal/dedup"
	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
)

// Repository persists reports. UpdateReportStatus must be a compare-and-set
// on the stored status.
type Repository interface {
	CreateReport(ctx context.Context, r *model.Report) error
	UpdateReportStatus(ctx context.Context, r *model.Report, from model.ReportStatus) error
	GetReport(ctx context.Context, id string) (*model.Report, error)
	LatestReportForAsset(ctx context.Context, asset model.Asset) (*model.Report, error)
	ListReports(ctx context.Context, f model.ReportFilter) ([]*model.Report, error)
}

// Exporter writes a copy of a report somewhere outside the repository.
type Exporter interface {
	Export(r *model.Report) error
}

// Update carries the submission details recorded with a transition.
type Update struct {
	Note     string
	Ref      string
	Attempts int
}

// Lifecycle creates reports and applies transitions. Every change is stored
// before the caller's in-memory report is touched, so alerts raised after a
// successful call always describe persisted state.
type Lifecycle struct {
	repo      Repository
	exporter  Exporter
	threshold int
	logger    logging.Logger
	now       func() time.Time
}

// NewLifecycle returns a Lifecycle. exporter may be nil.
func NewLifecycle(repo Repository, exporter Exporter, threshold int, logger logging.Logger) *Lifecycle {
	if threshold <= 0 {
		threshold = DefaultCriticalThreshold
	}
	return &Lifecycle{
		repo:      repo,
		exporter:  exporter,
		threshold: threshold,
		logger:    logger.With(logging.Field{Key: "component", Value: "report"}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Open persists a new report for findings.
func (l *Lifecycle) Open(ctx context.Context, target model.Target, f *model.AggregatedFindings) (*model.Report, error) {
	now := l.now()
	r := &model.Report{
		ID:          uuid.NewString(),
		Asset:       f.Asset,
		Target:      target,
		Title:       Title(f.Verdict),
		Status:      InitialStatus(f.PriorityScore, l.threshold),
		Findings:    *f,
		Fingerprint: dedup.Compute(f.CombinedText).String(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.repo.CreateReport(ctx, r); err != nil {
		return nil, fmt.Errorf("open report for %s: %w", f.Asset, err)
	}
	l.logger.Info("report opened",
		logging.Field{Key: "report_id", Value: r.ID},
		logging.Field{Key: "asset", Value: r.Asset.String()},
		logging.Field{Key: "status", Value: string(r.Status)},
		logging.Field{Key: "priority", Value: f.PriorityScore})
	l.export(r)
	return r, nil
}

// Apply moves r through ev. The new state is persisted with a compare-and-set
// on r's current status; r is updated only when that succeeds.
func (l *Lifecycle) Apply(ctx context.Context, r *model.Report, ev Event, u Update) error {
	to, err := Next(r.Status, ev)
	if err != nil {
		return err
	}
	next := *r
	next.Status = to
	next.SubmissionNote = u.Note
	next.SubmissionRef = u.Ref
	next.Attempts = u.Attempts
	next.UpdatedAt = l.now()

	if err := l.repo.UpdateReportStatus(ctx, &next, r.Status); err != nil {
		return fmt.Errorf("persist %s for report %s: %w", ev, r.ID, err)
	}
	l.logger.Info("report transitioned",
		logging.Field{Key: "report_id", Value: r.ID},
		logging.Field{Key: "from", Value: string(r.Status)},
		logging.Field{Key: "to", Value: string(to)})
	*r = next
	l.export(r)
	return nil
}

// Previous returns the latest stored report for asset, or nil.
func (l *Lifecycle) Previous(ctx context.Context, asset model.Asset) *model.Report {
	r, err := l.repo.LatestReportForAsset(ctx, asset)
	if err != nil {
		return nil
	}
	return r
}

func (l *Lifecycle) export(r *model.Report) {
	if l.exporter == nil {
		return
	}
	if err := l.exporter.Export(r); err != nil {
		l.logger.Warn("report export failed",
			logging.Field{Key: "report_id", Value: r.ID},
			logging.Field{Key: "error", Value: err})
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/raysh454/hunter/internal/aggregator"
	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/report"
	"github.com/raysh454/hunter/internal/utils"
)

const maxAlertDetails = 1500

// processAsset runs one asset end to end. Errors and panics stop at this
// boundary: they are logged, counted and alerted, and the worker moves on.
func (d *Driver) processAsset(ctx context.Context, logger logging.Logger, cycleID string, target model.Target, asset model.Asset) (outcome string) {
	ctx, span := tracer.Start(ctx, "pipeline.asset")
	span.SetAttributes(attribute.String("asset", asset.String()))
	defer span.End()

	logger = logger.With(logging.Field{Key: "asset", Value: asset.String()})
	start := time.Now()
	d.deps.Metrics.assetStarted()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("asset processing panicked",
				logging.Field{Key: "panic", Value: fmt.Sprint(r)},
				logging.Field{Key: "stack", Value: string(debug.Stack())})
			outcome = d.assetFailed(ctx, target, asset, fmt.Errorf("panic: %v", r))
		}
		if outcome == OutcomeError {
			span.SetStatus(codes.Error, "asset processing failed")
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		d.deps.Metrics.assetFinished(outcome, time.Since(start).Seconds())
	}()

	outcome, err := d.handleAsset(ctx, logger, cycleID, target, asset)
	if err != nil && ctx.Err() != nil {
		logger.Warn("asset processing interrupted", logging.Field{Key: "error", Value: err})
		return OutcomeInterrupted
	}
	if err != nil {
		logger.Error("asset processing failed", logging.Field{Key: "error", Value: err})
		return d.assetFailed(ctx, target, asset, err)
	}
	return outcome
}

func (d *Driver) assetFailed(ctx context.Context, target model.Target, asset model.Asset, err error) string {
	d.count(ctx, model.CounterProcessingErrors)
	t := target
	d.deps.Alerts.Notify(context.WithoutCancel(ctx), model.Alert{
		Kind:    model.AlertProcessingError,
		Title:   "Failed on " + asset.String(),
		Asset:   asset,
		Target:  &t,
		Details: err.Error(),
	})
	return OutcomeError
}

func (d *Driver) handleAsset(ctx context.Context, logger logging.Logger, cycleID string, target model.Target, asset model.Asset) (string, error) {
	results := d.deps.Scanner.Run(ctx, asset)
	d.count(ctx, model.CounterAssetsScanned)

	findings, err := d.deps.Aggregator.Aggregate(ctx, asset, results)
	switch {
	case errors.Is(err, aggregator.ErrNoFindings):
		logger.Info("no findings")
		d.count(ctx, model.CounterNoFindings)
		return OutcomeNoFindings, nil
	case errors.Is(err, aggregator.ErrClassificationUnavailable):
		logger.Warn("classification unavailable, skipping asset", logging.Field{Key: "error", Value: err})
		d.count(ctx, model.CounterClassificationUnavailable)
		return OutcomeClassificationUnavailable, nil
	case err != nil:
		return OutcomeError, fmt.Errorf("aggregate: %w", err)
	}

	if !d.deps.Gate.Admit(ctx, findings) {
		logger.Info("duplicate findings rejected")
		d.count(ctx, model.CounterDuplicatesRejected)
		return OutcomeDuplicate, nil
	}

	prev := d.deps.Reports.Previous(ctx, asset)
	r, err := d.deps.Reports.Open(ctx, target, findings)
	if err != nil {
		return OutcomeError, err
	}
	d.count(ctx, model.CounterReportsCreated)
	d.emit(Event{Type: EventReportOpened, CycleID: cycleID, Asset: asset, ReportID: r.ID, Status: r.Status})

	t := target
	if r.Status == model.ReportCritical {
		d.deps.Alerts.Notify(ctx, model.Alert{
			Kind:           model.AlertCriticalFinding,
			Title:          r.Title,
			Asset:          asset,
			Target:         &t,
			ReportID:       r.ID,
			Severity:       findings.PriorityScore,
			Verdict:        findings.Verdict,
			BountyEstimate: findings.BountyEstimate,
			Status:         string(r.Status),
			Details:        report.ChangeSummary(prev, findings),
		})
	}

	out, attempts, subErr := d.deps.Submitter.Submit(ctx, r)
	if subErr != nil && ctx.Err() != nil {
		// Shutdown cut the retries short. The report keeps its open status so
		// the submission can be picked up again.
		logger.Warn("submission interrupted, report left open",
			logging.Field{Key: "report_id", Value: r.ID},
			logging.Field{Key: "status", Value: string(r.Status)},
			logging.Field{Key: "attempts", Value: attempts},
			logging.Field{Key: "error", Value: subErr})
		return OutcomeInterrupted, nil
	}
	ev, upd := report.EventSubmitSucceeded, report.Update{Note: out.Note, Ref: out.Reference, Attempts: attempts}
	if subErr != nil {
		ev, upd = report.EventSubmitExhausted, report.Update{Note: subErr.Error(), Attempts: attempts}
	}
	if err := d.deps.Reports.Apply(context.WithoutCancel(ctx), r, ev, upd); err != nil {
		return OutcomeError, err
	}
	if subErr != nil {
		d.count(ctx, model.CounterSubmissionsFailed)
	} else {
		d.count(ctx, model.CounterSubmissionsSucceeded)
	}
	d.emit(Event{Type: EventReportUpdated, CycleID: cycleID, Asset: asset, ReportID: r.ID, Status: r.Status})

	details := utils.Truncate(r.SubmissionNote, maxAlertDetails, "...")
	d.deps.Alerts.Notify(ctx, model.Alert{
		Kind:           model.AlertSubmissionResult,
		Title:          r.Title,
		Asset:          asset,
		Target:         &t,
		ReportID:       r.ID,
		Severity:       findings.PriorityScore,
		BountyEstimate: findings.BountyEstimate,
		Status:         string(r.Status),
		Details:        details,
	})
	return OutcomeReported, nil
}

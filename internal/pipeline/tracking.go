package pipeline

import (
	"context"
	"time"

	"movie-pipeline/internal/metrics"
	"movie-pipeline/internal/model"

	"github.com/sirupsen/logrus"
)

// RunLedger stores the history of runs.
type RunLedger interface {
	StartRun(ctx context.Context, runID string, sources []string) error
	RecordStage(ctx context.Context, runID string, stage model.StageReport) error
	RecordError(ctx context.Context, runID, stage string, err error) error
	FinishRun(ctx context.Context, summary model.RunSummary) error
}

type nopLedger struct{}

func (nopLedger) StartRun(context.Context, string, []string) error             { return nil }
func (nopLedger) RecordStage(context.Context, string, model.StageReport) error { return nil }
func (nopLedger) RecordError(context.Context, string, string, error) error     { return nil }
func (nopLedger) FinishRun(context.Context, model.RunSummary) error            { return nil }

// RunTracker follows one run: it times each step, stores outcomes in the
// ledger and builds the run summary. Ledger failures are logged, never
// returned, so bookkeeping cannot fail a run.
type RunTracker struct {
	Summary model.RunSummary

	ledger  RunLedger
	log     logrus.FieldLogger
	metrics *metrics.Recorder
	now     func() time.Time
}

// NewRunTracker starts tracking a run over the given sources.
func NewRunTracker(runID string, sources []model.Source, l RunLedger, log logrus.FieldLogger, rec *metrics.Recorder) *RunTracker {
	if l == nil {
		l = nopLedger{}
	}
	if rec == nil {
		rec = metrics.NewRecorder(nil)
	}
	paths := make([]string, 0, len(sources))
	for _, s := range sources {
		paths = append(paths, s.Path)
	}
	return &RunTracker{
		Summary: model.RunSummary{RunID: runID, Status: model.RunStatusRunning, Sources: paths},
		ledger:  l,
		log:     log.WithField("run_id", runID),
		metrics: rec,
		now:     time.Now,
	}
}

// Start marks the run as running.
func (t *RunTracker) Start(ctx context.Context) {
	t.Summary.StartedAt = t.now().UTC()
	if err := t.ledger.StartRun(ctx, t.Summary.RunID, t.Summary.Sources); err != nil {
		t.log.WithError(err).Warn("Failed to record run start")
	}
	t.log.WithField("sources", t.Summary.Sources).Info("Run started")
}

// Step runs fn as the named step. A failure is recorded in the ledger and returned.
func (t *RunTracker) Step(ctx context.Context, name string, fn func(context.Context) error) error {
	start := t.now()
	log := t.log.WithField("step", name)
	log.Debug("Step started")

	err := fn(ctx)
	elapsed := t.now().Sub(start)
	t.metrics.Step(name, err, elapsed)

	if err != nil {
		log.WithError(err).Error("Step failed")
		if lerr := t.ledger.RecordError(ctx, t.Summary.RunID, name, err); lerr != nil {
			log.WithError(lerr).Warn("Failed to record step error")
		}
		return err
	}
	log.WithField("duration_ms", elapsed.Milliseconds()).Info("Step completed")
	return nil
}

// RecordClean stores the cleaning report and its stage counts.
func (t *RunTracker) RecordClean(ctx context.Context, report model.CleanReport) {
	t.Summary.Clean = report
	for _, s := range report.Stages {
		if err := t.ledger.RecordStage(ctx, t.Summary.RunID, s); err != nil {
			t.log.WithError(err).WithField("stage", s.Stage).Warn("Failed to record stage")
		}
	}
}

// Complete marks the run as completed and returns its summary.
func (t *RunTracker) Complete(ctx context.Context) model.RunSummary {
	t.finish(ctx, model.RunStatusCompleted, nil)
	t.log.WithFields(logrus.Fields{
		"ingested":           t.Summary.Ingested,
		"cleaned":            t.Summary.Clean.Output,
		"rejected":           t.Summary.Clean.Rejected(),
		"movies_inserted":    t.Summary.Movies.Inserted,
		"directors_inserted": t.Summary.Directors.Inserted,
		"views":              t.Summary.Views.Created,
	}).Info("Run completed")
	return t.Summary
}

// Fail marks the run as failed and returns its summary.
func (t *RunTracker) Fail(ctx context.Context, err error) model.RunSummary {
	t.finish(ctx, model.RunStatusFailed, err)
	t.log.WithError(err).Error("Run failed")
	return t.Summary
}

func (t *RunTracker) finish(ctx context.Context, status string, err error) {
	t.Summary.Status = status
	t.Summary.FinishedAt = t.now().UTC()
	if err != nil {
		t.Summary.Error = err.Error()
	}
	if lerr := t.ledger.FinishRun(ctx, t.Summary); lerr != nil {
		t.log.WithError(lerr).Warn("Failed to record run end")
	}
}

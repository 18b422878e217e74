// Package pipeline loads, cleans and stores movie records, then refreshes
// the aggregation views and exports them.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"movie-pipeline/internal/aggregate"
	"movie-pipeline/internal/ledger"
	"movie-pipeline/internal/metrics"
	"movie-pipeline/internal/model"
	"movie-pipeline/internal/persist"
	"movie-pipeline/internal/report"

	"github.com/sirupsen/logrus"
)

// ErrNoSources is returned when a run is started without sources.
var ErrNoSources = errors.New("no sources configured")

// Step names, as recorded in the ledger and in metrics.
const (
	StepIngest  = "ingest"
	StepClean   = "clean"
	StepWrite   = "write"
	StepViews   = "views"
	StepReport  = "report"
	StepArchive = "archive"
)

// Notifier announces finished runs.
type Notifier interface {
	PublishRun(ctx context.Context, summary model.RunSummary) error
}

// Archiver uploads exported reports.
type Archiver interface {
	Archive(ctx context.Context, runID string, exports []model.ExportResult) ([]model.ExportResult, error)
}

// Runner wires every component of a run. The store handle is owned by the
// caller and shared by the writer, engine and accessors.
type Runner struct {
	cleaner   *Cleaner
	writer    *persist.Writer
	engine    *aggregate.Engine
	accessors *aggregate.Accessors
	exporter  *report.Exporter

	archiver Archiver
	ledger   RunLedger
	notifier Notifier
	log      logrus.FieldLogger
	metrics  *metrics.Recorder
	newID    func() string
}

// RunnerOption customizes a Runner
type RunnerOption func(*Runner)

// WithLedger records runs in l.
func WithLedger(l RunLedger) RunnerOption {
	return func(r *Runner) { r.ledger = l }
}

// WithNotifier publishes run summaries through n.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithArchiver uploads exported reports through a.
func WithArchiver(a Archiver) RunnerOption {
	return func(r *Runner) { r.archiver = a }
}

// WithExporter writes reports after each run; without it no report is written.
func WithExporter(e *report.Exporter) RunnerOption {
	return func(r *Runner) { r.exporter = e }
}

// NewRunner builds a runner from its components.
func NewRunner(c *Cleaner, w *persist.Writer, e *aggregate.Engine, a *aggregate.Accessors,
	log logrus.FieldLogger, rec *metrics.Recorder, opts ...RunnerOption) *Runner {
	if rec == nil {
		rec = metrics.NewRecorder(nil)
	}
	r := &Runner{
		cleaner:   c,
		writer:    w,
		engine:    e,
		accessors: a,
		log:       log,
		metrics:   rec,
		newID:     ledger.NewRunID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes ingest, clean, write, view rebuild and report for the sources.
// The summary is returned on failure too.
func (r *Runner) Run(ctx context.Context, sources []model.Source) (model.RunSummary, error) {
	tracker := NewRunTracker(r.newID(), sources, r.ledger, r.log, r.metrics)
	tracker.Start(ctx)

	err := r.run(ctx, tracker, sources)
	var summary model.RunSummary
	if err != nil {
		summary = tracker.Fail(ctx, err)
	} else {
		summary = tracker.Complete(ctx)
	}

	if r.notifier != nil {
		if nerr := r.notifier.PublishRun(ctx, summary); nerr != nil {
			r.log.WithError(nerr).Warn("Failed to publish run summary")
		}
	}
	if ferr := r.metrics.Flush(); ferr != nil {
		r.log.WithError(ferr).Warn("Failed to flush metrics")
	}
	return summary, err
}

func (r *Runner) run(ctx context.Context, t *RunTracker, sources []model.Source) error {
	if len(sources) == 0 {
		return ErrNoSources
	}

	var batch []model.RawRecord
	err := t.Step(ctx, StepIngest, func(ctx context.Context) (err error) {
		batch, err = LoadSources(ctx, sources, r.log)
		return err
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	t.Summary.Ingested = len(batch)
	r.metrics.Records("ingested", len(batch))

	var cleaned CleanResult
	err = t.Step(ctx, StepClean, func(ctx context.Context) (err error) {
		cleaned, err = r.cleaner.Clean(ctx, batch)
		return err
	})
	if err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	t.RecordClean(ctx, cleaned.Report)

	err = t.Step(ctx, StepWrite, func(ctx context.Context) (err error) {
		if err := r.writer.EnsureCollections(ctx); err != nil {
			return err
		}
		t.Summary.Movies, t.Summary.Directors, err = r.writer.WriteMovies(ctx, cleaned.Movies)
		return err
	})
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	err = t.Step(ctx, StepViews, func(ctx context.Context) (err error) {
		t.Summary.Views, err = r.engine.Rebuild(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("views: %w", err)
	}

	if r.exporter == nil {
		return nil
	}
	if _, err := r.report(ctx, t); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// RebuildViews refreshes the views without loading new records.
func (r *Runner) RebuildViews(ctx context.Context) (model.RebuildStats, error) {
	stats, err := r.engine.Rebuild(ctx)
	if ferr := r.metrics.Flush(); ferr != nil {
		r.log.WithError(ferr).Warn("Failed to flush metrics")
	}
	return stats, err
}

// ReadViews returns the rows of every view in rebuild order.
func (r *Runner) ReadViews(ctx context.Context) ([]report.ViewRows, error) {
	var out []report.ViewRows
	for _, def := range r.engine.Definitions() {
		rows, err := r.accessors.Fetch(ctx, def.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, report.ViewRows{View: def.Name, Rows: rows})
	}
	return out, nil
}

// Report exports the current view contents under a fresh run id.
func (r *Runner) Report(ctx context.Context) ([]model.ExportResult, error) {
	if r.exporter == nil {
		return nil, errors.New("no exporter configured")
	}
	t := NewRunTracker(r.newID(), nil, r.ledger, r.log, r.metrics)
	t.Start(ctx)
	results, err := r.report(ctx, t)
	if err != nil {
		t.Fail(ctx, err)
		return results, err
	}
	t.Complete(ctx)
	return results, nil
}

func (r *Runner) report(ctx context.Context, t *RunTracker) ([]model.ExportResult, error) {
	var results []model.ExportResult
	err := t.Step(ctx, StepReport, func(ctx context.Context) error {
		rows, err := r.ReadViews(ctx)
		if err != nil {
			return err
		}
		results, err = r.exporter.Export(ctx, t.Summary.RunID, rows)
		return err
	})
	if err != nil || r.archiver == nil {
		return results, err
	}

	err = t.Step(ctx, StepArchive, func(ctx context.Context) error {
		archived, err := r.archiver.Archive(ctx, t.Summary.RunID, results)
		results = append(results, archived...)
		return err
	})
	return results, err
}

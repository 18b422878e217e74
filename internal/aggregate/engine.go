// Package aggregate installs the aggregation views and reads them back.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"movie-pipeline/internal/metrics"
	"movie-pipeline/internal/model"
	"movie-pipeline/internal/store"
	"movie-pipeline/internal/views"

	"github.com/sirupsen/logrus"
)

// Engine rebuilds views by dropping and recreating them. The refresh is not
// atomic: between the drop and the create a view does not exist, and a failed
// create leaves the remaining views missing until the next rebuild.
type Engine struct {
	store   store.Store
	defs    []views.Definition
	log     logrus.FieldLogger
	metrics *metrics.Recorder
}

// NewEngine builds an engine over defs, rebuilt in the given order.
func NewEngine(s store.Store, defs []views.Definition, log logrus.FieldLogger, rec *metrics.Recorder) *Engine {
	if rec == nil {
		rec = metrics.NewRecorder(nil)
	}
	return &Engine{store: s, defs: defs, log: log, metrics: rec}
}

// Definitions returns the views managed by the engine.
func (e *Engine) Definitions() []views.Definition {
	return e.defs
}

// Rebuild drops every view, then creates every view. Drop failures are
// logged and counted; the first create failure is returned.
func (e *Engine) Rebuild(ctx context.Context) (model.RebuildStats, error) {
	start := time.Now()
	var stats model.RebuildStats

	for _, def := range e.defs {
		log := e.log.WithField("view", def.Name)
		err := e.store.DropView(ctx, def.Name)
		switch {
		case err == nil:
			stats.Dropped++
			log.Debug("View dropped")
		case errors.Is(err, store.ErrViewNotFound):
			stats.Missing++
			log.Debug("View did not exist")
		default:
			stats.DropErrors++
			e.metrics.ViewError(def.Name, "drop")
			log.WithError(err).Warn("Failed to drop view")
		}
	}

	for _, def := range e.defs {
		if err := e.store.CreateView(ctx, def.Name, def.Source, def.Pipeline()); err != nil {
			e.metrics.ViewError(def.Name, "create")
			err = fmt.Errorf("failed to create view %s: %w", def.Name, err)
			e.metrics.Step("rebuild_views", err, time.Since(start))
			return stats, err
		}
		stats.Created++
		e.log.WithFields(logrus.Fields{"view": def.Name, "source": def.Source}).Info("View created")
	}

	e.metrics.Step("rebuild_views", nil, time.Since(start))
	return stats, nil
}

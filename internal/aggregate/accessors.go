package aggregate

import (
	"context"
	"errors"
	"fmt"

	"movie-pipeline/internal/model"
	"movie-pipeline/internal/store"
	"movie-pipeline/internal/views"
	"movie-pipeline/pkg/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrUnknownView is returned when reading a view the accessors do not know.
var ErrUnknownView = errors.New("unknown view")

// Accessors read view rows in the order the view stores them.
type Accessors struct {
	store store.Store
	defs  []views.Definition
}

// NewAccessors reads the given views from s.
func NewAccessors(s store.Store, defs []views.Definition) *Accessors {
	return &Accessors{store: s, defs: defs}
}

// Fetch returns every row of a view.
func (a *Accessors) Fetch(ctx context.Context, view string) ([]model.ViewRow, error) {
	def, ok := views.Find(a.defs, view)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownView, view)
	}
	docs, err := a.store.Find(ctx, def.Name, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to read view %s: %w", def.Name, err)
	}

	rows := make([]model.ViewRow, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, toViewRow(def, doc))
	}
	return rows, nil
}

// TopDirectorsByFilmCount reads the directors with the most films.
func (a *Accessors) TopDirectorsByFilmCount(ctx context.Context) ([]model.ViewRow, error) {
	return a.Fetch(ctx, views.TopDirectorsMostFilms)
}

// TopDirectorsByRating reads the directors with the best average rating.
func (a *Accessors) TopDirectorsByRating(ctx context.Context) ([]model.ViewRow, error) {
	return a.Fetch(ctx, views.TopDirectorsRated)
}

// TopDirectorsByRuntime reads the directors with the longest average runtime.
func (a *Accessors) TopDirectorsByRuntime(ctx context.Context) ([]model.ViewRow, error) {
	return a.Fetch(ctx, views.TopDirectorsLongestRuntime)
}

// TopActors reads the actors with the most films and their titles.
func (a *Accessors) TopActors(ctx context.Context) ([]model.ViewRow, error) {
	return a.Fetch(ctx, views.TopActorsWithMovies)
}

func toViewRow(def views.Definition, doc bson.M) model.ViewRow {
	row := model.ViewRow{
		Key:    utils.AsString(doc["_id"]),
		Metric: utils.Numeric(doc[def.MetricField]),
	}
	if def.CollectTitles {
		row.Titles = titles(doc["movies"])
	}
	return row
}

func titles(v interface{}) []string {
	var items []interface{}
	switch val := v.(type) {
	case primitive.A:
		items = val
	case []interface{}:
		items = val
	case []string:
		return val
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, utils.AsString(item))
	}
	return out
}

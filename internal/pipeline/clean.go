package pipeline

import (
	"context"
	"time"

	"movie-pipeline/internal/metrics"
	"movie-pipeline/internal/model"
	"movie-pipeline/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// RequiredFields must be present before any other check runs.
var RequiredFields = []string{"title", "year", "external_id"}

// CleanResult is the valid subset of a batch plus the rejection report.
type CleanResult struct {
	Movies []model.Movie
	// Records are the cleaned records behind Movies, in the same order.
	Records []model.RawRecord
	Report  model.CleanReport
}

// Cleaner reduces raw batches to valid movies.
type Cleaner struct {
	ListDelimiter string
	Validators    []FieldValidator

	validate *validator.Validate
	log      logrus.FieldLogger
	metrics  *metrics.Recorder
}

// CleanerOption customizes a Cleaner
type CleanerOption func(*Cleaner)

// WithClock sets the clock used for the year upper bound.
func WithClock(now func() time.Time) CleanerOption {
	return func(c *Cleaner) {
		for i, v := range c.Validators {
			if y, ok := v.(YearRange); ok {
				y.Now = now
				c.Validators[i] = y
			}
		}
	}
}

// WithListDelimiter sets the separator of directors, writers and cast.
func WithListDelimiter(d string) CleanerOption {
	return func(c *Cleaner) {
		if d != "" {
			c.ListDelimiter = d
		}
	}
}

// NewCleaner builds a cleaner with the default validator sequence:
// year, external id, runtime, rating.
func NewCleaner(log logrus.FieldLogger, rec *metrics.Recorder, opts ...CleanerOption) *Cleaner {
	if rec == nil {
		rec = metrics.NewRecorder(nil)
	}
	c := &Cleaner{
		ListDelimiter: DefaultListDelimiter,
		Validators:    []FieldValidator{NewYearRange(), ExternalID{}, Runtime{}, Rating{}},
		validate:      validator.New(),
		log:           log,
		metrics:       rec,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean applies every rule in order, each on the output of the previous one.
// Rejections are reported, not returned; only a year that cannot be coerced
// fails the batch.
func (c *Cleaner) Clean(ctx context.Context, batch []model.RawRecord) (CleanResult, error) {
	report := model.CleanReport{Input: len(batch)}

	records := make([]model.RawRecord, 0, len(batch))
	for _, rec := range batch {
		fields := applyTransformations(rec.Fields, normalizeFieldNames, trimStrings)
		records = append(records, model.RawRecord{Source: rec.Source, Index: rec.Index, Fields: fields})
	}

	stage := func(name string, fn func([]model.RawRecord) ([]model.RawRecord, int)) {
		in := len(records)
		records, _ = fn(records)
		rejected := in - len(records)
		report.Add(name, in, rejected)
		c.metrics.Rejected(name, rejected)
		if rejected > 0 {
			c.log.WithFields(logrus.Fields{"stage": name, "in": in, "rejected": rejected}).Info("Records rejected")
		}
	}

	stage("required", func(b []model.RawRecord) ([]model.RawRecord, int) {
		return RequireFields(b, RequiredFields...)
	})

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return CleanResult{}, err
		}
		if err := coerceYear(rec); err != nil {
			c.log.WithError(err).Error("Year coercion failed, aborting batch")
			return CleanResult{}, err
		}
	}

	stage("duplicate", dedupByExternalID)

	split := splitLists(c.ListDelimiter)
	for i := range records {
		records[i].Fields = split(records[i].Fields)
	}

	stage("missing", DropIncomplete)
	for _, fv := range c.Validators {
		fv := fv
		stage(fv.Stage(), func(b []model.RawRecord) ([]model.RawRecord, int) {
			return FilterField(b, fv)
		})
	}

	var movies []model.Movie
	stage("schema", func(b []model.RawRecord) ([]model.RawRecord, int) {
		kept := make([]model.RawRecord, 0, len(b))
		for _, rec := range b {
			if !utils.IsNumeric(rec.Fields["runtime"]) || !utils.IsNumeric(rec.Fields["rating"]) {
				continue
			}
			m := toMovie(rec.Fields)
			if err := c.validate.Struct(m); err != nil {
				c.log.WithFields(logrus.Fields{"source": rec.Source, "index": rec.Index}).WithError(err).Debug("Movie failed schema check")
				continue
			}
			movies = append(movies, m)
			kept = append(kept, rec)
		}
		return kept, len(b) - len(kept)
	})

	report.Output = len(movies)
	c.metrics.Records("cleaned", len(movies))
	c.log.WithFields(logrus.Fields{
		"input":    report.Input,
		"output":   report.Output,
		"rejected": report.Rejected(),
	}).Info("Cleaning summary")

	return CleanResult{Movies: movies, Records: records, Report: report}, nil
}

// dedupByExternalID keeps the first record of every external id.
func dedupByExternalID(batch []model.RawRecord) ([]model.RawRecord, int) {
	seen := make(map[string]bool, len(batch))
	kept := make([]model.RawRecord, 0, len(batch))
	for _, rec := range batch {
		id := utils.AsString(rec.Fields["external_id"])
		if seen[id] {
			continue
		}
		seen[id] = true
		kept = append(kept, rec)
	}
	return kept, len(batch) - len(kept)
}

func toMovie(rec model.GenericRecord) model.Movie {
	year, _ := utils.AsInt(rec["year"])
	return model.Movie{
		Title:        utils.AsString(rec["title"]),
		Year:         year,
		Summary:      utils.AsString(rec["summary"]),
		ShortSummary: utils.AsString(rec["short_summary"]),
		ExternalID:   utils.AsString(rec["external_id"]),
		Runtime:      utils.Numeric(rec["runtime"]),
		TrailerURL:   utils.AsString(rec["trailer_url"]),
		Rating:       utils.Numeric(rec["rating"]),
		PosterURL:    utils.AsString(rec["poster_url"]),
		Directors:    names(rec["directors"]),
		Writers:      names(rec["writers"]),
		Cast:         names(rec["cast"]),
	}
}

func names(v interface{}) []string {
	if list, ok := v.([]string); ok {
		return list
	}
	return []string{}
}

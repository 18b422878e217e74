package pipeline

import (
	"math"
	"regexp"
	"sort"
	"time"

	"movie-pipeline/internal/model"
	"movie-pipeline/pkg/utils"
)

// MinYear is the earliest accepted release year.
const MinYear = 1888

var externalIDPattern = regexp.MustCompile(`^tt\d{7}$`)

// FieldValidator is a rule over a single field.
type FieldValidator interface {
	// Stage names the validator in rejection reports
	Stage() string
	Field() string
	Valid(v interface{}) bool
}

// FilterField keeps records that lack the field or hold a valid value, and
// counts the ones removed.
func FilterField(batch []model.RawRecord, fv FieldValidator) ([]model.RawRecord, int) {
	kept := make([]model.RawRecord, 0, len(batch))
	rejected := 0
	for _, rec := range batch {
		v, ok := rec.Fields[fv.Field()]
		if ok && !fv.Valid(v) {
			rejected++
			continue
		}
		kept = append(kept, rec)
	}
	return kept, rejected
}

// YearRange accepts years in [Min, current year]. The upper bound is read
// from Now on every check.
type YearRange struct {
	Min int
	Now func() time.Time
}

// NewYearRange builds the default range on the wall clock.
func NewYearRange() YearRange {
	return YearRange{Min: MinYear, Now: time.Now}
}

func (YearRange) Stage() string { return "year" }
func (YearRange) Field() string { return "year" }

func (y YearRange) Valid(v interface{}) bool {
	year, ok := utils.AsInt(v)
	if !ok || !utils.IsNumeric(v) {
		return false
	}
	now := time.Now
	if y.Now != nil {
		now = y.Now
	}
	return year >= y.Min && year <= now().Year()
}

// ExternalID accepts "tt" followed by exactly seven digits.
type ExternalID struct{}

func (ExternalID) Stage() string { return "external_id" }
func (ExternalID) Field() string { return "external_id" }

func (ExternalID) Valid(v interface{}) bool {
	s, ok := v.(string)
	return ok && externalIDPattern.MatchString(s)
}

// Runtime accepts numeric values greater than zero.
type Runtime struct{}

func (Runtime) Stage() string { return "runtime" }
func (Runtime) Field() string { return "runtime" }

func (Runtime) Valid(v interface{}) bool {
	return utils.IsNumeric(v) && utils.Numeric(v) > 0
}

// Rating accepts numeric values in [0, 10].
type Rating struct{}

func (Rating) Stage() string { return "rating" }
func (Rating) Field() string { return "rating" }

func (Rating) Valid(v interface{}) bool {
	if !utils.IsNumeric(v) {
		return false
	}
	r := utils.Numeric(v)
	return !math.IsNaN(r) && r >= 0 && r <= 10
}

// RequireFields drops records where any of the fields is absent or missing.
func RequireFields(batch []model.RawRecord, fields ...string) ([]model.RawRecord, int) {
	kept := make([]model.RawRecord, 0, len(batch))
	for _, rec := range batch {
		if complete(rec.Fields, fields) {
			kept = append(kept, rec)
		}
	}
	return kept, len(batch) - len(kept)
}

// DropIncomplete drops records missing any column seen in the batch.
func DropIncomplete(batch []model.RawRecord) ([]model.RawRecord, int) {
	return RequireFields(batch, Columns(batch)...)
}

// Columns returns the sorted union of field names in the batch.
func Columns(batch []model.RawRecord) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, rec := range batch {
		for k := range rec.Fields {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func complete(rec model.GenericRecord, fields []string) bool {
	for _, f := range fields {
		v, ok := rec[f]
		if !ok || utils.IsMissing(v) {
			return false
		}
	}
	return true
}

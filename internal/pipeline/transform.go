package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"movie-pipeline/internal/model"
	"movie-pipeline/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/text/unicode/norm"
)

// ErrYearCoercion fails a whole batch when a retained year is not an integer.
var ErrYearCoercion = errors.New("year cannot be coerced to an integer")

// DefaultListDelimiter separates directors, writers and cast in source files.
const DefaultListDelimiter = ","

// Transformation rewrites one record.
type Transformation func(model.GenericRecord) model.GenericRecord

// fieldAliases maps normalized source headers onto canonical field names.
var fieldAliases = map[string]string{
	"imdb":            "external_id",
	"imdb_id":         "external_id",
	"imdbid":          "external_id",
	"director":        "directors",
	"writer":          "writers",
	"actors":          "cast",
	"youtube_trailer": "trailer_url",
	"trailer":         "trailer_url",
	"movie_poster":    "poster_url",
	"poster":          "poster_url",
	"score":           "rating",
}

// listFields are split into lists of names.
var listFields = []string{"directors", "writers", "cast"}

// applyTransformations applies transformations in order to a copy of rec.
func applyTransformations(rec model.GenericRecord, transformations ...Transformation) model.GenericRecord {
	result := rec.Clone()
	for _, t := range transformations {
		result = t(result)
	}
	return result
}

// CanonicalField trims a header, lowercases it, joins words with underscores
// and resolves known aliases.
func CanonicalField(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, `"`, "")
	key = strings.Join(strings.FieldsFunc(key, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
	if alias, ok := fieldAliases[key]; ok {
		return alias
	}
	return key
}

// normalizeFieldNames renames every field to its canonical name. When two
// source fields collapse to one name, the first non-missing value in key
// order wins.
func normalizeFieldNames(rec model.GenericRecord) model.GenericRecord {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(model.GenericRecord, len(rec))
	for _, k := range keys {
		name := CanonicalField(k)
		if existing, ok := out[name]; ok && !utils.IsMissing(existing) {
			continue
		}
		out[name] = rec[k]
	}
	return out
}

// trimStrings trims whitespace from all string fields
func trimStrings(rec model.GenericRecord) model.GenericRecord {
	for key, val := range rec {
		if str, ok := val.(string); ok {
			rec[key] = strings.TrimSpace(str)
		}
	}
	return rec
}

// splitLists turns delimited name fields into trimmed lists. Directors become
// an ordered set. Missing values are left for the completeness check.
func splitLists(delimiter string) Transformation {
	return func(rec model.GenericRecord) model.GenericRecord {
		for _, field := range listFields {
			v, ok := rec[field]
			if !ok || utils.IsMissing(v) {
				continue
			}
			names := SplitNames(v, delimiter)
			if field == "directors" {
				names = uniqueNames(names)
			}
			rec[field] = names
		}
		return rec
	}
}

// SplitNames splits a delimited string, or reads a list, into trimmed,
// NFC-normalized, non-empty names.
func SplitNames(v interface{}, delimiter string) []string {
	var parts []string
	switch val := v.(type) {
	case string:
		parts = strings.Split(val, delimiter)
	case []string:
		parts = val
	case []interface{}:
		for _, p := range val {
			parts = append(parts, utils.AsString(p))
		}
	case primitive.A:
		for _, p := range val {
			parts = append(parts, utils.AsString(p))
		}
	default:
		parts = []string{utils.AsString(val)}
	}

	names := make([]string, 0, len(parts))
	for _, p := range parts {
		p = norm.NFC.String(strings.TrimSpace(p))
		if p != "" {
			names = append(names, p)
		}
	}
	return names
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// coerceYear rewrites the year as an int.
func coerceYear(rec model.RawRecord) error {
	v := rec.Fields["year"]
	year, ok := utils.AsInt(v)
	if !ok {
		return fmt.Errorf("%w: %s record %d has year %v", ErrYearCoercion, rec.Source, rec.Index, v)
	}
	rec.Fields["year"] = year
	return nil
}

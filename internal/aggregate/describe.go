package aggregate

import (
	"context"
	"fmt"
	"math"

	"movie-pipeline/internal/model"
	"movie-pipeline/internal/store"
	"movie-pipeline/pkg/utils"

	"go.mongodb.org/mongo-driver/bson"
)

// DescribedFields are the numeric movie fields summarized by Describe.
var DescribedFields = []string{"year", "runtime", "rating"}

// Describe computes count, mean, sample standard deviation, min and max of
// the numeric fields of a collection. Non-numeric values are ignored.
func Describe(ctx context.Context, s store.Store, collection string, fields ...string) ([]model.FieldStats, error) {
	if len(fields) == 0 {
		fields = DescribedFields
	}
	docs, err := s.Find(ctx, collection, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", collection, err)
	}

	stats := make([]model.FieldStats, 0, len(fields))
	for _, field := range fields {
		var values []float64
		for _, doc := range docs {
			if v := doc[field]; utils.IsNumeric(v) && !utils.IsMissing(v) {
				values = append(values, utils.Numeric(v))
			}
		}
		stats = append(stats, summarize(field, values))
	}
	return stats, nil
}

func summarize(field string, values []float64) model.FieldStats {
	fs := model.FieldStats{Field: field, Count: len(values)}
	if len(values) == 0 {
		return fs
	}

	fs.Min, fs.Max = values[0], values[0]
	sum := 0.0
	for _, v := range values {
		sum += v
		fs.Min = math.Min(fs.Min, v)
		fs.Max = math.Max(fs.Max, v)
	}
	fs.Mean = sum / float64(len(values))

	if len(values) > 1 {
		sq := 0.0
		for _, v := range values {
			sq += (v - fs.Mean) * (v - fs.Mean)
		}
		fs.Std = math.Sqrt(sq / float64(len(values)-1))
	}
	return fs
}

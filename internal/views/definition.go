// Package views declares the aggregation views computed over the movies
// collection. A Definition compiles to a MongoDB aggregation pipeline and can
// also be evaluated in process over plain documents.
package views

import (
	"fmt"

	"movie-pipeline/internal/model"

	"go.mongodb.org/mongo-driver/bson"
)

// Aggregate is the metric function of a view
type Aggregate string

const (
	AggCount Aggregate = "count"
	AggAvg   Aggregate = "avg"
)

// View names, in rebuild order.
const (
	TopDirectorsMostFilms      = "top_5_directors_most_films"
	TopDirectorsRated          = "top_5_directors_rated"
	TopDirectorsLongestRuntime = "top_5_directors_longest_avg_runtime"
	TopActorsWithMovies        = "top_15_actors_with_movies"
)

// DefaultCastDelimiter separates actors when cast is stored as one string.
const DefaultCastDelimiter = "|"

// Definition is a group -> aggregate -> sort -> limit view over a collection.
type Definition struct {
	Name   string
	Source string

	// GroupField is an array (or scalar) field unwound before grouping.
	GroupField string
	// SplitDelimiter, when set, normalizes GroupField from a delimited string
	// or a list of delimited strings into a trimmed list of distinct
	// non-empty entries.
	SplitDelimiter string

	Aggregate   Aggregate
	ValueField  string // averaged field, unused for count
	MetricField string // output field name

	CollectTitles bool
	Limit         int
}

// Defaults returns the four views in their fixed rebuild order.
func Defaults(castDelimiter string) []Definition {
	if castDelimiter == "" {
		castDelimiter = DefaultCastDelimiter
	}
	return []Definition{
		{
			Name:        TopDirectorsMostFilms,
			Source:      model.CollectionMovies,
			GroupField:  "directors",
			Aggregate:   AggCount,
			MetricField: "film_count",
			Limit:       5,
		},
		{
			Name:        TopDirectorsRated,
			Source:      model.CollectionMovies,
			GroupField:  "directors",
			Aggregate:   AggAvg,
			ValueField:  "rating",
			MetricField: "average_rating",
			Limit:       5,
		},
		{
			Name:        TopDirectorsLongestRuntime,
			Source:      model.CollectionMovies,
			GroupField:  "directors",
			Aggregate:   AggAvg,
			ValueField:  "runtime",
			MetricField: "average_runtime",
			Limit:       5,
		},
		{
			Name:           TopActorsWithMovies,
			Source:         model.CollectionMovies,
			GroupField:     "cast",
			SplitDelimiter: castDelimiter,
			Aggregate:      AggCount,
			MetricField:    "film_count",
			CollectTitles:  true,
			Limit:          15,
		},
	}
}

// Find returns the definition with the given name.
func Find(defs []Definition, name string) (Definition, bool) {
	for _, d := range defs {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Pipeline compiles the definition into aggregation stages.
func (d Definition) Pipeline() bson.A {
	field := "$" + d.GroupField
	stages := bson.A{}

	if d.SplitDelimiter != "" {
		asList := bson.D{{Key: "$switch", Value: bson.D{
			{Key: "branches", Value: bson.A{
				bson.D{
					{Key: "case", Value: bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: field}}, "string"}}}},
					{Key: "then", Value: bson.A{field}},
				},
				bson.D{
					{Key: "case", Value: bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: field}}, "array"}}}},
					{Key: "then", Value: field},
				},
			}},
			{Key: "default", Value: bson.A{}},
		}}}
		// every string entry is split again, so a list of delimited strings
		// flattens to one list of names
		flattened := bson.D{{Key: "$reduce", Value: bson.D{
			{Key: "input", Value: asList},
			{Key: "initialValue", Value: bson.A{}},
			{Key: "in", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				"$$value",
				bson.D{{Key: "$cond", Value: bson.A{
					bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$$this"}}, "string"}}},
					bson.D{{Key: "$split", Value: bson.A{"$$this", d.SplitDelimiter}}},
					bson.A{},
				}}},
			}}}},
		}}}
		stages = append(stages,
			bson.D{{Key: "$project", Value: bson.D{
				{Key: "title", Value: 1},
				{Key: d.GroupField, Value: flattened},
			}}},
			bson.D{{Key: "$project", Value: bson.D{
				{Key: "title", Value: 1},
				{Key: d.GroupField, Value: bson.D{{Key: "$setUnion", Value: bson.A{
					bson.D{{Key: "$filter", Value: bson.D{
						{Key: "input", Value: bson.D{{Key: "$map", Value: bson.D{
							{Key: "input", Value: field},
							{Key: "as", Value: "entry"},
							{Key: "in", Value: bson.D{{Key: "$cond", Value: bson.A{
								bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$$entry"}}, "string"}}},
								bson.D{{Key: "$trim", Value: bson.D{{Key: "input", Value: "$$entry"}}}},
								"",
							}}}},
						}}}},
						{Key: "as", Value: "entry"},
						{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$entry", ""}}}},
					}}},
					bson.A{},
				}}}},
			}}},
		)
	}

	stages = append(stages, bson.D{{Key: "$unwind", Value: field}})

	group := bson.D{{Key: "_id", Value: field}}
	switch d.Aggregate {
	case AggAvg:
		group = append(group, bson.E{Key: d.MetricField, Value: bson.D{{Key: "$avg", Value: "$" + d.ValueField}}})
	default:
		group = append(group, bson.E{Key: d.MetricField, Value: bson.D{{Key: "$sum", Value: 1}}})
	}
	if d.CollectTitles {
		group = append(group, bson.E{Key: "movies", Value: bson.D{{Key: "$push", Value: "$title"}}})
	}

	stages = append(stages,
		bson.D{{Key: "$group", Value: group}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: d.MetricField, Value: -1}, {Key: "_id", Value: 1}}}},
		bson.D{{Key: "$limit", Value: d.Limit}},
	)
	return stages
}

// String is used in logs
func (d Definition) String() string {
	return fmt.Sprintf("%s(%s %s by %s, limit %d)", d.Name, d.Aggregate, d.MetricField, d.GroupField, d.Limit)
}

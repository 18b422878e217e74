package views

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"movie-pipeline/pkg/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AggregatedResult is one group produced by Evaluate
type AggregatedResult struct {
	GroupValue  interface{}
	Metrics     map[string]interface{}
	RecordCount int
	Titles      []string
}

// Evaluate runs the definition over decoded documents the way the compiled
// pipeline runs on the server. Documents are visited in the given order.
func (d Definition) Evaluate(docs []bson.M) []bson.M {
	groups := make(map[string]*AggregatedResult)
	var order []string

	for _, doc := range docs {
		for _, member := range d.groupMembers(doc[d.GroupField]) {
			key := fmt.Sprintf("%T:%v", member, member)
			result, exists := groups[key]
			if !exists {
				result = &AggregatedResult{
					GroupValue: member,
					Metrics:    make(map[string]interface{}),
				}
				groups[key] = result
				order = append(order, key)
			}
			if d.Aggregate == AggAvg {
				updateAverageMetric(result, d.ValueField, doc[d.ValueField])
			}
			if d.CollectTitles {
				result.Titles = append(result.Titles, utils.AsString(doc["title"]))
			}
			result.RecordCount++
		}
	}

	results := make([]AggregatedResult, 0, len(order))
	for _, key := range order {
		result := groups[key]
		switch d.Aggregate {
		case AggAvg:
			result.Metrics[d.MetricField] = result.Metrics["avg_"+d.ValueField]
		default:
			result.Metrics[d.MetricField] = result.RecordCount
		}
		results = append(results, *result)
	}

	results = SortAggregatedResults(results, d.MetricField)
	if d.Limit > 0 && len(results) > d.Limit {
		results = results[:d.Limit]
	}

	out := make([]bson.M, 0, len(results))
	for _, r := range results {
		row := bson.M{"_id": r.GroupValue, d.MetricField: r.Metrics[d.MetricField]}
		if d.CollectTitles {
			row["movies"] = r.Titles
		}
		out = append(out, row)
	}
	return out
}

// groupMembers mirrors $unwind, plus the cast normalization when the
// definition splits its group field.
func (d Definition) groupMembers(v interface{}) []interface{} {
	if d.SplitDelimiter == "" {
		switch val := v.(type) {
		case nil:
			return nil
		case primitive.A:
			return []interface{}(val)
		case []interface{}:
			return val
		case []string:
			return stringsToAny(val)
		default:
			return []interface{}{val}
		}
	}

	var entries []interface{}
	switch val := v.(type) {
	case string:
		entries = []interface{}{val}
	case primitive.A:
		entries = []interface{}(val)
	case []interface{}:
		entries = val
	case []string:
		entries = stringsToAny(val)
	default:
		return nil
	}

	seen := make(map[string]bool)
	var members []interface{}
	for _, e := range entries {
		s, ok := e.(string)
		if !ok {
			continue
		}
		for _, name := range strings.Split(s, d.SplitDelimiter) {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			members = append(members, name)
		}
	}
	return members
}

// updateAverageMetric keeps a running average. Non-numeric values are ignored.
func updateAverageMetric(result *AggregatedResult, field string, value interface{}) {
	if !utils.IsNumeric(value) {
		return
	}
	num := utils.Numeric(value)
	if math.IsNaN(num) {
		return
	}
	sumKey := "sum_" + field
	countKey := "count_" + field

	sum, _ := result.Metrics[sumKey].(float64)
	count, _ := result.Metrics[countKey].(int)
	sum += num
	count++
	result.Metrics[sumKey] = sum
	result.Metrics[countKey] = count
	result.Metrics["avg_"+field] = sum / float64(count)
}

// SortAggregatedResults orders results by a metric descending, then by group
// value ascending. Missing metrics sort last.
func SortAggregatedResults(results []AggregatedResult, sortBy string) []AggregatedResult {
	sort.SliceStable(results, func(i, j int) bool {
		iVal, iOk := metricValue(results[i].Metrics[sortBy])
		jVal, jOk := metricValue(results[j].Metrics[sortBy])

		if iOk != jOk {
			return iOk
		}
		if iOk && iVal != jVal {
			return iVal > jVal
		}
		return fmt.Sprintf("%v", results[i].GroupValue) < fmt.Sprintf("%v", results[j].GroupValue)
	})
	return results
}

func metricValue(v interface{}) (float64, bool) {
	if !utils.IsNumeric(v) {
		return 0, false
	}
	return utils.Numeric(v), true
}

func stringsToAny(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

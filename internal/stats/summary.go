// Package stats summarises query outputs and writes run artifacts.
package stats

import (
	"math"

	"spatialengine/internal/model"
)

// Summarize reports count, mean, population standard deviation and range.
// NaN values are skipped.
func Summarize(query string, values []float64) model.QuerySummary {
	s := model.QuerySummary{Query: query}
	var sum float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if s.Count == 0 || v < s.Min {
			s.Min = v
		}
		if s.Count == 0 || v > s.Max {
			s.Max = v
		}
		sum += v
		s.Count++
	}
	if s.Count == 0 {
		return s
	}
	s.Mean = sum / float64(s.Count)

	var sq float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		d := v - s.Mean
		sq += d * d
	}
	s.StdDev = math.Sqrt(sq / float64(s.Count))
	return s
}

// SummarizeInts is Summarize for integer-valued queries such as counts.
func SummarizeInts(query string, values []int) model.QuerySummary {
	f := make([]float64, len(values))
	for i, v := range values {
		f[i] = float64(v)
	}
	return Summarize(query, f)
}

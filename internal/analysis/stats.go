package analysis

import (
	"math"
	"sort"
)

// AggregateStats summarizes changepoint results across the repeats of one
// scenario run (spec.md §4.10 "Aggregate statistics over repeats").
type AggregateStats struct {
	NSamples   int
	Mean       float64
	Stddev     float64 // population standard deviation
	Median     float64
	Min        float64
	Max        float64
	HasMissing bool
}

// Aggregate reduces one changepoint-in-microseconds-or-missing result per
// repeat into AggregateStats. Missing trials (nil) are excluded from the
// numeric summary but flip HasMissing.
func Aggregate(changepointsUs []*uint32) (AggregateStats, bool) {
	values := make([]float64, 0, len(changepointsUs))
	hasMissing := false
	for _, cp := range changepointsUs {
		if cp == nil {
			hasMissing = true
			continue
		}
		values = append(values, float64(*cp)/1000.0) // microseconds to milliseconds
	}
	if len(values) == 0 {
		return AggregateStats{HasMissing: hasMissing}, false
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	stddev := math.Sqrt(sqDiff / float64(len(values)))

	median := medianOf(sorted)

	return AggregateStats{
		NSamples:   len(values),
		Mean:       mean,
		Stddev:     stddev,
		Median:     median,
		Min:        sorted[0],
		Max:        sorted[len(sorted)-1],
		HasMissing: hasMissing,
	}, true
}

func medianOf(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

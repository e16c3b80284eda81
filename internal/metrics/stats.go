package metrics

import (
	"math"
	"sort"

	"github.com/malekgatoufi/mistralmeter/internal/models"
)

// Mean computes the arithmetic mean of a float64 slice.
// Returns 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev computes the sample standard deviation (Bessel's correction).
// Returns 0 for fewer than 2 values.
func StdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// Percentile computes the p-th percentile (0 < p <= 100) of values using the
// nearest-rank method over the sorted sample: the value at rank
// ceil(p/100 * n). No interpolation, so results are deterministic.
// Returns 0 for empty input.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := int(math.Ceil(p / 100.0 * float64(n)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}

// Describe computes descriptive statistics over a non-empty sample.
// Median is the nearest-rank p50, so stats.Median == stats.P50 always.
// CoefficientOfVariation is set only when the mean is nonzero.
func Describe(values []float64) models.VarianceStats {
	if len(values) == 0 {
		return models.VarianceStats{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	m := Mean(values)
	sd := StdDev(values)

	stats := models.VarianceStats{
		Mean:   m,
		StdDev: sd,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P25:    Percentile(sorted, 25),
		P50:    Percentile(sorted, 50),
		P75:    Percentile(sorted, 75),
		P95:    Percentile(sorted, 95),
	}
	stats.Median = stats.P50

	if m != 0 {
		cv := sd / m
		stats.CoefficientOfVariation = &cv
	}
	return stats
}

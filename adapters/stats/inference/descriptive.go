package inference

import (
	"math"

	"github.com/montanaflynn/stats"

	"gopattern/domain/core"
)

// nearZero is the standard deviation below which a sample is treated as constant.
const nearZero = 1e-10

// MeanSD returns the mean and sample standard deviation.
func MeanSD(values []float64) (float64, float64, error) {
	if len(values) < 2 {
		return 0, 0, core.NewInsufficientDataError("sample", len(values), 2)
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0, 0, err
	}
	sd, err := stats.StandardDeviationSample(values)
	if err != nil {
		return 0, 0, err
	}
	return mean, sd, nil
}

// Mean returns the arithmetic mean, or NaN for an empty sample.
func Mean(values []float64) float64 {
	m, err := stats.Mean(values)
	if err != nil {
		return math.NaN()
	}
	return m
}

// Percentile returns the p-th percentile (0 < p <= 100).
func Percentile(values []float64, p float64) (float64, error) {
	if len(values) == 0 {
		return math.NaN(), core.NewInsufficientDataError("percentile sample", 0, 1)
	}
	return stats.Percentile(values, p)
}

// Cutpoints returns the distinct interior quantile edges splitting values into `buckets`
// groups of roughly equal size. Fewer edges come back when values are heavily tied or the
// sample is too small to place a quantile, and none when every value is equal.
func Cutpoints(values []float64, buckets int) ([]float64, error) {
	if buckets < 2 {
		return nil, nil
	}
	lo, err := stats.Min(values)
	if err != nil {
		return nil, core.NewInsufficientDataError("percentile sample", 0, 1)
	}
	hi, err := stats.Max(values)
	if err != nil {
		return nil, core.NewInsufficientDataError("percentile sample", 0, 1)
	}
	if lo == hi {
		return nil, nil
	}
	n := float64(len(values))
	edges := make([]float64, 0, buckets-1)
	for i := 1; i < buckets; i++ {
		p := 100 * float64(i) / float64(buckets)
		// quantiles ranked below the first observation have no value
		if p/100*n < 1 {
			continue
		}
		v, err := Percentile(values, p)
		if err != nil {
			return nil, err
		}
		if v >= hi {
			break
		}
		if len(edges) == 0 || v > edges[len(edges)-1] {
			edges = append(edges, v)
		}
	}
	return edges, nil
}

// BucketOf places v into the bucket defined by sorted edges: bucket i holds
// edges[i-1] < v <= edges[i], with the open-ended first and last buckets.
func BucketOf(v float64, edges []float64) int {
	for i, e := range edges {
		if v <= e {
			return i
		}
	}
	return len(edges)
}

// Sign returns -1, 0 or +1.
func Sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

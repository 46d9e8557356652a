package inference

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"gopattern/domain/core"
)

// CorrelationResult holds a Pearson correlation and its significance.
type CorrelationResult struct {
	N      int
	R      float64
	T      float64
	PValue float64
}

// Pearson computes the correlation of x and y with a t-based two-sided p-value.
func Pearson(x, y []float64) (CorrelationResult, error) {
	if len(x) != len(y) {
		return CorrelationResult{}, core.NewSchemaError("pearson", "x and y lengths differ")
	}
	if len(x) < 3 {
		return CorrelationResult{}, core.NewInsufficientDataError("correlation sample", len(x), 3)
	}
	if StdDev(x) < nearZero || StdDev(y) < nearZero {
		return CorrelationResult{}, core.ErrZeroVariance
	}

	r := stat.Correlation(x, y, nil)
	r = math.Max(-1, math.Min(1, r))
	n := float64(len(x))
	df := n - 2

	res := CorrelationResult{N: len(x), R: r}
	if 1-r*r < nearZero {
		res.T = math.Copysign(math.Inf(1), r)
		res.PValue = 0
		return res, nil
	}
	res.T = r * math.Sqrt(df/(1-r*r))
	res.PValue = TwoSidedP(res.T, df)
	return res, nil
}

// StdDev returns the sample standard deviation, 0 for fewer than two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// FisherZDifference tests whether two independent correlations differ.
func FisherZDifference(r1 float64, n1 int, r2 float64, n2 int) (z float64, p float64, err error) {
	if n1 <= 3 {
		return 0, 1, core.NewInsufficientDataError("correlation group 1", n1, 4)
	}
	if n2 <= 3 {
		return 0, 1, core.NewInsufficientDataError("correlation group 2", n2, 4)
	}
	z1 := math.Atanh(clampR(r1))
	z2 := math.Atanh(clampR(r2))
	se := math.Sqrt(1/float64(n1-3) + 1/float64(n2-3))
	z = (z1 - z2) / se
	p = 2 * distuv.UnitNormal.CDF(-math.Abs(z))
	return z, clamp01(p), nil
}

func clampR(r float64) float64 {
	const limit = 1 - 1e-12
	return math.Max(-limit, math.Min(limit, r))
}

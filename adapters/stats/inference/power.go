package inference

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Power approximates the power of a two-sided test at level alpha for a standardized
// effect observed on n observations: Φ(|d|·√n − z_{1−α/2}).
func Power(effectSize float64, n int, alpha float64) float64 {
	if n <= 0 || alpha <= 0 || alpha >= 1 || math.IsNaN(effectSize) {
		return 0
	}
	zCrit := distuv.UnitNormal.Quantile(1 - alpha/2)
	return distuv.UnitNormal.CDF(math.Abs(effectSize)*math.Sqrt(float64(n)) - zCrit)
}

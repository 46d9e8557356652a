package regression

import (
	"math"

	"gopattern/adapters/stats/inference"
)

// Comparison is the cross-validated comparison of a base model against the same model
// with extra terms appended, scored on identical folds.
type Comparison struct {
	BaseScores  []float64
	AugScores   []float64
	BaseMean    float64
	AugMean     float64
	Improvement float64
	T           float64
	DF          float64
	PValue      float64
	AddedCoef   float64 // coefficient of the last augmented column, fitted on all rows
	N           int
}

// EffectSize returns Cohen's f for the added term, signed by its coefficient.
func (c Comparison) EffectSize() float64 {
	if c.Improvement <= 0 {
		return 0
	}
	residual := math.Max(1-c.AugMean, 1e-6)
	f := math.Sqrt(c.Improvement / residual)
	if c.AddedCoef < 0 {
		return -f
	}
	return f
}

// CompareNested scores base and augmented designs on the same folds and tests the per-fold
// R² distributions with Welch's t-test. All columns must be complete for every row.
func CompareNested(base, augmented [][]float64, y []float64, folds [][]int, lambda float64) (Comparison, error) {
	n := len(y)
	cmp := Comparison{
		BaseScores: make([]float64, len(folds)),
		AugScores:  make([]float64, len(folds)),
		N:          n,
	}

	for i, test := range folds {
		train := Complement(n, test)

		baseModel, err := FitRidge(base, y, train, lambda)
		if err != nil {
			return Comparison{}, err
		}
		augModel, err := FitRidge(augmented, y, train, lambda)
		if err != nil {
			return Comparison{}, err
		}
		if cmp.BaseScores[i], err = baseModel.RSquared(base, y, test); err != nil {
			return Comparison{}, err
		}
		if cmp.AugScores[i], err = augModel.RSquared(augmented, y, test); err != nil {
			return Comparison{}, err
		}
	}

	cmp.BaseMean = inference.Mean(cmp.BaseScores)
	cmp.AugMean = inference.Mean(cmp.AugScores)
	cmp.Improvement = cmp.AugMean - cmp.BaseMean

	tt, err := inference.WelchTTest(cmp.AugScores, cmp.BaseScores)
	if err != nil {
		return Comparison{}, err
	}
	cmp.T, cmp.DF, cmp.PValue = tt.T, tt.DF, tt.PValue

	full, err := FitRidge(augmented, y, Seq(n), lambda)
	if err != nil {
		return Comparison{}, err
	}
	cmp.AddedCoef = full.Coef[len(full.Coef)-1]
	return cmp, nil
}

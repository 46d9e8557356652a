package regression

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"gopattern/domain/core"
)

// maxCondition bounds the condition number of the penalized normal equations.
const maxCondition = 1e12

// RidgeModel is a linear model with an unpenalized intercept.
type RidgeModel struct {
	Intercept float64
	Coef      []float64
}

// FitRidge fits y ~ X on the given rows. X is column-major; lambda penalizes every
// coefficient except the intercept.
func FitRidge(x [][]float64, y []float64, rows []int, lambda float64) (*RidgeModel, error) {
	p := len(x)
	n := len(rows)
	if p == 0 {
		return nil, fmt.Errorf("%w: no predictors", core.ErrSingularMatrix)
	}
	if n < p+2 {
		return nil, fmt.Errorf("%w: %d rows for %d predictors", core.ErrDegenerateFold, n, p)
	}

	means := make([]float64, p)
	for j := range x {
		for _, r := range rows {
			means[j] += x[j][r]
		}
		means[j] /= float64(n)
	}
	yMean := 0.0
	for _, r := range rows {
		yMean += y[r]
	}
	yMean /= float64(n)

	design := mat.NewDense(n, p, nil)
	target := mat.NewVecDense(n, nil)
	for i, r := range rows {
		for j := range x {
			design.Set(i, j, x[j][r]-means[j])
		}
		target.SetVec(i, y[r]-yMean)
	}

	var gram mat.Dense
	gram.Mul(design.T(), design)
	normal := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := gram.At(i, j)
			if i == j {
				v += lambda
			}
			normal.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(normal); !ok {
		return nil, core.ErrSingularMatrix
	}
	if cond := chol.Cond(); cond > maxCondition {
		return nil, fmt.Errorf("%w: condition number %.3g", core.ErrSingularMatrix, cond)
	}

	var xty mat.VecDense
	xty.MulVec(design.T(), target)
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularMatrix, err)
	}

	model := &RidgeModel{Coef: make([]float64, p), Intercept: yMean}
	for j := 0; j < p; j++ {
		model.Coef[j] = beta.AtVec(j)
		model.Intercept -= model.Coef[j] * means[j]
	}
	return model, nil
}

// Predict returns the fitted value for one row.
func (m *RidgeModel) Predict(x [][]float64, row int) float64 {
	v := m.Intercept
	for j, c := range m.Coef {
		v += c * x[j][row]
	}
	return v
}

// RSquared scores the model on rows: 1 - SS_res/SS_tot around the rows' own mean.
func (m *RidgeModel) RSquared(x [][]float64, y []float64, rows []int) (float64, error) {
	if len(rows) < 2 {
		return 0, fmt.Errorf("%w: %d scoring rows", core.ErrDegenerateFold, len(rows))
	}
	mean := 0.0
	for _, r := range rows {
		mean += y[r]
	}
	mean /= float64(len(rows))

	var ssRes, ssTot float64
	for _, r := range rows {
		d := y[r] - m.Predict(x, r)
		ssRes += d * d
		t := y[r] - mean
		ssTot += t * t
	}
	if ssTot < 1e-12 {
		return 0, fmt.Errorf("%w: constant outcome in scoring rows", core.ErrDegenerateFold)
	}
	return 1 - ssRes/ssTot, nil
}

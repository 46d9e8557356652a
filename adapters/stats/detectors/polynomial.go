package detectors

import (
	"context"
	"fmt"

	"gopattern/adapters/stats/regression"
	"gopattern/domain/discovery"
	"gopattern/internal"
)

// minPolynomialGain is the cross-validated R² improvement a higher power must add.
const minPolynomialGain = 0.01

// PolynomialDetector tests whether x² (and optionally x³) improves on the lower-order fit.
type PolynomialDetector struct {
	logger *internal.Logger
}

func NewPolynomialDetector(logger *internal.Logger) *PolynomialDetector {
	return &PolynomialDetector{logger: logger}
}

func (d *PolynomialDetector) Name() string { return "polynomial" }

func (d *PolynomialDetector) Kind() discovery.CandidateKind { return discovery.KindPolynomialTerm }

// Detect compares [x .. x^(k-1)] against [x .. x^k] for every continuous feature.
func (d *PolynomialDetector) Detect(ctx context.Context, in *Input) []discovery.TestOutcome {
	var outcomes []discovery.TestOutcome
	for _, j := range in.Matrix.ColumnsOfKind(discovery.FeatureContinuous) {
		name := in.Matrix.Names[j]
		for degree := 2; degree <= in.Settings.MaxPolynomialDegree; degree++ {
			degree := degree
			outcome, _ := runModelTest(in, modelTest{
				rule: discovery.PatternRule{
					Kind:     discovery.KindPolynomialTerm,
					Features: []string{name},
					Degree:   degree,
				},
				columns:   []int{j},
				minGain:   minPolynomialGain,
				folds:     in.Settings.ModelCVFolds,
				usePValue: true,
				design: func(xs [][]float64) ([][]float64, [][]float64) {
					return regression.PolynomialDesign(xs[0], degree)
				},
			})
			if outcome.Status == discovery.OutcomeSkipped {
				d.logger.Debug("polynomial %s^%d skipped: %s", name, degree, outcome.Detail)
			}
			if c := outcome.Candidate; c != nil {
				c.Shape = polynomialShape(degree, c.Rule.Direction)
				c.Description = fmt.Sprintf(
					"%s has a %s relationship with the outcome: adding %s^%d lifts cross-validated R² from %.3f to %.3f",
					name, shapeWords(c.Shape), name, degree, c.Metrics["r2_base"], c.Metrics["r2_augmented"])
			}
			outcomes = append(outcomes, outcome)
		}
	}
	return outcomes
}

func polynomialShape(degree, direction int) string {
	if degree == 2 {
		if direction > 0 {
			return discovery.ShapeUShaped
		}
		return discovery.ShapeInverseU
	}
	if direction > 0 {
		return discovery.ShapeSCurveRising
	}
	return discovery.ShapeSCurveFalling
}

func shapeWords(shape string) string {
	switch shape {
	case discovery.ShapeUShaped:
		return "U-shaped"
	case discovery.ShapeInverseU:
		return "inverse-U"
	case discovery.ShapeSCurveRising:
		return "rising S-curve"
	case discovery.ShapeSCurveFalling:
		return "falling S-curve"
	}
	return shape
}

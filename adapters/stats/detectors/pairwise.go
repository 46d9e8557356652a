package detectors

import (
	"context"
	"fmt"

	"gopattern/adapters/stats/regression"
	"gopattern/domain/discovery"
	"gopattern/internal"
)

const minPairwiseGain = 0.02

// PairwiseDetector tests whether x1·x2 improves prediction beyond x1 + x2.
type PairwiseDetector struct {
	logger *internal.Logger
}

func NewPairwiseDetector(logger *internal.Logger) *PairwiseDetector {
	return &PairwiseDetector{logger: logger}
}

func (d *PairwiseDetector) Name() string { return "pairwise" }

func (d *PairwiseDetector) Kind() discovery.CandidateKind { return discovery.KindPairwiseInteraction }

// Detect tests pairs in feature order until the pair budget is spent; the rest are
// reported as skipped.
func (d *PairwiseDetector) Detect(ctx context.Context, in *Input) []discovery.TestOutcome {
	cols := in.Matrix.ColumnsOfKind(discovery.FeatureContinuous, discovery.FeatureBoolean)
	var outcomes []discovery.TestOutcome
	tested := 0
	for a := 0; a < len(cols); a++ {
		for b := a + 1; b < len(cols); b++ {
			i, j := cols[a], cols[b]
			rule := discovery.PatternRule{
				Kind:     discovery.KindPairwiseInteraction,
				Features: []string{in.Matrix.Names[i], in.Matrix.Names[j]},
			}
			if tested >= in.Settings.MaxPairwisePairs {
				outcomes = append(outcomes, discovery.Skipped(rule.Key(), discovery.SkipBudgetExhausted,
					fmt.Sprintf("pair budget of %d reached", in.Settings.MaxPairwisePairs)))
				continue
			}
			tested++

			outcome, _ := runModelTest(in, modelTest{
				rule:      rule,
				columns:   []int{i, j},
				minGain:   minPairwiseGain,
				folds:     in.Settings.ModelCVFolds,
				usePValue: true,
				design:    interactionDesign,
			})
			if c := outcome.Candidate; c != nil {
				c.Shape = interactionShape(c.Rule.Direction)
				c.Description = fmt.Sprintf(
					"%s and %s interact (%s): the product term lifts cross-validated R² from %.3f to %.3f",
					rule.Features[0], rule.Features[1], c.Shape, c.Metrics["r2_base"], c.Metrics["r2_augmented"])
			}
			outcomes = append(outcomes, outcome)
		}
	}
	if tested > 0 {
		d.logger.Trace("pairwise: %d pairs tested", tested)
	}
	return outcomes
}

func interactionDesign(xs [][]float64) ([][]float64, [][]float64) {
	return regression.InteractionDesign(xs...)
}

func interactionShape(direction int) string {
	if direction > 0 {
		return discovery.ShapeSynergistic
	}
	return discovery.ShapeAntagonistic
}

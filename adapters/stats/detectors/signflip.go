package detectors

import (
	"context"
	"fmt"
	"math"

	"gopattern/adapters/stats/inference"
	"gopattern/domain/discovery"
	"gopattern/internal"
)

// minFlipCorrelation bounds how far from zero the extreme level correlations must lie.
const minFlipCorrelation = 0.1

// SignFlipDetector finds features whose correlation with the outcome is positive in one
// context level and negative in another.
type SignFlipDetector struct {
	logger *internal.Logger
}

func NewSignFlipDetector(logger *internal.Logger) *SignFlipDetector {
	return &SignFlipDetector{logger: logger}
}

func (d *SignFlipDetector) Name() string { return "sign_flip" }

func (d *SignFlipDetector) Kind() discovery.CandidateKind { return discovery.KindSignFlip }

// LevelCorrelation is the feature/outcome correlation within one context level.
type LevelCorrelation struct {
	Level string
	inference.CorrelationResult
}

func (d *SignFlipDetector) Detect(ctx context.Context, in *Input) []discovery.TestOutcome {
	var outcomes []discovery.TestOutcome
	for _, name := range in.Dataset.ContextNames() {
		levels, _ := in.Dataset.Context(name)
		for _, j := range in.Matrix.ColumnsOfKind(discovery.FeatureContinuous) {
			outcomes = append(outcomes, d.testFeature(in, levels, j))
		}
	}
	return outcomes
}

func (d *SignFlipDetector) testFeature(in *Input, group *discovery.CategoricalColumn, j int) discovery.TestOutcome {
	feature := in.Matrix.Names[j]
	test := fmt.Sprintf("%s|%s|ctx=%s", discovery.KindSignFlip, feature, group.Name)

	levels := LevelCorrelations(in.Matrix.Columns[j], in.Matrix.Outcome, group, in.Settings.SignFlipMinLevelSize)
	if len(levels) < 2 {
		return discovery.Skipped(test, discovery.SkipInsufficientData,
			fmt.Sprintf("%d context levels with at least %d rows", len(levels), in.Settings.SignFlipMinLevelSize))
	}

	var neg, pos *inference.CorrelationResult
	var negLevel, posLevel string
	for i := range levels {
		lc := levels[i]
		if lc.PValue >= in.Settings.ScreeningPValue {
			continue
		}
		if neg == nil || lc.R < neg.R {
			neg, negLevel = &levels[i].CorrelationResult, lc.Level
		}
		if pos == nil || lc.R > pos.R {
			pos, posLevel = &levels[i].CorrelationResult, lc.Level
		}
	}
	if neg == nil || neg.R >= -minFlipCorrelation || pos.R <= minFlipCorrelation {
		return discovery.Screened(test)
	}

	rule := discovery.PatternRule{
		Kind:          discovery.KindSignFlip,
		Features:      []string{feature},
		Context:       group.Name,
		NegativeLevel: negLevel,
		PositiveLevel: posLevel,
		Direction:     1,
	}
	if n := neg.N + pos.N; n < in.Settings.MinSampleSize {
		return discovery.Skipped(rule.Key(), discovery.SkipInsufficientData,
			fmt.Sprintf("flip levels hold %d rows, need %d", n, in.Settings.MinSampleSize))
	}
	z, p, err := inference.FisherZDifference(pos.R, pos.N, neg.R, neg.N)
	if err != nil {
		return discovery.SkippedErr(rule.Key(), err)
	}

	c := discovery.NewCandidate(rule)
	c.Statistic = z
	c.PValue = p
	c.EffectSize = (pos.R - neg.R) / 2
	c.SampleSize = neg.N + pos.N
	c.Shape = discovery.ShapeContextReverse
	c.Metrics["r_positive"] = pos.R
	c.Metrics["r_negative"] = neg.R
	c.Metrics["n_positive"] = float64(pos.N)
	c.Metrics["n_negative"] = float64(neg.N)
	c.Description = fmt.Sprintf(
		"%s relates to the outcome in opposite directions across %s: r=%+.2f when %s=%s, r=%+.2f when %s=%s",
		feature, group.Name, pos.R, group.Name, posLevel, neg.R, group.Name, negLevel)
	return discovery.Emit(c)
}

// LevelCorrelations computes the Pearson correlation of x with y inside every context level
// holding at least minRows complete rows. Levels whose correlation cannot be computed are
// left out. Results follow the context's level order.
func LevelCorrelations(x, y []float64, group *discovery.CategoricalColumn, minRows int) []LevelCorrelation {
	xs := make([][]float64, len(group.Levels))
	ys := make([][]float64, len(group.Levels))
	for i, code := range group.Codes {
		if code < 0 || math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs[code] = append(xs[code], x[i])
		ys[code] = append(ys[code], y[i])
	}

	var out []LevelCorrelation
	for code, level := range group.Levels {
		if len(xs[code]) < minRows {
			continue
		}
		res, err := inference.Pearson(xs[code], ys[code])
		if err != nil {
			continue
		}
		out = append(out, LevelCorrelation{Level: level, CorrelationResult: res})
	}
	return out
}

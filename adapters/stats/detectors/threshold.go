package detectors

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"gopattern/adapters/stats/inference"
	"gopattern/domain/discovery"
	"gopattern/internal"
)

// minThresholdEffect is the smallest |mean difference / outcome SD| reported.
const minThresholdEffect = 0.3

// ThresholdDetector looks for step changes in the outcome at percentile cut-points.
type ThresholdDetector struct {
	logger *internal.Logger
}

func NewThresholdDetector(logger *internal.Logger) *ThresholdDetector {
	return &ThresholdDetector{logger: logger}
}

func (d *ThresholdDetector) Name() string { return "threshold" }

func (d *ThresholdDetector) Kind() discovery.CandidateKind { return discovery.KindThresholdEffect }

// Detect works on raw feature values so cut-points are reported in the feature's units;
// percentile splits are unchanged by standardization.
func (d *ThresholdDetector) Detect(ctx context.Context, in *Input) []discovery.TestOutcome {
	ds := in.Dataset
	spec := ds.Spec()
	var outcomes []discovery.TestOutcome
	for _, h := range spec.HandlesOfKind(discovery.FeatureContinuous) {
		name := spec.Feature(h).Name
		x, y := CompletePairs(ds.Numeric(h), ds.Outcome())
		if len(x) < in.Settings.MinSampleSize {
			for _, p := range in.Settings.ThresholdPercentiles {
				rule := thresholdRule(name, p)
				outcomes = append(outcomes, discovery.Skipped(rule.Key(), discovery.SkipInsufficientData,
					fmt.Sprintf("%d complete rows, need %d", len(x), in.Settings.MinSampleSize)))
			}
			continue
		}
		sdY := inference.StdDev(y)
		for _, p := range in.Settings.ThresholdPercentiles {
			outcomes = append(outcomes, d.testCut(in, name, x, y, sdY, p))
		}
	}
	return outcomes
}

func (d *ThresholdDetector) testCut(in *Input, name string, x, y []float64, sdY, percentile float64) discovery.TestOutcome {
	rule := thresholdRule(name, percentile)
	test := rule.Key()
	if sdY < 1e-10 {
		return discovery.Skipped(test, discovery.SkipZeroVariance, "constant outcome")
	}
	cut, err := inference.Percentile(x, percentile)
	if err != nil {
		return discovery.SkippedErr(test, err)
	}
	above, below := SplitAtCut(x, y, cut)
	if minGroup := in.Settings.ThresholdMinGroup; len(above) < minGroup || len(below) < minGroup {
		return discovery.Skipped(test, discovery.SkipInsufficientData,
			fmt.Sprintf("split %d/%d, need %d per side", len(above), len(below), minGroup))
	}

	res, err := inference.WelchTTest(above, below)
	if err != nil {
		d.logger.Debug("threshold %s skipped: %v", test, err)
		return discovery.SkippedErr(test, err)
	}
	effect := res.MeanDiff() / sdY
	if res.PValue >= in.Settings.ScreeningPValue || math.Abs(effect) <= minThresholdEffect {
		return discovery.Screened(test)
	}

	rule.Direction = inference.Sign(effect)
	c := discovery.NewCandidate(rule)
	c.Statistic = res.T
	c.PValue = res.PValue
	c.EffectSize = effect
	c.SampleSize = len(x)
	c.Shape = discovery.ShapeStepUp
	verb := "jumps"
	if effect < 0 {
		c.Shape = discovery.ShapeStepDown
		verb = "drops"
	}
	c.Metrics["cut"] = cut
	c.Metrics["mean_above"] = res.Mean1
	c.Metrics["mean_below"] = res.Mean2
	c.Metrics["n_above"] = float64(res.N1)
	c.Metrics["n_below"] = float64(res.N2)
	c.Description = fmt.Sprintf(
		"outcome %s from %.4g to %.4g when %s exceeds %.4g (its %sth percentile), effect %.2f SD",
		verb, res.Mean2, res.Mean1, name, cut, strconv.FormatFloat(percentile, 'f', -1, 64), effect)
	return discovery.Emit(c)
}

func thresholdRule(name string, percentile float64) discovery.PatternRule {
	return discovery.PatternRule{
		Kind:       discovery.KindThresholdEffect,
		Features:   []string{name},
		Percentile: percentile,
	}
}

// SplitAtCut returns the outcome values whose feature value is above the cut and those at
// or below it.
func SplitAtCut(x, y []float64, cut float64) (above, below []float64) {
	for i, v := range x {
		if v > cut {
			above = append(above, y[i])
		} else {
			below = append(below, y[i])
		}
	}
	return above, below
}

// CompletePairs drops rows where either value is missing.
func CompletePairs(x, y []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

package detectors

import (
	"context"
	"fmt"

	"gopattern/adapters/stats/inference"
	"gopattern/adapters/stats/regression"
	"gopattern/domain/discovery"
	"gopattern/internal"
)

// Input is the shared, read-only view every detector works from. The standardized matrix
// is computed once per run and never modified.
type Input struct {
	Dataset  *discovery.Dataset
	Matrix   *regression.Matrix
	Settings discovery.Settings
}

// Detector is one interaction or non-linearity test family.
type Detector interface {
	Name() string
	Kind() discovery.CandidateKind
	Detect(ctx context.Context, in *Input) []discovery.TestOutcome
}

// Suite orchestrates the five detectors.
type Suite struct {
	detectors []Detector
	logger    *internal.Logger
}

// NewSuite creates a suite with every detector enabled.
func NewSuite(logger *internal.Logger) *Suite {
	if logger == nil {
		logger = internal.NopLogger()
	}
	logger = logger.Named("detectors")
	return &Suite{
		detectors: []Detector{
			NewPolynomialDetector(logger),
			NewPairwiseDetector(logger),
			NewThreeWayDetector(logger),
			NewThresholdDetector(logger),
			NewSignFlipDetector(logger),
		},
		logger: logger,
	}
}

// Names lists the detectors in execution order.
func (s *Suite) Names() []string {
	names := make([]string, len(s.detectors))
	for i, d := range s.detectors {
		names[i] = d.Name()
	}
	return names
}

// DetectAll runs all detectors concurrently. Results are returned in detector order
// regardless of completion order.
func (s *Suite) DetectAll(ctx context.Context, in *Input) []discovery.TestOutcome {
	type resultWithIndex struct {
		outcomes []discovery.TestOutcome
		index    int
	}

	resultChan := make(chan resultWithIndex, len(s.detectors))
	for i, d := range s.detectors {
		go func(d Detector, idx int) {
			resultChan <- resultWithIndex{outcomes: d.Detect(ctx, in), index: idx}
		}(d, i)
	}

	perDetector := make([][]discovery.TestOutcome, len(s.detectors))
	for i := 0; i < len(s.detectors); i++ {
		res := <-resultChan
		perDetector[res.index] = res.outcomes
	}

	var all []discovery.TestOutcome
	for i, outcomes := range perDetector {
		emitted := len(discovery.Candidates(outcomes))
		s.logger.Debug("%s: %d tests, %d candidates", s.detectors[i].Name(), len(outcomes), emitted)
		all = append(all, outcomes...)
	}
	return all
}

// modelTest is one nested-model comparison shared by the polynomial and interaction
// detectors.
type modelTest struct {
	rule      discovery.PatternRule
	columns   []int
	minGain   float64
	folds     int
	usePValue bool
	design    func(xs [][]float64) (base, augmented [][]float64)
}

func runModelTest(in *Input, t modelTest) (discovery.TestOutcome, *regression.Comparison) {
	test := t.rule.Key()
	rows := in.Matrix.CompleteRows(t.columns...)
	if len(rows) < in.Settings.MinSampleSize {
		return discovery.Skipped(test, discovery.SkipInsufficientData,
			fmt.Sprintf("%d complete rows, need %d", len(rows), in.Settings.MinSampleSize)), nil
	}

	xs := make([][]float64, len(t.columns))
	for i, j := range t.columns {
		xs[i] = regression.Gather(in.Matrix.Columns[j], rows)
	}
	y := regression.Gather(in.Matrix.Outcome, rows)

	folds, err := regression.KFold(len(rows), t.folds, in.Settings.RandomSeed)
	if err != nil {
		return discovery.SkippedErr(test, err), nil
	}
	base, augmented := t.design(xs)
	cmp, err := regression.CompareNested(base, augmented, y, folds, in.Settings.RidgeLambda)
	if err != nil {
		return discovery.SkippedErr(test, err), nil
	}
	if cmp.Improvement <= t.minGain {
		return discovery.Screened(test), &cmp
	}
	if t.usePValue && cmp.PValue >= in.Settings.ScreeningPValue {
		return discovery.Screened(test), &cmp
	}

	rule := t.rule
	rule.Direction = inference.Sign(cmp.AddedCoef)
	if rule.Direction == 0 {
		return discovery.Screened(test), &cmp
	}
	c := discovery.NewCandidate(rule)
	c.Statistic = cmp.T
	c.PValue = cmp.PValue
	c.EffectSize = cmp.EffectSize()
	c.SampleSize = len(rows)
	c.Metrics["r2_base"] = cmp.BaseMean
	c.Metrics["r2_augmented"] = cmp.AugMean
	c.Metrics["r2_improvement"] = cmp.Improvement
	c.Metrics["coefficient"] = cmp.AddedCoef
	return discovery.Emit(c), &cmp
}

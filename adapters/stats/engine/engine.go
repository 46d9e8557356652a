package engine

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/sync/errgroup"

	"gopattern/adapters/stats/correction"
	"gopattern/adapters/stats/crossval"
	"gopattern/adapters/stats/detectors"
	"gopattern/adapters/stats/ranking"
	"gopattern/adapters/stats/regression"
	"gopattern/adapters/stats/scanner"
	"gopattern/domain/core"
	"gopattern/domain/discovery"
	"gopattern/internal"
	"gopattern/internal/errors"
)

// DiscoveryEngine runs the full pattern discovery pipeline over an in-memory dataset:
// subgroup scan and detectors, Bonferroni correction, cross-validation, ranking.
// It holds no per-run state and is safe for concurrent use.
type DiscoveryEngine struct {
	logger *internal.Logger
	now    func() core.Timestamp
}

// NewDiscoveryEngine creates a new discovery engine
func NewDiscoveryEngine(logger *internal.Logger) *DiscoveryEngine {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &DiscoveryEngine{logger: logger.Named("engine"), now: core.Now}
}

// Run analyzes ds with the given options. Invalid options fail with CONFIG_INVALID before
// any computation. A dataset below the minimum size yields a run with status
// insufficient_data and no patterns, not an error.
func (e *DiscoveryEngine) Run(ctx context.Context, ds *discovery.Dataset, opts discovery.Options) (*discovery.AnalysisRun, error) {
	if ds == nil {
		return nil, errors.InvalidInput("dataset is required")
	}
	settings, err := opts.Resolve(ds.Len())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run := &discovery.AnalysisRun{
		ID:             core.NewRunID(),
		Status:         discovery.StatusCompleted,
		Outcome:        ds.OutcomeName(),
		Patterns:       []discovery.ValidatedPattern{},
		CorrectedAlpha: settings.BaseSignificanceLevel,
		Settings:       settings,
		Fingerprint:    Fingerprint(ds, settings),
		CreatedAt:      e.now(),
		Summary: discovery.RunSummary{
			DatasetSize:      ds.Len(),
			CandidatesByKind: map[discovery.CandidateKind]int{},
			SkippedByReason:  map[discovery.SkipReason]int{},
		},
	}

	usable := observedOutcomes(ds)
	floor := settings.MinSampleSize
	if floor < discovery.MinimumSampleFloor {
		floor = discovery.MinimumSampleFloor
	}
	if usable < floor {
		run.Status = discovery.StatusInsufficientData
		run.StatusDetail = fmt.Sprintf("%d observations with an outcome, need at least %d", usable, floor)
		e.logger.Warn("run %s: %s", run.ID, run.StatusDetail)
		return run, nil
	}

	e.logger.Info("run %s: %d rows, %d features, alpha %.3g, seed %d",
		run.ID, ds.Len(), ds.Spec().Len(), settings.BaseSignificanceLevel, settings.RandomSeed)

	outcomes, err := e.generate(ctx, ds, settings)
	if err != nil {
		return nil, err
	}
	candidates := discovery.Candidates(outcomes)

	corrected := correction.NewCorrector(settings, e.logger).Correct(candidates)
	validated, err := crossval.NewValidator(settings, e.logger).Validate(ctx, ds, corrected.Retained)
	if err != nil {
		return nil, err
	}
	run.Patterns = ranking.Rank(validated, settings.MaxResults)
	run.CorrectedAlpha = corrected.CorrectedAlpha

	summarize(&run.Summary, outcomes, candidates, validated, len(run.Patterns))
	e.logger.Info("run %s: %d tests, %d candidates, %d retained, %d validated, %d returned",
		run.ID, run.Summary.TestsExecuted, run.Summary.TotalCandidates, run.Summary.Retained,
		run.Summary.Validated, run.Summary.Returned)
	return run, nil
}

// generate runs the subgroup scanner and the detector suite in parallel over the shared
// standardized matrix. Outcomes are concatenated in a fixed order: standardization skips,
// scanner, detectors.
func (e *DiscoveryEngine) generate(ctx context.Context, ds *discovery.Dataset, settings discovery.Settings) ([]discovery.TestOutcome, error) {
	matrix, standardizeSkips := regression.Standardize(ds)
	input := &detectors.Input{Dataset: ds, Matrix: matrix, Settings: settings}

	var scanned, detected []discovery.TestOutcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scanned = scanner.NewSubgroupScanner(settings, e.logger).Scan(gctx, ds)
		return nil
	})
	g.Go(func() error {
		detected = detectors.NewSuite(e.logger).DetectAll(gctx, input)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outcomes := make([]discovery.TestOutcome, 0, len(standardizeSkips)+len(scanned)+len(detected))
	outcomes = append(outcomes, standardizeSkips...)
	outcomes = append(outcomes, scanned...)
	outcomes = append(outcomes, detected...)
	return outcomes, nil
}

func summarize(s *discovery.RunSummary, outcomes []discovery.TestOutcome, candidates []discovery.Candidate, validated []discovery.ValidatedPattern, returned int) {
	for _, o := range outcomes {
		switch o.Status {
		case discovery.OutcomeSkipped:
			s.SkippedByReason[o.Reason]++
		default:
			s.TestsExecuted++
		}
	}
	s.TotalCandidates = len(candidates)
	s.CandidatesByKind = ranking.CountByKind(candidates)
	s.Retained = len(validated)
	for _, v := range validated {
		if v.ValidatesOverall {
			s.Validated++
		}
	}
	s.Returned = returned
}

func observedOutcomes(ds *discovery.Dataset) int {
	n := 0
	for _, y := range ds.Outcome() {
		if !math.IsNaN(y) {
			n++
		}
	}
	return n
}

// Fingerprint identifies a run's inputs: the data content, the schema and every resolved
// setting. Two runs with equal fingerprints produce identical patterns.
func Fingerprint(ds *discovery.Dataset, settings discovery.Settings) core.Fingerprint {
	return core.ComputeFingerprint(map[string]interface{}{
		"data":     datasetDigest(ds),
		"schema":   fmt.Sprintf("%+v", ds.Schema()),
		"settings": fmt.Sprintf("%+v", settings),
	})
}

func datasetDigest(ds *discovery.Dataset) core.Hash {
	buf := make([]byte, 0, ds.Len()*16*(ds.Spec().Len()+1))
	appendFloat := func(v float64) {
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		buf = append(buf, ',')
	}
	appendCodes := func(col *discovery.CategoricalColumn) {
		for _, c := range col.Codes {
			if c < 0 {
				buf = append(buf, "NA,"...)
				continue
			}
			buf = append(buf, col.Levels[c]...)
			buf = append(buf, ',')
		}
	}

	for _, y := range ds.Outcome() {
		appendFloat(y)
	}
	spec := ds.Spec()
	for _, h := range spec.Handles() {
		buf = append(buf, '|')
		if col := ds.Numeric(h); col != nil {
			for _, v := range col {
				appendFloat(v)
			}
			continue
		}
		appendCodes(ds.Categorical(h))
	}
	for _, name := range ds.ContextNames() {
		col, _ := ds.Context(name)
		buf = append(buf, '|')
		appendCodes(col)
	}
	return core.NewHash(buf)
}

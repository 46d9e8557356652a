package crossval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"gopattern/adapters/stats/regression"
	"gopattern/domain/discovery"
	"gopattern/internal"
)

const (
	// Minimum subgroup sizes for a fold to count toward the validation rate.
	minTrainRows = 10
	minTestRows  = 5

	computeCapacity = 8
)

// computeWeight reflects how expensive one rule's re-derivation is; model refits cost more
// than group means.
var computeWeight = map[discovery.CandidateKind]int64{
	discovery.KindSubgroupPattern:     1,
	discovery.KindThresholdEffect:     1,
	discovery.KindSignFlip:            2,
	discovery.KindPolynomialTerm:      4,
	discovery.KindPairwiseInteraction: 4,
	discovery.KindThreeWayInteraction: 4,
}

// Validator re-derives each pattern on the training part of every fold and checks whether
// its direction holds on the held-out part.
type Validator struct {
	settings discovery.Settings
	logger   *internal.Logger
	sem      *semaphore.Weighted
}

func NewValidator(settings discovery.Settings, logger *internal.Logger) *Validator {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &Validator{
		settings: settings,
		logger:   logger.Named("crossval"),
		sem:      semaphore.NewWeighted(computeCapacity),
	}
}

// fold is one train/test split of the dataset.
type fold struct {
	train *discovery.Dataset
	test  *discovery.Dataset
}

// FoldVerdict is what one fold says about one pattern.
type FoldVerdict struct {
	Evaluated bool
	Matched   bool
	Reason    string
}

// splits partitions the dataset into the configured number of seeded folds.
func (v *Validator) splits(ds *discovery.Dataset) ([]fold, error) {
	testRows, err := regression.KFold(ds.Len(), v.settings.CrossValidationFolds, v.settings.RandomSeed)
	if err != nil {
		return nil, err
	}
	folds := make([]fold, len(testRows))
	for i, test := range testRows {
		folds[i] = fold{
			train: ds.Subset(regression.Complement(ds.Len(), test)),
			test:  ds.Subset(test),
		}
	}
	return folds, nil
}

// Validate attaches cross-validation results to every pattern. Patterns are validated
// concurrently; each result is written to its own index so the output order and values
// do not depend on scheduling. The only error is context cancellation.
func (v *Validator) Validate(ctx context.Context, ds *discovery.Dataset, patterns []discovery.ValidatedPattern) ([]discovery.ValidatedPattern, error) {
	out := make([]discovery.ValidatedPattern, len(patterns))
	copy(out, patterns)
	if len(out) == 0 {
		return out, nil
	}

	folds, err := v.splits(ds)
	if err != nil {
		v.logger.Warn("cross-validation folds unavailable: %v", err)
		for i := range out {
			v.attach(&out[i], nil)
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range out {
		i := i
		weight := computeWeight[out[i].Kind]
		if weight == 0 {
			weight = 1
		}
		if err := v.sem.Acquire(gctx, weight); err != nil {
			break
		}
		g.Go(func() error {
			defer v.sem.Release(weight)
			verdicts := make([]FoldVerdict, len(folds))
			for k, f := range folds {
				verdicts[k] = Evaluate(out[i].Rule, f.train, f.test, v.settings)
			}
			v.attach(&out[i], verdicts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cross-validation interrupted: %w", err)
	}
	return out, nil
}

func (v *Validator) attach(p *discovery.ValidatedPattern, verdicts []FoldVerdict) {
	p.FoldsRequested = v.settings.CrossValidationFolds
	p.FoldsEvaluated, p.FoldsMatched = 0, 0
	for _, verdict := range verdicts {
		if !verdict.Evaluated {
			continue
		}
		p.FoldsEvaluated++
		if verdict.Matched {
			p.FoldsMatched++
		}
	}
	p.ValidationRate = 0
	if p.FoldsEvaluated > 0 {
		p.ValidationRate = float64(p.FoldsMatched) / float64(p.FoldsEvaluated)
	}
	p.ValidatesOverall = p.ValidationRate >= v.settings.ValidationThreshold
	p.Confidence = discovery.ConfidenceFor(p.ValidationRate)
	v.logger.Trace("%s: %d/%d folds matched", p.ID, p.FoldsMatched, p.FoldsEvaluated)
}

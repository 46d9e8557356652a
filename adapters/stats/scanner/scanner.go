package scanner

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"gopattern/adapters/stats/inference"
	"gopattern/domain/discovery"
	"gopattern/internal"
)

// SubgroupScanner compares the outcome mean of every feature level or quantile bucket
// against the global outcome mean.
type SubgroupScanner struct {
	settings discovery.Settings
	logger   *internal.Logger
}

// NewSubgroupScanner creates a scanner bound to one run's settings.
func NewSubgroupScanner(settings discovery.Settings, logger *internal.Logger) *SubgroupScanner {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &SubgroupScanner{settings: settings, logger: logger.Named("scanner")}
}

// Name identifies the scanner in run summaries.
func (s *SubgroupScanner) Name() string {
	return "subgroup_scanner"
}

// Scan produces one outcome per (feature, level-or-bucket) test.
func (s *SubgroupScanner) Scan(ctx context.Context, ds *discovery.Dataset) []discovery.TestOutcome {
	var outcomes []discovery.TestOutcome
	spec := ds.Spec()
	for _, h := range spec.Handles() {
		f := spec.Feature(h)
		groups, skip := s.partition(ds, h)
		if skip != nil {
			outcomes = append(outcomes, *skip)
			continue
		}
		outcomes = append(outcomes, s.testGroups(f, groups)...)
	}
	return outcomes
}

// group is one subgroup of a feature: its rule and the outcome values falling inside it.
type group struct {
	rule     discovery.PatternRule
	label    string
	outcomes []float64
	low      float64
	high     float64
}

type partitioning struct {
	groups     []group
	all        []float64 // outcome values of every row with the feature present
	bucketized bool
}

func (s *SubgroupScanner) partition(ds *discovery.Dataset, h discovery.FeatureHandle) (partitioning, *discovery.TestOutcome) {
	f := ds.Spec().Feature(h)
	y := ds.Outcome()
	test := "subgroup|" + f.Name

	switch f.Kind {
	case discovery.FeatureContinuous:
		x := ds.Numeric(h)
		var xs, ys []float64
		for i := range x {
			if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
				continue
			}
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
		if len(xs) < s.settings.MinSampleSize {
			skip := discovery.Skipped(test, discovery.SkipInsufficientData,
				fmt.Sprintf("%d complete rows, need %d", len(xs), s.settings.MinSampleSize))
			return partitioning{}, &skip
		}
		edges, err := inference.Cutpoints(xs, s.settings.QuantileBuckets)
		if err != nil {
			skip := discovery.SkippedErr(test, err)
			return partitioning{}, &skip
		}
		if len(edges) == 0 {
			skip := discovery.Skipped(test, discovery.SkipZeroVariance, "feature has a single distinct value")
			return partitioning{}, &skip
		}
		p := partitioning{all: ys, bucketized: true}
		p.groups = make([]group, len(edges)+1)
		for b := range p.groups {
			low, high := math.Inf(-1), math.Inf(1)
			if b > 0 {
				low = edges[b-1]
			}
			if b < len(edges) {
				high = edges[b]
			}
			p.groups[b] = group{
				rule: discovery.PatternRule{
					Kind:     discovery.KindSubgroupPattern,
					Features: []string{f.Name},
					Bucket:   b,
					Buckets:  s.settings.QuantileBuckets,
					Groups:   len(edges) + 1,
				},
				label: fmt.Sprintf("quantile bucket %d/%d (%s, %s]", b+1, len(edges)+1, fmtBound(low), fmtBound(high)),
				low:   low,
				high:  high,
			}
		}
		for i, v := range xs {
			b := inference.BucketOf(v, edges)
			p.groups[b].outcomes = append(p.groups[b].outcomes, ys[i])
		}
		return p, nil

	case discovery.FeatureBoolean:
		x := ds.Numeric(h)
		p := partitioning{groups: []group{
			{rule: levelRule(f.Name, "false"), label: "= false"},
			{rule: levelRule(f.Name, "true"), label: "= true"},
		}}
		for i := range x {
			if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
				continue
			}
			idx := 0
			if x[i] == 1 {
				idx = 1
			}
			p.groups[idx].outcomes = append(p.groups[idx].outcomes, y[i])
			p.all = append(p.all, y[i])
		}
		return p, nil

	default:
		col := ds.Categorical(h)
		p := partitioning{groups: make([]group, len(col.Levels))}
		for l, level := range col.Levels {
			p.groups[l] = group{rule: levelRule(f.Name, level), label: "= " + strconv.Quote(level)}
		}
		for i, code := range col.Codes {
			if code < 0 || math.IsNaN(y[i]) {
				continue
			}
			p.groups[code].outcomes = append(p.groups[code].outcomes, y[i])
			p.all = append(p.all, y[i])
		}
		return p, nil
	}
}

func (s *SubgroupScanner) testGroups(f discovery.Feature, p partitioning) []discovery.TestOutcome {
	test := "subgroup|" + f.Name
	if len(p.all) < s.settings.MinSampleSize {
		return []discovery.TestOutcome{discovery.Skipped(test, discovery.SkipInsufficientData,
			fmt.Sprintf("%d complete rows, need %d", len(p.all), s.settings.MinSampleSize))}
	}
	globalMean, globalSD, err := inference.MeanSD(p.all)
	if err != nil {
		return []discovery.TestOutcome{discovery.SkippedErr(test, err)}
	}

	outcomes := make([]discovery.TestOutcome, 0, len(p.groups))
	for _, g := range p.groups {
		outcomes = append(outcomes, s.testGroup(f, g, globalMean, globalSD))
	}
	return outcomes
}

func (s *SubgroupScanner) testGroup(f discovery.Feature, g group, globalMean, globalSD float64) discovery.TestOutcome {
	test := g.rule.Key()
	if len(g.outcomes) < s.settings.MinSampleSize {
		return discovery.Skipped(test, discovery.SkipInsufficientData,
			fmt.Sprintf("subgroup has %d rows, need %d", len(g.outcomes), s.settings.MinSampleSize))
	}

	res, err := inference.OneSampleTTest(g.outcomes, globalMean)
	if err != nil {
		s.logger.Debug("subgroup test %s skipped: %v", test, err)
		return discovery.SkippedErr(test, err)
	}
	if res.PValue >= s.settings.ScreeningPValue {
		return discovery.Screened(test)
	}

	rule := g.rule
	rule.Direction = inference.Sign(res.Mean - globalMean)
	if rule.Direction == 0 {
		return discovery.Screened(test)
	}

	c := discovery.NewCandidate(rule)
	c.Statistic = res.T
	c.PValue = res.PValue
	c.EffectSize = res.EffectSize
	c.SampleSize = res.N
	c.Shape = discovery.ShapeAboveBaseline
	direction := "higher"
	if rule.Direction < 0 {
		c.Shape = discovery.ShapeBelowBaseline
		direction = "lower"
	}
	c.Metrics["subgroup_mean"] = res.Mean
	c.Metrics["baseline_mean"] = globalMean
	c.Metrics["baseline_sd"] = globalSD
	c.Metrics["ci_low"] = res.CILow
	c.Metrics["ci_high"] = res.CIHigh
	c.Metrics["lift"] = res.Mean - globalMean
	if g.rule.IsBucketed() {
		c.Metrics["bucket_low"] = finiteOr(g.low, -math.MaxFloat64)
		c.Metrics["bucket_high"] = finiteOr(g.high, math.MaxFloat64)
	}
	c.Description = fmt.Sprintf(
		"%s %s: outcome mean %.4g is %s than baseline %.4g (d=%.2f, n=%d, 95%% CI [%.4g, %.4g])",
		f.Name, g.label, res.Mean, direction, globalMean, res.EffectSize, res.N, res.CILow, res.CIHigh)
	return discovery.Emit(c)
}

func levelRule(feature, level string) discovery.PatternRule {
	return discovery.PatternRule{
		Kind:     discovery.KindSubgroupPattern,
		Features: []string{feature},
		Level:    level,
	}
}

func fmtBound(v float64) string {
	if math.IsInf(v, 0) {
		if v < 0 {
			return "-inf"
		}
		return "+inf"
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}

func finiteOr(v, def float64) float64 {
	if math.IsInf(v, 0) {
		return def
	}
	return v
}

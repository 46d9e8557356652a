package crossval

import (
	"fmt"
	"math"

	"gopattern/adapters/stats/detectors"
	"gopattern/adapters/stats/inference"
	"gopattern/adapters/stats/regression"
	"gopattern/domain/discovery"
)

func skip(format string, args ...interface{}) FoldVerdict {
	return FoldVerdict{Reason: fmt.Sprintf(format, args...)}
}

func verdict(matched bool) FoldVerdict {
	return FoldVerdict{Evaluated: true, Matched: matched}
}

// Evaluate re-derives a rule on train and checks it on test. Value-dependent parts of the
// rule (bucket edges, cut-points, coefficients, standardization) come from train only.
func Evaluate(rule discovery.PatternRule, train, test *discovery.Dataset, settings discovery.Settings) FoldVerdict {
	switch rule.Kind {
	case discovery.KindSubgroupPattern:
		return evaluateSubgroup(rule, train, test)
	case discovery.KindThresholdEffect:
		return evaluateThreshold(rule, train, test)
	case discovery.KindSignFlip:
		return evaluateSignFlip(rule, train, test)
	case discovery.KindPolynomialTerm, discovery.KindPairwiseInteraction, discovery.KindThreeWayInteraction:
		return evaluateModel(rule, train, test, settings)
	}
	return skip("unknown kind %q", rule.Kind)
}

// membership decides whether a row belongs to the subgroup; ok is false for missing values.
type membership func(ds *discovery.Dataset, row int) (in bool, ok bool)

func subgroupMembership(rule discovery.PatternRule, train *discovery.Dataset) (membership, error) {
	h, found := train.Spec().Handle(rule.Features[0])
	if !found {
		return nil, fmt.Errorf("feature %q not in dataset", rule.Features[0])
	}
	f := train.Spec().Feature(h)

	switch {
	case rule.IsBucketed():
		x, _ := detectors.CompletePairs(train.Numeric(h), train.Outcome())
		edges, err := inference.Cutpoints(x, rule.Buckets)
		if err != nil {
			return nil, err
		}
		if rule.Bucket > len(edges) {
			return nil, fmt.Errorf("bucket %d does not exist on train (%d edges)", rule.Bucket, len(edges))
		}
		return func(ds *discovery.Dataset, row int) (bool, bool) {
			v := ds.Numeric(h)[row]
			if math.IsNaN(v) {
				return false, false
			}
			return inference.BucketOf(v, edges) == rule.Bucket, true
		}, nil

	case f.Kind == discovery.FeatureBoolean:
		want := 0.0
		if rule.Level == "true" {
			want = 1
		}
		return func(ds *discovery.Dataset, row int) (bool, bool) {
			v := ds.Numeric(h)[row]
			if math.IsNaN(v) {
				return false, false
			}
			return v == want, true
		}, nil

	default:
		code := -1
		for i, l := range train.Categorical(h).Levels {
			if l == rule.Level {
				code = i
			}
		}
		if code < 0 {
			return nil, fmt.Errorf("level %q not found", rule.Level)
		}
		return func(ds *discovery.Dataset, row int) (bool, bool) {
			c := ds.Categorical(h).Codes[row]
			if c < 0 {
				return false, false
			}
			return c == code, true
		}, nil
	}
}

// subgroupDeviation returns the sign of (subgroup mean - mean of all rows with the feature
// present) and the subgroup size.
func subgroupDeviation(ds *discovery.Dataset, member membership) (int, int) {
	y := ds.Outcome()
	var sub, all []float64
	for i := range y {
		if math.IsNaN(y[i]) {
			continue
		}
		in, ok := member(ds, i)
		if !ok {
			continue
		}
		all = append(all, y[i])
		if in {
			sub = append(sub, y[i])
		}
	}
	if len(sub) == 0 {
		return 0, 0
	}
	return inference.Sign(inference.Mean(sub) - inference.Mean(all)), len(sub)
}

func evaluateSubgroup(rule discovery.PatternRule, train, test *discovery.Dataset) FoldVerdict {
	member, err := subgroupMembership(rule, train)
	if err != nil {
		return skip("%v", err)
	}
	trainDir, trainN := subgroupDeviation(train, member)
	testDir, testN := subgroupDeviation(test, member)
	if trainN < minTrainRows || testN < minTestRows {
		return skip("subgroup sizes %d/%d", trainN, testN)
	}
	return verdict(trainDir == rule.Direction && testDir == rule.Direction)
}

func evaluateThreshold(rule discovery.PatternRule, train, test *discovery.Dataset) FoldVerdict {
	h, found := train.Spec().Handle(rule.Features[0])
	if !found {
		return skip("feature %q not in dataset", rule.Features[0])
	}
	trainX, trainY := detectors.CompletePairs(train.Numeric(h), train.Outcome())
	testX, testY := detectors.CompletePairs(test.Numeric(h), test.Outcome())
	if len(trainX) == 0 {
		return skip("no complete train rows")
	}
	cut, err := inference.Percentile(trainX, rule.Percentile)
	if err != nil {
		return skip("%v", err)
	}

	trainAbove, trainBelow := detectors.SplitAtCut(trainX, trainY, cut)
	testAbove, testBelow := detectors.SplitAtCut(testX, testY, cut)
	if len(trainAbove) < minTrainRows || len(trainBelow) < minTrainRows ||
		len(testAbove) < minTestRows || len(testBelow) < minTestRows {
		return skip("split sizes train %d/%d test %d/%d",
			len(trainAbove), len(trainBelow), len(testAbove), len(testBelow))
	}
	trainDir := inference.Sign(inference.Mean(trainAbove) - inference.Mean(trainBelow))
	testDir := inference.Sign(inference.Mean(testAbove) - inference.Mean(testBelow))
	return verdict(trainDir == rule.Direction && testDir == rule.Direction)
}

func evaluateSignFlip(rule discovery.PatternRule, train, test *discovery.Dataset) FoldVerdict {
	h, found := train.Spec().Handle(rule.Features[0])
	if !found {
		return skip("feature %q not in dataset", rule.Features[0])
	}
	levelR := func(ds *discovery.Dataset, minRows int) (neg, pos float64, ok bool) {
		group, found := ds.Context(rule.Context)
		if !found {
			return 0, 0, false
		}
		var haveNeg, havePos bool
		for _, lc := range detectors.LevelCorrelations(ds.Numeric(h), ds.Outcome(), group, minRows) {
			switch lc.Level {
			case rule.NegativeLevel:
				neg, haveNeg = lc.R, true
			case rule.PositiveLevel:
				pos, havePos = lc.R, true
			}
		}
		return neg, pos, haveNeg && havePos
	}

	trainNeg, trainPos, ok := levelR(train, minTrainRows)
	if !ok {
		return skip("context levels too small on train")
	}
	testNeg, testPos, ok := levelR(test, minTestRows)
	if !ok {
		return skip("context levels too small on test")
	}
	return verdict(trainNeg < 0 && trainPos > 0 && testNeg < 0 && testPos > 0)
}

// evaluateModel refits base and augmented models on train (standardized with train
// parameters) and requires the added term to keep its sign and to improve held-out R².
func evaluateModel(rule discovery.PatternRule, train, test *discovery.Dataset, settings discovery.Settings) FoldVerdict {
	standardizer, _ := regression.FitStandardizer(train)
	trainM := standardizer.Apply(train)
	testM := standardizer.Apply(test)

	cols := make([]int, len(rule.Features))
	for i, name := range rule.Features {
		j, ok := trainM.Column(name)
		if !ok {
			return skip("feature %q degenerate on train", name)
		}
		cols[i] = j
	}
	trainRows := trainM.CompleteRows(cols...)
	testRows := testM.CompleteRows(cols...)
	if len(trainRows) < minTrainRows || len(testRows) < minTestRows {
		return skip("complete rows train %d test %d", len(trainRows), len(testRows))
	}

	design := func(m *regression.Matrix) (base, augmented [][]float64) {
		xs := make([][]float64, len(cols))
		for i, j := range cols {
			xs[i] = m.Columns[j]
		}
		if rule.Kind == discovery.KindPolynomialTerm {
			return regression.PolynomialDesign(xs[0], rule.Degree)
		}
		return regression.InteractionDesign(xs...)
	}
	trainBase, trainAug := design(trainM)
	testBase, testAug := design(testM)

	baseModel, err := regression.FitRidge(trainBase, trainM.Outcome, trainRows, settings.RidgeLambda)
	if err != nil {
		return skip("%v", err)
	}
	augModel, err := regression.FitRidge(trainAug, trainM.Outcome, trainRows, settings.RidgeLambda)
	if err != nil {
		return skip("%v", err)
	}
	baseR2, err := baseModel.RSquared(testBase, testM.Outcome, testRows)
	if err != nil {
		return skip("%v", err)
	}
	augR2, err := augModel.RSquared(testAug, testM.Outcome, testRows)
	if err != nil {
		return skip("%v", err)
	}
	sign := inference.Sign(augModel.Coef[len(augModel.Coef)-1])
	return verdict(sign == rule.Direction && augR2 > baseR2)
}

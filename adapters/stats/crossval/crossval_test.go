package crossval

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopattern/domain/discovery"
)

func settingsFor(t *testing.T, n int) discovery.Settings {
	t.Helper()
	s, err := discovery.DefaultOptions().WithSeed(1234).Resolve(n)
	require.NoError(t, err)
	return s
}

func pattern(rule discovery.PatternRule) discovery.ValidatedPattern {
	return discovery.ValidatedPattern{Candidate: discovery.NewCandidate(rule)}
}

// mixedDataset has a shifted categorical level, a quadratic feature, a step at 5 and a
// sign flip across two contexts.
func mixedDataset(t *testing.T, seed int64, n int) *discovery.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	var rows []discovery.Observation
	for i := 0; i < n; i++ {
		seg := []string{"north", "south", "east", "west"}[i%4]
		a := rng.Float64()*6 - 3
		b := rng.Float64() * 10
		c := rng.NormFloat64()
		ctx := "A"
		slope := 5.0
		if i%2 == 1 {
			ctx, slope = "B", -5.0
		}
		y := 2*a*a + slope*c + rng.NormFloat64()*0.5
		if seg == "north" {
			y += 8
		}
		if b > 5 {
			y += 8
		}
		rows = append(rows, discovery.Observation{
			Values: map[string]discovery.Value{
				"segment": discovery.Label(seg),
				"a":       discovery.Number(a),
				"b":       discovery.Number(b),
				"c":       discovery.Number(c),
				"flag":    discovery.Bool(i%3 == 0),
			},
			Outcome:  y,
			Contexts: map[string]string{"ctx": ctx},
		})
	}
	ds, err := discovery.NewDataset(discovery.Schema{
		Outcome: "y",
		Features: []discovery.Feature{
			{Name: "segment", Kind: discovery.FeatureCategorical},
			{Name: "a", Kind: discovery.FeatureContinuous},
			{Name: "b", Kind: discovery.FeatureContinuous},
			{Name: "c", Kind: discovery.FeatureContinuous},
			{Name: "flag", Kind: discovery.FeatureBoolean},
		},
		Contexts: []string{"ctx"},
	}, rows)
	require.NoError(t, err)
	return ds
}

func realPatterns() []discovery.ValidatedPattern {
	return []discovery.ValidatedPattern{
		pattern(discovery.PatternRule{Kind: discovery.KindSubgroupPattern, Features: []string{"segment"}, Level: "north", Direction: 1}),
		pattern(discovery.PatternRule{Kind: discovery.KindPolynomialTerm, Features: []string{"a"}, Degree: 2, Direction: 1}),
		pattern(discovery.PatternRule{Kind: discovery.KindThresholdEffect, Features: []string{"b"}, Percentile: 50, Direction: 1}),
		pattern(discovery.PatternRule{Kind: discovery.KindSignFlip, Features: []string{"c"}, Context: "ctx", NegativeLevel: "B", PositiveLevel: "A", Direction: 1}),
		pattern(discovery.PatternRule{Kind: discovery.KindSubgroupPattern, Features: []string{"a"}, Bucket: 4, Buckets: 5, Direction: 1}),
	}
}

func TestValidate_RealEffectsReplicate(t *testing.T) {
	ds := mixedDataset(t, 1, 1000)
	v := NewValidator(settingsFor(t, ds.Len()), nil)

	out, err := v.Validate(context.Background(), ds, realPatterns())
	require.NoError(t, err)
	require.Len(t, out, 5)
	for _, p := range out {
		assert.Equal(t, 5, p.FoldsRequested, p.Rule.Key())
		assert.Equal(t, 5, p.FoldsEvaluated, p.Rule.Key())
		assert.Equal(t, 1.0, p.ValidationRate, p.Rule.Key())
		assert.True(t, p.ValidatesOverall)
		assert.Equal(t, discovery.ConfidenceHigh, p.Confidence)
	}
}

func TestValidate_WrongDirectionFails(t *testing.T) {
	ds := mixedDataset(t, 2, 400)
	v := NewValidator(settingsFor(t, ds.Len()), nil)

	wrong := []discovery.ValidatedPattern{
		pattern(discovery.PatternRule{Kind: discovery.KindSubgroupPattern, Features: []string{"segment"}, Level: "north", Direction: -1}),
		pattern(discovery.PatternRule{Kind: discovery.KindThresholdEffect, Features: []string{"b"}, Percentile: 50, Direction: -1}),
	}
	out, err := v.Validate(context.Background(), ds, wrong)
	require.NoError(t, err)
	for _, p := range out {
		assert.Equal(t, 0.0, p.ValidationRate)
		assert.False(t, p.ValidatesOverall)
		assert.Equal(t, discovery.ConfidenceLow, p.Confidence)
	}
}

func TestValidate_UnevaluableFoldsExcluded(t *testing.T) {
	ds := mixedDataset(t, 3, 200)
	v := NewValidator(settingsFor(t, ds.Len()), nil)

	out, err := v.Validate(context.Background(), ds, []discovery.ValidatedPattern{
		pattern(discovery.PatternRule{Kind: discovery.KindSubgroupPattern, Features: []string{"segment"}, Level: "nowhere", Direction: 1}),
		pattern(discovery.PatternRule{Kind: discovery.KindSignFlip, Features: []string{"c"}, Context: "missing", NegativeLevel: "B", PositiveLevel: "A", Direction: 1}),
	})
	require.NoError(t, err)
	for _, p := range out {
		assert.Equal(t, 0, p.FoldsEvaluated)
		assert.Equal(t, 0.0, p.ValidationRate)
		assert.False(t, p.ValidatesOverall)
	}
}

func TestValidate_Deterministic(t *testing.T) {
	ds := mixedDataset(t, 4, 300)
	settings := settingsFor(t, ds.Len())

	noisy := append(realPatterns(),
		pattern(discovery.PatternRule{Kind: discovery.KindPairwiseInteraction, Features: []string{"a", "c"}, Direction: 1}),
		pattern(discovery.PatternRule{Kind: discovery.KindSubgroupPattern, Features: []string{"flag"}, Level: "true", Direction: 1}),
		pattern(discovery.PatternRule{Kind: discovery.KindThreeWayInteraction, Features: []string{"a", "b", "c"}, Direction: -1}),
	)
	first, err := NewValidator(settings, nil).Validate(context.Background(), ds, noisy)
	require.NoError(t, err)
	for run := 0; run < 3; run++ {
		again, err := NewValidator(settings, nil).Validate(context.Background(), ds, noisy)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	for _, p := range first {
		assert.GreaterOrEqual(t, p.ValidationRate, 0.0)
		assert.LessOrEqual(t, p.ValidationRate, 1.0)
		assert.Equal(t, p.ValidationRate >= 0.6, p.ValidatesOverall)
		assert.False(t, math.IsNaN(p.ValidationRate))
	}
}

func TestValidate_Cancelled(t *testing.T) {
	ds := mixedDataset(t, 5, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewValidator(settingsFor(t, ds.Len()), nil).Validate(ctx, ds, realPatterns())
	assert.Error(t, err)
}

func TestEvaluate_BooleanLevel(t *testing.T) {
	ds := mixedDataset(t, 6, 300)
	rule := discovery.PatternRule{Kind: discovery.KindSubgroupPattern, Features: []string{"flag"}, Level: "true", Direction: 1}
	train := ds.Subset(seq(0, 200))
	test := ds.Subset(seq(200, 300))
	v := Evaluate(rule, train, test, settingsFor(t, ds.Len()))
	assert.True(t, v.Evaluated, v.Reason)
}

func TestEvaluate_CubicTerm(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	var rows []discovery.Observation
	for i := 0; i < 400; i++ {
		a := rng.Float64()*6 - 3
		rows = append(rows, discovery.Observation{
			Values:  map[string]discovery.Value{"a": discovery.Number(a)},
			Outcome: 0.5*a*a*a + rng.NormFloat64()*0.5,
		})
	}
	ds, err := discovery.NewDataset(discovery.Schema{
		Outcome:  "y",
		Features: []discovery.Feature{{Name: "a", Kind: discovery.FeatureContinuous}},
	}, rows)
	require.NoError(t, err)
	train := ds.Subset(seq(0, 300))
	test := ds.Subset(seq(300, 400))
	settings := settingsFor(t, ds.Len())

	rising := discovery.PatternRule{Kind: discovery.KindPolynomialTerm, Features: []string{"a"}, Degree: 3, Direction: 1}
	v := Evaluate(rising, train, test, settings)
	assert.True(t, v.Evaluated, v.Reason)
	assert.True(t, v.Matched)

	falling := rising
	falling.Direction = -1
	v = Evaluate(falling, train, test, settings)
	assert.True(t, v.Evaluated, v.Reason)
	assert.False(t, v.Matched, "cubic coefficient keeps its sign on held-out data")
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

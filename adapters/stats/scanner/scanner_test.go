package scanner

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopattern/domain/discovery"
)

func testSettings(t *testing.T, n int) discovery.Settings {
	t.Helper()
	s, err := discovery.DefaultOptions().Resolve(n)
	require.NoError(t, err)
	return s
}

func buildDataset(t *testing.T, schema discovery.Schema, rows []discovery.Observation) *discovery.Dataset {
	t.Helper()
	ds, err := discovery.NewDataset(schema, rows)
	require.NoError(t, err)
	return ds
}

func TestScan_CategoricalLevelAboveBaseline(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	levels := []string{"alpha", "beta", "gamma"}
	var rows []discovery.Observation
	for i := 0; i < 300; i++ {
		level := levels[i%3]
		y := rng.NormFloat64()
		if level == "gamma" {
			y += 2
		}
		rows = append(rows, discovery.Observation{
			Values:  map[string]discovery.Value{"segment": discovery.Label(level)},
			Outcome: y,
		})
	}
	ds := buildDataset(t, discovery.Schema{
		Outcome:  "y",
		Features: []discovery.Feature{{Name: "segment", Kind: discovery.FeatureCategorical}},
	}, rows)

	outcomes := NewSubgroupScanner(testSettings(t, ds.Len()), nil).Scan(context.Background(), ds)
	require.Len(t, outcomes, 3)

	var gamma *discovery.Candidate
	for _, c := range discovery.Candidates(outcomes) {
		if c.Rule.Level == "gamma" {
			c := c
			gamma = &c
		}
	}
	require.NotNil(t, gamma, "expected a candidate for the shifted level")
	assert.Equal(t, discovery.KindSubgroupPattern, gamma.Kind)
	assert.Equal(t, discovery.ShapeAboveBaseline, gamma.Shape)
	assert.Equal(t, 1, gamma.Rule.Direction)
	assert.Equal(t, 100, gamma.SampleSize)
	assert.Greater(t, gamma.EffectSize, 1.0)
	assert.Less(t, gamma.PValue, 0.001)
	assert.Less(t, gamma.Metrics["ci_low"], gamma.Metrics["subgroup_mean"])
	assert.Greater(t, gamma.Metrics["ci_high"], gamma.Metrics["subgroup_mean"])
	assert.Contains(t, gamma.Description, "segment")
}

func TestScan_ContinuousBuckets(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var rows []discovery.Observation
	for i := 0; i < 500; i++ {
		x := rng.Float64() * 10
		y := rng.NormFloat64()
		if x > 8 {
			y -= 3
		}
		rows = append(rows, discovery.Observation{
			Values:  map[string]discovery.Value{"x": discovery.Number(x)},
			Outcome: y,
		})
	}
	ds := buildDataset(t, discovery.Schema{
		Outcome:  "y",
		Features: []discovery.Feature{{Name: "x", Kind: discovery.FeatureContinuous}},
	}, rows)

	outcomes := NewSubgroupScanner(testSettings(t, ds.Len()), nil).Scan(context.Background(), ds)
	require.Len(t, outcomes, 5)

	var top *discovery.Candidate
	for _, c := range discovery.Candidates(outcomes) {
		if c.Rule.Bucket == 4 {
			c := c
			top = &c
		}
	}
	require.NotNil(t, top)
	assert.True(t, top.Rule.IsBucketed())
	assert.Equal(t, 5, top.Rule.Buckets)
	assert.Equal(t, discovery.ShapeBelowBaseline, top.Shape)
	assert.Equal(t, -1, top.Rule.Direction)
	assert.Less(t, top.EffectSize, 0.0)
	assert.InDelta(t, 100, top.SampleSize, 2)
}

func TestScan_TiedBucketsKeyMatchesDescription(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	var rows []discovery.Observation
	for i := 0; i < 200; i++ {
		x, y := 0.0, rng.NormFloat64()
		switch {
		case i >= 160:
			x, y = 2, 5+rng.NormFloat64()
		case i >= 120:
			x = 1
		}
		rows = append(rows, discovery.Observation{
			Values:  map[string]discovery.Value{"x": discovery.Number(x)},
			Outcome: y,
		})
	}
	ds := buildDataset(t, discovery.Schema{
		Outcome:  "y",
		Features: []discovery.Feature{{Name: "x", Kind: discovery.FeatureContinuous}},
	}, rows)

	outcomes := NewSubgroupScanner(testSettings(t, ds.Len()), nil).Scan(context.Background(), ds)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "subgroup_pattern|x|q1/3|of5", outcomes[0].Test)

	var top *discovery.Candidate
	for _, c := range discovery.Candidates(outcomes) {
		if c.Rule.Bucket == 2 {
			c := c
			top = &c
		}
	}
	require.NotNil(t, top)
	assert.Equal(t, 5, top.Rule.Buckets)
	assert.Equal(t, 3, top.Rule.BucketCount())
	assert.Equal(t, "subgroup_pattern|x|q3/3|of5", top.Rule.Key())
	assert.Contains(t, top.Description, "quantile bucket 3/3")
	assert.Equal(t, 40, top.SampleSize)
}

func TestScan_SmallSubgroupsNeverEmitted(t *testing.T) {
	var rows []discovery.Observation
	for i := 0; i < 100; i++ {
		level, y := "common", float64(i%7)
		if i < 10 {
			level, y = "rare", 100+float64(i)
		}
		rows = append(rows, discovery.Observation{
			Values:  map[string]discovery.Value{"tier": discovery.Label(level)},
			Outcome: y,
		})
	}
	ds := buildDataset(t, discovery.Schema{
		Outcome:  "y",
		Features: []discovery.Feature{{Name: "tier", Kind: discovery.FeatureCategorical}},
	}, rows)

	outcomes := NewSubgroupScanner(testSettings(t, ds.Len()), nil).Scan(context.Background(), ds)
	for _, o := range outcomes {
		if o.Candidate != nil {
			assert.NotEqual(t, "rare", o.Candidate.Rule.Level)
			assert.GreaterOrEqual(t, o.Candidate.SampleSize, discovery.MinimumSampleFloor)
		}
		if o.Test == "subgroup_pattern|tier|level=rare" {
			assert.Equal(t, discovery.OutcomeSkipped, o.Status)
			assert.Equal(t, discovery.SkipInsufficientData, o.Reason)
		}
	}
}

func TestScan_ConstantFeatureAndZeroVarianceBucket(t *testing.T) {
	var rows []discovery.Observation
	for i := 0; i < 60; i++ {
		rows = append(rows, discovery.Observation{
			Values: map[string]discovery.Value{
				"flat": discovery.Number(3),
				"flag": discovery.Bool(i%2 == 0),
			},
			Outcome: 5,
		})
	}
	ds := buildDataset(t, discovery.Schema{
		Outcome: "y",
		Features: []discovery.Feature{
			{Name: "flat", Kind: discovery.FeatureContinuous},
			{Name: "flag", Kind: discovery.FeatureBoolean},
		},
	}, rows)

	outcomes := NewSubgroupScanner(testSettings(t, ds.Len()), nil).Scan(context.Background(), ds)
	assert.Empty(t, discovery.Candidates(outcomes))
	for _, o := range outcomes {
		assert.Equal(t, discovery.OutcomeSkipped, o.Status)
		assert.Equal(t, discovery.SkipZeroVariance, o.Reason, o.Test)
	}
}

func TestScan_MissingValuesDroppedPerFeature(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var rows []discovery.Observation
	for i := 0; i < 120; i++ {
		v := discovery.Label("a")
		if i%2 == 1 {
			v = discovery.Label("b")
		}
		if i%4 == 0 {
			v = discovery.Missing()
		}
		rows = append(rows, discovery.Observation{
			Values:  map[string]discovery.Value{"g": v},
			Outcome: rng.NormFloat64(),
		})
	}
	ds := buildDataset(t, discovery.Schema{
		Outcome:  "y",
		Features: []discovery.Feature{{Name: "g", Kind: discovery.FeatureCategorical}},
	}, rows)

	outcomes := NewSubgroupScanner(testSettings(t, ds.Len()), nil).Scan(context.Background(), ds)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.NotEqual(t, discovery.OutcomeSkipped, o.Status, o.Detail)
	}
}

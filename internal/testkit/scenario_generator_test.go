package testkit

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopattern/domain/core"
	"gopattern/domain/discovery"
	"gopattern/ports"
)

func TestScenarioGenerator_Deterministic(t *testing.T) {
	a, err := NewScenarioGenerator(DefaultScenarioConfig()).Storefront()
	require.NoError(t, err)
	b, err := NewScenarioGenerator(DefaultScenarioConfig()).Storefront()
	require.NoError(t, err)

	require.Equal(t, a.Dataset.Len(), b.Dataset.Len())
	assert.Equal(t, a.Dataset.Outcome(), b.Dataset.Outcome())
	assert.Equal(t, 500, a.Dataset.Len())
	assert.Equal(t, []string{"channel"}, a.Dataset.ContextNames())
}

func TestScenarioGenerator_ThresholdSides(t *testing.T) {
	s, err := NewScenarioGenerator(ScenarioConfig{Rows: 400, Noise: 2, Seed: 1}).Threshold(10)
	require.NoError(t, err)

	h, ok := s.Dataset.Spec().Handle("feature_b")
	require.True(t, ok)
	above := 0
	for _, v := range s.Dataset.Numeric(h) {
		if v > 5 {
			above++
		}
	}
	assert.Equal(t, 200, above)
}

func TestScenarioGenerator_SignFlipContexts(t *testing.T) {
	s, err := NewScenarioGenerator(ScenarioConfig{Rows: 200, Seed: 3}).SignFlip(0.5)
	require.NoError(t, err)
	col, ok := s.Dataset.Context("context")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, col.Levels)
	assert.Equal(t, 0, col.Codes[0])
	assert.Equal(t, 1, col.Codes[199])
}

func TestScenarioGenerator_QuadraticRange(t *testing.T) {
	s, err := NewScenarioGenerator(DefaultScenarioConfig()).Quadratic()
	require.NoError(t, err)
	h, _ := s.Dataset.Spec().Handle("feature_a")
	for _, v := range s.Dataset.Numeric(h) {
		assert.True(t, v >= -3 && v <= 3)
		assert.False(t, math.IsNaN(v))
	}
}

func TestInMemoryRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRunRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, outcome := range []string{"revenue", "revenue", "churn"} {
		run := &discovery.AnalysisRun{
			ID:        core.NewRunID(),
			Status:    discovery.StatusCompleted,
			Outcome:   outcome,
			CreatedAt: core.NewTimestamp(base.Add(time.Duration(i) * time.Hour)),
			Patterns:  make([]discovery.ValidatedPattern, i),
		}
		require.NoError(t, repo.SaveRun(ctx, run))
	}

	all, err := repo.ListRuns(ctx, ports.RunFilters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "churn", all[0].Outcome, "newest first")
	assert.Equal(t, 2, all[0].Patterns)

	revenue, err := repo.ListRuns(ctx, ports.RunFilters{Outcome: "revenue", Limit: 1})
	require.NoError(t, err)
	require.Len(t, revenue, 1)

	got, err := repo.GetRun(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "churn", got.Outcome)

	require.NoError(t, repo.DeleteRun(ctx, all[0].ID))
	_, err = repo.GetRun(ctx, all[0].ID)
	assert.True(t, core.IsNotFoundError(err))
	assert.True(t, core.IsNotFoundError(repo.DeleteRun(ctx, all[0].ID)))
}

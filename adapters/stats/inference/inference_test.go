package inference

import (
	"errors"
	"math"
	"testing"

	"gopattern/domain/core"
)

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s: expected %.6f ± %.6f, got %.6f", name, want, tol, got)
	}
}

func TestOneSampleTTest_KnownValues(t *testing.T) {
	res, err := OneSampleTTest([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "mean", res.Mean, 5, 1e-12)
	approx(t, "sd", res.SD, math.Sqrt(32.0/7.0), 1e-9)
	approx(t, "t", res.T, 2.6458, 1e-3)
	approx(t, "p", res.PValue, 0.0331, 2e-3)
	if res.CILow >= res.Mean || res.CIHigh <= res.Mean {
		t.Fatalf("confidence interval [%f, %f] does not contain mean %f", res.CILow, res.CIHigh, res.Mean)
	}
	approx(t, "effect", res.EffectSize, 2/res.SD, 1e-12)
}

func TestOneSampleTTest_NullMean(t *testing.T) {
	res, err := OneSampleTTest([]float64{1, 2, 3, 4, 5}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "t", res.T, 0, 1e-12)
	approx(t, "p", res.PValue, 1, 1e-9)
}

func TestOneSampleTTest_Degenerate(t *testing.T) {
	if _, err := OneSampleTTest([]float64{4, 4, 4, 4}, 3); !errors.Is(err, core.ErrZeroVariance) {
		t.Fatalf("expected zero variance error, got %v", err)
	}
	if _, err := OneSampleTTest([]float64{4}, 3); !core.IsInsufficientData(err) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
}

func TestWelchTTest_KnownValues(t *testing.T) {
	res, err := WelchTTest([]float64{1, 2, 3, 4, 5}, []float64{3, 4, 5, 6, 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "t", res.T, -2, 1e-12)
	approx(t, "df", res.DF, 8, 1e-9)
	approx(t, "p", res.PValue, 0.0805, 1e-3)
	approx(t, "mean diff", res.MeanDiff(), -2, 1e-12)
}

func TestWelchTTest_ZeroVariance(t *testing.T) {
	_, err := WelchTTest([]float64{1, 1, 1}, []float64{2, 2, 2})
	if !errors.Is(err, core.ErrZeroVariance) {
		t.Fatalf("expected zero variance error, got %v", err)
	}
	if !core.IsNumericDegeneracy(err) {
		t.Fatalf("zero variance should classify as numeric degeneracy")
	}
}

func TestPearson(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	y := []float64{2, 4, 6, 8, 10, 12}

	res, err := Pearson(x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "r", res.R, 1, 1e-12)
	approx(t, "p", res.PValue, 0, 1e-12)

	neg, err := Pearson(x, []float64{6, 5.5, 3, 4, 1, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if neg.R >= -0.8 || neg.PValue > 0.05 {
		t.Fatalf("expected strong negative correlation, got r=%.3f p=%.4f", neg.R, neg.PValue)
	}

	if _, err := Pearson(x, []float64{1, 1, 1, 1, 1, 1}); !errors.Is(err, core.ErrZeroVariance) {
		t.Fatalf("expected zero variance error, got %v", err)
	}
	if _, err := Pearson(x[:2], y[:2]); !core.IsInsufficientData(err) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestFisherZDifference(t *testing.T) {
	z, p, err := FisherZDifference(0.5, 100, -0.5, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "z", z, 7.65, 0.02)
	if p > 1e-10 {
		t.Fatalf("expected tiny p for opposite correlations, got %g", p)
	}

	_, p, err = FisherZDifference(0.3, 50, 0.3, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "equal correlations p", p, 1, 1e-9)

	if _, _, err := FisherZDifference(0.3, 3, 0.1, 50); !core.IsInsufficientData(err) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestPower(t *testing.T) {
	approx(t, "null effect", Power(0, 100, 0.05), 0.025, 1e-3)
	approx(t, "medium effect", Power(0.5, 100, 0.05), 0.9988, 1e-3)
	if Power(0.2, 50, 0.0001) >= Power(0.2, 50, 0.05) {
		t.Fatalf("power must fall as alpha tightens")
	}
	if Power(0.3, 0, 0.05) != 0 {
		t.Fatalf("power for empty sample must be 0")
	}
}

func TestCutpointsAndBuckets(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}
	edges, err := Cutpoints(values, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{20, 40, 60, 80}
	if len(edges) != len(want) {
		t.Fatalf("expected %v, got %v", want, edges)
	}
	for i := range want {
		approx(t, "edge", edges[i], want[i], 1e-9)
	}

	counts := make([]int, 5)
	for _, v := range values {
		counts[BucketOf(v, edges)]++
	}
	for i, c := range counts {
		if c != 20 {
			t.Fatalf("bucket %d expected 20 values, got %d", i, c)
		}
	}

	tied := []float64{1, 1, 1, 1, 1, 1, 1, 1, 2, 2}
	edges, err = Cutpoints(tied, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected tied values to collapse edges, got %v", edges)
	}

	edges, err = Cutpoints([]float64{3, 3, 3, 3}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected no edges for a constant sample, got %v", edges)
	}

	// low quantiles of a tiny sample are skipped rather than failing
	edges, err = Cutpoints([]float64{1, 2, 3}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want = []float64{1.5, 2.5}
	if len(edges) != len(want) {
		t.Fatalf("expected %v, got %v", want, edges)
	}
	for i := range want {
		approx(t, "small sample edge", edges[i], want[i], 1e-9)
	}
}

package inference

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gopattern/domain/core"
)

// OneSampleResult holds a one-sample t-test against a reference mean.
type OneSampleResult struct {
	N          int
	Mean       float64
	SD         float64
	SE         float64
	T          float64
	DF         float64
	PValue     float64
	EffectSize float64 // (mean - reference) / sd
	CILow      float64 // 95% interval on the mean
	CIHigh     float64
}

// OneSampleTTest tests whether values have mean `reference`.
func OneSampleTTest(values []float64, reference float64) (OneSampleResult, error) {
	mean, sd, err := MeanSD(values)
	if err != nil {
		return OneSampleResult{}, err
	}
	if sd < nearZero {
		return OneSampleResult{}, core.ErrZeroVariance
	}
	n := float64(len(values))
	se := sd / math.Sqrt(n)
	df := n - 1
	t := (mean - reference) / se
	crit := TQuantile(0.975, df)

	return OneSampleResult{
		N:          len(values),
		Mean:       mean,
		SD:         sd,
		SE:         se,
		T:          t,
		DF:         df,
		PValue:     TwoSidedP(t, df),
		EffectSize: (mean - reference) / sd,
		CILow:      mean - crit*se,
		CIHigh:     mean + crit*se,
	}, nil
}

// TwoSampleResult holds a Welch two-sample t-test.
type TwoSampleResult struct {
	N1, N2 int
	Mean1  float64
	Mean2  float64
	Var1   float64
	Var2   float64
	T      float64
	DF     float64
	PValue float64
}

// MeanDiff returns Mean1 - Mean2.
func (r TwoSampleResult) MeanDiff() float64 {
	return r.Mean1 - r.Mean2
}

// WelchTTest compares two group means without assuming equal variances.
func WelchTTest(a, b []float64) (TwoSampleResult, error) {
	if len(a) < 2 {
		return TwoSampleResult{}, core.NewInsufficientDataError("group 1", len(a), 2)
	}
	if len(b) < 2 {
		return TwoSampleResult{}, core.NewInsufficientDataError("group 2", len(b), 2)
	}
	m1, sd1, err := MeanSD(a)
	if err != nil {
		return TwoSampleResult{}, err
	}
	m2, sd2, err := MeanSD(b)
	if err != nil {
		return TwoSampleResult{}, err
	}
	n1, n2 := float64(len(a)), float64(len(b))
	v1, v2 := sd1*sd1, sd2*sd2
	s1, s2 := v1/n1, v2/n2
	if s1+s2 < nearZero*nearZero {
		return TwoSampleResult{}, core.ErrZeroVariance
	}

	t := (m1 - m2) / math.Sqrt(s1+s2)
	df := (s1 + s2) * (s1 + s2) / (s1*s1/(n1-1) + s2*s2/(n2-1))

	return TwoSampleResult{
		N1:     len(a),
		N2:     len(b),
		Mean1:  m1,
		Mean2:  m2,
		Var1:   v1,
		Var2:   v2,
		T:      t,
		DF:     df,
		PValue: TwoSidedP(t, df),
	}, nil
}

// TwoSidedP returns the two-sided p-value of a t statistic.
func TwoSidedP(t, df float64) float64 {
	if math.IsNaN(t) || df <= 0 {
		return 1
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.CDF(-math.Abs(t))
	return clamp01(p)
}

// TQuantile returns the p-quantile of Student's t with df degrees of freedom.
func TQuantile(p, df float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return dist.Quantile(p)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 1
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

package regression

import (
	"math"

	"gopattern/adapters/stats/inference"
	"gopattern/domain/discovery"
)

// Standardizer holds per-feature means and standard deviations fitted on one dataset so
// the same transform can be applied to another (e.g. a held-out fold).
type Standardizer struct {
	handles []discovery.FeatureHandle
	names   []string
	kinds   []discovery.FeatureKind
	means   []float64
	sds     []float64
}

// FitStandardizer fits the transform on every numeric feature of ds. Features with
// fewer than two values or zero variance are excluded and reported as skipped outcomes.
func FitStandardizer(ds *discovery.Dataset) (*Standardizer, []discovery.TestOutcome) {
	spec := ds.Spec()
	s := &Standardizer{}
	var skipped []discovery.TestOutcome

	for _, h := range spec.HandlesOfKind(discovery.FeatureContinuous, discovery.FeatureBoolean) {
		f := spec.Feature(h)
		values := presentValues(ds.Numeric(h))
		test := "standardize|" + f.Name
		if len(values) < 2 {
			skipped = append(skipped, discovery.Skipped(test, discovery.SkipInsufficientData, "fewer than two observed values"))
			continue
		}
		mean, sd, err := inference.MeanSD(values)
		if err != nil {
			skipped = append(skipped, discovery.SkippedErr(test, err))
			continue
		}
		if sd < 1e-10 {
			skipped = append(skipped, discovery.Skipped(test, discovery.SkipZeroVariance, "constant feature"))
			continue
		}
		s.handles = append(s.handles, h)
		s.names = append(s.names, f.Name)
		s.kinds = append(s.kinds, f.Kind)
		s.means = append(s.means, mean)
		s.sds = append(s.sds, sd)
	}
	return s, skipped
}

// Apply standardizes ds with the fitted parameters. Missing values stay NaN.
func (s *Standardizer) Apply(ds *discovery.Dataset) *Matrix {
	m := &Matrix{
		Names:   append([]string(nil), s.names...),
		Kinds:   append([]discovery.FeatureKind(nil), s.kinds...),
		Columns: make([][]float64, len(s.handles)),
		Outcome: ds.Outcome(),
		index:   make(map[string]int, len(s.names)),
	}
	for j, h := range s.handles {
		raw := ds.Numeric(h)
		col := make([]float64, len(raw))
		for i, v := range raw {
			col[i] = (v - s.means[j]) / s.sds[j]
		}
		m.Columns[j] = col
		m.index[s.names[j]] = j
	}
	return m
}

// Matrix is the standardized numeric feature matrix shared by the detectors.
// Columns are mean 0 / unit variance; NaN marks a missing value.
type Matrix struct {
	Names   []string
	Kinds   []discovery.FeatureKind
	Columns [][]float64
	Outcome []float64
	index   map[string]int
}

// Standardize fits and applies a standardizer on the same dataset.
func Standardize(ds *discovery.Dataset) (*Matrix, []discovery.TestOutcome) {
	s, skipped := FitStandardizer(ds)
	return s.Apply(ds), skipped
}

// Column looks up a standardized column by feature name.
func (m *Matrix) Column(name string) (int, bool) {
	j, ok := m.index[name]
	return j, ok
}

// Len returns the number of rows.
func (m *Matrix) Len() int {
	return len(m.Outcome)
}

// CompleteRows returns the rows where the outcome and every listed column are present.
func (m *Matrix) CompleteRows(cols ...int) []int {
	var rows []int
	for i := range m.Outcome {
		if math.IsNaN(m.Outcome[i]) {
			continue
		}
		ok := true
		for _, j := range cols {
			if math.IsNaN(m.Columns[j][i]) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}

// ColumnsOfKind returns column indices whose feature kind matches.
func (m *Matrix) ColumnsOfKind(kinds ...discovery.FeatureKind) []int {
	var out []int
	for j, k := range m.Kinds {
		for _, want := range kinds {
			if k == want {
				out = append(out, j)
				break
			}
		}
	}
	return out
}

func presentValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

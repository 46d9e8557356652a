package discovery

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopattern/domain/core"
)

// Value is one cell of an observation. The zero Value is missing.
type Value struct {
	Number  float64
	Label   string
	present bool
	numeric bool
}

// Number builds a numeric value. NaN is treated as missing.
func Number(v float64) Value {
	if math.IsNaN(v) {
		return Value{}
	}
	return Value{Number: v, present: true, numeric: true}
}

// Label builds a categorical value. The empty label is treated as missing.
func Label(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{Label: s, present: true}
}

// Bool builds a boolean value stored as 0/1.
func Bool(b bool) Value {
	if b {
		return Number(1)
	}
	return Number(0)
}

// Missing returns an explicitly missing value.
func Missing() Value {
	return Value{}
}

// IsMissing reports whether the cell carries no value.
func (v Value) IsMissing() bool {
	return !v.present
}

// Observation is one row: feature values, the outcome and context labels.
type Observation struct {
	Values   map[string]Value  `json:"-"`
	Outcome  float64           `json:"outcome"`
	Contexts map[string]string `json:"contexts,omitempty"`
}

// Schema declares which columns of a table the engine reads.
type Schema struct {
	Outcome  string    `json:"outcome" yaml:"outcome"`
	Features []Feature `json:"features" yaml:"features"`
	Contexts []string  `json:"contexts,omitempty" yaml:"contexts,omitempty"`
}

// CategoricalColumn stores labels as codes into a sorted level list; -1 is missing.
type CategoricalColumn struct {
	Name   string
	Levels []string
	Codes  []int
}

// Dataset is an immutable, validated in-memory table.
type Dataset struct {
	spec        FeatureSpec
	outcomeName string
	outcome     []float64
	numeric     [][]float64          // indexed by FeatureHandle, nil for categorical
	categorical []*CategoricalColumn // indexed by FeatureHandle, nil for numeric
	contexts    []*CategoricalColumn
}

// Len returns the number of observations.
func (d *Dataset) Len() int {
	return len(d.outcome)
}

// Spec returns the feature specification.
func (d *Dataset) Spec() FeatureSpec {
	return d.spec
}

// OutcomeName returns the outcome column name.
func (d *Dataset) OutcomeName() string {
	return d.outcomeName
}

// Outcome returns the outcome column. NaN marks missing. Callers must not modify it.
func (d *Dataset) Outcome() []float64 {
	return d.outcome
}

// Numeric returns a numeric feature column (NaN marks missing), or nil for categorical features.
func (d *Dataset) Numeric(h FeatureHandle) []float64 {
	return d.numeric[h]
}

// Categorical returns a categorical feature column, or nil for numeric features.
func (d *Dataset) Categorical(h FeatureHandle) *CategoricalColumn {
	return d.categorical[h]
}

// ContextNames returns the declared context columns in order.
func (d *Dataset) ContextNames() []string {
	names := make([]string, len(d.contexts))
	for i, c := range d.contexts {
		names[i] = c.Name
	}
	return names
}

// Context returns a context column by name.
func (d *Dataset) Context(name string) (*CategoricalColumn, bool) {
	for _, c := range d.contexts {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Schema reconstructs the schema the dataset was built from.
func (d *Dataset) Schema() Schema {
	return Schema{
		Outcome:  d.outcomeName,
		Features: d.spec.Features(),
		Contexts: d.ContextNames(),
	}
}

// Row reconstructs observation i.
func (d *Dataset) Row(i int) Observation {
	obs := Observation{
		Values:   make(map[string]Value, d.spec.Len()),
		Outcome:  d.outcome[i],
		Contexts: make(map[string]string, len(d.contexts)),
	}
	for _, h := range d.spec.Handles() {
		f := d.spec.Feature(h)
		if col := d.numeric[h]; col != nil {
			obs.Values[f.Name] = Number(col[i])
			continue
		}
		cat := d.categorical[h]
		if code := cat.Codes[i]; code >= 0 {
			obs.Values[f.Name] = Label(cat.Levels[code])
		} else {
			obs.Values[f.Name] = Missing()
		}
	}
	for _, c := range d.contexts {
		if code := c.Codes[i]; code >= 0 {
			obs.Contexts[c.Name] = c.Levels[code]
		}
	}
	return obs
}

// Rows reconstructs every observation in order.
func (d *Dataset) Rows() []Observation {
	rows := make([]Observation, d.Len())
	for i := range rows {
		rows[i] = d.Row(i)
	}
	return rows
}

// Subset returns a dataset restricted to the given row indices. Level lists are kept so
// codes stay comparable between a dataset and its subsets.
func (d *Dataset) Subset(rows []int) *Dataset {
	sub := &Dataset{
		spec:        d.spec,
		outcomeName: d.outcomeName,
		outcome:     pick(d.outcome, rows),
		numeric:     make([][]float64, len(d.numeric)),
		categorical: make([]*CategoricalColumn, len(d.categorical)),
		contexts:    make([]*CategoricalColumn, len(d.contexts)),
	}
	for h, col := range d.numeric {
		if col != nil {
			sub.numeric[h] = pick(col, rows)
		}
	}
	for h, col := range d.categorical {
		if col != nil {
			sub.categorical[h] = col.subset(rows)
		}
	}
	for i, col := range d.contexts {
		sub.contexts[i] = col.subset(rows)
	}
	return sub
}

func (c *CategoricalColumn) subset(rows []int) *CategoricalColumn {
	codes := make([]int, len(rows))
	for i, r := range rows {
		codes[i] = c.Codes[r]
	}
	return &CategoricalColumn{Name: c.Name, Levels: c.Levels, Codes: codes}
}

func pick(values []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = values[r]
	}
	return out
}

// DatasetBuilder accumulates observations against a schema and validates them.
type DatasetBuilder struct {
	schema  Schema
	spec    FeatureSpec
	outcome []float64
	numeric [][]float64
	labels  [][]string
	context [][]string
}

// NewDatasetBuilder validates the schema up front.
func NewDatasetBuilder(schema Schema) (*DatasetBuilder, error) {
	if strings.TrimSpace(schema.Outcome) == "" {
		return nil, core.NewSchemaError("", "outcome column is required")
	}
	spec, err := NewFeatureSpec(schema.Features)
	if err != nil {
		return nil, err
	}
	if spec.Len() == 0 {
		return nil, core.NewSchemaError(schema.Outcome, "at least one feature is required")
	}
	if _, clash := spec.Handle(schema.Outcome); clash {
		return nil, core.NewSchemaError(schema.Outcome, "outcome is also declared as a feature")
	}
	seen := make(map[string]bool, len(schema.Contexts))
	for _, c := range schema.Contexts {
		if strings.TrimSpace(c) == "" {
			return nil, core.NewSchemaError(c, "context name cannot be empty")
		}
		if seen[c] || c == schema.Outcome {
			return nil, core.NewSchemaError(c, "context declared twice or equal to outcome")
		}
		seen[c] = true
	}

	b := &DatasetBuilder{
		schema:  schema,
		spec:    spec,
		numeric: make([][]float64, spec.Len()),
		labels:  make([][]string, spec.Len()),
		context: make([][]string, len(schema.Contexts)),
	}
	return b, nil
}

// Append adds one observation. Absent feature keys are treated as missing.
func (b *DatasetBuilder) Append(obs Observation) error {
	row := len(b.outcome)
	for _, h := range b.spec.Handles() {
		f := b.spec.Feature(h)
		v := obs.Values[f.Name]
		switch f.Kind {
		case FeatureContinuous:
			num, err := numericValue(v)
			if err != nil {
				return fmt.Errorf("row %d, feature %q: %w", row, f.Name, err)
			}
			b.numeric[h] = append(b.numeric[h], num)
		case FeatureBoolean:
			num, err := booleanValue(v)
			if err != nil {
				return fmt.Errorf("row %d, feature %q: %w", row, f.Name, err)
			}
			b.numeric[h] = append(b.numeric[h], num)
		case FeatureCategorical:
			b.labels[h] = append(b.labels[h], labelValue(v))
		}
	}
	for i, name := range b.schema.Contexts {
		b.context[i] = append(b.context[i], obs.Contexts[name])
	}
	outcome := obs.Outcome
	if math.IsInf(outcome, 0) {
		outcome = math.NaN()
	}
	b.outcome = append(b.outcome, outcome)
	return nil
}

// Build freezes the accumulated observations into a Dataset.
func (b *DatasetBuilder) Build() *Dataset {
	ds := &Dataset{
		spec:        b.spec,
		outcomeName: b.schema.Outcome,
		outcome:     append([]float64(nil), b.outcome...),
		numeric:     make([][]float64, b.spec.Len()),
		categorical: make([]*CategoricalColumn, b.spec.Len()),
		contexts:    make([]*CategoricalColumn, len(b.schema.Contexts)),
	}
	n := len(b.outcome)
	for _, h := range b.spec.Handles() {
		f := b.spec.Feature(h)
		if f.Kind.IsNumeric() {
			col := make([]float64, n)
			copy(col, b.numeric[h])
			ds.numeric[h] = col
			continue
		}
		ds.categorical[h] = encodeLabels(f.Name, b.labels[h], n)
	}
	for i, name := range b.schema.Contexts {
		ds.contexts[i] = encodeLabels(name, b.context[i], n)
	}
	return ds
}

// NewDataset builds a dataset from a schema and a slice of observations.
func NewDataset(schema Schema, rows []Observation) (*Dataset, error) {
	b, err := NewDatasetBuilder(schema)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := b.Append(row); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func encodeLabels(name string, labels []string, n int) *CategoricalColumn {
	levelSet := make(map[string]struct{})
	for _, l := range labels {
		if l != "" {
			levelSet[l] = struct{}{}
		}
	}
	levels := make([]string, 0, len(levelSet))
	for l := range levelSet {
		levels = append(levels, l)
	}
	sort.Strings(levels)

	lookup := make(map[string]int, len(levels))
	for i, l := range levels {
		lookup[l] = i
	}
	codes := make([]int, n)
	for i := range codes {
		codes[i] = -1
		if i < len(labels) && labels[i] != "" {
			codes[i] = lookup[labels[i]]
		}
	}
	return &CategoricalColumn{Name: name, Levels: levels, Codes: codes}
}

func numericValue(v Value) (float64, error) {
	if v.IsMissing() {
		return math.NaN(), nil
	}
	if v.numeric {
		if math.IsInf(v.Number, 0) {
			return math.NaN(), nil
		}
		return v.Number, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Label), 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is not numeric", v.Label)
	}
	// "inf", "Infinity" and "NaN" cells are missing, same as non-finite numbers
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return math.NaN(), nil
	}
	return f, nil
}

func booleanValue(v Value) (float64, error) {
	if v.IsMissing() {
		return math.NaN(), nil
	}
	if v.numeric {
		if v.Number != 0 && v.Number != 1 {
			return 0, fmt.Errorf("boolean value must be 0 or 1, got %v", v.Number)
		}
		return v.Number, nil
	}
	switch strings.ToLower(strings.TrimSpace(v.Label)) {
	case "1", "true", "t", "yes", "y":
		return 1, nil
	case "0", "false", "f", "no", "n":
		return 0, nil
	}
	return 0, fmt.Errorf("value %q is not boolean", v.Label)
}

func labelValue(v Value) string {
	if v.IsMissing() {
		return ""
	}
	if v.numeric {
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	}
	return v.Label
}

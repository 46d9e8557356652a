package excel

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopattern/domain/discovery"
)

const (
	maxSampleSize     = 500
	maxCategoryLevels = 20
	numericThreshold  = 0.95
)

// Common entity column names; identifiers are never features
var entityColumns = map[string]bool{
	"id":          true,
	"entity_id":   true,
	"customer_id": true,
	"user_id":     true,
	"account_id":  true,
	"record_id":   true,
	"key":         true,
	"primary_key": true,
}

// InferSchema proposes a schema for source: numeric columns become continuous, two-valued
// columns boolean, low-cardinality columns categorical. Identifier and free-text columns
// are left out.
func (r *DataReader) InferSchema(ctx context.Context, source string, outcome string) (discovery.Schema, error) {
	table, err := r.ReadTable(source)
	if err != nil {
		return discovery.Schema{}, err
	}
	if err := ctx.Err(); err != nil {
		return discovery.Schema{}, err
	}
	return InferSchema(table, outcome)
}

// InferSchema classifies the columns of a table.
func InferSchema(table *Table, outcome string) (discovery.Schema, error) {
	if table.Column(outcome) < 0 {
		return discovery.Schema{}, fmt.Errorf("outcome column %q not found", outcome)
	}
	if len(table.Rows) == 0 {
		return discovery.Schema{}, fmt.Errorf("no data rows to analyze")
	}

	schema := discovery.Schema{Outcome: outcome}
	sample := stratifiedSample(len(table.Rows), maxSampleSize)
	for col, header := range table.Headers {
		if header == "" || header == outcome || entityColumns[strings.ToLower(header)] {
			continue
		}
		kind, ok := inferKind(table, col, sample)
		if !ok {
			continue
		}
		schema.Features = append(schema.Features, discovery.Feature{Name: header, Kind: kind})
	}
	if len(schema.Features) == 0 {
		return discovery.Schema{}, fmt.Errorf("no usable feature columns besides %q", outcome)
	}
	return schema, nil
}

// columnProfile counts how the sampled cells of one column parse
type columnProfile struct {
	valid    int
	numeric  int
	integers int
	booleans int
	unique   map[string]bool
}

func profileColumn(table *Table, col int, sample []int) columnProfile {
	p := columnProfile{unique: make(map[string]bool)}
	for _, idx := range sample {
		cell := table.Rows[idx][col]
		if cell == "" {
			continue
		}
		p.valid++
		p.unique[strings.ToLower(cell)] = true
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			p.numeric++
			if v == math.Trunc(v) {
				p.integers++
			}
		}
		if isBooleanToken(cell) {
			p.booleans++
		}
	}
	return p
}

func inferKind(table *Table, col int, sample []int) (discovery.FeatureKind, bool) {
	p := profileColumn(table, col, sample)
	if p.valid == 0 {
		return "", false
	}
	if len(p.unique) == 1 {
		return "", false
	}

	if p.booleans == p.valid && len(p.unique) == 2 {
		return discovery.FeatureBoolean, true
	}

	uniqueRatio := float64(len(p.unique)) / float64(p.valid)
	lowCardinality := len(p.unique) <= maxCategoryLevels && uniqueRatio < 0.1

	if float64(p.numeric)/float64(p.valid) >= numericThreshold {
		// low cardinality integer codes are categories, not measurements
		if p.integers == p.numeric && lowCardinality && len(p.unique) <= 5 {
			return discovery.FeatureCategorical, true
		}
		return discovery.FeatureContinuous, true
	}
	if len(p.unique) <= maxCategoryLevels {
		return discovery.FeatureCategorical, true
	}
	return "", false
}

func isBooleanToken(cell string) bool {
	switch strings.ToLower(cell) {
	case "1", "0", "true", "false", "t", "f", "yes", "no", "y", "n":
		return true
	}
	return false
}

// stratifiedSample returns evenly distributed row indices across the dataset
func stratifiedSample(totalRows, sampleSize int) []int {
	if sampleSize >= totalRows {
		indices := make([]int, totalRows)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	indices := make([]int, 0, sampleSize)
	step := float64(totalRows) / float64(sampleSize)
	last := -1
	for i := 0; i < sampleSize; i++ {
		idx := int(math.Floor(float64(i) * step))
		if idx > last && idx < totalRows {
			indices = append(indices, idx)
			last = idx
		}
	}
	return indices
}

package ports

import (
	"context"

	"gopattern/domain/discovery"
)

// DatasetReaderPort loads tabular sources into validated datasets. The engine never
// touches files or databases itself; everything it analyzes arrives through this port.
type DatasetReaderPort interface {
	// ReadDataset reads source and keeps only the columns the schema declares.
	ReadDataset(ctx context.Context, source string, schema discovery.Schema) (*discovery.Dataset, error)

	// InferSchema proposes a schema for source: numeric columns become continuous,
	// two-valued columns boolean, everything else categorical.
	InferSchema(ctx context.Context, source string, outcome string) (discovery.Schema, error)
}

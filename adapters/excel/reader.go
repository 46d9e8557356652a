package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"gopattern/domain/discovery"
	"gopattern/internal"
)

// DataReader handles reading Excel and CSV files into datasets
type DataReader struct {
	sheet  string // empty means the first sheet of the workbook
	logger *internal.Logger
}

// NewDataReader creates a reader that handles both .xlsx and .csv sources
func NewDataReader(logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &DataReader{logger: logger.Named("excel")}
}

// WithSheet returns a reader that reads the named workbook sheet.
func (r *DataReader) WithSheet(sheet string) *DataReader {
	return &DataReader{sheet: sheet, logger: r.logger}
}

func fileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".xlsx", ".xlsm":
		return "xlsx"
	}
	return ""
}

// ReadTable reads a source into a raw table
func (r *DataReader) ReadTable(path string) (*Table, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	var (
		rows [][]string
		err  error
	)
	start := time.Now()
	switch kind := fileType(path); kind {
	case "csv":
		rows, err = r.readCSV(path)
	case "xlsx":
		rows, err = r.readExcel(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s must have a header row and at least one data row", filepath.Base(path))
	}
	r.logger.Debug("read %s in %.2fms (%d rows)", filepath.Base(path), float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	return processRows(rows), nil
}

func (r *DataReader) readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", filepath.Base(path))
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func (r *DataReader) readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// processRows trims headers and cells and pads short rows
func processRows(rows [][]string) *Table {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := make([]string, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				cells[j] = strings.TrimSpace(cell)
			}
		}
		data = append(data, cells)
	}
	return &Table{Headers: headers, Rows: data}
}

// ReadDataset reads source and keeps only the columns the schema declares. Empty cells are
// missing values; a non-numeric outcome cell is an error.
func (r *DataReader) ReadDataset(ctx context.Context, source string, schema discovery.Schema) (*discovery.Dataset, error) {
	table, err := r.ReadTable(source)
	if err != nil {
		return nil, err
	}
	return r.Build(ctx, table, schema)
}

// Build converts a raw table into a validated dataset.
func (r *DataReader) Build(ctx context.Context, table *Table, schema discovery.Schema) (*discovery.Dataset, error) {
	builder, err := discovery.NewDatasetBuilder(schema)
	if err != nil {
		return nil, err
	}

	outcomeCol := table.Column(schema.Outcome)
	if outcomeCol < 0 {
		return nil, fmt.Errorf("outcome column %q not found", schema.Outcome)
	}
	featureCols := make([]int, len(schema.Features))
	for i, f := range schema.Features {
		if featureCols[i] = table.Column(f.Name); featureCols[i] < 0 {
			return nil, fmt.Errorf("feature column %q not found", f.Name)
		}
	}
	contextCols := make([]int, len(schema.Contexts))
	for i, c := range schema.Contexts {
		if contextCols[i] = table.Column(c); contextCols[i] < 0 {
			return nil, fmt.Errorf("context column %q not found", c)
		}
	}

	for i, row := range table.Rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		outcome, err := parseOutcome(row[outcomeCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		obs := discovery.Observation{
			Values:   make(map[string]discovery.Value, len(schema.Features)),
			Outcome:  outcome,
			Contexts: make(map[string]string, len(schema.Contexts)),
		}
		for j, f := range schema.Features {
			obs.Values[f.Name] = discovery.Label(row[featureCols[j]])
		}
		for j, c := range schema.Contexts {
			obs.Contexts[c] = row[contextCols[j]]
		}
		if err := builder.Append(obs); err != nil {
			return nil, err
		}
	}

	ds := builder.Build()
	r.logger.Info("loaded %d rows, %d features, %d contexts", ds.Len(), len(schema.Features), len(schema.Contexts))
	return ds, nil
}

func parseOutcome(cell string) (float64, error) {
	if cell == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("outcome value %q is not numeric", cell)
	}
	return v, nil
}

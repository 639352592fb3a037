package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TargetColumn is the regression label in uploaded attendance files.
const TargetColumn = "students_present"

// SchemaError reports a header that cannot be trained on.
type SchemaError struct {
	Expected string
	Header   []string
	Reason   string
}

func (e *SchemaError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("schema error: %s (expected column %q, header %v)", e.Reason, e.Expected, e.Header)
	}
	return fmt.Sprintf("schema error: %s (header %v)", e.Reason, e.Header)
}

// ParseError reports a malformed data row. Line is 1-based and counts the
// header.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("parse error at line %d, column %q: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("parse error at line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Dataset is a parsed attendance table with the target split off. Columns
// keeps the header order of the feature columns.
type Dataset struct {
	Name    string
	Columns []string
	Target  string
	Rows    [][]float64
	Labels  []float64
	Lines   []int
}

func (d *Dataset) FeatureColumns() []string { return d.Columns }
func (d *Dataset) FeatureRows() [][]float64 { return d.Rows }
func (d *Dataset) TargetValues() []float64  { return d.Labels }

func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Record returns row i keyed by column name, target included.
func (d *Dataset) Record(i int) map[string]float64 {
	record := make(map[string]float64, len(d.Columns)+1)
	for j, name := range d.Columns {
		record[name] = d.Rows[i][j]
	}
	record[d.Target] = d.Labels[i]
	return record
}

// Preview returns up to n leading records.
func (d *Dataset) Preview(n int) []map[string]float64 {
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	preview := make([]map[string]float64, 0, n)
	for i := 0; i < n; i++ {
		preview = append(preview, d.Record(i))
	}
	return preview
}

// LoadDataset parses CSV with a header row and splits target from the
// feature columns. A byte-order mark is honoured and dropped.
func LoadDataset(r io.Reader, target string) (*Dataset, error) {
	if target == "" {
		target = TargetColumn
	}

	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Line: 1, Err: errors.New("empty input, header row required")}
	}
	if err != nil {
		return nil, csvError(err)
	}

	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	targetIdx := -1
	for i, cell := range header {
		name := strings.TrimSpace(cell)
		if name == "" {
			return nil, &SchemaError{Header: header, Reason: fmt.Sprintf("column %d has an empty name", i+1)}
		}
		if seen[name] {
			return nil, &SchemaError{Header: header, Reason: fmt.Sprintf("duplicate column %q", name)}
		}
		seen[name] = true
		names[i] = name
		if name == target {
			targetIdx = i
		}
	}
	if targetIdx == -1 {
		return nil, &SchemaError{Expected: target, Header: names, Reason: "target column missing"}
	}

	ds := &Dataset{
		Target:  target,
		Columns: make([]string, 0, len(names)-1),
	}
	for i, name := range names {
		if i != targetIdx {
			ds.Columns = append(ds.Columns, name)
		}
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) != len(names) {
			return nil, &ParseError{
				Line: line,
				Err:  fmt.Errorf("expected %d fields, got %d", len(names), len(record)),
			}
		}

		row := make([]float64, 0, len(ds.Columns))
		var label float64
		for i, cell := range record {
			value, err := parseCell(cell)
			if err != nil {
				return nil, &ParseError{Line: line, Column: names[i], Err: err}
			}
			if i == targetIdx {
				label = value
				continue
			}
			row = append(row, value)
		}
		ds.Rows = append(ds.Rows, row)
		ds.Labels = append(ds.Labels, label)
		ds.Lines = append(ds.Lines, line)
	}

	return ds, nil
}

// LoadFile reads a dataset from disk and names it after the file.
func LoadFile(path, target string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ds, err := LoadDataset(file, target)
	if err != nil {
		return nil, err
	}
	ds.Name = filepath.Base(path)
	return ds, nil
}

func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, errors.New("missing value")
	}
	value, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", cell)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("not a finite number: %q", cell)
	}
	return value, nil
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Err: pe.Err}
	}
	return &ParseError{Err: err}
}

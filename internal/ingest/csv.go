package ingest

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// ParseCSV parses delimited text into rows. Quoted fields may contain commas
// and doubled quotes; cells are trimmed and stray surrounding quotes removed.
func ParseCSV(raw string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(raw)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	for _, row := range rows {
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if len(cell) >= 2 && cell[0] == '"' && cell[len(cell)-1] == '"' {
				cell = cell[1 : len(cell)-1]
			}
			row[i] = cell
		}
	}
	return rows, nil
}

// table is a parsed CSV dataset with its header row split off.
type table struct {
	name   string
	header []string
	rows   [][]string
}

func newTable(name, raw string) (*table, error) {
	rows, err := ParseCSV(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoData, name)
	}
	return &table{name: name, header: rows[0], rows: rows[1:]}, nil
}

// column returns the index of the header exactly matching name.
func (t *table) column(name string) (int, error) {
	for i, h := range t.header {
		if h == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s has no %q column", ErrSchemaDrift, t.name, name)
}

func (t *table) filter(col int, value string) [][]string {
	var out [][]string
	for _, row := range t.rows {
		if cell(row, col) == value {
			out = append(out, row)
		}
	}
	return out
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

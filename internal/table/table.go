package table

import (
	"fmt"
	"strings"
)

// Table is a flat trip table: ordered column names and rows of raw cells.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

func New(columns []string, rows [][]string) *Table {
	t := &Table{Columns: columns, Rows: rows}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
}

// Index returns the position of a column, or -1 when absent.
func (t *Table) Index(column string) int {
	if t.index == nil {
		t.reindex()
	}
	if i, ok := t.index[column]; ok {
		return i
	}
	return -1
}

func (t *Table) Has(column string) bool { return t.Index(column) >= 0 }

func (t *Table) Len() int { return len(t.Rows) }

// Cell returns the cell at row r for the named column. Missing columns and
// short rows read as empty.
func (t *Table) Cell(r int, column string) string {
	i := t.Index(column)
	if i < 0 || i >= len(t.Rows[r]) {
		return ""
	}
	return t.Rows[r][i]
}

// Drop returns a copy of the table without the named columns. Unknown
// names are ignored.
func (t *Table) Drop(columns ...string) *Table {
	drop := make(map[string]bool, len(columns))
	for _, c := range columns {
		drop[c] = true
	}
	var keep []int
	var cols []string
	for i, c := range t.Columns {
		if drop[c] {
			continue
		}
		keep = append(keep, i)
		cols = append(cols, c)
	}
	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(keep))
		for j, i := range keep {
			if i < len(row) {
				out[j] = row[i]
			}
		}
		rows[r] = out
	}
	return New(cols, rows)
}

// missingTokens are the spellings exporters use for an absent value.
var missingTokens = map[string]bool{
	"nan":  true,
	"na":   true,
	"n/a":  true,
	"null": true,
	"none": true,
	"<na>": true,
	"nat":  true,
}

// IsMissing reports whether a raw cell holds no value.
func IsMissing(cell string) bool {
	s := strings.TrimSpace(cell)
	if s == "" {
		return true
	}
	return missingTokens[strings.ToLower(s)]
}

func normalizeHeader(header []string) ([]string, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("table has no header row")
	}
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out, nil
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

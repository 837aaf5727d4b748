package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadCSV reads a comma separated trip table whose first record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read csv header: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols, err := normalizeHeader(header)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record %d: %w", len(rows)+1, err)
		}
		rows = append(rows, padRow(rec, len(cols)))
	}
	return New(cols, rows), nil
}

// ReadXLSX reads a worksheet of an Excel workbook. An empty sheet name
// selects the first sheet.
func ReadXLSX(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}
	cols, err := normalizeHeader(all[0])
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(all)-1)
	for _, rec := range all[1:] {
		// excelize trims trailing empty cells
		rows = append(rows, padRow(rec, len(cols)))
	}
	return New(cols, rows), nil
}

// ReadFile picks a reader from the file extension.
func ReadFile(path, sheet string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, sheet)
	default:
		return nil, fmt.Errorf("unsupported trip table format %q", filepath.Ext(path))
	}
}

package table

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadCSVPadsShortRows(t *testing.T) {
	in := "\ufeffperson_id,feat_a,Mode::Car\np1,1.5,1\np2,2.5\n"
	tbl, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if got := tbl.Columns[0]; got != "person_id" {
		t.Fatalf("expected BOM stripped header, got %q", got)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	if got := tbl.Cell(1, "Mode::Car"); got != "" {
		t.Fatalf("expected padded empty cell, got %q", got)
	}
	if got := tbl.Cell(0, "feat_a"); got != "1.5" {
		t.Fatalf("expected 1.5, got %q", got)
	}
}

func TestReadCSVEmpty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestIsMissing(t *testing.T) {
	for _, s := range []string{"", "  ", "nan", "NaN", "NA", "null", "None", "<NA>", "NaT"} {
		if !IsMissing(s) {
			t.Errorf("expected %q to be missing", s)
		}
	}
	for _, s := range []string{"0", "nano", "1.0", "-"} {
		if IsMissing(s) {
			t.Errorf("expected %q to be present", s)
		}
	}
}

func TestDropIgnoresUnknownColumns(t *testing.T) {
	tbl := New([]string{"a", "geom", "b"}, [][]string{{"1", "x", "2"}})
	out := tbl.Drop("geom", "geom_origin")
	if len(out.Columns) != 2 || out.Columns[1] != "b" {
		t.Fatalf("unexpected columns %v", out.Columns)
	}
	if out.Cell(0, "b") != "2" {
		t.Fatalf("expected b=2, got %q", out.Cell(0, "b"))
	}
	if out.Has("geom") {
		t.Fatalf("geom should be dropped")
	}
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trips.xlsx")
	f := excelize.NewFile()
	header := []string{"person_id", "feat_dist", "Mode::Walk"}
	_ = f.SetSheetRow("Sheet1", "A1", &header)
	row := []interface{}{"p1", 3.25, 1}
	_ = f.SetSheetRow("Sheet1", "A2", &row)
	short := []interface{}{"p2"}
	_ = f.SetSheetRow("Sheet1", "A3", &short)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}
	f.Close()

	tbl, err := ReadFile(path, "")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	if got := tbl.Cell(0, "feat_dist"); got != "3.25" {
		t.Fatalf("expected 3.25, got %q", got)
	}
	if got := tbl.Cell(1, "Mode::Walk"); got != "" {
		t.Fatalf("expected empty trailing cell, got %q", got)
	}
}

func TestReadFileRejectsUnknownExtension(t *testing.T) {
	if _, err := ReadFile("trips.parquet", ""); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

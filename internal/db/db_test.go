package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestDriver(t *testing.T) {
	cases := []struct {
		dsn, driver, source string
	}{
		{"postgres://u:p@localhost:5432/mobis?sslmode=disable", "pgx", "postgres://u:p@localhost:5432/mobis?sslmode=disable"},
		{"postgresql://localhost/mobis", "pgx", "postgresql://localhost/mobis"},
		{"sqlite:///tmp/trips.db", "sqlite", "/tmp/trips.db"},
		{"file:trips.db?mode=ro", "sqlite", "file:trips.db?mode=ro"},
		{"data/trips.sqlite", "sqlite", "data/trips.sqlite"},
	}
	for _, c := range cases {
		driver, source, err := Driver(c.dsn)
		if err != nil {
			t.Fatalf("Driver(%q): %v", c.dsn, err)
		}
		if driver != c.driver || source != c.source {
			t.Errorf("Driver(%q) = %q, %q; want %q, %q", c.dsn, driver, source, c.driver, c.source)
		}
	}
	for _, bad := range []string{"", "mysql://x", "sqlite://"} {
		if _, _, err := Driver(bad); err == nil {
			t.Errorf("Driver(%q): expected error", bad)
		}
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent(`public.trips`); got != `"public"."trips"` {
		t.Fatalf("unexpected %s", got)
	}
	if got := quoteIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("unexpected %s", got)
	}
}

func TestFetchTableSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trips.db")
	conn, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()
	if err := Ping(ctx, conn); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	stmts := []string{
		`CREATE TABLE trips (person_id TEXT, started_at_origin TEXT, started_at_destination TEXT, feat_dist REAL, "Mode::Car" INTEGER)`,
		`INSERT INTO trips VALUES ('p1', '2020-01-01 08:00:00', '2020-01-01 08:30:00', 2.5, 1)`,
		`INSERT INTO trips VALUES ('p2', '2020-01-01 09:00:00', '2020-01-01 09:30:00', NULL, 0)`,
	}
	for _, s := range stmts {
		if _, err := conn.ExecContext(ctx, s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}

	tbl, err := FetchTable(ctx, conn, "trips")
	if err != nil {
		t.Fatalf("FetchTable: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	if got := tbl.Cell(0, "feat_dist"); got != "2.5" {
		t.Fatalf("expected 2.5, got %q", got)
	}
	if got := tbl.Cell(1, "feat_dist"); got != "" {
		t.Fatalf("expected NULL as empty cell, got %q", got)
	}
	if got := tbl.Cell(0, "Mode::Car"); got != "1" {
		t.Fatalf("expected 1, got %q", got)
	}
}

func TestFetchTableMissing(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()
	if _, err := FetchTable(context.Background(), conn, "trips"); err == nil {
		t.Fatalf("expected error for missing table")
	}
}

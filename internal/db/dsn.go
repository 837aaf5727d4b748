package db

import (
	"fmt"
	"net/url"
	"strings"
)

// Driver maps a DSN to a database/sql driver name and the source string that
// driver expects. postgres:// URLs go to pgx; sqlite:// URLs, file: URIs and
// bare *.db / *.sqlite paths go to the pure-Go SQLite driver.
func Driver(dsn string) (driver, source string, err error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", "", fmt.Errorf("empty DSN")
	}
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		if _, err := url.Parse(dsn); err != nil {
			return "", "", err
		}
		return "pgx", dsn, nil
	case strings.HasPrefix(lower, "sqlite://"):
		path := dsn[len("sqlite://"):]
		if path == "" {
			return "", "", fmt.Errorf("sqlite DSN %q has no path", dsn)
		}
		return "sqlite", path, nil
	case strings.HasPrefix(lower, "file:"):
		return "sqlite", dsn, nil
	case strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return "sqlite", dsn, nil
	}
	return "", "", fmt.Errorf("unsupported DSN %q (want postgres://, sqlite:// or a .db path)", dsn)
}

// quoteIdent quotes a table name for both Postgres and SQLite. A dotted name
// is treated as schema.table.
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

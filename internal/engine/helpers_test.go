package engine_test

import (
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"db-mirror/internal/dialect"
	"db-mirror/internal/engine"
	"db-mirror/internal/errs"
	"db-mirror/internal/report"
	"db-mirror/internal/schema"

	_ "modernc.org/sqlite"
)

var clock = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

func openDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	dsn, err := (&dialect.SqliteDialect{}).DSN(dialect.ConnConfig{Name: filepath.Join(t.TempDir(), name)})
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// peopleTable is the in-memory shape used by snapshot and diff tests.
func peopleTable() *schema.Table {
	return &schema.Table{
		Name: "people",
		Columns: []*schema.Column{
			{Name: "id", DataType: "int", IsPK: true},
			{Name: "name", DataType: "varchar", IsNullable: true},
		},
		PrimaryKey: []string{"id"},
	}
}

// row is a test fixture for one people row; op is only used on the target.
type row struct {
	id   int64
	name string
	op   string
}

func snapshot(t *testing.T, side errs.Side, rows ...row) *engine.Snapshot {
	t.Helper()
	tbl := peopleTable()
	s := engine.NewSnapshot(side, tbl, engine.NewNormalizer(tbl, time.UTC))
	for _, r := range rows {
		if err := s.Add([]any{r.id, r.name}, r.op); err != nil {
			t.Fatalf("Add(%v): %v", r, err)
		}
	}
	return s
}

// newRun wires a sqlite-to-sqlite reconciliation of the people table.
func newRun(src, dst *sql.DB) *engine.Run {
	return &engine.Run{
		Source:   src,
		Target:   dst,
		Dialect:  &dialect.SqliteDialect{},
		Table:    "people",
		Location: time.UTC,
		Now:      func() time.Time { return clock },
		Logger:   quietLogger(),
		Summary:  report.New("people", "", "sqlite", clock),
	}
}

type targetRow struct {
	name string
	op   string
}

func targetRows(t *testing.T, db *sql.DB) map[int64]targetRow {
	t.Helper()
	rows, err := db.Query(`SELECT id, name, operation_type FROM people`)
	if err != nil {
		t.Fatalf("query target: %v", err)
	}
	defer rows.Close()
	out := make(map[int64]targetRow)
	for rows.Next() {
		var id int64
		var name, op sql.NullString
		if err := rows.Scan(&id, &name, &op); err != nil {
			t.Fatalf("scan target: %v", err)
		}
		out[id] = targetRow{name: name.String, op: op.String}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate target: %v", err)
	}
	return out
}

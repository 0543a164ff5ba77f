package schema_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"db-mirror/internal/dialect"
	"db-mirror/internal/schema"
)

// catalogCall is one query the fake MySQL catalog received.
type catalogCall struct {
	query string
	args  []driver.Value
}

// fakeCatalog answers information_schema queries with a fixed orders table and records
// the arguments each query was bound with.
type fakeCatalog struct {
	mu    sync.Mutex
	calls []catalogCall
}

func (f *fakeCatalog) Connect(context.Context) (driver.Conn, error) { return &catalogConn{f}, nil }
func (f *fakeCatalog) Driver() driver.Driver                         { return catalogDriver{f} }

type catalogDriver struct{ f *fakeCatalog }

func (d catalogDriver) Open(string) (driver.Conn, error) { return &catalogConn{d.f}, nil }

func (f *fakeCatalog) record(query string, args []driver.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, catalogCall{query, append([]driver.Value(nil), args...)})
}

func (f *fakeCatalog) recorded() []catalogCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalogCall(nil), f.calls...)
}

type catalogConn struct{ f *fakeCatalog }

func (c *catalogConn) Prepare(query string) (driver.Stmt, error) { return &catalogStmt{c.f, query}, nil }
func (c *catalogConn) Close() error                              { return nil }
func (c *catalogConn) Begin() (driver.Tx, error)                 { return nil, errors.New("read-only catalog") }

type catalogStmt struct {
	f     *fakeCatalog
	query string
}

func (s *catalogStmt) Close() error  { return nil }
func (s *catalogStmt) NumInput() int { return -1 }

func (s *catalogStmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, errors.New("read-only catalog")
}

func (s *catalogStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.f.record(s.query, args)
	switch {
	case strings.Contains(s.query, "information_schema.COLUMNS"):
		return &catalogRows{
			cols: []string{"COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "IS_NULLABLE"},
			data: [][]driver.Value{
				{"id", "int", "int(11)", "NO"},
				{"total", "decimal", "decimal(10,2)", "YES"},
			},
		}, nil
	case strings.Contains(s.query, "KEY_COLUMN_USAGE"):
		return &catalogRows{cols: []string{"COLUMN_NAME"}, data: [][]driver.Value{{"id"}}}, nil
	case strings.Contains(s.query, "information_schema.TABLES"):
		return &catalogRows{cols: []string{"COUNT(*)"}, data: [][]driver.Value{{int64(1)}}}, nil
	}
	return nil, errors.New("unexpected query: " + s.query)
}

type catalogRows struct {
	cols []string
	data [][]driver.Value
	i    int
}

func (r *catalogRows) Columns() []string { return r.cols }
func (r *catalogRows) Close() error      { return nil }

func (r *catalogRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.i])
	r.i++
	return nil
}

func openCatalog(t *testing.T) (*sql.DB, *fakeCatalog) {
	t.Helper()
	f := &fakeCatalog{}
	db := sql.OpenDB(f)
	t.Cleanup(func() { db.Close() })
	return db, f
}

func assertSchemaArgs(t *testing.T, calls []catalogCall, wantSchema, wantTable string) {
	t.Helper()
	if len(calls) == 0 {
		t.Fatal("no catalog queries were issued")
	}
	for _, c := range calls {
		if len(c.args) != 2 || c.args[0] != wantSchema || c.args[1] != wantTable {
			t.Errorf("query %q bound %v, want [%s %s]", c.query, c.args, wantSchema, wantTable)
		}
	}
}

func TestDescribe_MysqlBindsEachSideToItsOwnDatabase(t *testing.T) {
	ctx := context.Background()
	d := &dialect.MysqlDialect{}
	src, srcCatalog := openCatalog(t)
	dst, dstCatalog := openCatalog(t)

	tbl, err := schema.Describe(ctx, src, d, "shop", "orders")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if len(tbl.PrimaryKey) != 1 || tbl.PrimaryKey[0] != "id" || len(tbl.Columns) != 2 {
		t.Errorf("unexpected table: key=%v columns=%d", tbl.PrimaryKey, len(tbl.Columns))
	}
	assertSchemaArgs(t, srcCatalog.recorded(), "shop", "orders")

	exists, err := schema.TableExists(ctx, dst, d, "shop_mirror", "orders")
	if err != nil || !exists {
		t.Fatalf("TableExists = %v, %v", exists, err)
	}
	assertSchemaArgs(t, dstCatalog.recorded(), "shop_mirror", "orders")
}

func TestDescribe_MysqlQualifiedNameOverridesDefaultSchema(t *testing.T) {
	db, catalog := openCatalog(t)
	if _, err := schema.Describe(context.Background(), db, &dialect.MysqlDialect{}, "shop", "archive.orders"); err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	assertSchemaArgs(t, catalog.recorded(), "archive", "orders")
}

func TestDescribe_MysqlEmptySchemaUsesConnectionDatabase(t *testing.T) {
	db, catalog := openCatalog(t)
	if _, err := schema.Describe(context.Background(), db, &dialect.MysqlDialect{}, "", "orders"); err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	calls := catalog.recorded()
	assertSchemaArgs(t, calls, "", "orders")
	for _, c := range calls {
		if !strings.Contains(c.query, "DATABASE()") {
			t.Errorf("an empty schema must resolve to the connection's database: %s", c.query)
		}
	}
}

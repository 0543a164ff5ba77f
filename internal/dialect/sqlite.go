package dialect

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SqliteDialect mirrors between local database files. It ignores host, port, credentials
// and TLS: Name is the file path.
type SqliteDialect struct{}

func (d *SqliteDialect) Name() string { return "sqlite" }

func (d *SqliteDialect) DSN(c ConnConfig) (string, error) {
	if c.Name == "" {
		return "", errors.New("sqlite database path is required")
	}
	return c.Name + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
}

func (d *SqliteDialect) GetColumnsQuery() string {
	return `SELECT name, type, type, CASE WHEN "notnull" = 1 OR pk > 0 THEN 'NO' ELSE 'YES' END FROM pragma_table_info(?2, ?1) ORDER BY cid`
}

func (d *SqliteDialect) GetPrimaryKeysQuery() string {
	return `SELECT name FROM pragma_table_info(?2, ?1) WHERE pk > 0 ORDER BY pk`
}

func (d *SqliteDialect) GetTableExistsQuery() string {
	return `SELECT COUNT(*) FROM pragma_table_info(?2, ?1)`
}

func (d *SqliteDialect) GetSchemaName(input string) string {
	if input == "" {
		return "main"
	}
	return input
}

func (d *SqliteDialect) QuoteIdent(name string) string {
	return quoteWith(name, `"`, `"`)
}

func (d *SqliteDialect) Placeholder(index int) string {
	return "?"
}

func (d *SqliteDialect) SelectQuery(table string, cols []string) string {
	return buildSelect(d, table, cols)
}

func (d *SqliteDialect) InsertQuery(table string, cols []string) string {
	return buildInsert(d, table, cols)
}

func (d *SqliteDialect) UpdateQuery(table string, setCols, keyCols []string) string {
	return buildUpdate(d, table, setCols, keyCols)
}

func (d *SqliteDialect) CreateTableQuery(table string, cols []ColumnDef, pk []string) string {
	return buildCreateTable(d, "CREATE TABLE IF NOT EXISTS", table, cols, pk)
}

func (d *SqliteDialect) AddColumnQuery(table string, col ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", QuoteQualified(d, table), columnClause(d, col))
}

func (d *SqliteDialect) TrackingColumns() []ColumnDef {
	return []ColumnDef{
		{Name: OperationTypeColumn, Type: "VARCHAR(10) DEFAULT 'inserted'", Nullable: true},
		{Name: LastUpdatedColumn, Type: "TIMESTAMP", Nullable: true},
	}
}

func (d *SqliteDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *SqliteDialect) IsConstraintViolation(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

package dialect

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) DSN(c ConnConfig) (string, error) {
	q := url.Values{}
	switch c.TLS.Mode {
	case TLSVerify:
		q.Set("sslmode", "verify-full")
	case TLSSkipVerify:
		q.Set("sslmode", "require")
	case TLSCustom:
		q.Set("sslmode", "verify-full")
		q.Set("sslrootcert", c.TLS.CAFile)
	case TLSDisabled:
		q.Set("sslmode", "disable")
	default:
		return "", fmt.Errorf("unsupported tls mode %q", c.TLS.Mode)
	}
	q.Set("timezone", locationOrUTC(c.Location).String())

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

func (d *PostgresDialect) GetColumnsQuery() string {
	// format_type keeps length, precision and array modifiers for DDL generation.
	return `SELECT a.attname, t.typname, format_type(a.atttypid, a.atttypmod), CASE WHEN a.attnotnull THEN 'NO' ELSE 'YES' END
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
JOIN pg_catalog.pg_type t ON t.oid = a.atttypid
WHERE n.nspname = $1 AND c.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`
}

func (d *PostgresDialect) GetPrimaryKeysQuery() string {
	return `SELECT kcu.column_name FROM information_schema.table_constraints tc JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema AND tc.table_name = kcu.table_name WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND tc.table_name = $2 ORDER BY kcu.ordinal_position`
}

func (d *PostgresDialect) GetTableExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2`
}

func (d *PostgresDialect) GetSchemaName(input string) string {
	if input == "" {
		return "public"
	}
	return input
}

func (d *PostgresDialect) QuoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) SelectQuery(table string, cols []string) string {
	return buildSelect(d, table, cols)
}

func (d *PostgresDialect) InsertQuery(table string, cols []string) string {
	return buildInsert(d, table, cols)
}

func (d *PostgresDialect) UpdateQuery(table string, setCols, keyCols []string) string {
	return buildUpdate(d, table, setCols, keyCols)
}

func (d *PostgresDialect) CreateTableQuery(table string, cols []ColumnDef, pk []string) string {
	return buildCreateTable(d, "CREATE TABLE IF NOT EXISTS", table, cols, pk)
}

func (d *PostgresDialect) AddColumnQuery(table string, col ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", QuoteQualified(d, table), columnClause(d, col))
}

func (d *PostgresDialect) TrackingColumns() []ColumnDef {
	return []ColumnDef{
		{Name: OperationTypeColumn, Type: "VARCHAR(10) DEFAULT 'inserted'", Nullable: true},
		{Name: LastUpdatedColumn, Type: "TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP", Nullable: true},
	}
}

func (d *PostgresDialect) NormalizeType(sqlType string) string {
	t := DefaultNormalizeType(sqlType)
	switch t {
	case "int4", "int2":
		return "int"
	case "int8":
		return "bigint"
	case "float4":
		return "float"
	case "float8":
		return "double"
	case "bpchar":
		return "char"
	case "timestamptz":
		return "timestamp"
	default:
		return strings.TrimPrefix(t, "_")
	}
}

func (d *PostgresDialect) IsConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// Class 23: integrity constraint violation.
	return pqErr.Code.Class() == "23"
}

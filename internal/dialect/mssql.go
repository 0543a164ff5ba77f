package dialect

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	mssql "github.com/denisenkom/go-mssqldb" // SQL Server Driver
)

type MSSQLDialect struct{}

func (d *MSSQLDialect) Name() string { return "sqlserver" }

func (d *MSSQLDialect) DSN(c ConnConfig) (string, error) {
	q := url.Values{}
	q.Set("database", c.Name)
	switch c.TLS.Mode {
	case TLSVerify:
		q.Set("encrypt", "true")
		q.Set("TrustServerCertificate", "false")
	case TLSSkipVerify:
		q.Set("encrypt", "true")
		q.Set("TrustServerCertificate", "true")
	case TLSCustom:
		q.Set("encrypt", "true")
		q.Set("certificate", c.TLS.CAFile)
	case TLSDisabled:
		q.Set("encrypt", "disable")
	default:
		return "", fmt.Errorf("unsupported tls mode %q", c.TLS.Mode)
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

func (d *MSSQLDialect) GetColumnsQuery() string {
	return `
		SELECT
			COLUMN_NAME,
			DATA_TYPE,
			DATA_TYPE + CASE
				WHEN CHARACTER_MAXIMUM_LENGTH = -1 THEN '(max)'
				WHEN CHARACTER_MAXIMUM_LENGTH IS NOT NULL THEN '(' + CAST(CHARACTER_MAXIMUM_LENGTH AS VARCHAR(10)) + ')'
				WHEN DATA_TYPE IN ('decimal', 'numeric') THEN '(' + CAST(NUMERIC_PRECISION AS VARCHAR(10)) + ',' + CAST(NUMERIC_SCALE AS VARCHAR(10)) + ')'
				ELSE ''
			END,
			IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION
	`
}

func (d *MSSQLDialect) GetPrimaryKeysQuery() string {
	return `SELECT kcu.COLUMN_NAME FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2 ORDER BY kcu.ORDINAL_POSITION`
}

func (d *MSSQLDialect) GetTableExistsQuery() string {
	return `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2`
}

func (d *MSSQLDialect) GetSchemaName(input string) string {
	if input == "" {
		return "dbo"
	}
	return input
}

func (d *MSSQLDialect) QuoteIdent(name string) string {
	return quoteWith(name, "[", "]")
}

func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

func (d *MSSQLDialect) SelectQuery(table string, cols []string) string {
	return buildSelect(d, table, cols)
}

func (d *MSSQLDialect) InsertQuery(table string, cols []string) string {
	return buildInsert(d, table, cols)
}

func (d *MSSQLDialect) UpdateQuery(table string, setCols, keyCols []string) string {
	return buildUpdate(d, table, setCols, keyCols)
}

// CreateTableQuery has no IF NOT EXISTS form on SQL Server; callers check existence first.
func (d *MSSQLDialect) CreateTableQuery(table string, cols []ColumnDef, pk []string) string {
	return buildCreateTable(d, "CREATE TABLE", table, cols, pk)
}

func (d *MSSQLDialect) AddColumnQuery(table string, col ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", QuoteQualified(d, table), columnClause(d, col))
}

func (d *MSSQLDialect) TrackingColumns() []ColumnDef {
	return []ColumnDef{
		{Name: OperationTypeColumn, Type: "VARCHAR(10) DEFAULT 'inserted'", Nullable: true},
		{Name: LastUpdatedColumn, Type: "DATETIMEOFFSET DEFAULT SYSDATETIMEOFFSET()", Nullable: true},
	}
}

func (d *MSSQLDialect) NormalizeType(sqlType string) string {
	t := DefaultNormalizeType(sqlType)
	switch t {
	case "nvarchar", "nchar", "text", "ntext":
		return "varchar"
	case "bit":
		return "boolean"
	case "decimal", "numeric", "money", "smallmoney":
		return "decimal"
	case "float":
		return "double"
	case "real":
		return "float"
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset":
		return "datetime"
	case "image", "binary", "varbinary":
		return "blob"
	default:
		return t
	}
}

func (d *MSSQLDialect) IsConstraintViolation(err error) bool {
	var msErr mssql.Error
	if !errors.As(err, &msErr) {
		return false
	}
	switch msErr.Number {
	case 547, 2601, 2627:
		return true
	}
	return false
}

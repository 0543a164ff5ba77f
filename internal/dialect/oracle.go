package dialect

import (
	"errors"
	"fmt"
	"strings"

	go_ora "github.com/sijms/go-ora/v2"
	"github.com/sijms/go-ora/v2/network"
)

type OracleDialect struct{}

func (d *OracleDialect) Name() string { return "oracle" }

// DSN builds a go-ora URL. For the custom TLS mode CAFile names a wallet directory.
func (d *OracleDialect) DSN(c ConnConfig) (string, error) {
	opts := map[string]string{}
	switch c.TLS.Mode {
	case TLSVerify:
		opts["SSL"] = "true"
		opts["SSL VERIFY"] = "true"
	case TLSSkipVerify:
		opts["SSL"] = "true"
		opts["SSL VERIFY"] = "false"
	case TLSCustom:
		opts["SSL"] = "true"
		opts["SSL VERIFY"] = "true"
		opts["WALLET"] = c.TLS.CAFile
	case TLSDisabled:
	default:
		return "", fmt.Errorf("unsupported tls mode %q", c.TLS.Mode)
	}
	return go_ora.BuildUrl(c.Host, c.Port, c.Name, c.User, c.Password, opts), nil
}

// Oracle metadata comes from the USER_ views; the schema bind is only consumed so every
// dialect takes the same (schema, table) arguments.
func (d *OracleDialect) GetColumnsQuery() string {
	return `
SELECT
    COLUMN_NAME,
    CASE
        WHEN DATA_TYPE = 'NUMBER' AND DATA_SCALE = 0 THEN 'INTEGER'
        WHEN DATA_TYPE = 'NUMBER' THEN 'DECIMAL'
        ELSE DATA_TYPE
    END,
    DATA_TYPE || CASE
        WHEN DATA_TYPE IN ('VARCHAR2', 'CHAR') THEN '(' || CHAR_LENGTH || ' CHAR)'
        WHEN DATA_TYPE IN ('NVARCHAR2', 'NCHAR') THEN '(' || CHAR_LENGTH || ')'
        WHEN DATA_TYPE = 'RAW' THEN '(' || DATA_LENGTH || ')'
        WHEN DATA_TYPE = 'NUMBER' AND DATA_PRECISION IS NOT NULL THEN '(' || DATA_PRECISION || ',' || NVL(DATA_SCALE, 0) || ')'
        ELSE ''
    END,
    CASE NULLABLE WHEN 'Y' THEN 'YES' ELSE 'NO' END
FROM USER_TAB_COLUMNS
WHERE :1 IS NOT NULL AND TABLE_NAME = :2
ORDER BY COLUMN_ID`
}

func (d *OracleDialect) GetPrimaryKeysQuery() string {
	return `
SELECT cc.COLUMN_NAME
FROM USER_CONSTRAINTS uc
JOIN USER_CONS_COLUMNS cc ON uc.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
WHERE uc.CONSTRAINT_TYPE = 'P' AND :1 IS NOT NULL AND uc.TABLE_NAME = :2
ORDER BY cc.POSITION`
}

func (d *OracleDialect) GetTableExistsQuery() string {
	return `SELECT COUNT(*) FROM USER_TABLES WHERE :1 IS NOT NULL AND TABLE_NAME = :2`
}

func (d *OracleDialect) GetSchemaName(input string) string {
	if input == "" {
		return "USER"
	}
	return input
}

func (d *OracleDialect) QuoteIdent(name string) string {
	return quoteWith(name, `"`, `"`)
}

func (d *OracleDialect) Placeholder(index int) string {
	// Oracle uses :1, :2, etc. (1-based index)
	return fmt.Sprintf(":%d", index+1)
}

func (d *OracleDialect) SelectQuery(table string, cols []string) string {
	return buildSelect(d, table, cols)
}

func (d *OracleDialect) InsertQuery(table string, cols []string) string {
	return buildInsert(d, table, cols)
}

func (d *OracleDialect) UpdateQuery(table string, setCols, keyCols []string) string {
	return buildUpdate(d, table, setCols, keyCols)
}

func (d *OracleDialect) CreateTableQuery(table string, cols []ColumnDef, pk []string) string {
	return buildCreateTable(d, "CREATE TABLE", table, cols, pk)
}

func (d *OracleDialect) AddColumnQuery(table string, col ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD (%s)", QuoteQualified(d, table), columnClause(d, col))
}

func (d *OracleDialect) TrackingColumns() []ColumnDef {
	return []ColumnDef{
		{Name: OperationTypeColumn, Type: "VARCHAR2(10) DEFAULT 'inserted'", Nullable: true},
		{Name: LastUpdatedColumn, Type: "TIMESTAMP WITH TIME ZONE DEFAULT SYSTIMESTAMP", Nullable: true},
	}
}

func (d *OracleDialect) NormalizeType(sqlType string) string {
	s := DefaultNormalizeType(sqlType)
	switch {
	case s == "integer":
		return "bigint"
	case s == "decimal":
		return "decimal"
	case s == "binary_float":
		return "float"
	case s == "binary_double":
		return "double"
	case s == "date" || strings.HasPrefix(s, "timestamp"):
		return "datetime"
	case s == "raw" || s == "blob" || s == "long raw":
		return "blob"
	case strings.Contains(s, "char") || strings.Contains(s, "clob"):
		return "varchar"
	}
	return s
}

func (d *OracleDialect) IsConstraintViolation(err error) bool {
	var oraErr *network.OracleError
	if !errors.As(err, &oraErr) {
		return false
	}
	switch oraErr.ErrCode {
	case 1, 2290, 2291, 2292:
		return true
	}
	return false
}

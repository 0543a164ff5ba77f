package dialect

import "time"

// Dialect abstracts database-specific operations.
type Dialect interface {
	// Driver name passed to sql.Open.
	Name() string
	DSN(c ConnConfig) (string, error)

	// Metadata Queries. Every query binds (schema, table) in that order.
	GetColumnsQuery() string     // column name, data type, full column type, is_nullable (YES/NO)
	GetPrimaryKeysQuery() string // primary key column names in key order
	GetTableExistsQuery() string // single COUNT(*) row
	GetSchemaName(input string) string

	// Query Generation
	QuoteIdent(name string) string
	Placeholder(index int) string // Returns ?, $1, @p1, :1
	SelectQuery(table string, cols []string) string
	InsertQuery(table string, cols []string) string
	UpdateQuery(table string, setCols, keyCols []string) string
	CreateTableQuery(table string, cols []ColumnDef, pk []string) string
	AddColumnQuery(table string, col ColumnDef) string
	TrackingColumns() []ColumnDef

	// Helpers
	NormalizeType(sqlType string) string
	IsConstraintViolation(err error) bool
}

// CreateStatementCloner is implemented by dialects that can copy the source table DDL
// verbatim instead of generating it from catalog columns.
type CreateStatementCloner interface {
	ShowCreateQuery(table string) string
	CloneCreateStatement(stmt, target string, tracking []ColumnDef) (string, error)
}

// ColumnDef is one column of a CREATE TABLE or ALTER TABLE ADD statement.
// Type carries the full type text including any DEFAULT clause.
type ColumnDef struct {
	Name     string
	Type     string
	Nullable bool
}

// ConnConfig holds connection settings for one side of the mirror.
type ConnConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string // database, service name, or file path for sqlite
	TLS      TLSConfig
	Location *time.Location
}

// TLSConfig selects transport encryption.
//
// Mode is one of "true" (encrypted, verified), "skip-verify" (encrypted, certificate not
// verified), "custom" (encrypted, verified against CAFile) or "false".
type TLSConfig struct {
	Mode   string
	CAFile string
}

const (
	TLSVerify     = "true"
	TLSSkipVerify = "skip-verify"
	TLSCustom     = "custom"
	TLSDisabled   = "false"
)

// Tracking column names appended to every target table.
const (
	OperationTypeColumn = "operation_type"
	LastUpdatedColumn   = "last_updated"
)

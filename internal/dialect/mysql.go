package dialect

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

type MysqlDialect struct{}

func (d *MysqlDialect) Name() string { return "mysql" }

func (d *MysqlDialect) DSN(c ConnConfig) (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Name
	cfg.ParseTime = true
	cfg.Loc = locationOrUTC(c.Location)
	// The session zone must match Loc or TIMESTAMP values shift on the way in and out.
	cfg.Params = map[string]string{"time_zone": "'" + mysqlTimeZone(cfg.Loc, time.Now()) + "'"}

	switch c.TLS.Mode {
	case TLSVerify, TLSSkipVerify, TLSDisabled:
		cfg.TLSConfig = c.TLS.Mode
	case TLSCustom:
		name, err := registerMysqlTLS(c.Host, c.TLS.CAFile)
		if err != nil {
			return "", err
		}
		cfg.TLSConfig = name
	default:
		return "", fmt.Errorf("unsupported tls mode %q", c.TLS.Mode)
	}
	return cfg.FormatDSN(), nil
}

// mysqlTimeZone names loc for SET time_zone. IANA names need the server's zone tables
// (mysql_tzinfo_to_sql); UTC, Local and fixed zones are sent as a numeric offset instead.
func mysqlTimeZone(loc *time.Location, now time.Time) string {
	name := loc.String()
	if name != "UTC" && name != "Local" {
		if _, err := time.LoadLocation(name); err == nil {
			return name
		}
	}
	_, offset := now.In(loc).Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%c%02d:%02d", sign, offset/3600, offset%3600/60)
}

// registerMysqlTLS registers a CA-pinned tls.Config with the driver under a per-host name.
func registerMysqlTLS(host, caFile string) (string, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return "", fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return "", fmt.Errorf("no certificates found in %s", caFile)
	}
	name := "db-mirror-" + host
	if err := mysql.RegisterTLSConfig(name, &tls.Config{RootCAs: pool, ServerName: host}); err != nil {
		return "", fmt.Errorf("failed to register tls config: %w", err)
	}
	return name, nil
}

func (d *MysqlDialect) GetColumnsQuery() string {
	return `SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, IS_NULLABLE FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`
}

func (d *MysqlDialect) GetPrimaryKeysQuery() string {
	return `SELECT COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY' ORDER BY ORDINAL_POSITION`
}

func (d *MysqlDialect) GetTableExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.TABLES WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?`
}

func (d *MysqlDialect) GetSchemaName(input string) string {
	return DefaultGetSchemaName(input)
}

func (d *MysqlDialect) QuoteIdent(name string) string {
	return quoteWith(name, "`", "`")
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) SelectQuery(table string, cols []string) string {
	return buildSelect(d, table, cols)
}

func (d *MysqlDialect) InsertQuery(table string, cols []string) string {
	return buildInsert(d, table, cols)
}

func (d *MysqlDialect) UpdateQuery(table string, setCols, keyCols []string) string {
	return buildUpdate(d, table, setCols, keyCols)
}

func (d *MysqlDialect) CreateTableQuery(table string, cols []ColumnDef, pk []string) string {
	return buildCreateTable(d, "CREATE TABLE IF NOT EXISTS", table, cols, pk)
}

func (d *MysqlDialect) AddColumnQuery(table string, col ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", QuoteQualified(d, table), columnClause(d, col))
}

func (d *MysqlDialect) TrackingColumns() []ColumnDef {
	return []ColumnDef{
		{Name: OperationTypeColumn, Type: "VARCHAR(10) DEFAULT 'inserted'", Nullable: true},
		{Name: LastUpdatedColumn, Type: "TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP", Nullable: true},
	}
}

func (d *MysqlDialect) ShowCreateQuery(table string) string {
	return "SHOW CREATE TABLE " + QuoteQualified(d, table)
}

// CloneCreateStatement rewrites a SHOW CREATE TABLE result into an idempotent CREATE for
// the target table with the tracking columns appended after the last definition.
func (d *MysqlDialect) CloneCreateStatement(stmt, target string, tracking []ColumnDef) (string, error) {
	open := strings.IndexByte(stmt, '(')
	if open < 0 || !strings.HasPrefix(strings.ToUpper(stmt), "CREATE TABLE") {
		return "", errors.New("unrecognized CREATE TABLE statement")
	}
	// SHOW CREATE TABLE always closes the definition list on its own line.
	closing := strings.LastIndex(stmt, "\n)")
	if closing < open {
		return "", errors.New("could not locate end of column definitions")
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(QuoteQualified(d, target))
	b.WriteString(" ")
	b.WriteString(stmt[open:closing])
	for _, c := range tracking {
		b.WriteString(",\n  ")
		b.WriteString(columnClause(d, c))
	}
	b.WriteString(stmt[closing:])
	return b.String(), nil
}

func (d *MysqlDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *MysqlDialect) IsConstraintViolation(err error) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	switch myErr.Number {
	case 1062, 1216, 1217, 1451, 1452, 3819:
		return true
	}
	return false
}

package dialect

// GetDialect returns the dialect for a configured driver name. Unknown names fall back to
// MySQL, the default driver; configuration validation rejects them before this point.
func GetDialect(driver string) Dialect {
	switch driver {
	case "postgres":
		return &PostgresDialect{}
	case "sqlserver", "mssql":
		return &MSSQLDialect{}
	case "oracle":
		return &OracleDialect{}
	case "sqlite":
		return &SqliteDialect{}
	}
	return &MysqlDialect{}
}

var (
	_ Dialect               = (*MysqlDialect)(nil)
	_ Dialect               = (*PostgresDialect)(nil)
	_ Dialect               = (*MSSQLDialect)(nil)
	_ Dialect               = (*OracleDialect)(nil)
	_ Dialect               = (*SqliteDialect)(nil)
	_ CreateStatementCloner = (*MysqlDialect)(nil)
)

package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"db-mirror/internal/dialect"
	"db-mirror/internal/errs"
)

// Describe reads the columns and ordered primary key of the named table. The table name may
// be schema-qualified; otherwise defaultSchema (resolved through the dialect) is used.
// A missing table or a table without a primary key is a SchemaError.
func Describe(ctx context.Context, db *sql.DB, d dialect.Dialect, defaultSchema, name string) (*Table, error) {
	t, err := describeColumns(ctx, db, d, defaultSchema, name)
	if err != nil {
		return nil, err
	}

	target, bare := resolve(d, defaultSchema, name)
	rows, err := db.QueryContext(ctx, d.GetPrimaryKeysQuery(), target, bare)
	if err != nil {
		return nil, fmt.Errorf("failed to query primary key: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("failed to scan primary key column: %w", err)
		}
		i := t.IndexOf(col)
		if i < 0 {
			return nil, &errs.SchemaError{Table: name, Reason: fmt.Sprintf("primary key column %s is not a data column", col)}
		}
		t.Columns[i].IsPK = true
		t.PrimaryKey = append(t.PrimaryKey, t.Columns[i].Name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating primary key: %w", err)
	}

	if len(t.PrimaryKey) == 0 {
		return nil, &errs.SchemaError{Table: name, Reason: "no primary key found"}
	}
	return t, nil
}

// TableExists reports whether the named table is present.
func TableExists(ctx context.Context, db *sql.DB, d dialect.Dialect, defaultSchema, name string) (bool, error) {
	target, bare := resolve(d, defaultSchema, name)
	var n int
	if err := db.QueryRowContext(ctx, d.GetTableExistsQuery(), target, bare).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return n > 0, nil
}

func describeColumns(ctx context.Context, db *sql.DB, d dialect.Dialect, defaultSchema, name string) (*Table, error) {
	target, bare := resolve(d, defaultSchema, name)

	rows, err := db.QueryContext(ctx, d.GetColumnsQuery(), target, bare)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	t := &Table{Name: name}
	for rows.Next() {
		var cName, dType, cType, isNull sql.NullString
		if err := rows.Scan(&cName, &dType, &cType, &isNull); err != nil {
			return nil, fmt.Errorf("failed to scan column (table: %s): %w", name, err)
		}
		if !cName.Valid {
			continue
		}
		if IsTrackingColumn(cName.String) {
			t.Tracking = append(t.Tracking, cName.String)
			continue
		}
		t.Columns = append(t.Columns, &Column{
			Name:       cName.String,
			DataType:   d.NormalizeType(dType.String),
			ColumnType: cType.String,
			IsNullable: strings.EqualFold(isNull.String, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	if len(t.Columns) == 0 {
		return nil, &errs.SchemaError{Table: name, Reason: "table not found or has no columns"}
	}
	return t, nil
}

func resolve(d dialect.Dialect, defaultSchema, name string) (schemaName, table string) {
	schemaName, table = dialect.SplitTable(name)
	if schemaName == "" {
		schemaName = defaultSchema
	}
	return d.GetSchemaName(schemaName), table
}

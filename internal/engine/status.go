package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"db-mirror/internal/dialect"
	"db-mirror/internal/report"
)

// TargetStatus counts target rows per operation_type and returns the most recent
// last_updated, formatted in loc. lastUpdated is empty when the table has no stamps.
func TargetStatus(ctx context.Context, db *sql.DB, d dialect.Dialect, table string, loc *time.Location) ([]report.Status, string, error) {
	name := dialect.QuoteQualified(d, table)
	op := d.QuoteIdent(dialect.OperationTypeColumn)

	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM %s GROUP BY %s ORDER BY %s", op, name, op, op)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, "", fmt.Errorf("failed to count target rows: %w", err)
	}
	defer rows.Close()

	var buckets []report.Status
	for rows.Next() {
		var opType sql.NullString
		var n int64
		if err := rows.Scan(&opType, &n); err != nil {
			return nil, "", fmt.Errorf("failed to scan status row: %w", err)
		}
		buckets = append(buckets, report.Status{OperationType: opType.String, Rows: n})
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var last any
	query = fmt.Sprintf("SELECT MAX(%s) FROM %s", d.QuoteIdent(dialect.LastUpdatedColumn), name)
	if err := db.QueryRowContext(ctx, query).Scan(&last); err != nil {
		return nil, "", fmt.Errorf("failed to read last update: %w", err)
	}
	return buckets, formatStamp(last, loc), nil
}

func formatStamp(v any, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.In(loc).Format(time.RFC3339)
	}
	return asString(v)
}

package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"db-mirror/internal/dialect"
	"db-mirror/internal/errs"
	"db-mirror/internal/schema"
)

// Snapshot is a keyed, point-in-time read of one side of the mirror.
// It is built once per run and not modified after loading.
type Snapshot struct {
	Side    errs.Side
	Table   *schema.Table
	Skipped []*errs.RowShapeError

	norm   *Normalizer
	keyIdx []int
	rows   map[Key]*Row
	keys   []Key // load order
}

// NewSnapshot returns an empty snapshot for the data columns of t.
func NewSnapshot(side errs.Side, t *schema.Table, norm *Normalizer) *Snapshot {
	return &Snapshot{
		Side:   side,
		Table:  t,
		norm:   norm,
		keyIdx: t.KeyIndexes(),
		rows:   make(map[Key]*Row),
	}
}

// Add normalizes and keys one row. A source row without a complete key is a SchemaError;
// the same defect on the target, a duplicate key, or a value count mismatch is a
// RowShapeError and the row is not added.
func (s *Snapshot) Add(values []any, operationType string) error {
	canon, err := s.norm.Normalize(values)
	if err != nil {
		return &errs.RowShapeError{Side: s.Side, Reason: err.Error()}
	}

	for i, idx := range s.keyIdx {
		if idx < 0 || canon[idx] == nil {
			reason := fmt.Sprintf("primary key column %s is missing", s.Table.PrimaryKey[i])
			if s.Side == errs.Source {
				return &errs.SchemaError{Table: s.Table.Name, Reason: reason}
			}
			return &errs.RowShapeError{Side: s.Side, Reason: reason}
		}
	}

	keyVals := pick(canon, s.keyIdx)
	key := MakeKey(keyVals)
	if _, dup := s.rows[key]; dup {
		return &errs.RowShapeError{Side: s.Side, Key: formatKey(keyVals), Reason: "duplicate primary key"}
	}

	s.rows[key] = &Row{Values: values, Canon: canon, OperationType: operationType}
	s.keys = append(s.keys, key)
	return nil
}

// Get returns the row stored under k.
func (s *Snapshot) Get(k Key) (*Row, bool) {
	r, ok := s.rows[k]
	return r, ok
}

// Keys returns keys in load order.
func (s *Snapshot) Keys() []Key {
	return s.keys
}

// Len returns the number of rows, soft-deleted ones included.
func (s *Snapshot) Len() int {
	return len(s.keys)
}

// Live returns the number of rows not soft-deleted.
func (s *Snapshot) Live() int {
	n := 0
	for _, r := range s.rows {
		if !r.Deleted() {
			n++
		}
	}
	return n
}

// KeyValues returns the canonical key components of r.
func (s *Snapshot) KeyValues(r *Row) []any {
	return pick(r.Canon, s.keyIdx)
}

// Loader reads snapshots from the two databases.
type Loader struct {
	Dialect    dialect.Dialect
	Normalizer *Normalizer
	Logger     *slog.Logger
}

// LoadSource reads every row of the source table.
func (l *Loader) LoadSource(ctx context.Context, db *sql.DB, t *schema.Table) (*Snapshot, error) {
	s := NewSnapshot(errs.Source, t, l.Normalizer)
	query := l.Dialect.SelectQuery(t.Name, t.ColumnNames())
	if err := l.load(ctx, db, query, s, false); err != nil {
		return nil, err
	}
	l.Logger.Info("Fetched rows from source table", "table", t.Name, "rows", s.Len(), "skipped", len(s.Skipped))
	return s, nil
}

// LoadTarget reads every row of the target table together with its operation_type.
// Soft-deleted rows are kept so a key that reappears on the source can be revived in place.
// When tracked is false the column is not read and every row counts as live; dry runs use
// this against targets that have not been given tracking columns yet.
func (l *Loader) LoadTarget(ctx context.Context, db *sql.DB, t *schema.Table, targetName string, tracked bool) (*Snapshot, error) {
	s := NewSnapshot(errs.Target, t, l.Normalizer)
	cols := t.ColumnNames()
	if tracked {
		cols = append(cols, dialect.OperationTypeColumn)
	}
	query := l.Dialect.SelectQuery(targetName, cols)
	if err := l.load(ctx, db, query, s, tracked); err != nil {
		return nil, err
	}
	l.Logger.Info("Fetched rows from target table", "table", targetName,
		"rows", s.Len(), "live", s.Live(), "skipped", len(s.Skipped))
	return s, nil
}

func (l *Loader) load(ctx context.Context, db *sql.DB, query string, s *Snapshot, tracked bool) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query %s rows: %w", s.Side, err)
	}
	defer rows.Close()

	n := len(s.Table.Columns)
	width := n
	if tracked {
		width++
	}

	for rows.Next() {
		vals := make([]any, width)
		ptrs := make([]any, width)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan %s row: %w", s.Side, err)
		}

		var op string
		if tracked {
			op = asString(vals[n])
			vals = vals[:n]
		}

		if err := s.Add(vals, op); err != nil {
			var shapeErr *errs.RowShapeError
			if !errors.As(err, &shapeErr) {
				return err
			}
			l.Logger.Warn("Skipping row", "side", s.Side, "key", shapeErr.Key, "reason", shapeErr.Reason)
			s.Skipped = append(s.Skipped, shapeErr)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating %s rows: %w", s.Side, err)
	}
	return nil
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"db-mirror/internal/dialect"
	"db-mirror/internal/errs"
	"db-mirror/internal/schema"
)

// DefaultBatchSize bounds rows per transaction when BatchSize is unset.
const DefaultBatchSize = 500

// Applier writes classified changes to the target table in bounded, per-batch transactions.
// Deletes are soft: only the tracking columns change.
type Applier struct {
	DB         *sql.DB
	Dialect    dialect.Dialect
	Table      *schema.Table
	TargetName string
	BatchSize  int
	Now        func() time.Time
	Logger     *slog.Logger
	OnProgress func(n int)
}

// Result summarizes an Apply call. Failed counts rows in rolled back batches.
type Result struct {
	Applied Counts
	Failed  int
	Errors  []*errs.BatchWriteError
}

// op is one group of changes written with the same statement.
type op struct {
	label   string
	kind    ChangeKind
	query   string
	changes []Change
	args    func(c Change, now time.Time) []any
}

// Apply writes inserts, revivals, updates and soft-deletes, in that order. A failing batch is
// rolled back, logged with its keys and recorded in the result; later batches still run.
// Only context cancellation stops Apply early.
func (a *Applier) Apply(ctx context.Context, changes []Change) (Result, error) {
	var res Result
	for _, o := range a.plan(changes) {
		for start := 0; start < len(o.changes); start += a.batchSize() {
			end := min(start+a.batchSize(), len(o.changes))
			batch := o.changes[start:end]

			if err := a.runBatch(ctx, o, batch); err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				bwe := &errs.BatchWriteError{
					Kind:       o.label,
					Keys:       keyTexts(batch),
					Constraint: a.Dialect.IsConstraintViolation(err),
					Err:        err,
				}
				a.Logger.Error("Batch write failed",
					"kind", o.label, "rows", len(batch), "keys", bwe.Keys,
					"constraint_violation", bwe.Constraint, "error", err)
				res.Failed += len(batch)
				res.Errors = append(res.Errors, bwe)
				continue
			}

			res.Applied.Add(o.kind, len(batch))
			a.Logger.Debug("Batch applied", "kind", o.label, "rows", len(batch))
			if a.OnProgress != nil {
				a.OnProgress(len(batch))
			}
		}
	}
	return res, nil
}

func (a *Applier) plan(changes []Change) []op {
	var inserts, revivals, updates, deletes []Change
	for _, c := range changes {
		switch {
		case c.Revives():
			revivals = append(revivals, c)
		case c.Kind == Inserted:
			inserts = append(inserts, c)
		case c.Kind == Updated:
			updates = append(updates, c)
		case c.Kind == Deleted:
			deletes = append(deletes, c)
		}
	}

	cols := a.Table.ColumnNames()
	nonKey := a.Table.NonKeyColumns()
	nonKeyIdx := make([]int, len(nonKey))
	for i, c := range nonKey {
		nonKeyIdx[i] = a.Table.IndexOf(c)
	}
	keyIdx := a.Table.KeyIndexes()
	tracking := []string{dialect.OperationTypeColumn, dialect.LastUpdatedColumn}
	rewriteCols := append(append([]string{}, nonKey...), tracking...)

	rewrite := func(opType string) func(c Change, now time.Time) []any {
		return func(c Change, now time.Time) []any {
			args := pick(c.Source.Values, nonKeyIdx)
			args = append(args, opType, now)
			return append(args, pick(c.Target.Values, keyIdx)...)
		}
	}

	return []op{
		{
			label:   "insert",
			kind:    Inserted,
			query:   a.Dialect.InsertQuery(a.TargetName, append(cols, tracking...)),
			changes: inserts,
			args: func(c Change, now time.Time) []any {
				args := append([]any{}, c.Source.Values...)
				return append(args, OpInserted, now)
			},
		},
		{
			label:   "revive",
			kind:    Inserted,
			query:   a.Dialect.UpdateQuery(a.TargetName, rewriteCols, a.Table.PrimaryKey),
			changes: revivals,
			args:    rewrite(OpInserted),
		},
		{
			label:   "update",
			kind:    Updated,
			query:   a.Dialect.UpdateQuery(a.TargetName, rewriteCols, a.Table.PrimaryKey),
			changes: updates,
			args:    rewrite(OpUpdated),
		},
		{
			label:   "delete",
			kind:    Deleted,
			query:   a.Dialect.UpdateQuery(a.TargetName, tracking, a.Table.PrimaryKey),
			changes: deletes,
			args: func(c Change, now time.Time) []any {
				return append([]any{OpDeleted, now}, pick(c.Target.Values, keyIdx)...)
			},
		},
	}
}

func (a *Applier) runBatch(ctx context.Context, o op, batch []Change) (err error) {
	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, o.query)
	if err != nil {
		return fmt.Errorf("failed to prepare %s: %w", o.label, err)
	}
	defer stmt.Close()

	now := a.now()
	for _, c := range batch {
		if _, err = stmt.ExecContext(ctx, o.args(c, now)...); err != nil {
			return fmt.Errorf("%s %s: %w", o.label, c.KeyText, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s batch: %w", o.label, err)
	}
	return nil
}

func (a *Applier) batchSize() int {
	if a.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return a.BatchSize
}

func (a *Applier) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func keyTexts(batch []Change) []string {
	keys := make([]string, len(batch))
	for i, c := range batch {
		keys[i] = c.KeyText
	}
	return keys
}

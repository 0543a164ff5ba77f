package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"db-mirror/internal/dialect"
	"db-mirror/internal/errs"
)

// Bootstrap prepares the target table for a run.
type Bootstrap struct {
	Source  *sql.DB
	Target  *sql.DB
	Dialect dialect.Dialect
	// TargetSchema is the default schema used to resolve the target table name.
	TargetSchema string
	// DryRun reports what would change without executing any DDL.
	DryRun bool
	Logger *slog.Logger
}

// TargetState is the outcome of EnsureTarget.
type TargetState struct {
	Status string
	// Existed is false when the table was (or, in a dry run, would be) created.
	Existed bool
	// MissingTracking lists tracking columns the table lacked before bootstrap.
	MissingTracking []string
}

// HadOperationType reports whether operation_type could be read before bootstrap.
func (s TargetState) HadOperationType() bool {
	if !s.Existed {
		return false
	}
	for _, c := range s.MissingTracking {
		if c == dialect.OperationTypeColumn {
			return false
		}
	}
	return true
}

// EnsureTarget creates the target table from the source definition when it is absent, or
// adds whichever tracking columns an existing target lacks. A target that is missing one of
// the source data columns is a SchemaError: source schema changes are not migrated.
func (b *Bootstrap) EnsureTarget(ctx context.Context, source *Table, targetName string) (TargetState, error) {
	failed := TargetState{Status: StatusFailed}

	exists, err := TableExists(ctx, b.Target, b.Dialect, b.TargetSchema, targetName)
	if err != nil {
		return failed, err
	}

	if !exists {
		ddl, err := b.createStatement(ctx, source, targetName)
		if err != nil {
			return failed, err
		}
		if b.DryRun {
			b.Logger.Info("[dry-run] Target table would be created", "table", targetName)
			return TargetState{Status: StatusCreated}, nil
		}
		if _, err := b.Target.ExecContext(ctx, ddl); err != nil {
			return failed, fmt.Errorf("error creating target table %s: %w", targetName, err)
		}
		b.Logger.Info("Target table created", "table", targetName)
		return TargetState{Status: StatusCreated}, nil
	}

	target, err := describeColumns(ctx, b.Target, b.Dialect, b.TargetSchema, targetName)
	if err != nil {
		failed.Existed = true
		return failed, err
	}
	for _, c := range source.Columns {
		if target.IndexOf(c.Name) < 0 {
			return TargetState{Status: StatusFailed, Existed: true}, &errs.SchemaError{
				Table:  targetName,
				Reason: fmt.Sprintf("target is missing source column %s; re-provision the target table", c.Name),
			}
		}
	}

	state := TargetState{Status: StatusExists, Existed: true}
	for _, c := range b.Dialect.TrackingColumns() {
		if target.HasTracking(c.Name) {
			continue
		}
		state.MissingTracking = append(state.MissingTracking, c.Name)
		state.Status = StatusAltered
		if b.DryRun {
			b.Logger.Info("[dry-run] Tracking column would be added", "table", targetName, "column", c.Name)
			continue
		}
		if _, err := b.Target.ExecContext(ctx, b.Dialect.AddColumnQuery(targetName, c)); err != nil {
			state.Status = StatusFailed
			return state, fmt.Errorf("error adding %s to %s: %w", c.Name, targetName, err)
		}
		b.Logger.Info("Tracking column added", "table", targetName, "column", c.Name)
	}
	if state.Status == StatusExists {
		b.Logger.Info("Target table verified", "table", targetName)
	}
	return state, nil
}

func (b *Bootstrap) createStatement(ctx context.Context, source *Table, targetName string) (string, error) {
	cloner, ok := b.Dialect.(dialect.CreateStatementCloner)
	if !ok {
		return b.Dialect.CreateTableQuery(targetName, source.Defs(), source.PrimaryKey), nil
	}

	var name, stmt string
	if err := b.Source.QueryRowContext(ctx, cloner.ShowCreateQuery(source.Name)).Scan(&name, &stmt); err != nil {
		return "", fmt.Errorf("failed to read source table definition: %w", err)
	}
	ddl, err := cloner.CloneCreateStatement(stmt, targetName, b.Dialect.TrackingColumns())
	if err != nil {
		return "", fmt.Errorf("failed to rewrite source table definition: %w", err)
	}
	if strings.Contains(strings.ToUpper(stmt), "FOREIGN KEY") {
		b.Logger.Warn("Source definition carries foreign keys; referenced tables must exist on the target", "table", targetName)
	}
	return ddl, nil
}

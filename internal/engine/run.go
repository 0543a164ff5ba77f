package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"db-mirror/internal/dialect"
	"db-mirror/internal/errs"
	"db-mirror/internal/report"
	"db-mirror/internal/schema"
)

// Run is one reconciliation of a source table into its target mirror:
// describe → bootstrap → load both snapshots → diff → apply.
type Run struct {
	Source  *sql.DB
	Target  *sql.DB
	Dialect dialect.Dialect

	SourceSchema string
	TargetSchema string
	Table        string
	TargetTable  string // defaults to Table

	Location  *time.Location
	BatchSize int
	DryRun    bool
	Now       func() time.Time
	Logger    *slog.Logger

	// OnPlan is called with the number of rows about to be written, before the first batch.
	OnPlan     func(total int)
	OnProgress func(n int)

	Summary *report.Summary
}

// Execute runs the reconciliation and records statuses and counts in r.Summary as it goes.
// The returned error is fatal; batch failures and skipped rows are only reported.
func (r *Run) Execute(ctx context.Context) error {
	s := r.Summary
	targetName := r.TargetTable
	if targetName == "" {
		targetName = r.Table
	}

	source, err := schema.Describe(ctx, r.Source, r.Dialect, r.SourceSchema, r.Table)
	if err != nil {
		s.TableStatus = schema.StatusFailed
		return err
	}
	if len(source.Tracking) > 0 {
		s.TableStatus = schema.StatusFailed
		return &errs.SchemaError{
			Table:  r.Table,
			Reason: fmt.Sprintf("source column %s clashes with a change-tracking column name", strings.Join(source.Tracking, ", ")),
		}
	}
	r.Logger.Info("Source table described", "table", source.Name,
		"columns", len(source.Columns), "primary_key", source.PrimaryKey)

	b := &schema.Bootstrap{
		Source:       r.Source,
		Target:       r.Target,
		Dialect:      r.Dialect,
		TargetSchema: r.TargetSchema,
		DryRun:       r.DryRun,
		Logger:       r.Logger,
	}
	state, err := b.EnsureTarget(ctx, source, targetName)
	s.TableStatus = state.Status
	if err != nil {
		return err
	}

	norm := NewNormalizer(source, r.Location)
	loader := &Loader{Dialect: r.Dialect, Normalizer: norm, Logger: r.Logger}

	src, err := loader.LoadSource(ctx, r.Source, source)
	if err != nil {
		return err
	}

	var tgt *Snapshot
	if r.DryRun && !state.Existed {
		tgt = NewSnapshot(errs.Target, source, norm)
	} else {
		tracked := !r.DryRun || state.HadOperationType()
		if tgt, err = loader.LoadTarget(ctx, r.Target, source, targetName, tracked); err != nil {
			return err
		}
	}

	for _, snap := range []*Snapshot{src, tgt} {
		for _, skipped := range snap.Skipped {
			s.AddError(skipped.Error())
		}
		s.Skipped += len(snap.Skipped)
	}

	changes := Diff(src, tgt)
	counts := Tally(changes)
	s.Unchanged = counts.Unchanged
	r.Logger.Info("Diff computed", "inserted", counts.Inserted, "updated", counts.Updated,
		"deleted", counts.Deleted, "unchanged", counts.Unchanged)

	if r.DryRun {
		s.Inserted, s.Updated, s.Deleted = counts.Inserted, counts.Updated, counts.Deleted
		r.Logger.Info("[dry-run] No data written", "rows", counts.Actionable())
		return nil
	}

	if r.OnPlan != nil {
		r.OnPlan(counts.Actionable())
	}
	a := &Applier{
		DB:         r.Target,
		Dialect:    r.Dialect,
		Table:      source,
		TargetName: targetName,
		BatchSize:  r.BatchSize,
		Now:        r.Now,
		Logger:     r.Logger,
		OnProgress: r.OnProgress,
	}
	res, err := a.Apply(ctx, changes)
	s.Inserted, s.Updated, s.Deleted = res.Applied.Inserted, res.Applied.Updated, res.Applied.Deleted
	s.Failed = res.Failed
	for _, bwe := range res.Errors {
		s.AddError(bwe.Error())
	}
	return err
}

// Package errs defines the failure taxonomy of a mirror run.
//
// ConnectionError and SchemaError are fatal and abort the run. BatchWriteError and
// RowShapeError are recovered where they happen and only show up in the run summary.
package errs

import (
	"fmt"
	"strings"
)

// Side names which database an error belongs to.
type Side string

const (
	Source Side = "source"
	Target Side = "target"
)

// ConnectionError means one side could not be opened or pinged.
type ConnectionError struct {
	Side Side
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Side, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SchemaError means the table cannot be reconciled safely (no primary key, missing table,
// target missing a source column, source row without a key value).
type SchemaError struct {
	Table  string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema error on %s: %s: %v", e.Table, e.Reason, e.Err)
	}
	return fmt.Sprintf("schema error on %s: %s", e.Table, e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// BatchWriteError records a rolled back batch. Keys are the rendered primary keys of
// every row in the batch.
type BatchWriteError struct {
	Kind       string
	Keys       []string
	Constraint bool
	Err        error
}

func (e *BatchWriteError) Error() string {
	keys := e.Keys
	suffix := ""
	if len(keys) > 10 {
		suffix = fmt.Sprintf(" (+%d more)", len(keys)-10)
		keys = keys[:10]
	}
	return fmt.Sprintf("%s batch of %d rows failed [keys: %s%s]: %v",
		e.Kind, len(e.Keys), strings.Join(keys, ", "), suffix, e.Err)
}

func (e *BatchWriteError) Unwrap() error { return e.Err }

// RowShapeError marks a single row that was skipped while loading a snapshot.
type RowShapeError struct {
	Side   Side
	Key    string
	Reason string
}

func (e *RowShapeError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s row skipped: %s", e.Side, e.Reason)
	}
	return fmt.Sprintf("%s row %s skipped: %s", e.Side, e.Key, e.Reason)
}

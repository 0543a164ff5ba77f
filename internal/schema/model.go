package schema

import (
	"strings"

	"db-mirror/internal/dialect"
)

// Table describes the mirrored table as read from the catalog. Columns holds the data
// columns only; tracking columns found on the table are listed in Tracking.
type Table struct {
	Name       string // as configured, optionally schema-qualified
	Columns    []*Column
	PrimaryKey []string // key order
	Tracking   []string
}

type Column struct {
	Name       string
	DataType   string // dialect-normalized, e.g. "int", "varchar", "datetime"
	ColumnType string // full catalog type, e.g. "varchar(20)"
	IsNullable bool
	IsPK       bool
}

// Table status values reported after bootstrap.
const (
	StatusCreated = "created"
	StatusExists  = "exists"
	StatusAltered = "altered"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// IsTrackingColumn reports whether name is one of the columns this tool owns.
func IsTrackingColumn(name string) bool {
	return strings.EqualFold(name, dialect.OperationTypeColumn) || strings.EqualFold(name, dialect.LastUpdatedColumn)
}

// ColumnNames returns the data column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// KeyIndexes returns the position in Columns of each primary key column, in key order.
// A key column that is not a data column yields -1.
func (t *Table) KeyIndexes() []int {
	idx := make([]int, len(t.PrimaryKey))
	for i, pk := range t.PrimaryKey {
		idx[i] = t.IndexOf(pk)
	}
	return idx
}

// NonKeyColumns returns the data columns that are not part of the primary key.
func (t *Table) NonKeyColumns() []string {
	var cols []string
	for _, c := range t.Columns {
		if !c.IsPK {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// IndexOf returns the position of the named data column, or -1.
func (t *Table) IndexOf(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// HasTracking reports whether the named tracking column exists on the table.
func (t *Table) HasTracking(name string) bool {
	for _, c := range t.Tracking {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// Defs converts the data columns to DDL column definitions.
func (t *Table) Defs() []dialect.ColumnDef {
	defs := make([]dialect.ColumnDef, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = dialect.ColumnDef{Name: c.Name, Type: c.ColumnType, Nullable: c.IsNullable && !c.IsPK}
	}
	return defs
}

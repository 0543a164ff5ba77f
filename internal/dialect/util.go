package dialect

import (
	"fmt"
	"strings"
	"time"
)

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// It takes the number of placeholders needed, the index of the first one, and a function
// that returns the placeholder for a given index.
func GeneratePlaceholders(count, offset int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(offset + i)
	}
	return strings.Join(placeholders, ", ")
}

// DefaultNormalizeType lowercases the type and drops any length or precision suffix.
func DefaultNormalizeType(sqlType string) string {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// DefaultGetSchemaName is a default implementation for Getting Schema Name (identity).
func DefaultGetSchemaName(input string) string {
	return input
}

// SplitTable splits an optionally schema-qualified name ("sales.orders").
func SplitTable(name string) (schema, table string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// QuoteQualified quotes each dot-separated part of name.
func QuoteQualified(d Dialect, name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

func quoteAll(d Dialect, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func quoteWith(name, open, close string) string {
	return open + strings.ReplaceAll(name, close, close+close) + close
}

func buildSelect(d Dialect, table string, cols []string) string {
	return fmt.Sprintf("SELECT %s FROM %s", quoteAll(d, cols), QuoteQualified(d, table))
}

func buildInsert(d Dialect, table string, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteQualified(d, table), quoteAll(d, cols), GeneratePlaceholders(len(cols), 0, d.Placeholder))
}

// buildUpdate numbers placeholders through the SET list first, then the key columns.
func buildUpdate(d Dialect, table string, setCols, keyCols []string) string {
	sets := make([]string, len(setCols))
	for i, c := range setCols {
		sets[i] = fmt.Sprintf("%s = %s", d.QuoteIdent(c), d.Placeholder(i))
	}
	where := make([]string, len(keyCols))
	for i, c := range keyCols {
		where[i] = fmt.Sprintf("%s = %s", d.QuoteIdent(c), d.Placeholder(len(setCols)+i))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		QuoteQualified(d, table), strings.Join(sets, ", "), strings.Join(where, " AND "))
}

func columnClause(d Dialect, c ColumnDef) string {
	clause := d.QuoteIdent(c.Name) + " " + c.Type
	if !c.Nullable {
		clause += " NOT NULL"
	}
	return clause
}

func buildCreateTable(d Dialect, prefix, table string, cols []ColumnDef, pk []string) string {
	lines := make([]string, 0, len(cols)+3)
	for _, c := range cols {
		lines = append(lines, "  "+columnClause(d, c))
	}
	for _, c := range d.TrackingColumns() {
		lines = append(lines, "  "+columnClause(d, c))
	}
	if len(pk) > 0 {
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", quoteAll(d, pk)))
	}
	return fmt.Sprintf("%s %s (\n%s\n)", prefix, QuoteQualified(d, table), strings.Join(lines, ",\n"))
}

func locationOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"db-mirror/internal/schema"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Kind is the comparison class of a column, derived from its normalized data type.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindDecimal
	KindFloat
	KindFloat32
	KindBool
	KindTime
	KindBytes
)

var intTypes = map[string]bool{
	"int": true, "integer": true, "tinyint": true, "smallint": true, "mediumint": true,
	"bigint": true, "year": true, "serial": true, "bigserial": true, "smallserial": true,
}

var timeTypes = map[string]bool{
	"date": true, "datetime": true, "timestamp": true, "datetime2": true,
	"smalldatetime": true, "datetimeoffset": true, "timestamptz": true,
}

// KindOf maps a dialect-normalized data type to its comparison kind.
func KindOf(dataType string) Kind {
	t := strings.ToLower(dataType)
	switch {
	case intTypes[t]:
		return KindInt
	case t == "bool" || t == "boolean" || t == "bit":
		return KindBool
	case t == "decimal" || t == "numeric" || t == "money" || t == "number":
		return KindDecimal
	case t == "float":
		return KindFloat32
	case t == "double" || t == "real" || t == "double precision":
		return KindFloat
	case timeTypes[t]:
		return KindTime
	case strings.Contains(t, "blob") || strings.Contains(t, "binary") || t == "bytea" || t == "raw" || t == "image":
		return KindBytes
	}
	return KindText
}

// canonical time layout: microsecond precision, trailing zeros trimmed.
const timeLayout = "2006-01-02 15:04:05.999999"

var parseLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
}

// Normalizer converts raw driver values into canonical values that compare equal whenever
// the database values are equal, regardless of how the driver chose to represent them.
// Canonical values are always nil, int64, float64, bool or string.
type Normalizer struct {
	kinds []Kind
	loc   *time.Location
}

// NewNormalizer builds a normalizer for the data columns of t. Zone-less timestamp strings
// are interpreted in loc.
func NewNormalizer(t *schema.Table, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	kinds := make([]Kind, len(t.Columns))
	for i, c := range t.Columns {
		kinds[i] = KindOf(c.DataType)
	}
	return &Normalizer{kinds: kinds, loc: loc}
}

// Normalize returns the canonical form of a row. It fails only when the value count does
// not match the table.
func (n *Normalizer) Normalize(raw []any) ([]any, error) {
	if len(raw) != len(n.kinds) {
		return nil, fmt.Errorf("expected %d values, got %d", len(n.kinds), len(raw))
	}
	canon := make([]any, len(raw))
	for i, v := range raw {
		canon[i] = n.Value(i, v)
	}
	return canon, nil
}

// Value normalizes the value of column i.
func (n *Normalizer) Value(i int, v any) any {
	if v == nil {
		return nil
	}
	kind := n.kinds[i]
	if b, ok := v.([]byte); ok && kind != KindBool {
		v = string(b)
	}

	switch kind {
	case KindInt:
		return canonicalInt(v)
	case KindDecimal:
		return canonicalDecimal(v)
	case KindFloat:
		return canonicalFloat(v, false)
	case KindFloat32:
		return canonicalFloat(v, true)
	case KindBool:
		return canonicalBool(v)
	case KindTime:
		return n.canonicalTime(v)
	}
	return canonicalText(v)
}

func canonicalInt(v any) any {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if _, err := strconv.ParseUint(s, 10, 64); err == nil {
			return s
		}
		return x
	case uint64:
		if x > math.MaxInt64 {
			return strconv.FormatUint(x, 10)
		}
		return int64(x)
	case uint:
		if uint64(x) > math.MaxInt64 {
			return strconv.FormatUint(uint64(x), 10)
		}
		return int64(x)
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return canonicalText(v)
	}
	return i
}

func canonicalDecimal(v any) any {
	var d decimal.Decimal
	var err error
	switch x := v.(type) {
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(x))
	case float64:
		d = decimal.NewFromFloat(x)
	case float32:
		d = decimal.NewFromFloat32(x)
	default:
		var i int64
		i, err = cast.ToInt64E(v)
		d = decimal.NewFromInt(i)
	}
	if err != nil {
		return canonicalText(v)
	}
	return d.String()
}

func canonicalFloat(v any, single bool) any {
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return canonicalText(v)
	}
	if single {
		return float64(float32(f))
	}
	return f
}

func canonicalBool(v any) any {
	if b, ok := v.([]byte); ok {
		// BIT(1) arrives as a single raw byte.
		if len(b) == 1 && b[0] <= 1 {
			return b[0] == 1
		}
		v = string(b)
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return canonicalText(v)
	}
	return b
}

func (n *Normalizer) canonicalTime(v any) any {
	switch x := v.(type) {
	case time.Time:
		return formatTime(x)
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range parseLayouts {
			if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
				return formatTime(t)
			}
		}
		// Zero dates and other values the driver could not parse stay as text.
		return s
	}
	return canonicalText(v)
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(timeLayout)
}

func canonicalText(v any) any {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return formatTime(x)
	}
	return fmt.Sprint(v)
}

// Key is the injective string encoding of a primary key tuple. Components are type-tagged
// and strings are quoted, so (1, "2|3") and (1, "2", 3) never collide.
type Key string

// MakeKey encodes canonical key components.
func MakeKey(vals []any) Key {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte('|')
		}
		switch x := v.(type) {
		case nil:
			b.WriteString("N")
		case int64:
			b.WriteString("i")
			b.WriteString(strconv.FormatInt(x, 10))
		case float64:
			b.WriteString("f")
			b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		case bool:
			b.WriteString("b")
			b.WriteString(strconv.FormatBool(x))
		case string:
			b.WriteString("s")
			b.WriteString(strconv.Quote(x))
		default:
			b.WriteString("v")
			b.WriteString(strconv.Quote(fmt.Sprint(x)))
		}
	}
	return Key(b.String())
}

// Tracking values for operation_type.
const (
	OpInserted = "inserted"
	OpUpdated  = "updated"
	OpDeleted  = "deleted"
)

// Row is one table row. Values holds what the driver returned and is what gets written;
// Canon holds the normalized values used for comparison. Both follow the table's data
// column order.
type Row struct {
	Values        []any
	Canon         []any
	OperationType string // target rows only; empty when NULL
}

// Deleted reports whether the row is soft-deleted on the target.
func (r *Row) Deleted() bool {
	return r.OperationType == OpDeleted
}

// Equal compares canonical data values. Tracking columns are never part of a Row.
func (r *Row) Equal(o *Row) bool {
	if len(r.Canon) != len(o.Canon) {
		return false
	}
	for i := range r.Canon {
		if r.Canon[i] != o.Canon[i] {
			return false
		}
	}
	return true
}

// pick returns the values at the given indexes.
func pick(vals []any, idx []int) []any {
	out := make([]any, len(idx))
	for i, j := range idx {
		out[i] = vals[j]
	}
	return out
}

// formatKey renders canonical key values for logs: 7 or (7, "eu").
func formatKey(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			parts[i] = strconv.Quote(s)
		} else {
			parts[i] = fmt.Sprint(v)
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

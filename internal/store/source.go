package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Row is one record keyed by column name.
type Row map[string]any

// Op is a filter operator.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpIn
)

// Cond is one WHERE condition. For OpIn, Value must be a slice.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

// Eq, Neq and In build conditions.
func Eq(column string, v any) Cond  { return Cond{Column: column, Op: OpEq, Value: v} }
func Neq(column string, v any) Cond { return Cond{Column: column, Op: OpNeq, Value: v} }
func In(column string, v any) Cond  { return Cond{Column: column, Op: OpIn, Value: v} }

// Query selects rows from one table. An empty Columns selects every column.
type Query struct {
	Table   string
	Columns []string
	Where   []Cond
	OrderBy string
	Desc    bool
	Limit   int
}

// Source is the abstract data-access surface the engine depends on. Every
// returned error is an *Error.
type Source interface {
	// Row returns the row whose keyColumn equals key, or ErrNotFound.
	Row(ctx context.Context, table, keyColumn string, key any) (Row, error)
	Rows(ctx context.Context, q Query) ([]Row, error)
	Count(ctx context.Context, q Query) (int64, error)
	// Sum returns the sum of column over matching rows, 0 when none match.
	Sum(ctx context.Context, q Query, column string) (float64, error)
	// Upsert inserts row or overwrites the row with the same keyColumn value.
	Upsert(ctx context.Context, table, keyColumn string, row Row) error
	// Call invokes a scalar aggregate function.
	Call(ctx context.Context, fn string, args ...any) (float64, error)
}

// String returns the column as a string, "" when absent or null.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the column as a float64, 0 when absent or not numeric.
func (r Row) Float(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	default:
		return 0
	}
}

// Int returns the column truncated to an int64.
func (r Row) Int(col string) int64 {
	if n, ok := r[col].(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	if i, ok := r[col].(int64); ok {
		return i
	}
	return int64(r.Float(col))
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02",
}

// Time returns the column as a time, zero when absent or unparseable.
func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// Has reports whether the column is present and non-null.
func (r Row) Has(col string) bool {
	v, ok := r[col]
	return ok && v != nil
}

// Decode re-encodes a structured column (jsonb object or JSON text) into out.
func (r Row) Decode(col string, out any) error {
	var data []byte
	switch v := r[col].(type) {
	case nil:
		return fmt.Errorf("column %s is null", col)
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode column %s: %w", col, err)
		}
		data = b
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode column %s: %w", col, err)
	}
	return nil
}

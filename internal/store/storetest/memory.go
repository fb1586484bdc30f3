// Package storetest provides an in-memory store.Source for tests. Tables
// declare their columns, so referencing an unknown column or table fails
// with schema drift the way Postgres does, and tables can be marked denied
// to emulate row-level security.
package storetest

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/socialweight/socialweight/internal/store"
)

// Func is an in-memory stand-in for a database function.
type Func func(args ...any) (float64, error)

type table struct {
	columns map[string]bool
	rows    []store.Row
	denied  bool
	fail    error
}

// Memory is an in-memory store.Source.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*table
	funcs  map[string]Func
	reads  map[string]int
	delay  map[string]time.Duration
}

// New returns an empty source.
func New() *Memory {
	return &Memory{
		tables: map[string]*table{},
		funcs:  map[string]Func{},
		reads:  map[string]int{},
		delay:  map[string]time.Duration{},
	}
}

// Define declares a table and its columns.
func (m *Memory) Define(name string, columns ...string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &table{columns: map[string]bool{}}
	for _, c := range columns {
		t.columns[c] = true
	}
	m.tables[name] = t
	return m
}

// Insert appends rows to a defined table.
func (m *Memory) Insert(name string, rows ...store.Row) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		panic(fmt.Sprintf("storetest: insert into undefined table %s", name))
	}
	for _, r := range rows {
		cp := store.Row{}
		for k, v := range r {
			if !t.columns[k] {
				panic(fmt.Sprintf("storetest: column %s not defined on %s", k, name))
			}
			cp[k] = v
		}
		t.rows = append(t.rows, cp)
	}
	return m
}

// Deny makes every access to the table fail with access denied.
func (m *Memory) Deny(name string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tables[name]; ok {
		t.denied = true
	}
	return m
}

// Fail makes every access to the table return err, classified as transient
// unless it already carries a kind.
func (m *Memory) Fail(name string, err error) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tables[name]; ok {
		t.fail = err
	}
	return m
}

// Delay blocks every access to the table for d or until the context ends.
func (m *Memory) Delay(name string, d time.Duration) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay[name] = d
	return m
}

// Func registers a database function for Call.
func (m *Memory) Func(name string, fn Func) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs[name] = fn
	return m
}

// Reads returns how many operations touched the table.
func (m *Memory) Reads(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[name]
}

// Table returns a copy of the rows currently stored in a table.
func (m *Memory) Table(name string) []store.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		return nil
	}
	out := make([]store.Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = copyRow(r, nil)
	}
	return out
}

func (m *Memory) wait(ctx context.Context, name string) error {
	m.mu.Lock()
	d := m.delay[name]
	m.mu.Unlock()
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return store.Classify("wait "+name, ctx.Err())
	}
}

// open looks up a table and checks that every referenced column exists.
// Callers hold m.mu.
func (m *Memory) open(op, name string, columns ...string) (*table, error) {
	m.reads[name]++
	t, ok := m.tables[name]
	if !ok {
		return nil, store.Errorf(store.KindSchemaDrift, op, "relation %q does not exist", name)
	}
	if t.denied {
		return nil, store.Errorf(store.KindAccessDenied, op, "permission denied for table %s", name)
	}
	if t.fail != nil {
		return nil, store.Classify(op, t.fail)
	}
	for _, c := range columns {
		if c != "" && !t.columns[c] {
			return nil, store.Errorf(store.KindSchemaDrift, op, "column %q does not exist", c)
		}
	}
	return t, nil
}

func queryColumns(q store.Query) []string {
	cols := append([]string{}, q.Columns...)
	for _, c := range q.Where {
		cols = append(cols, c.Column)
	}
	return append(cols, q.OrderBy)
}

func (m *Memory) Row(ctx context.Context, name, keyColumn string, key any) (store.Row, error) {
	if err := m.wait(ctx, name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	op := "row " + name
	t, err := m.open(op, name, keyColumn)
	if err != nil {
		return nil, err
	}
	for _, r := range t.rows {
		if equal(r[keyColumn], key) {
			return copyRow(r, nil), nil
		}
	}
	return nil, store.Errorf(store.KindNotFound, op, "no row with %s = %v", keyColumn, key)
}

func (m *Memory) Rows(ctx context.Context, q store.Query) ([]store.Row, error) {
	if err := m.wait(ctx, q.Table); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.open("rows "+q.Table, q.Table, queryColumns(q)...)
	if err != nil {
		return nil, err
	}
	matched := filter(t.rows, q.Where)
	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			c := compare(matched[i][q.OrderBy], matched[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]store.Row, len(matched))
	for i, r := range matched {
		out[i] = copyRow(r, q.Columns)
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context, q store.Query) (int64, error) {
	if err := m.wait(ctx, q.Table); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.open("count "+q.Table, q.Table, queryColumns(q)...)
	if err != nil {
		return 0, err
	}
	return int64(len(filter(t.rows, q.Where))), nil
}

func (m *Memory) Sum(ctx context.Context, q store.Query, column string) (float64, error) {
	if err := m.wait(ctx, q.Table); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.open("sum "+q.Table, q.Table, append(queryColumns(q), column)...)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, r := range filter(t.rows, q.Where) {
		sum += r.Float(column)
	}
	return sum, nil
}

func (m *Memory) Upsert(ctx context.Context, name, keyColumn string, row store.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cols := []string{keyColumn}
	for c := range row {
		cols = append(cols, c)
	}
	t, err := m.open("upsert "+name, name, cols...)
	if err != nil {
		return err
	}
	cp := copyRow(row, nil)
	for i, r := range t.rows {
		if equal(r[keyColumn], row[keyColumn]) {
			t.rows[i] = cp
			return nil
		}
	}
	t.rows = append(t.rows, cp)
	return nil
}

func (m *Memory) Call(ctx context.Context, fn string, args ...any) (float64, error) {
	m.mu.Lock()
	f, ok := m.funcs[fn]
	m.reads[fn]++
	m.mu.Unlock()
	if !ok {
		return 0, store.Errorf(store.KindSchemaDrift, "call "+fn, "function %s does not exist", fn)
	}
	v, err := f(args...)
	if err != nil {
		return 0, store.Classify("call "+fn, err)
	}
	return v, nil
}

func filter(rows []store.Row, where []store.Cond) []store.Row {
	var out []store.Row
	for _, r := range rows {
		if matches(r, where) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r store.Row, where []store.Cond) bool {
	for _, c := range where {
		v := r[c.Column]
		switch c.Op {
		case store.OpEq:
			if !equal(v, c.Value) {
				return false
			}
		case store.OpNeq:
			if equal(v, c.Value) {
				return false
			}
		case store.OpIn:
			if !contains(c.Value, v) {
				return false
			}
		}
	}
	return true
}

func contains(list, v any) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equal(rv.Index(i).Interface(), v) {
			return true
		}
	}
	return false
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b any) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func copyRow(r store.Row, cols []string) store.Row {
	out := store.Row{}
	if len(cols) == 0 {
		for k, v := range r {
			out[k] = v
		}
		return out
	}
	for _, c := range cols {
		out[c] = r[c]
	}
	return out
}

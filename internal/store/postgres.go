package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// Postgres is a Source backed by database/sql and lib/pq.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres source.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return Classify("ping", p.db.PingContext(ctx))
}

func (p *Postgres) Row(ctx context.Context, table, keyColumn string, key any) (Row, error) {
	op := "row " + table
	query := fmt.Sprintf(`SELECT to_jsonb(t) FROM %s t WHERE t.%s = $1 LIMIT 1`,
		pq.QuoteIdentifier(table), pq.QuoteIdentifier(keyColumn))

	var raw []byte
	if err := p.db.QueryRowContext(ctx, query, key).Scan(&raw); err != nil {
		return nil, Classify(op, err)
	}
	row, err := decodeRow(raw)
	if err != nil {
		return nil, Classify(op, err)
	}
	return row, nil
}

func (p *Postgres) Rows(ctx context.Context, q Query) ([]Row, error) {
	op := "rows " + q.Table
	where, args := buildWhere(q.Where, 1)
	query := fmt.Sprintf(`SELECT %s FROM %s t%s%s`, selectList(q.Columns), pq.QuoteIdentifier(q.Table), where, orderLimit(q))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Classify(op, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, Classify(op, err)
		}
		row, err := decodeRow(raw)
		if err != nil {
			return nil, Classify(op, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify(op, err)
	}
	return out, nil
}

func (p *Postgres) Count(ctx context.Context, q Query) (int64, error) {
	where, args := buildWhere(q.Where, 1)
	query := fmt.Sprintf(`SELECT count(*) FROM %s t%s`, pq.QuoteIdentifier(q.Table), where)

	var n int64
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, Classify("count "+q.Table, err)
	}
	return n, nil
}

func (p *Postgres) Sum(ctx context.Context, q Query, column string) (float64, error) {
	where, args := buildWhere(q.Where, 1)
	query := fmt.Sprintf(`SELECT COALESCE(SUM(t.%s), 0)::float8 FROM %s t%s`,
		pq.QuoteIdentifier(column), pq.QuoteIdentifier(q.Table), where)

	var sum float64
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return 0, Classify("sum "+q.Table+"."+column, err)
	}
	return sum, nil
}

func (p *Postgres) Upsert(ctx context.Context, table, keyColumn string, row Row) error {
	op := "upsert " + table
	if _, ok := row[keyColumn]; !ok {
		return Errorf(KindTransient, op, "row has no key column %s", keyColumn)
	}

	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	var updates []string
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
		params[i] = fmt.Sprintf("$%d", i+1)
		v, err := encodeValue(row[c])
		if err != nil {
			return Classify(op, err)
		}
		args[i] = v
		if c != keyColumn {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quoted[i], quoted[i]))
		}
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO `,
		pq.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(params, ", "), pq.QuoteIdentifier(keyColumn))
	if len(updates) == 0 {
		query += "NOTHING"
	} else {
		query += "UPDATE SET " + strings.Join(updates, ", ")
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return Classify(op, err)
	}
	return nil
}

func (p *Postgres) Call(ctx context.Context, fn string, args ...any) (float64, error) {
	params := make([]string, len(args))
	for i := range args {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`SELECT COALESCE(%s(%s), 0)::float8`, pq.QuoteIdentifier(fn), strings.Join(params, ", "))

	var v float64
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return 0, Classify("call "+fn, err)
	}
	return v, nil
}

// selectList renders a jsonb projection so every row decodes the same way.
// Naming the columns makes a missing one fail with undefined_column.
func selectList(cols []string) string {
	if len(cols) == 0 {
		return "to_jsonb(t)"
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s, t.%s", pq.QuoteLiteral(c), pq.QuoteIdentifier(c))
	}
	return "jsonb_build_object(" + strings.Join(parts, ", ") + ")"
}

func buildWhere(conds []Cond, start int) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}
	var clauses []string
	var args []any
	n := start
	for _, c := range conds {
		col := "t." + pq.QuoteIdentifier(c.Column)
		switch c.Op {
		case OpIn:
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", col, n))
			args = append(args, pq.Array(c.Value))
		case OpNeq:
			clauses = append(clauses, fmt.Sprintf("%s <> $%d", col, n))
			args = append(args, c.Value)
		default:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", col, n))
			args = append(args, c.Value)
		}
		n++
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderLimit(q Query) string {
	var b strings.Builder
	if q.OrderBy != "" {
		b.WriteString(" ORDER BY t.")
		b.WriteString(pq.QuoteIdentifier(q.OrderBy))
		if q.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String()
}

func decodeRow(raw []byte) (Row, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return row, nil
}

// encodeValue turns structured values into JSON text for jsonb columns.
func encodeValue(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any, json.RawMessage:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BindStyle selects how named params reach a database/sql driver.
type BindStyle int

const (
	// BindNamed passes sql.Named args and leaves @name in the text
	// (clickhouse-go).
	BindNamed BindStyle = iota
	// BindDollar rewrites @name to $n positional placeholders (lib/pq).
	BindDollar
)

// SQLQuerier runs warehouse queries over database/sql.
type SQLQuerier struct {
	db       *sql.DB
	bind     BindStyle
	readOnly bool
}

type SQLOption func(*SQLQuerier)

// ReadOnlyTx runs every query in its own read-only transaction through a
// prepared statement. The server then refuses writes, and the extended
// protocol refuses text holding more than one statement.
func ReadOnlyTx() SQLOption {
	return func(q *SQLQuerier) { q.readOnly = true }
}

func NewSQLQuerier(db *sql.DB, bind BindStyle, opts ...SQLOption) *SQLQuerier {
	q := &SQLQuerier{db: db, bind: bind}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *SQLQuerier) Query(ctx context.Context, query string, params map[string]any, opts QueryOptions) ([]Row, error) {
	text, args := q.bindParams(query, params)

	if !q.readOnly {
		rows, err := q.db.QueryContext(ctx, text, args...)
		if err != nil {
			return nil, err
		}
		return scanRows(rows, opts.MaxRows)
	}

	tx, err := q.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, text)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	return scanRows(rows, opts.MaxRows)
}

func scanRows(rows *sql.Rows, maxRows int) ([]Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0)
	for rows.Next() {
		if maxRows > 0 && len(out) >= maxRows {
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (q *SQLQuerier) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

func (q *SQLQuerier) Close() error {
	return q.db.Close()
}

func (q *SQLQuerier) bindParams(query string, params map[string]any) (string, []any) {
	if len(params) == 0 {
		return query, nil
	}
	switch q.bind {
	case BindDollar:
		return rewriteDollarParams(query, params)
	default:
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)
		args := make([]any, 0, len(names))
		for _, name := range names {
			args = append(args, sql.Named(name, params[name]))
		}
		return query, args
	}
}

// rewriteDollarParams replaces @name references outside string literals with
// $n, numbering each distinct name once in order of first use.
func rewriteDollarParams(query string, params map[string]any) (string, []any) {
	var b strings.Builder
	b.Grow(len(query))
	positions := map[string]int{}
	var args []any
	inString := false

	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '\'' {
			inString = !inString
			b.WriteByte(c)
			continue
		}
		if c != '@' || inString {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(query) && isIdentByte(query[j]) {
			j++
		}
		name := query[i+1 : j]
		value, ok := params[name]
		if name == "" || !ok {
			b.WriteByte(c)
			continue
		}
		pos, seen := positions[name]
		if !seen {
			args = append(args, value)
			pos = len(args)
			positions[name] = pos
		}
		b.WriteString("$" + strconv.Itoa(pos))
		i = j - 1
	}
	return b.String(), args
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// normalizeValue turns driver values into JSON-friendly ones.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

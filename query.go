package pgsqldb

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rickchristie/postgres-sqldb/internal/stmtlog"
)

// ErrNoRows is returned by Run in FetchOne mode when the statement produced
// no rows.
var ErrNoRows = errors.New("query returned no rows")

// Run executes sql and returns its rows.
//
// Statement text is never parsed. Rows are only fetched when the lowercased
// text contains "select"; otherwise the statement is drained and the empty
// marker is returned. The fetch mode is validated only when rows are fetched,
// after the statement has already run.
//
// String cells longer than TruncateColumnLength characters are cut to that
// prefix. Driver errors are returned unchanged.
func (d *DB) Run(ctx context.Context, sql string, mode FetchMode) (*Result, error) {
	startTime := time.Now()

	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.release()

	result, err := d.run(ctx, sql, mode)

	logEvent := d.logger.Info()
	if err != nil {
		logEvent = d.logger.Warn().Err(err)
	}
	logEvent.
		Str("sql", stmtlog.Summary(sql, stmtlog.DefaultMaxLen)).
		Str("fetch", string(mode)).
		Dur("duration", time.Since(startTime)).
		Bool("fetched", result != nil && !result.Empty()).
		Int("row_count", result.rowCount()).
		Msg("Run executed")

	return result, err
}

func (d *DB) run(ctx context.Context, sql string, mode FetchMode) (*Result, error) {
	rows, err := d.conn.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !selectsRows(sql) {
		for rows.Next() {
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		return &Result{}, nil
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if columns == nil {
		columns = []string{}
	}

	switch mode {
	case FetchAll:
		data := [][]any{}
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return nil, err
			}
			data = append(data, values)
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		d.sanitizer.SanitizeRows(data)
		d.truncateRows(data)
		return &Result{Columns: columns, Rows: data}, nil

	case FetchOne:
		if !rows.Next() {
			if err := rows.Close(); err != nil {
				return nil, err
			}
			return nil, ErrNoRows
		}
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, ErrNoRows
		}
		value := d.truncateValue(d.sanitizer.SanitizeValue(values[0]))
		return &Result{Columns: columns, Value: value, one: true}, nil

	default:
		return nil, &InvalidFetchModeError{Mode: string(mode)}
	}
}

// RunNoThrow is Run with every error reported as an "Error: ..." string. On
// success it returns the JSON text of the result.
func (d *DB) RunNoThrow(ctx context.Context, sql string, mode FetchMode) string {
	result, err := d.Run(ctx, sql, mode)
	if err != nil {
		return d.Diagnostic(err)
	}
	text, err := result.Text()
	if err != nil {
		return d.Diagnostic(err)
	}
	return text
}

// selectsRows reports whether Run should fetch rows for sql. This is a plain
// substring test: "select" inside a literal or comment counts, and
// INSERT ... RETURNING does not.
func selectsRows(sql string) bool {
	return strings.Contains(strings.ToLower(sql), "select")
}

func (d *DB) truncateRows(rows [][]any) {
	for _, row := range rows {
		for i, cell := range row {
			row[i] = d.truncateValue(cell)
		}
	}
}

// truncateValue cuts strings to their first truncateColumnLength characters.
// Other values are returned unchanged.
func (d *DB) truncateValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return truncateRunes(s, d.truncateColumnLength)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Diagnostic converts err into the string form returned by the NoThrow
// variants. Configured error prompts are appended.
func (d *DB) Diagnostic(err error) string {
	msg := "Error: " + err.Error()
	logEvent := d.logger.Error().Err(err)
	if patterns := d.errPrompts.MatchedPatterns(msg); len(patterns) > 0 {
		logEvent = logEvent.Strs("error_prompts", patterns)
	}
	logEvent.Msg("statement error")
	return d.errPrompts.Annotate(msg)
}

func (r *Result) rowCount() int {
	switch {
	case r == nil:
		return 0
	case r.one:
		return 1
	default:
		return len(r.Rows)
	}
}

// MarshalJSON renders {"columns":[...],"rows":[[...]]}, or
// {"columns":[...],"value":...} for a FetchOne result. The empty marker
// renders with empty columns and rows.
func (r *Result) MarshalJSON() ([]byte, error) {
	columns := r.Columns
	if columns == nil {
		columns = []string{}
	}
	if r.one {
		return json.Marshal(struct {
			Columns []string `json:"columns"`
			Value   any      `json:"value"`
		}{columns, presentValue(r.Value)})
	}
	rows := make([][]any, len(r.Rows))
	for i, row := range r.Rows {
		presented := make([]any, len(row))
		for j, v := range row {
			presented[j] = presentValue(v)
		}
		rows[i] = presented
	}
	return json.Marshal(struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}{columns, rows})
}

// Text returns the JSON form of r.
func (r *Result) Text() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// TextRows returns every cell of r in the plain-text form used for sample
// rows, with NULL for missing values. A FetchOne result is a single row.
func (r *Result) TextRows() [][]string {
	if r.one {
		return [][]string{{cellText(r.Value)}}
	}
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = cellText(v)
		}
		out[i] = cells
	}
	return out
}

// Single reports whether r holds a FetchOne value rather than rows.
func (r *Result) Single() bool {
	return r.one
}

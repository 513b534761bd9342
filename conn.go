package pgsqldb

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
)

// Conn is a live, authenticated connection. Errors it returns are surfaced
// by DB without translation.
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Rows is the result of a statement. Close drains any unread rows and
// reports the statement's final error.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Values() ([]any, error)
	Err() error
	Close() error
}

// PgxQuerier is implemented by *pgx.Conn, *pgxpool.Pool and pgx.Tx.
type PgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgxConn adapts a pgx connection, pool or transaction.
func PgxConn(q PgxQuerier) Conn {
	return pgxConn{q: q}
}

type pgxConn struct {
	q PgxQuerier
}

func (c pgxConn) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := c.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Columns() ([]string, error) {
	fieldDescs := r.rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}
	return columns, nil
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Values() ([]any, error) { return r.rows.Values() }
func (r *pgxRows) Err() error             { return r.rows.Err() }

func (r *pgxRows) Close() error {
	r.rows.Close()
	return r.rows.Err()
}

// SQLQuerier is implemented by *sql.DB, *sql.Conn and *sql.Tx.
type SQLQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLConn adapts a database/sql handle, for callers that already hold one
// (for example through the pgx stdlib driver).
func SQLConn(q SQLQuerier) Conn {
	return sqlConn{q: q}
}

type sqlConn struct {
	q SQLQuerier
}

func (c sqlConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	//nolint:rowserrcheck // Err is checked by callers through Rows.Close.
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqlRows) Next() bool                 { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *sqlRows) Err() error                 { return r.rows.Err() }

func (r *sqlRows) Values() ([]any, error) {
	cols, err := r.rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return values, nil
}

func (r *sqlRows) Close() error {
	if err := r.rows.Close(); err != nil {
		return err
	}
	return r.rows.Err()
}

package pgsqldb

import (
	"context"
	"database/sql/driver"
	"os"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

// newMock returns a sqlmock connection matching statements by exact text
// (whitespace-collapsed). Unmet expectations fail the test at cleanup.
func newMock(t *testing.T) (Conn, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return SQLConn(sqlDB), mock
}

func expectAllTables(mock sqlmock.Sqlmock, viewSupport bool, schema string, tables ...string) {
	rows := sqlmock.NewRows([]string{"relname"})
	for _, name := range tables {
		rows.AddRow(name)
	}
	mock.ExpectQuery(allTablesSQL(viewSupport)).WithArgs(schema).WillReturnRows(rows)
}

// column is a row of the columns catalog query.
type column struct {
	table, name, typ string
	ordinal          int64
}

func expectColumns(mock sqlmock.Sqlmock, viewSupport bool, schema string, cols ...column) {
	rows := sqlmock.NewRows([]string{"relname", "attname", "typname", "attnum"})
	for _, c := range cols {
		rows.AddRow(c.table, c.name, c.typ, c.ordinal)
	}
	mock.ExpectQuery(columnsSQL(viewSupport)).WithArgs(schema).WillReturnRows(rows)
}

// newTestDB builds a DB over a mock whose schema holds tables.
func newTestDB(t *testing.T, config Config, tables ...string) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock := newMock(t)
	schema := strings.TrimSpace(config.Schema)
	if schema == "" {
		schema = defaultSchema
	}
	expectAllTables(mock, config.ViewSupport, schema, tables...)
	db, err := New(context.Background(), conn, config, testLogger())
	require.NoError(t, err)
	return db, mock
}

func mockRows(columns []string, rows ...[]driver.Value) *sqlmock.Rows {
	r := sqlmock.NewRows(columns)
	for _, row := range rows {
		r.AddRow(row...)
	}
	return r
}

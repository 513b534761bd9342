package pgsqldb

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Relation kinds visible through a DB. Indexes, sequences, composite types
// and toast tables are never listed.
const (
	tableRelkinds = `('r', 'p', 'f')`
	viewRelkinds  = `('r', 'p', 'f', 'v', 'm')`
)

const allTablesSQLTemplate = `
SELECT c.relname
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND c.relkind IN %s
ORDER BY c.relname;
`

const columnsSQLTemplate = `
SELECT c.relname, a.attname, t.typname, a.attnum
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_catalog.pg_attrdef ad ON (a.attrelid = ad.adrelid AND a.attnum = ad.adnum)
LEFT JOIN pg_catalog.pg_description dsc ON (c.oid = dsc.objoid AND a.attnum = dsc.objsubid)
LEFT JOIN pg_catalog.pg_type t ON t.oid = a.atttypid
WHERE NOT a.attisdropped
  AND a.attnum > 0
  AND n.nspname = $1
  AND c.relkind IN %s
ORDER BY c.relname, a.attnum;
`

const indexesSQL = `
SELECT tablename, indexdef
FROM pg_catalog.pg_indexes
WHERE schemaname = $1
ORDER BY tablename, indexname;
`

func relkinds(viewSupport bool) string {
	if viewSupport {
		return viewRelkinds
	}
	return tableRelkinds
}

func allTablesSQL(viewSupport bool) string {
	return fmt.Sprintf(allTablesSQLTemplate, relkinds(viewSupport))
}

func columnsSQL(viewSupport bool) string {
	return fmt.Sprintf(columnsSQLTemplate, relkinds(viewSupport))
}

// FetchAllTables returns every visible relation of the configured schema.
func (d *DB) FetchAllTables(ctx context.Context) (TableSet, error) {
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.release()
	return d.fetchAllTables(ctx)
}

func (d *DB) fetchAllTables(ctx context.Context) (TableSet, error) {
	startTime := time.Now()

	rows, err := d.conn.Query(ctx, allTablesSQL(d.viewSupport), d.schema)
	if err != nil {
		return nil, fmt.Errorf("FetchAllTables query failed: %w", err)
	}
	defer rows.Close()

	tables := make(TableSet)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("FetchAllTables scan failed: %w", err)
		}
		tables[name] = struct{}{}
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("FetchAllTables rows error: %w", err)
	}

	d.logger.Debug().
		Dur("duration", time.Since(startTime)).
		Int("table_count", len(tables)).
		Msg("FetchAllTables executed")

	return tables, nil
}

// FetchColumns reads every column of every visible relation, grouped by
// table in the order the catalog returns them.
func (d *DB) FetchColumns(ctx context.Context) (*Catalog, error) {
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.release()
	return d.fetchColumns(ctx)
}

func (d *DB) fetchColumns(ctx context.Context) (*Catalog, error) {
	rows, err := d.conn.Query(ctx, columnsSQL(d.viewSupport), d.schema)
	if err != nil {
		return nil, fmt.Errorf("FetchColumns query failed: %w", err)
	}
	defer rows.Close()

	catalog := NewCatalog()
	for rows.Next() {
		var table string
		var col ColumnSpec
		if err := rows.Scan(&table, &col.Name, &col.Type, &col.Ordinal); err != nil {
			return nil, fmt.Errorf("FetchColumns scan failed: %w", err)
		}
		catalog.AddColumn(table, col)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("FetchColumns rows error: %w", err)
	}
	return catalog, nil
}

// fetchIndexes returns index definitions keyed by table name.
func (d *DB) fetchIndexes(ctx context.Context) (map[string][]string, error) {
	rows, err := d.conn.Query(ctx, indexesSQL, d.schema)
	if err != nil {
		return nil, fmt.Errorf("indexes query failed: %w", err)
	}
	defer rows.Close()

	indexes := make(map[string][]string)
	for rows.Next() {
		var table, def string
		if err := rows.Scan(&table, &def); err != nil {
			return nil, fmt.Errorf("indexes scan failed: %w", err)
		}
		indexes[table] = append(indexes[table], def)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("indexes rows error: %w", err)
	}
	return indexes, nil
}

// quoteIdent quotes a PostgreSQL identifier, escaping embedded double quotes.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

package pgsqldb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TableInfo renders CREATE TABLE style descriptions of the named tables.
//
// A nil names slice renders every usable table. Otherwise every name must be
// usable, and an *UnknownTableError listing all offenders is returned before
// the catalog is read. Tables are rendered in catalog order and blocks are
// separated by a blank line.
func (d *DB) TableInfo(ctx context.Context, names []string) (string, error) {
	startTime := time.Now()

	tables, err := d.resolveTableNames(names)
	if err != nil {
		return "", err
	}

	if err := d.acquire(ctx); err != nil {
		return "", err
	}
	defer d.release()

	catalog, err := d.fetchColumns(ctx)
	if err != nil {
		return "", err
	}

	var indexes map[string][]string
	if d.indexesInTableInfo {
		indexes, err = d.fetchIndexes(ctx)
		if err != nil {
			return "", err
		}
	}

	blocks := make([]string, 0, len(tables))
	for _, name := range catalog.Names() {
		if !tables.Has(name) {
			continue
		}
		if info, ok := d.customTableInfo[name]; ok {
			blocks = append(blocks, info)
			continue
		}
		spec, _ := catalog.Table(name)
		blocks = append(blocks, d.renderTable(ctx, spec, indexes[name]))
	}

	d.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("table_count", len(blocks)).
		Msg("TableInfo executed")

	return strings.Join(blocks, "\n\n"), nil
}

// TableInfoNoThrow is TableInfo with unknown table names reported as an
// "Error: ..." string. Every other error is still returned.
func (d *DB) TableInfoNoThrow(ctx context.Context, names []string) (string, error) {
	info, err := d.TableInfo(ctx, names)
	var unknown *UnknownTableError
	if errors.As(err, &unknown) {
		return d.Diagnostic(unknown), nil
	}
	return info, err
}

func (d *DB) resolveTableNames(names []string) (TableSet, error) {
	if names == nil {
		return d.usableTables, nil
	}
	requested := NewTableSet(names...)
	if missing := requested.Minus(d.usableTables); len(missing) > 0 {
		return nil, &UnknownTableError{Kind: "table_names", Missing: missing.Sorted()}
	}
	return requested, nil
}

func (d *DB) renderTable(ctx context.Context, spec *TableSpec, indexes []string) string {
	columns := make([]string, len(spec.Columns))
	for i, col := range spec.Columns {
		columns[i] = col.Name + " " + col.Type
	}

	var extra strings.Builder
	if len(indexes) > 0 {
		extra.WriteString("\nTable Indexes:\n")
		extra.WriteString(strings.Join(indexes, "\n"))
		extra.WriteString("\n")
	}
	if d.sampleRows > 0 {
		extra.WriteString("\n")
		extra.WriteString(d.sampleRowsText(ctx, spec.Name))
		extra.WriteString("\n")
	}

	return "CREATE TABLE " + spec.Name + " (" + strings.Join(columns, ",\n") + ")" +
		"\n\n/*" + extra.String() + "*/"
}

// sampleRowsText reads up to sampleRows rows of table. A failed read leaves
// the header with no rows; schema rendering does not fail on sample errors.
func (d *DB) sampleRowsText(ctx context.Context, table string) string {
	header := fmt.Sprintf("%d rows from %s table:\n", d.sampleRows, table)

	columns, rows, err := d.readSample(ctx, table)
	if err != nil {
		d.logger.Warn().Err(err).Str("table", table).Msg("sample rows unavailable")
		return header
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, strings.Join(columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = cellText(v)
		}
		lines = append(lines, strings.Join(cells, "\t"))
	}
	return header + strings.Join(lines, "\n")
}

func (d *DB) readSample(ctx context.Context, table string) ([]string, [][]any, error) {
	sql := fmt.Sprintf("SELECT * FROM %s.%s LIMIT %d", quoteIdent(d.schema), quoteIdent(table), d.sampleRows)
	rows, err := d.conn.Query(ctx, sql)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var result [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		result = append(result, values)
	}
	if err := rows.Close(); err != nil {
		return nil, nil, err
	}
	d.sanitizer.SanitizeRows(result)
	d.truncateRows(result)
	return columns, result, nil
}

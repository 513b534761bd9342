package pgsqldb

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/rickchristie/postgres-sqldb/internal/errprompt"
	"github.com/rickchristie/postgres-sqldb/internal/sanitize"
)

const (
	defaultSchema               = "public"
	defaultTruncateColumnLength = 50
)

// DB is a bounded view over a single connection. Its table sets and
// settings are fixed by New; the catalog itself is re-read on every
// TableInfo call.
//
// DB runs one statement at a time. Concurrent calls queue on an internal
// slot and give up when their context is cancelled while waiting.
type DB struct {
	conn   Conn
	closer func(ctx context.Context) error

	schema          string
	viewSupport     bool
	allTables       TableSet
	includeTables   TableSet
	ignoreTables    TableSet
	usableTables    TableSet
	customTableInfo map[string]string

	sampleRows           int
	indexesInTableInfo   bool
	truncateColumnLength int

	sanitizer  *sanitize.Sanitizer
	errPrompts *errprompt.Matcher
	slot       chan struct{}
	logger     zerolog.Logger
}

// New builds a DB over conn. It reads the schema's tables once and validates
// the include/ignore/custom-info configuration against them.
//
// Configuration problems are returned as *ConfigError or *UnknownTableError;
// failures of the catalog query are returned wrapped.
func New(ctx context.Context, conn Conn, config Config, logger zerolog.Logger) (*DB, error) {
	if conn == nil {
		return nil, &ConfigError{Msg: "connection must be non-nil"}
	}
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	san, err := sanitize.NewSanitizer(mapSanitizationRules(config.Sanitization))
	if err != nil {
		return nil, &ConfigError{Msg: err.Error()}
	}
	matcher, err := errprompt.NewMatcher(mapErrorPromptRules(config.ErrorPrompts))
	if err != nil {
		return nil, &ConfigError{Msg: err.Error()}
	}

	d := &DB{
		conn:                 conn,
		schema:               config.Schema,
		viewSupport:          config.ViewSupport,
		sampleRows:           config.SampleRowsInTableInfo,
		indexesInTableInfo:   config.IndexesInTableInfo,
		truncateColumnLength: config.TruncateColumnLength,
		sanitizer:            san,
		errPrompts:           matcher,
		slot:                 make(chan struct{}, 1),
		logger:               logger,
	}

	all, err := d.fetchAllTables(ctx)
	if err != nil {
		return nil, err
	}
	include := NewTableSet(config.IncludeTables...)
	ignore := NewTableSet(config.IgnoreTables...)
	usable, err := ComputeUsableTables(all, include, ignore)
	if err != nil {
		return nil, err
	}

	d.allTables = all
	d.includeTables = include
	d.ignoreTables = ignore
	d.usableTables = usable
	d.customTableInfo = make(map[string]string, len(config.CustomTableInfo))
	for table, info := range config.CustomTableInfo {
		if all.Has(table) {
			d.customTableInfo[table] = info
		}
	}

	logger.Info().
		Str("schema", d.schema).
		Int("all_tables", len(all)).
		Int("usable_tables", len(usable)).
		Int("custom_table_info", len(d.customTableInfo)).
		Msg("database view ready")

	return d, nil
}

func validateConfig(config *Config) error {
	if len(config.IncludeTables) > 0 && len(config.IgnoreTables) > 0 {
		return &ConfigError{Msg: "cannot specify both include_tables and ignore_tables"}
	}
	if config.SampleRowsInTableInfo < 0 {
		return &ConfigError{Msg: fmt.Sprintf("sample_rows_in_table_info must be >= 0, got %d", config.SampleRowsInTableInfo)}
	}
	if config.TruncateColumnLength < 0 {
		return &ConfigError{Msg: fmt.Sprintf("truncate_column_length must be > 0, got %d", config.TruncateColumnLength)}
	}

	// Apply defaults for zero values
	if config.TruncateColumnLength == 0 {
		config.TruncateColumnLength = defaultTruncateColumnLength
	}
	config.Schema = strings.TrimSpace(config.Schema)
	if config.Schema == "" {
		config.Schema = defaultSchema
	}
	return nil
}

// Open connects to the database named by uri (a postgres:// URL or a
// keyword/value string) and builds a DB over that single connection.
// Close releases it.
func Open(ctx context.Context, uri string, config Config, logger zerolog.Logger) (*DB, error) {
	if uri == "" {
		return nil, &ConfigError{Msg: "connection string must be non-empty"}
	}
	connConfig, err := pgx.ParseConfig(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	connConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	conn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := applySessionSettings(ctx, conn, config); err != nil {
		conn.Close(ctx)
		return nil, err
	}

	d, err := New(ctx, PgxConn(conn), config, logger)
	if err != nil {
		conn.Close(ctx)
		return nil, err
	}
	d.closer = conn.Close
	return d, nil
}

func applySessionSettings(ctx context.Context, conn *pgx.Conn, config Config) error {
	if config.ReadOnly {
		if _, err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
			return fmt.Errorf("failed to SET default_transaction_read_only: %w", err)
		}
	}
	if config.Timezone != "" {
		escaped := strings.ReplaceAll(config.Timezone, "'", "''")
		if _, err := conn.Exec(ctx, fmt.Sprintf("SET timezone = '%s'", escaped)); err != nil {
			return fmt.Errorf("failed to SET timezone: %w", err)
		}
	}
	return nil
}

// Close closes the connection if it was opened by Open. A DB built with New
// leaves its Conn to the caller.
func (d *DB) Close(ctx context.Context) error {
	if d.closer == nil {
		return nil
	}
	return d.closer(ctx)
}

// Ping runs a trivial statement to check the connection.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()

	rows, err := d.conn.Query(ctx, "SELECT 1")
	if err != nil {
		return err
	}
	return rows.Close()
}

// Dialect names the SQL dialect statements should be written in.
func (d *DB) Dialect() string {
	return "postgresql"
}

// UsableTableNames returns the tables callers may see, sorted.
func (d *DB) UsableTableNames() []string {
	return d.usableTables.Sorted()
}

// TableNames returns the same names as UsableTableNames.
//
// Deprecated: use UsableTableNames.
func (d *DB) TableNames() []string {
	d.logger.Warn().Msg("TableNames is deprecated, use UsableTableNames")
	return d.UsableTableNames()
}

// acquire takes the single statement slot, respecting ctx cancellation.
func (d *DB) acquire(ctx context.Context) error {
	select {
	case d.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to acquire connection slot: another statement is in flight, context cancelled while waiting: %w", ctx.Err())
	}
}

func (d *DB) release() {
	<-d.slot
}

// mapSanitizationRules converts SanitizationRules to internal sanitize.Rules.
func mapSanitizationRules(rules []SanitizationRule) []sanitize.Rule {
	result := make([]sanitize.Rule, len(rules))
	for i, r := range rules {
		result[i] = sanitize.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return result
}

// mapErrorPromptRules converts ErrorPromptRules to internal errprompt.Rules.
func mapErrorPromptRules(rules []ErrorPromptRule) []errprompt.Rule {
	result := make([]errprompt.Rule, len(rules))
	for i, r := range rules {
		result[i] = errprompt.Rule{
			Pattern: r.Pattern,
			Message: r.Message,
		}
	}
	return result
}

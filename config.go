package pgsqldb

// Config configures a DB. It is read once by New and never consulted again.
type Config struct {
	// Schema is the namespace whose relations are visible. Defaults to "public".
	Schema string `json:"schema"`

	// IncludeTables and IgnoreTables are mutually exclusive. Every name must
	// exist in the schema.
	IncludeTables []string `json:"include_tables"`
	IgnoreTables  []string `json:"ignore_tables"`

	// ViewSupport adds views and materialized views to the visible relations.
	ViewSupport bool `json:"view_support"`

	// SampleRowsInTableInfo appends up to this many rows per table to the
	// rendered schema. Zero renders an empty comment block.
	SampleRowsInTableInfo int  `json:"sample_rows_in_table_info"`
	IndexesInTableInfo    bool `json:"indexes_in_table_info"`

	// CustomTableInfo replaces the rendered block of a table with fixed text.
	// Keys that are not tables of the schema are dropped.
	CustomTableInfo map[string]string `json:"custom_table_info"`

	// TruncateColumnLength caps string cells, in characters. Defaults to 50.
	TruncateColumnLength int `json:"truncate_column_length"`

	ErrorPrompts []ErrorPromptRule  `json:"error_prompts"`
	Sanitization []SanitizationRule `json:"sanitization"`

	// Session settings applied by Open after connecting.
	ReadOnly bool   `json:"read_only"`
	Timezone string `json:"timezone"`
}

// ServerConfig embeds the facade Config and adds CLI and server settings.
type ServerConfig struct {
	Database   Config           `json:"database"`
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
	Query      QueryConfig      `json:"query"`
}

// ConnectionConfig holds database connection parameters used by CLI mode.
// URL wins over the discrete fields when set.
type ConnectionConfig struct {
	URL     string `json:"url"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	DBName  string `json:"dbname"`
	SSLMode string `json:"sslmode"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}

// QueryConfig holds the deadlines callers put around facade calls.
// Zero values mean no deadline.
type QueryConfig struct {
	DefaultTimeoutSeconds   int           `json:"default_timeout_seconds"`
	TableInfoTimeoutSeconds int           `json:"table_info_timeout_seconds"`
	TimeoutRules            []TimeoutRule `json:"timeout_rules"`
}

// TimeoutRule maps a SQL pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ErrorPromptRule maps a diagnostic pattern to a guidance message.
type ErrorPromptRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// SanitizationRule defines a regex-based cell redaction rule.
type SanitizationRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}

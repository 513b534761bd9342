package pgsqldb

import (
	"fmt"
	"strings"
)

// ConfigError reports an invalid combination of configuration options.
// It is only returned while constructing a DB.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

// UnknownTableError reports table names that are not known to the catalog
// (or, for rendering requests, not usable). Missing always carries every
// offending name, sorted.
type UnknownTableError struct {
	// Kind names the input the tables came from: include_tables,
	// ignore_tables or table_names.
	Kind    string
	Missing []string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("%s {%s} not found in database", e.Kind, strings.Join(e.Missing, ", "))
}

// InvalidFetchModeError reports a fetch mode other than FetchAll or FetchOne.
type InvalidFetchModeError struct {
	Mode string
}

func (e *InvalidFetchModeError) Error() string {
	return fmt.Sprintf("fetch mode must be either 'one' or 'all', got %q", e.Mode)
}

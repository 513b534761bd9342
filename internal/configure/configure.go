// Package configure implements the interactive wizard behind
// "gopgsqldb configure". It reads the existing config file (if any), walks
// through every setting and writes the result back as YAML.
package configure

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pgsqldb "github.com/rickchristie/postgres-sqldb"
)

// Run runs the interactive configuration wizard against stdin/stderr.
func Run(configPath string) error {
	return run(configPath, os.Stdin, os.Stderr)
}

func run(configPath string, input io.Reader, output io.Writer) error {
	scanner := bufio.NewScanner(input)
	cfg, isNew := loadExisting(configPath)
	if isNew {
		applyDefaults(cfg)
	}

	p := &prompter{
		scanner: scanner,
		output:  output,
		isNew:   isNew,
	}

	fmt.Fprintf(output, "gopgsqldb configuration wizard\n")
	fmt.Fprintf(output, "Config file: %s\n\n", configPath)

	fmt.Fprintf(output, "=== Connection ===\n")
	cfg.Connection.Host = p.promptString("connection.host", cfg.Connection.Host)
	cfg.Connection.Port = p.promptPositiveInt("connection.port", cfg.Connection.Port, "must be > 0")
	cfg.Connection.DBName = p.promptStringWithHint("connection.dbname", cfg.Connection.DBName, "required unless connection.url is set")
	cfg.Connection.SSLMode = p.promptEnum("connection.sslmode", cfg.Connection.SSLMode, sslModes)

	fmt.Fprintf(output, "\n=== Server ===\n")
	cfg.Server.Port = p.promptPositiveInt("server.port", cfg.Server.Port, "must be > 0")
	cfg.Server.HealthCheckEnabled = p.promptBool("server.health_check_enabled", cfg.Server.HealthCheckEnabled)
	cfg.Server.HealthCheckPath = p.promptStringWithHint("server.health_check_path", cfg.Server.HealthCheckPath, "e.g. /healthz, required when health_check_enabled is true")

	fmt.Fprintf(output, "\n=== Logging ===\n")
	cfg.Logging.Level = p.promptEnum("logging.level", cfg.Logging.Level, logLevels)
	cfg.Logging.Format = p.promptEnum("logging.format", cfg.Logging.Format, logFormats)
	cfg.Logging.Output = p.promptStringWithHint("logging.output", cfg.Logging.Output, "stdout, stderr, or file path")

	fmt.Fprintf(output, "\n=== Query ===\n")
	cfg.Query.DefaultTimeoutSeconds = p.promptNonNegativeInt("query.default_timeout_seconds", cfg.Query.DefaultTimeoutSeconds, "seconds, 0 = no deadline")
	cfg.Query.TableInfoTimeoutSeconds = p.promptNonNegativeInt("query.table_info_timeout_seconds", cfg.Query.TableInfoTimeoutSeconds, "seconds, 0 = no deadline")

	fmt.Fprintf(output, "\n=== Database ===\n")
	db := &cfg.Database
	db.Schema = p.promptStringWithHint("database.schema", db.Schema, "empty = public")
	db.IncludeTables = p.promptList("database.include_tables", db.IncludeTables)
	db.IgnoreTables = p.promptList("database.ignore_tables", db.IgnoreTables)
	if len(db.IncludeTables) > 0 && len(db.IgnoreTables) > 0 {
		fmt.Fprintf(output, "  include_tables and ignore_tables are mutually exclusive, ignore_tables cleared.\n")
		db.IgnoreTables = nil
	}
	db.ViewSupport = p.promptBool("database.view_support", db.ViewSupport)
	db.SampleRowsInTableInfo = p.promptNonNegativeInt("database.sample_rows_in_table_info", db.SampleRowsInTableInfo, "rows, 0 = none")
	db.IndexesInTableInfo = p.promptBool("database.indexes_in_table_info", db.IndexesInTableInfo)
	db.TruncateColumnLength = p.promptPositiveInt("database.truncate_column_length", db.TruncateColumnLength, "characters, must be > 0")
	db.ReadOnly = p.promptBool("database.read_only", db.ReadOnly)
	db.Timezone = p.promptTimezone(db.Timezone)

	fmt.Fprintf(output, "\n=== Timeout Rules ===\n")
	cfg.Query.TimeoutRules = p.promptTimeoutRules(cfg.Query.TimeoutRules)

	fmt.Fprintf(output, "\n=== Error Prompts ===\n")
	db.ErrorPrompts = p.promptErrorPrompts(db.ErrorPrompts)

	fmt.Fprintf(output, "\n=== Sanitization Rules ===\n")
	db.Sanitization = p.promptSanitizationRules(db.Sanitization)

	if err := writeConfig(configPath, cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(output, "\nConfiguration saved to %s\n", configPath)
	return nil
}

func loadExisting(configPath string) (*pgsqldb.ServerConfig, bool) {
	cfg := &pgsqldb.ServerConfig{}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, true
	}
	// Start with whatever was parseable.
	_ = Decode(data, cfg)
	return cfg, false
}

// applyDefaults sets the values a fresh configuration starts from.
func applyDefaults(cfg *pgsqldb.ServerConfig) {
	cfg.Connection.Host = "localhost"
	cfg.Connection.Port = 5432
	cfg.Connection.SSLMode = "prefer"
	cfg.Server.Port = 8080
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stderr"
	cfg.Query.DefaultTimeoutSeconds = 30
	cfg.Query.TableInfoTimeoutSeconds = 10
	cfg.Database.TruncateColumnLength = 50
	cfg.Database.ReadOnly = true
}

var (
	sslModes   = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

// Encode renders a ServerConfig as YAML using its json field names, which
// are also the keys the CLI config loader reads.
func Encode(cfg *pgsqldb.ServerConfig) ([]byte, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return yaml.Marshal(tree)
}

// Decode parses a YAML (or JSON) document into a ServerConfig.
func Decode(data []byte, cfg *pgsqldb.ServerConfig) error {
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	encoded, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := json.Unmarshal(encoded, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func writeConfig(configPath string, cfg *pgsqldb.ServerConfig) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	var (
		data []byte
		err  error
	)
	if filepath.Ext(configPath) == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = Encode(cfg)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", configPath, err)
	}
	return nil
}

type prompter struct {
	scanner *bufio.Scanner
	output  io.Writer
	isNew   bool
}

func (p *prompter) readLine() string {
	if p.scanner.Scan() {
		return strings.TrimSpace(p.scanner.Text())
	}
	return ""
}

func (p *prompter) valueLabel() string {
	if p.isNew {
		return "default"
	}
	return "current"
}

func (p *prompter) promptString(field string, current string) string {
	fmt.Fprintf(p.output, "%s (%s: %q): ", field, p.valueLabel(), current)
	input := p.readLine()
	if input == "" {
		return current
	}
	return input
}

func (p *prompter) promptStringWithHint(field string, current string, hint string) string {
	fmt.Fprintf(p.output, "%s [%s] (%s: %q): ", field, hint, p.valueLabel(), current)
	input := p.readLine()
	if input == "" {
		return current
	}
	return input
}

// promptList reads a comma-separated list. A single "-" clears it.
func (p *prompter) promptList(field string, current []string) []string {
	fmt.Fprintf(p.output, "%s [comma-separated, - to clear] (%s: %q): ", field, p.valueLabel(), strings.Join(current, ", "))
	input := p.readLine()
	switch input {
	case "":
		return current
	case "-":
		return nil
	}
	return pgsqldb.SplitTableNames(input)
}

func (p *prompter) promptInt(field string, current int, hint string, valid func(int) bool, complaint string) int {
	for {
		fmt.Fprintf(p.output, "%s [%s] (%s: %d): ", field, hint, p.valueLabel(), current)
		input := p.readLine()
		if input == "" {
			return current
		}
		val, err := strconv.Atoi(input)
		if err != nil {
			fmt.Fprintf(p.output, "  Invalid integer %q, try again.\n", input)
			continue
		}
		if !valid(val) {
			fmt.Fprintf(p.output, "  %s, try again.\n", complaint)
			continue
		}
		return val
	}
}

func (p *prompter) promptPositiveInt(field string, current int, hint string) int {
	return p.promptInt(field, current, hint, func(v int) bool { return v > 0 }, "Value must be > 0")
}

func (p *prompter) promptNonNegativeInt(field string, current int, hint string) int {
	return p.promptInt(field, current, hint, func(v int) bool { return v >= 0 }, "Value must be >= 0")
}

func (p *prompter) promptBool(field string, current bool) bool {
	for {
		fmt.Fprintf(p.output, "%s (%s: %v): ", field, p.valueLabel(), current)
		input := p.readLine()
		if input == "" {
			return current
		}
		switch strings.ToLower(input) {
		case "true", "t", "yes", "y", "1":
			return true
		case "false", "f", "no", "n", "0":
			return false
		default:
			fmt.Fprintf(p.output, "  Invalid value %q, use true/false/yes/no, try again.\n", input)
		}
	}
}

func (p *prompter) promptTimezone(current string) string {
	for {
		fmt.Fprintf(p.output, "database.timezone [e.g. UTC, America/New_York, empty = server default] (%s: %q): ", p.valueLabel(), current)
		input := p.readLine()
		if input == "" {
			return current
		}
		if _, err := time.LoadLocation(input); err != nil {
			fmt.Fprintf(p.output, "  Invalid timezone %q, please enter a valid IANA timezone.\n", input)
			continue
		}
		return input
	}
}

func (p *prompter) promptEnum(field string, current string, allowed []string) string {
	for {
		fmt.Fprintf(p.output, "%s (%s: %q, options: %s): ", field, p.valueLabel(), current, strings.Join(allowed, ", "))
		input := p.readLine()
		if input == "" {
			return current
		}
		for _, v := range allowed {
			if input == v {
				return input
			}
		}
		fmt.Fprintf(p.output, "  Invalid value %q, must be one of: %s\n", input, strings.Join(allowed, ", "))
	}
}

// editList drives the add/remove/continue loop shared by every rule list.
func editList[T any](p *prompter, label string, items []T, show func(T) string, add func() T) []T {
	for {
		if len(items) == 0 {
			fmt.Fprintf(p.output, "  (no entries)\n")
		}
		for i, item := range items {
			fmt.Fprintf(p.output, "  [%d] %s\n", i, show(item))
		}
		fmt.Fprintf(p.output, "[a]dd, [r]emove, [c]ontinue? ")
		switch strings.ToLower(p.readLine()) {
		case "a":
			items = append(items, add())
		case "r":
			items = removeByIndex(p, label, items)
		case "c", "":
			return items
		default:
			fmt.Fprintf(p.output, "  Unknown choice, try again.\n")
		}
	}
}

func (p *prompter) promptTimeoutRules(current []pgsqldb.TimeoutRule) []pgsqldb.TimeoutRule {
	return editList(p, "timeout rule", current,
		func(r pgsqldb.TimeoutRule) string {
			return fmt.Sprintf("pattern=%q timeout_seconds=%d", r.Pattern, r.TimeoutSeconds)
		},
		func() pgsqldb.TimeoutRule {
			return pgsqldb.TimeoutRule{
				Pattern:        p.promptNewRegexField("pattern"),
				TimeoutSeconds: p.promptNewPositiveIntField("timeout_seconds"),
			}
		})
}

func (p *prompter) promptErrorPrompts(current []pgsqldb.ErrorPromptRule) []pgsqldb.ErrorPromptRule {
	return editList(p, "error prompt", current,
		func(r pgsqldb.ErrorPromptRule) string {
			return fmt.Sprintf("pattern=%q message=%q", r.Pattern, r.Message)
		},
		func() pgsqldb.ErrorPromptRule {
			return pgsqldb.ErrorPromptRule{
				Pattern: p.promptNewRegexField("pattern"),
				Message: p.promptNewField("message"),
			}
		})
}

func (p *prompter) promptSanitizationRules(current []pgsqldb.SanitizationRule) []pgsqldb.SanitizationRule {
	return editList(p, "sanitization rule", current,
		func(r pgsqldb.SanitizationRule) string {
			return fmt.Sprintf("pattern=%q replacement=%q description=%q", r.Pattern, r.Replacement, r.Description)
		},
		func() pgsqldb.SanitizationRule {
			return pgsqldb.SanitizationRule{
				Pattern:     p.promptNewRegexField("pattern"),
				Replacement: p.promptNewField("replacement"),
				Description: p.promptNewField("description"),
			}
		})
}

func (p *prompter) promptNewField(name string) string {
	fmt.Fprintf(p.output, "  %s: ", name)
	return p.readLine()
}

func (p *prompter) promptNewRegexField(name string) string {
	for {
		fmt.Fprintf(p.output, "  %s (regex): ", name)
		input := p.readLine()
		if input == "" {
			return ""
		}
		if _, err := regexp.Compile(input); err != nil {
			fmt.Fprintf(p.output, "  Invalid regex %q: %v, try again.\n", input, err)
			continue
		}
		return input
	}
}

func (p *prompter) promptNewPositiveIntField(name string) int {
	for {
		fmt.Fprintf(p.output, "  %s (must be > 0): ", name)
		input := p.readLine()
		if input == "" {
			fmt.Fprintf(p.output, "  Value is required and must be > 0, try again.\n")
			continue
		}
		val, err := strconv.Atoi(input)
		if err != nil {
			fmt.Fprintf(p.output, "  Invalid integer %q, try again.\n", input)
			continue
		}
		if val <= 0 {
			fmt.Fprintf(p.output, "  Value must be > 0, try again.\n")
			continue
		}
		return val
	}
}

func removeByIndex[T any](p *prompter, label string, items []T) []T {
	if len(items) == 0 {
		fmt.Fprintf(p.output, "  No %s entries to remove.\n", label)
		return items
	}
	fmt.Fprintf(p.output, "  Index to remove: ")
	input := p.readLine()
	idx, err := strconv.Atoi(input)
	if err != nil || idx < 0 || idx >= len(items) {
		fmt.Fprintf(p.output, "  Invalid index.\n")
		return items
	}
	return append(items[:idx], items[idx+1:]...)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	pgsqldb "github.com/rickchristie/postgres-sqldb"
)

const doctorPingTimeout = 5 * time.Second

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration and print agent connection snippets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			w := cmd.ErrOrStderr()
			return doctor(cmd.Context(), w, isTTY(os.Stderr.Fd()), a.configPath, cmd.Flags())
		},
	}
}

func doctor(ctx context.Context, w io.Writer, useColor bool, configPath string, flags *pflag.FlagSet) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "gopgsqldb %s\n\n", version)

	config, ok := doctorValidateConfig(w, useColor, configPath, flags)
	if ok {
		ok = doctorCheckDatabase(ctx, w, useColor, config)
	}
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'gopgsqldb doctor' again.")
		return nil
	}

	fmt.Fprintln(w)
	printAgentSnippets(w, useColor, config)
	return nil
}

// doctorValidateConfig loads the layered configuration and validates it,
// printing one check line per rule. It returns the config and whether every
// check passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string, flags *pflag.FlagSet) (*pgsqldb.ServerConfig, bool) {
	allPassed := true

	config, file, err := loadServerConfig(configPath, flags)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config loads: %v", err))
		return nil, false
	}
	if file == "" {
		printCheck(w, useColor, true, "Config loads (no config file, using defaults and environment)")
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("Config loads (%s)", file))
	}

	hasURL := config.Connection.URL != "" || os.Getenv(envDatabaseURL) != ""
	switch {
	case hasURL:
		printCheck(w, useColor, true, "connection URL is set")
	case config.Connection.DBName == "":
		printCheck(w, useColor, false, "connection.dbname is set (or connection.url / "+envDatabaseURL+")")
		allPassed = false
	default:
		printCheck(w, useColor, true, fmt.Sprintf("connection.dbname is set (%s)", config.Connection.DBName))
	}

	if config.Server.Port <= 0 {
		printCheck(w, useColor, false, "server.port is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("server.port is > 0 (%d)", config.Server.Port))
	}

	if config.Server.HealthCheckEnabled {
		if !strings.HasPrefix(config.Server.HealthCheckPath, "/") {
			printCheck(w, useColor, false, "health_check_path starts with / (required when health_check_enabled)")
			allPassed = false
		} else {
			printCheck(w, useColor, true, fmt.Sprintf("health_check_path is set (%s)", config.Server.HealthCheckPath))
		}
	}

	db := config.Database
	if len(db.IncludeTables) > 0 && len(db.IgnoreTables) > 0 {
		printCheck(w, useColor, false, "database.include_tables and database.ignore_tables are not both set")
		allPassed = false
	}
	if db.SampleRowsInTableInfo < 0 {
		printCheck(w, useColor, false, "database.sample_rows_in_table_info is >= 0")
		allPassed = false
	}
	if db.TruncateColumnLength < 0 {
		printCheck(w, useColor, false, "database.truncate_column_length is >= 0")
		allPassed = false
	}
	if _, err := pgsqldb.NewTimeoutManager(config.Query); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("query timeouts are valid: %v", err))
		allPassed = false
	}

	regexOK := true
	check := func(label string, i int, pattern string) {
		if _, err := regexp.Compile(pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("%s[%d] regex compiles: %v", label, i, err))
			regexOK = false
			allPassed = false
		}
	}
	for i, rule := range db.ErrorPrompts {
		check("database.error_prompts", i, rule.Pattern)
	}
	for i, rule := range db.Sanitization {
		check("database.sanitization", i, rule.Pattern)
	}
	for i, rule := range config.Query.TimeoutRules {
		check("query.timeout_rules", i, rule.Pattern)
	}
	if regexOK {
		printCheck(w, useColor, true, "All regex patterns compile")
	}

	return config, allPassed
}

// doctorCheckDatabase connects and reports the usable tables when a
// connection URL is available. Discrete connection fields would need
// prompted credentials, so that case is skipped.
func doctorCheckDatabase(ctx context.Context, w io.Writer, useColor bool, config *pgsqldb.ServerConfig) bool {
	connString := os.Getenv(envDatabaseURL)
	if connString == "" {
		connString = config.Connection.URL
	}
	if connString == "" {
		fmt.Fprintln(w, "  - Database check skipped (no connection URL; credentials are prompted by serve)")
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, doctorPingTimeout)
	defer cancel()

	db, err := pgsqldb.Open(ctx, connString, config.Database, setupLogger(pgsqldb.LoggingConfig{Level: "error"}))
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database reachable: %v", err))
		return false
	}
	defer db.Close(context.Background())

	if err := db.Ping(ctx); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database reachable: %v", err))
		return false
	}
	printCheck(w, useColor, true, fmt.Sprintf("Database reachable (%d usable tables)", len(db.UsableTableNames())))
	return true
}

func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	mark, color := "✓", "\033[32m"
	if !pass {
		mark, color = "✗", "\033[31m"
	}
	if useColor {
		fmt.Fprintf(w, "  %s%s\033[0m %s\n", color, mark, msg)
	} else {
		fmt.Fprintf(w, "  %s %s\n", mark, msg)
	}
}

// printAgentSnippets prints MCP connection config snippets for common agents.
func printAgentSnippets(w io.Writer, useColor bool, config *pgsqldb.ServerConfig) {
	url := fmt.Sprintf("http://localhost:%d/mcp", config.Server.Port)

	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;32m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}
	subheading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
		} else {
			fmt.Fprintf(w, "  %s\n", title)
		}
	}
	snippet := func(title, body string) {
		subheading(title)
		fmt.Fprintf(w, body, url)
		fmt.Fprintln(w)
	}

	heading("Agent Connection Snippets")
	fmt.Fprintln(w)

	subheading("Claude Code")
	fmt.Fprintf(w, "  Run this command to add the server:\n\n")
	fmt.Fprintf(w, "    claude mcp add --transport http sqldb %s\n\n", url)

	snippet("Generic MCP client (mcpServers)", `  {
    "mcpServers": {
      "sqldb": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`)
	snippet("Gemini CLI (~/.gemini/settings.json)", `  {
    "mcpServers": {
      "sqldb": {
        "httpUrl": "%s"
      }
    }
  }
`)
	snippet("OpenCode (opencode.json)", `  {
    "mcp": {
      "sqldb": {
        "type": "remote",
        "url": "%s"
      }
    }
  }
`)
}

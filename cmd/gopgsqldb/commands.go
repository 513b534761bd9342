package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	pgsqldb "github.com/rickchristie/postgres-sqldb"
	"github.com/rickchristie/postgres-sqldb/internal/configure"
	"github.com/rickchristie/postgres-sqldb/internal/timeout"
)

func newTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables the agent may see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close(context.Background())

			for _, name := range db.UsableTableNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info [table...]",
		Short: "Print the CREATE TABLE description the agent receives",
		Long: `Print the CREATE TABLE description of the given tables, or of every usable
table when none are given. Arguments may also be comma-separated lists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var names []string
			if len(args) > 0 {
				names = pgsqldb.SplitTableNames(strings.Join(args, ","))
			}

			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close(context.Background())

			if seconds := a.config.Query.TableInfoTimeoutSeconds; seconds > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
				defer cancel()
			}

			info, err := db.TableInfo(ctx, names)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		fetch          string
		output         string
		timeoutSeconds int
	)
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Execute a statement the way the query tool does",
		Long: `Execute a statement and print its rows. Rows are fetched only when the
statement text contains "select"; anything else prints OK.

With --output text the result is printed exactly as the agent receives it,
including "Error: ..." diagnostics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql := args[0]
			explicit := cmd.Flags().Changed("timeout")
			if explicit && timeoutSeconds < 0 {
				return fmt.Errorf("--timeout must be >= 0, got %d", timeoutSeconds)
			}
			timeouts, err := pgsqldb.NewTimeoutManager(a.config.Query)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close(context.Background())

			ctx, cancel, rule := statementContext(ctx, timeouts, sql, timeoutSeconds, explicit)
			defer cancel()
			if rule != "" {
				a.logger.Debug().Str("timeout_rule", rule).Msg("timeout rule matched")
			}

			result, err := db.Run(ctx, sql, pgsqldb.FetchMode(fetch))
			if err != nil {
				if output == "text" {
					fmt.Fprintln(cmd.OutOrStdout(), db.Diagnostic(err))
					return nil
				}
				return err
			}
			return renderResult(cmd.OutOrStdout(), result, output)
		},
	}
	cmd.Flags().StringVar(&fetch, "fetch", string(pgsqldb.FetchAll), "rows to fetch (all|one)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table|json|text)")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "statement deadline in seconds, overriding query timeouts and rules (0 = none)")

	_ = cmd.RegisterFlagCompletionFunc("fetch", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(pgsqldb.FetchAll), string(pgsqldb.FetchOne)}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "text"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// statementContext bounds ctx for sql. An explicit --timeout replaces both
// the configured default and any matching timeout rule.
func statementContext(ctx context.Context, timeouts *timeout.Manager, sql string, seconds int, explicit bool) (context.Context, context.CancelFunc, string) {
	if !explicit {
		return timeouts.Context(ctx, sql)
	}
	if seconds == 0 {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, ""
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
	return ctx, cancel, ""
}

// renderResult prints a query result. "json" and "text" print the JSON the
// agent receives; "table" draws the rows.
func renderResult(w io.Writer, result *pgsqldb.Result, format string) error {
	switch format {
	case "json", "text":
		text, err := result.Text()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, text)
		return err
	case "table", "":
		return renderTable(w, result)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderTable(w io.Writer, result *pgsqldb.Result) error {
	if result.Empty() {
		_, _ = fmt.Fprintln(w, "OK")
		return nil
	}

	rows := result.TextRows()
	columns := result.Columns
	if result.Single() && len(columns) > 1 {
		columns = columns[:1]
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		t.AppendRow(r)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration after all layers are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *a.config
			if cfg.Connection.URL != "" {
				cfg.Connection.URL = redactURL(cfg.Connection.URL)
			}
			data, err := configure.Encode(&cfg)
			if err != nil {
				return err
			}
			if a.configFile != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", a.configFile)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

var passwordKeyword = regexp.MustCompile(`(?i)(\bpassword\s*=\s*)(?:'(?:[^'\\]|\\.)*'|\S*)`)

// redactURL hides the password of a connection string, either in a
// postgres:// URL (userinfo or ?password=) or in a keyword/value string.
func redactURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return passwordKeyword.ReplaceAllString(raw, "${1}xxxxx")
	}

	u, err := url.Parse(raw)
	if err != nil || u.Fragment != "" {
		// Unescaped reserved characters in the password; keep only the user
		// and everything after the last @.
		at := strings.LastIndex(rest, "@")
		if at < 0 {
			return raw
		}
		user, _, _ := strings.Cut(rest[:at], ":")
		return scheme + "://" + user + ":xxxxx" + rest[at:]
	}

	q := u.Query()
	if q.Has("password") {
		q.Set("password", "xxxxx")
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}

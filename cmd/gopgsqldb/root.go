package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	pgsqldb "github.com/rickchristie/postgres-sqldb"
)

// app carries what every subcommand shares once the root has loaded the
// configuration.
type app struct {
	configPath string
	configFile string
	config     *pgsqldb.ServerConfig
	logger     zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "gopgsqldb",
		Short: "Bounded PostgreSQL access for AI agents",
		Long: `gopgsqldb exposes one PostgreSQL schema to an agent: the tables it may see,
a compact CREATE TABLE description of them, and statement execution with
oversized values truncated. Run "serve" to publish it as MCP tools, or use the
tables/info/query commands directly.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "completion", "__complete", "configure", "doctor":
				return nil
			}
			return a.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default: "+defaultConfigPath+")")
	pf.String("url", "", "PostgreSQL connection URL")
	pf.String("schema", "", "schema whose tables are visible (default: public)")
	pf.Bool("read-only", false, "open the session with default_transaction_read_only")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-format", "", "log format (json|text)")

	_ = root.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newServeCmd(a),
		newTablesCmd(a),
		newInfoCmd(a),
		newQueryCmd(a),
		newConfigCmd(a),
		newDoctorCmd(a),
		newConfigureCmd(a),
	)
	return root
}

// load reads .env, then the layered configuration, and sets up the logger.
func (a *app) load(cmd *cobra.Command) error {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfg, file, err := loadServerConfig(a.configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.config = cfg
	a.configFile = file
	a.logger = setupLogger(cfg.Logging)
	if file != "" {
		a.logger.Debug().Str("config_file", file).Msg("configuration loaded")
	}
	return nil
}

// openDB resolves the connection string and opens the database view.
func (a *app) openDB(ctx context.Context) (*pgsqldb.DB, error) {
	connString := resolveConnString(a.config.Connection)
	db, err := pgsqldb.Open(ctx, connString, a.config.Database, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// stdinIsTerminal reports whether credentials can be prompted for.
func stdinIsTerminal() bool {
	return isTTY(os.Stdin.Fd())
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	pgsqldb "github.com/rickchristie/postgres-sqldb"
)

const (
	defaultConfigPath = ".gopgsqldb/config.yaml"
	envPrefix         = "GOPGSQLDB_"
	envConfigPath     = envPrefix + "CONFIG_PATH"
	envDatabaseURL    = envPrefix + "DATABASE_URL"
)

// configDefaults is the lowest configuration layer.
var configDefaults = map[string]any{
	"connection.host":                  "localhost",
	"connection.port":                  5432,
	"connection.sslmode":               "prefer",
	"server.port":                      8080,
	"logging.level":                    "info",
	"logging.format":                   "json",
	"logging.output":                   "stderr",
	"query.default_timeout_seconds":    30,
	"query.table_info_timeout_seconds": 10,
}

// flagKeys maps command-line flags onto configuration keys. Flags not listed
// here are command options, not configuration.
var flagKeys = map[string]string{
	"url":        "connection.url",
	"schema":     "database.schema",
	"read-only":  "database.read_only",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"port":       "server.port",
}

// loadServerConfig layers defaults, the config file, GOPGSQLDB_* environment
// variables and explicitly set flags, highest last. It returns the config
// file actually read, or "" when none was found.
//
// Nested keys are addressed in the environment with a double underscore:
// GOPGSQLDB_DATABASE__SCHEMA sets database.schema.
func loadServerConfig(configPath string, flags *pflag.FlagSet) (*pgsqldb.ServerConfig, string, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(configDefaults, "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := true
	if configPath == "" {
		configPath = os.Getenv(envConfigPath)
	}
	if configPath == "" {
		configPath = defaultConfigPath
		explicit = false
	}
	if _, err := os.Stat(configPath); err != nil {
		if explicit {
			return nil, "", fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		configPath = ""
	} else if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, "", fmt.Errorf("error reading config file %s: %w", configPath, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg pgsqldb.ServerConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToSliceHookFunc(","),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, configPath, nil
}

// envKey turns GOPGSQLDB_DATABASE__READ_ONLY into database.read_only.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// resolveConnString picks the connection string: GOPGSQLDB_DATABASE_URL, then
// connection.url, then the discrete connection fields plus credentials
// prompted on a terminal. Without a terminal, libpq environment variables
// (PGUSER, PGPASSWORD) fill in the credentials.
func resolveConnString(conn pgsqldb.ConnectionConfig) string {
	if s := os.Getenv(envDatabaseURL); s != "" {
		return s
	}
	if conn.URL != "" {
		return conn.URL
	}
	var username, password string
	if stdinIsTerminal() {
		username = promptInput("Username: ")
		password = promptPassword("Password: ")
	}
	return buildConnString(conn, username, password)
}

func buildConnString(conn pgsqldb.ConnectionConfig, username, password string) string {
	parts := []string{}
	if conn.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", conn.Host))
	}
	if conn.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", conn.Port))
	}
	if conn.DBName != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", quoteConnValue(conn.DBName)))
	}
	if username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", quoteConnValue(username)))
	}
	if password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", quoteConnValue(password)))
	}
	if conn.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", conn.SSLMode))
	}
	return strings.Join(parts, " ")
}

// quoteConnValue quotes a keyword/value connection string value when it
// contains spaces, quotes or backslashes.
func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func setupLogger(config pgsqldb.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var input string
	fmt.Scanln(&input)
	return input
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return ""
	}
	return string(password)
}

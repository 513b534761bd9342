package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	pgsqldb "github.com/rickchristie/postgres-sqldb"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the list_tables, get_table_info and query MCP tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().Int("port", 0, "HTTP port (default: server.port)")
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	cfg := a.config
	if cfg.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if cfg.Server.HealthCheckEnabled && !strings.HasPrefix(cfg.Server.HealthCheckPath, "/") {
		return fmt.Errorf("server.health_check_path must start with / when health_check_enabled is true")
	}

	printBanner(os.Stderr, isTTY(os.Stderr.Fd()))

	db, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close(context.Background())

	a.logger.Info().Msg("testing database connection")
	if err := db.Ping(ctx); err != nil {
		a.logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	a.logger.Info().Msg("database connection test successful")

	mcpServer, err := newMCPServer(db, cfg.Query, a.logger)
	if err != nil {
		return err
	}

	router := newRouter(mcpServer, cfg.Server)
	return serveHTTP(ctx, router, cfg.Server.Port, a.logger)
}

// newMCPServer builds the MCP server with the database tools registered and
// client connections logged.
func newMCPServer(db *pgsqldb.DB, query pgsqldb.QueryConfig, logger zerolog.Logger) (*server.MCPServer, error) {
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("gopgsqldb", version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)
	if err := pgsqldb.RegisterMCPTools(mcpServer, db, query); err != nil {
		return nil, fmt.Errorf("failed to register MCP tools: %w", err)
	}
	return mcpServer, nil
}

// newRouter mounts the stateless streamable MCP endpoint at /mcp and, when
// enabled, a liveness endpoint that does not touch the database.
func newRouter(mcpServer *server.MCPServer, settings pgsqldb.ServerSettings) http.Handler {
	r := chi.NewMux()
	r.Use(middleware.Recoverer)

	if settings.HealthCheckEnabled {
		r.Get(settings.HealthCheckPath, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
	}

	r.Handle("/mcp", server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
	))
	return r
}

// serveHTTP runs the HTTP server until ctx is cancelled, then shuts it down.
func serveHTTP(ctx context.Context, handler http.Handler, port int, logger zerolog.Logger) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		logger.Info().Int("port", port).Msg("starting gopgsqldb server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info().Msg("shutting down gopgsqldb server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

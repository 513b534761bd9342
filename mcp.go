package pgsqldb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rickchristie/postgres-sqldb/internal/timeout"
)

// RegisterMCPTools registers list_tables, get_table_info and query as MCP
// tools backed by db. Each call runs under the deadline picked from cfg.
func RegisterMCPTools(mcpServer *server.MCPServer, db *DB, cfg QueryConfig) error {
	timeouts, err := NewTimeoutManager(cfg)
	if err != nil {
		return err
	}
	tableInfoTimeout := time.Duration(cfg.TableInfoTimeoutSeconds) * time.Second

	// list_tables tool
	listTablesTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List the tables you may query, as a comma-separated list. Call get_table_info next to see their columns."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(listTablesTool, db.loggedToolHandler("list_tables", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(strings.Join(db.UsableTableNames(), ", ")), nil
	}))

	// get_table_info tool
	tableInfoTool := mcp.NewTool("get_table_info",
		mcp.WithDescription("Get the schema and sample rows of tables. Input is a comma-separated list of tables; check they exist with list_tables first."),
		mcp.WithString("table_names",
			mcp.Required(),
			mcp.Description("Comma-separated table names, for example: users, orders"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(tableInfoTool, db.loggedToolHandler("get_table_info", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("table_names")
		if err != nil {
			return mcp.NewToolResultError("table_names parameter is required"), nil
		}
		names := SplitTableNames(raw)
		if len(names) == 0 {
			return mcp.NewToolResultError("no table names given; call list_tables to see the available tables"), nil
		}
		if tableInfoTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, tableInfoTimeout)
			defer cancel()
		}
		info, err := db.TableInfo(ctx, names)
		if err != nil {
			return mcp.NewToolResultError(db.Diagnostic(err)), nil
		}
		return mcp.NewToolResultText(info), nil
	}))

	// query tool
	queryTool := mcp.NewTool("query",
		mcp.WithDescription("Execute a SQL statement and return its rows as JSON. Long text values are truncated. On error, rewrite the statement and try again."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL statement to execute"),
		),
		mcp.WithString("fetch",
			mcp.Description("'all' returns every row, 'one' returns only the first column of the first row. Defaults to 'all'."),
			mcp.Enum(string(FetchAll), string(FetchOne)),
		),
	)

	mcpServer.AddTool(queryTool, db.loggedToolHandler("query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql parameter is required"), nil
		}
		mode := FetchMode(req.GetString("fetch", string(FetchAll)))

		ctx, cancel, _ := timeouts.Context(ctx, sql)
		defer cancel()

		result, err := db.Run(ctx, sql, mode)
		if err != nil {
			return mcp.NewToolResultError(db.Diagnostic(err)), nil
		}
		text, err := result.Text()
		if err != nil {
			return mcp.NewToolResultError("failed to marshal query result"), nil
		}
		return mcp.NewToolResultText(text), nil
	}))

	return nil
}

// NewTimeoutManager builds the per-statement deadline picker described by cfg.
func NewTimeoutManager(cfg QueryConfig) (*timeout.Manager, error) {
	if cfg.DefaultTimeoutSeconds < 0 {
		return nil, &ConfigError{Msg: fmt.Sprintf("query.default_timeout_seconds must be >= 0, got %d", cfg.DefaultTimeoutSeconds)}
	}
	if cfg.TableInfoTimeoutSeconds < 0 {
		return nil, &ConfigError{Msg: fmt.Sprintf("query.table_info_timeout_seconds must be >= 0, got %d", cfg.TableInfoTimeoutSeconds)}
	}
	rules := make([]timeout.Rule, len(cfg.TimeoutRules))
	for i, r := range cfg.TimeoutRules {
		rules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	m, err := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(cfg.DefaultTimeoutSeconds) * time.Second,
		Rules:          rules,
	})
	if err != nil {
		return nil, &ConfigError{Msg: err.Error()}
	}
	return m, nil
}

// SplitTableNames parses a comma-separated table list. Blank entries are
// dropped; an input with no names yields an empty, non-nil slice.
func SplitTableNames(raw string) []string {
	names := []string{}
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (d *DB) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startTime := time.Now()
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		d.logger.Info().
			Str("tool", tool).
			Str("call_id", uuid.NewString()).
			Int("request_bytes", reqLen).
			Int("response_bytes", resultLength(result)).
			Bool("is_error", result != nil && result.IsError).
			Dur("duration", time.Since(startTime)).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}

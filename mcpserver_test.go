//go:build integration

package pgsqldb_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"

	pgsqldb "github.com/rickchristie/postgres-sqldb"
)

// mcpTestServer bundles everything needed for an MCP HTTP server test.
type mcpTestServer struct {
	db         *pgsqldb.DB
	baseURL    string
	httpServer *server.StreamableHTTPServer
}

// startMCPTestServer opens a DB over a prepared database, registers the MCP
// tools and serves them on a free port. The optional healthCheckPath enables
// the health check endpoint.
func startMCPTestServer(t *testing.T, config pgsqldb.Config, healthCheckPath string, statements ...string) *mcpTestServer {
	t.Helper()

	db, _ := openTestDB(t, config, statements...)

	// Find a free port.
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	mcpServer := server.NewMCPServer("gopgsqldb-test", "1.0.0",
		server.WithToolCapabilities(true),
	)
	if err := pgsqldb.RegisterMCPTools(mcpServer, db, pgsqldb.QueryConfig{DefaultTimeoutSeconds: 10}); err != nil {
		t.Fatalf("failed to register tools: %v", err)
	}

	addr := fmt.Sprintf(":%d", port)
	mux := http.NewServeMux()

	if healthCheckPath != "" {
		mux.HandleFunc(healthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Start does not register the handler when a custom server is supplied.
	mux.Handle("/mcp", streamableServer)

	go func() {
		if err := streamableServer.Start(addr); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	time.Sleep(200 * time.Millisecond)
	t.Cleanup(func() { streamableServer.Shutdown(context.Background()) })

	return &mcpTestServer{
		db:         db,
		baseURL:    fmt.Sprintf("http://localhost:%d", port),
		httpServer: streamableServer,
	}
}

// jsonRPC sends a JSON-RPC request to the MCP endpoint and returns the parsed response.
func (s *mcpTestServer) jsonRPC(t *testing.T, method string, params interface{}) map[string]interface{} {
	t.Helper()

	reqBody := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		reqBody["params"] = params
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	resp, err := http.Post(s.baseURL+"/mcp", "application/json", strings.NewReader(string(bodyBytes)))
	if err != nil {
		t.Fatalf("JSON-RPC request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("failed to parse response JSON: %v; body: %s", err, string(respBody))
	}
	return result
}

// toolText calls a tool and returns its first text content and error flag.
func (s *mcpTestServer) toolText(t *testing.T, name string, args map[string]interface{}) (string, bool) {
	t.Helper()
	result := s.jsonRPC(t, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	resultObj, ok := result["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected result object, got %T: %v", result["result"], result["result"])
	}
	content, ok := resultObj["content"].([]interface{})
	if !ok || len(content) == 0 {
		t.Fatalf("expected content array, got %v", resultObj["content"])
	}
	first := content[0].(map[string]interface{})
	if first["type"] != "text" {
		t.Fatalf("expected content type 'text', got %q", first["type"])
	}
	isError, _ := resultObj["isError"].(bool)
	return first["text"].(string), isError
}

var mcpTestSchema = []string{
	"CREATE TABLE mcp_people (id serial PRIMARY KEY, name text)",
	"CREATE TABLE mcp_pets (id serial PRIMARY KEY, owner int, species text)",
	"INSERT INTO mcp_people (name) VALUES ('alice'), ('bob')",
}

func TestMCPServer_QueryTool(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, pgsqldb.Config{}, "", mcpTestSchema...)

	text, isError := s.toolText(t, "query", map[string]interface{}{
		"sql": "SELECT id, name FROM mcp_people ORDER BY id",
	})
	if isError {
		t.Fatalf("unexpected error: %s", text)
	}

	var output struct {
		Columns []string        `json:"columns"`
		Rows    [][]interface{} `json:"rows"`
	}
	if err := json.Unmarshal([]byte(text), &output); err != nil {
		t.Fatalf("failed to parse query output: %v", err)
	}
	if len(output.Rows) != 2 || output.Rows[0][1] != "alice" {
		t.Fatalf("unexpected rows: %v", output.Rows)
	}

	text, isError = s.toolText(t, "query", map[string]interface{}{"sql": "SELECT * FROM nowhere"})
	if !isError || !strings.HasPrefix(text, "Error: ") {
		t.Fatalf("expected error diagnostic, got %q (isError=%v)", text, isError)
	}
}

func TestMCPServer_ListTablesTool(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, pgsqldb.Config{IgnoreTables: []string{"mcp_pets"}}, "", mcpTestSchema...)

	text, _ := s.toolText(t, "list_tables", map[string]interface{}{})
	if text != "mcp_people" {
		t.Fatalf("expected only mcp_people, got %q", text)
	}
}

func TestMCPServer_GetTableInfoTool(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, pgsqldb.Config{}, "", mcpTestSchema...)

	text, isError := s.toolText(t, "get_table_info", map[string]interface{}{"table_names": "mcp_pets, mcp_people"})
	if isError {
		t.Fatalf("unexpected error: %s", text)
	}
	want := "CREATE TABLE mcp_people (id int4,\nname text)\n\n/**/\n\nCREATE TABLE mcp_pets (id int4,\nowner int4,\nspecies text)\n\n/**/"
	if text != want {
		t.Fatalf("unexpected table info:\n%s", text)
	}
}

func TestMCPServer_HealthCheckAndMCPCoexist(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, pgsqldb.Config{}, "/healthz")

	resp, err := http.Get(s.baseURL + "/healthz")
	if err != nil {
		t.Fatalf("health check request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health check: expected 200, got %d", resp.StatusCode)
	}

	if text, isError := s.toolText(t, "query", map[string]interface{}{"sql": "SELECT 1 AS val"}); isError {
		t.Fatalf("MCP query returned error: %s", text)
	}
}

func TestMCPServer_ToolsList(t *testing.T) {
	t.Parallel()
	s := startMCPTestServer(t, pgsqldb.Config{}, "")

	result := s.jsonRPC(t, "tools/list", map[string]interface{}{})
	resultObj := result["result"].(map[string]interface{})
	tools, ok := resultObj["tools"].([]interface{})
	if !ok {
		t.Fatalf("expected tools array, got %T: %v", resultObj["tools"], resultObj["tools"])
	}
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}

	toolNames := map[string]bool{}
	for _, tool := range tools {
		toolNames[tool.(map[string]interface{})["name"].(string)] = true
	}
	for _, expected := range []string{"query", "list_tables", "get_table_info"} {
		if !toolNames[expected] {
			t.Fatalf("expected tool %q in list, got %v", expected, toolNames)
		}
	}
}

// Package sandbox exposes one operation — running a shell command inside an
// external sandbox — through a narrow interface backed by an MCP client.
// No agent tool calls it: neither agent's tool palette includes a sandbox
// tool. The sandbox VM itself is out of scope (spec.md §1 Non-goals); this
// package only talks to it.
package sandbox

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/acontext-run/runtime/internal/storage"
)

// runCommandTool is the fixed tool name every sandbox MCP server is
// expected to expose.
const runCommandTool = "run_command"

// Client is the narrow interface for running a sandbox command.
type Client interface {
	RunCommand(ctx context.Context, sandboxLogID, command string) (string, error)
}

// MCPClient backs Client with a single streamable-HTTP MCP session,
// grounded on the teacher's internal/mcp/client.go connect/initialize
// sequence, generalized from its multi-server registry down to one fixed
// upstream and one fixed tool.
type MCPClient struct {
	DB   *storage.Gateway
	conn *mcpclient.Client
}

// Dial connects to the sandbox MCP server at url and performs the MCP
// initialize handshake.
func Dial(ctx context.Context, db *storage.Gateway, url string) (*MCPClient, error) {
	conn, err := mcpclient.NewStreamableHttpClient(url)
	if err != nil {
		return nil, fmt.Errorf("sandbox: create MCP client: %w", err)
	}
	if err := conn.Start(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sandbox: start MCP transport: %w", err)
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "acontext-runtime", Version: "1.0.0"}
	if _, err := conn.Initialize(ctx, initReq); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sandbox: initialize MCP session: %w", err)
	}

	return &MCPClient{DB: db, conn: conn}, nil
}

// Close tears down the MCP session.
func (c *MCPClient) Close() error { return c.conn.Close() }

// RunCommand invokes the sandbox's run_command tool and appends the
// command to sandboxLogID's history_commands. Any file paths the tool
// reports as generated are appended to generated_files.
func (c *MCPClient) RunCommand(ctx context.Context, sandboxLogID, command string) (string, error) {
	req := mcpgo.CallToolRequest{}
	req.Params.Name = runCommandTool
	req.Params.Arguments = map[string]any{"command": command}

	result, err := c.conn.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("sandbox: call %s: %w", runCommandTool, err)
	}

	if err := c.DB.SandboxLogs.AppendCommand(ctx, sandboxLogID, command); err != nil {
		return "", fmt.Errorf("sandbox: append command history: %w", err)
	}

	output, generatedFiles := parseRunCommandResult(result)
	for _, path := range generatedFiles {
		if err := c.DB.SandboxLogs.AppendGeneratedFile(ctx, sandboxLogID, path); err != nil {
			return "", fmt.Errorf("sandbox: append generated file: %w", err)
		}
	}

	if result.IsError {
		return "", fmt.Errorf("sandbox: run_command failed: %s", output)
	}
	return output, nil
}

// parseRunCommandResult extracts the tool's text output and, from a
// trailing "GENERATED_FILES: a,b,c" line if present, the paths it wrote —
// a convention the sandbox MCP server is expected to follow, not a
// standard MCP content type.
func parseRunCommandResult(result *mcpgo.CallToolResult) (output string, generatedFiles []string) {
	for _, content := range result.Content {
		tc, ok := content.(mcpgo.TextContent)
		if !ok {
			continue
		}
		if output != "" {
			output += "\n"
		}
		output += tc.Text
	}
	return output, extractGeneratedFiles(output)
}

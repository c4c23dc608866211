// Package mcptool exposes tools served by external MCP servers to the tool
// loop. Each server runs as a subprocess speaking MCP over stdio; its tools
// are discovered at connect time and adapted to toolloop.Tool.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/embabel/goalrun/internal/toolloop"
)

// Client manages the connection to a single MCP server subprocess.
type Client struct {
	name  string
	cmd   *exec.Cmd
	conn  *mcpsdk.ClientSession
	tools map[string]toolloop.Tool
}

// Connect starts the MCP server subprocess, initializes the session and
// discovers the server's tools.
func Connect(ctx context.Context, name, command string, args []string) (*Client, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr

	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "goalrun", Version: "v1.0.0"}, nil)
	conn, err := mcpClient.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		cmd.Process.Kill()
		return nil, fmt.Errorf("failed to connect to MCP server %q: %w", name, err)
	}

	c := &Client{name: name, cmd: cmd, conn: conn, tools: make(map[string]toolloop.Tool)}

	params := &mcpsdk.ListToolsParams{}
	for {
		list, err := conn.ListTools(ctx, params)
		if err != nil {
			cmd.Process.Kill()
			return nil, fmt.Errorf("failed to list tools from MCP server %q: %w", name, err)
		}
		for _, t := range list.Tools {
			c.tools[t.Name] = c.adapt(t.Name, t.Description, t.InputSchema)
		}
		if list.NextCursor == "" {
			break
		}
		params.Cursor = list.NextCursor
	}
	return c, nil
}

// adapt wraps one discovered MCP tool as a toolloop.Tool. The server's
// input schema rides along so the loop validates arguments before dispatch.
func (c *Client) adapt(name, description string, inputSchema any) toolloop.Tool {
	var schemaJSON string
	if inputSchema != nil {
		if data, err := json.Marshal(inputSchema); err == nil && string(data) != "null" {
			schemaJSON = string(data)
		}
	}
	return toolloop.Tool{
		Name:        name,
		Description: description,
		SchemaJSON:  schemaJSON,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return c.call(ctx, name, args)
		},
	}
}

func (c *Client) call(ctx context.Context, tool string, args map[string]any) (string, error) {
	result, err := c.conn.CallTool(ctx, &mcpsdk.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("failed to call tool %q on server %q: %w", tool, c.name, err)
	}
	var out string
	for _, content := range result.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			out += text.Text
		}
	}
	return out, nil
}

// Name returns the server name.
func (c *Client) Name() string { return c.name }

// Tool returns a discovered tool by name.
func (c *Client) Tool(name string) (toolloop.Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Register adds every discovered tool to a loop registry. Existing entries
// with the same name are not overwritten.
func (c *Client) Register(reg toolloop.Registry) {
	for name, t := range c.tools {
		if _, exists := reg[name]; !exists {
			reg[name] = t
		}
	}
}

// Close terminates the session and the server subprocess.
func (c *Client) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

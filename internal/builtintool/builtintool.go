// Package builtintool provides a small set of workspace tools the model can
// call through the tool loop: file read/write/list and a command runner
// with an allowlist. All paths are confined to a workspace root.
package builtintool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/embabel/goalrun/internal/toolloop"
)

const (
	defaultCmdTimeout = 60 * time.Second
	maxOutputChars    = 4000
)

var allowedCommands = []string{
	"go", "gofmt", "git", "make",
	"python", "python3", "pip", "pytest",
	"node", "npm", "npx",
	"ls", "find", "cat", "head", "tail", "wc", "grep", "diff", "sort", "uniq",
	"mkdir", "touch", "cp", "mv",
	"echo", "date", "which", "env",
	"curl", "jq",
	"sh", "bash",
}

// resolve confines a relative path to the workspace root.
func resolve(root, path string) (string, error) {
	full := filepath.Clean(filepath.Join(root, path))
	if !strings.HasPrefix(full, filepath.Clean(root)) {
		return "", fmt.Errorf("path %s is outside the workspace root", path)
	}
	return full, nil
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

// Registry builds the built-in tool registry rooted at the workspace.
func Registry(root string) toolloop.Registry {
	reg := toolloop.Registry{}
	for _, t := range []toolloop.Tool{
		readFileTool(root),
		writeFileTool(root),
		listFilesTool(root),
		runCmdTool(root),
	} {
		reg[t.Name] = t
	}
	return reg
}

func readFileTool(root string) toolloop.Tool {
	return toolloop.Tool{
		Name:        "read_file",
		Description: "Read a file from the workspace. Large files are truncated.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "workspace-relative file path"}
			},
			"required": ["path"]
		}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			full, err := resolve(root, stringArg(args, "path"))
			if err != nil {
				return "", err
			}
			data, err := os.ReadFile(full)
			if err != nil {
				return "", err
			}
			content := string(data)
			truncated := false
			if len(content) > maxOutputChars {
				content = content[:maxOutputChars]
				truncated = true
			}
			out, err := json.Marshal(map[string]any{
				"path":      stringArg(args, "path"),
				"content":   content,
				"truncated": truncated,
			})
			return string(out), err
		},
	}
}

func writeFileTool(root string) toolloop.Tool {
	return toolloop.Tool{
		Name:        "write_file",
		Description: "Write content to a file in the workspace, creating parent directories as needed.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"content": {"type": "string"}
			},
			"required": ["path", "content"]
		}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			full, err := resolve(root, stringArg(args, "path"))
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return "", err
			}
			content := stringArg(args, "content")
			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf(`{"path":%q,"bytes_written":%d}`, stringArg(args, "path"), len(content)), nil
		},
	}
}

func listFilesTool(root string) toolloop.Tool {
	return toolloop.Tool{
		Name:        "list_files",
		Description: "List files under a workspace directory, non-recursive.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "workspace-relative directory, default ."}
			}
		}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			path := stringArg(args, "path")
			if path == "" {
				path = "."
			}
			full, err := resolve(root, path)
			if err != nil {
				return "", err
			}
			entries, err := os.ReadDir(full)
			if err != nil {
				return "", err
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			out, err := json.Marshal(map[string]any{"path": path, "entries": names})
			return string(out), err
		},
	}
}

func runCmdTool(root string) toolloop.Tool {
	return toolloop.Tool{
		Name:        "run_cmd",
		Description: "Run an allowlisted command in the workspace and return its output.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"cmd": {"type": "string", "description": "command name, must be allowlisted"},
				"args": {"type": "string", "description": "space-separated arguments"}
			},
			"required": ["cmd"]
		}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			cmd := stringArg(args, "cmd")
			allowed := false
			for _, a := range allowedCommands {
				if cmd == a {
					allowed = true
					break
				}
			}
			if !allowed {
				return "", fmt.Errorf("command %q is not allowlisted", cmd)
			}

			runCtx, cancel := context.WithTimeout(ctx, defaultCmdTimeout)
			defer cancel()

			var argv []string
			if raw := stringArg(args, "args"); raw != "" {
				argv = strings.Fields(raw)
			}
			c := exec.CommandContext(runCtx, cmd, argv...)
			c.Dir = root
			output, err := c.CombinedOutput()

			text := string(output)
			if len(text) > maxOutputChars {
				text = text[:maxOutputChars] + "\n... output truncated"
			}
			exitCode := 0
			status := "ok"
			if err != nil {
				status = "failed"
				if exitErr, ok := err.(*exec.ExitError); ok {
					exitCode = exitErr.ExitCode()
				} else {
					return "", err
				}
			}
			out, err := json.Marshal(map[string]any{
				"cmd":       cmd,
				"status":    status,
				"exit_code": exitCode,
				"output":    text,
			})
			return string(out), err
		},
	}
}

package builtintool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadWriteRoundTrip(t *testing.T) {
	root := t.TempDir()
	reg := Registry(root)
	ctx := context.Background()

	write := reg["write_file"]
	if _, err := write.Fn(ctx, map[string]any{"path": "notes/plan.txt", "content": "step one"}); err != nil {
		t.Fatalf("write_file: %v", err)
	}

	read := reg["read_file"]
	out, err := read.Fn(ctx, map[string]any{"path": "notes/plan.txt"})
	if err != nil {
		t.Fatalf("read_file: %v", err)
	}
	var result struct {
		Content   string `json:"content"`
		Truncated bool   `json:"truncated"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if result.Content != "step one" || result.Truncated {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPathEscapeRejected(t *testing.T) {
	reg := Registry(t.TempDir())
	for _, name := range []string{"read_file", "write_file", "list_files"} {
		args := map[string]any{"path": "../../etc/passwd", "content": "x"}
		if _, err := reg[name].Fn(context.Background(), args); err == nil {
			t.Fatalf("%s accepted a path outside the root", name)
		}
	}
}

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	reg := Registry(root)
	out, err := reg["list_files"].Fn(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("list_files: %v", err)
	}
	if !strings.Contains(out, "a.txt") || !strings.Contains(out, "sub/") {
		t.Fatalf("unexpected listing: %s", out)
	}
}

func TestRunCmdAllowlist(t *testing.T) {
	reg := Registry(t.TempDir())
	ctx := context.Background()

	if _, err := reg["run_cmd"].Fn(ctx, map[string]any{"cmd": "reboot"}); err == nil {
		t.Fatal("non-allowlisted command accepted")
	}

	out, err := reg["run_cmd"].Fn(ctx, map[string]any{"cmd": "echo", "args": "hello"})
	if err != nil {
		t.Fatalf("run_cmd echo: %v", err)
	}
	if !strings.Contains(out, "hello") || !strings.Contains(out, `"status":"ok"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestSchemasValidate(t *testing.T) {
	reg := Registry(t.TempDir())
	read := reg["read_file"]
	if err := read.ValidateArgs(map[string]any{}); err == nil {
		t.Fatal("missing required path should fail validation")
	}
	if err := read.ValidateArgs(map[string]any{"path": "x.txt"}); err != nil {
		t.Fatalf("valid args rejected: %v", err)
	}
}

package providers

import (
	"testing"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/embabel/goalrun/internal/toolloop"
)

func TestOpenAIMessageConversion(t *testing.T) {
	msgs := []toolloop.Message{
		{Role: toolloop.RoleSystem, Content: "you are helpful"},
		{Role: toolloop.RoleUser, Content: "look it up"},
		{Role: toolloop.RoleAssistant, Content: "", ToolCalls: []toolloop.ToolCall{
			{ID: "call-1", Name: "search", Args: map[string]any{"q": "weather"}},
		}},
		{Role: toolloop.RoleTool, Name: "call-1", Content: "sunny"},
	}

	out := toOpenAIMessages(msgs)
	if len(out) != 4 {
		t.Fatalf("got %d messages, want 4", len(out))
	}
	if out[2].Role != openai.ChatMessageRoleAssistant || len(out[2].ToolCalls) != 1 {
		t.Fatalf("assistant message not converted: %+v", out[2])
	}
	if out[2].Content == "" {
		t.Fatal("assistant content must not serialize as null")
	}
	if out[3].ToolCallID != "call-1" || out[3].Content != "sunny" {
		t.Fatalf("tool result not converted: %+v", out[3])
	}
}

func TestOpenAIOrphanToolMessageDropped(t *testing.T) {
	msgs := []toolloop.Message{
		{Role: toolloop.RoleUser, Content: "hi"},
		{Role: toolloop.RoleTool, Name: "call-9", Content: "stale"},
	}
	out := toOpenAIMessages(msgs)
	if len(out) != 1 {
		t.Fatalf("orphan tool message should be dropped, got %d messages", len(out))
	}
}

func TestAnthropicMessageConversion(t *testing.T) {
	msgs := []toolloop.Message{
		{Role: toolloop.RoleSystem, Content: "be terse"},
		{Role: toolloop.RoleAssistant, ToolCalls: []toolloop.ToolCall{
			{ID: "toolu-1", Name: "fetch", Args: map[string]any{"url": "http://x"}},
		}},
		{Role: toolloop.RoleTool, Name: "toolu-1", Content: ""},
	}

	system, out := toAnthropicMessages(msgs)
	if len(system) != 1 || system[0].Text != "be terse" {
		t.Fatalf("system part not extracted: %+v", system)
	}
	// assistant tool_use plus user-wrapped tool result
	if len(out) != 2 {
		t.Fatalf("got %d messages, want 2", len(out))
	}
	if out[1].Content[0].Type != "tool_result" {
		t.Fatalf("tool result not wrapped: %+v", out[1])
	}
}

func TestToolSchemaConversionRejectsBadJSON(t *testing.T) {
	bad := []toolloop.Schema{{Name: "broken", JSONSchema: "{not json"}}
	if _, err := toOpenAITools(bad); err == nil {
		t.Fatal("expected error for invalid schema JSON")
	}
	if _, err := toAnthropicTools(bad); err == nil {
		t.Fatal("expected error for invalid schema JSON")
	}
}

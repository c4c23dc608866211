package providers

import (
	"context"
	"encoding/json"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/embabel/goalrun/internal/toolloop"
)

// AnthropicClient implements toolloop.ModelClient against the Anthropic
// Messages API.
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewAnthropicClient creates an Anthropic-backed model client.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client:      anthropic.NewClient(apiKey),
		model:       model,
		maxTokens:   4096,
		temperature: 0.1,
	}
}

// Chat implements toolloop.ModelClient.
func (c *AnthropicClient) Chat(ctx context.Context, messages []toolloop.Message, schemas []toolloop.Schema) (toolloop.Response, error) {
	systemParts, wireMsgs := toAnthropicMessages(messages)

	toolDefs, err := toAnthropicTools(schemas)
	if err != nil {
		return toolloop.Response{}, err
	}

	temperature := c.temperature
	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		Messages:    wireMsgs,
		MaxTokens:   c.maxTokens,
		Temperature: &temperature,
	}
	if len(systemParts) > 0 {
		req.MultiSystem = systemParts
	}
	if len(toolDefs) > 0 {
		req.Tools = toolDefs
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		return toolloop.Response{}, fmt.Errorf("anthropic chat: %w", err)
	}

	var text string
	var calls []toolloop.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil {
				text += *block.Text
			}
		case "tool_use":
			if block.MessageContentToolUse == nil || block.ID == "" || block.Name == "" {
				continue
			}
			args := make(map[string]any)
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					args = make(map[string]any)
				}
			}
			calls = append(calls, toolloop.ToolCall{ID: block.ID, Name: block.Name, Args: args})
		}
	}

	return toolloop.Response{
		Assistant: toolloop.Message{Role: toolloop.RoleAssistant, Content: text, ToolCalls: calls},
		ToolCalls: calls,
	}, nil
}

// toAnthropicMessages converts the provider-agnostic transcript to
// Anthropic's wire shape. Anthropic requires every tool result to follow an
// assistant tool_use block, so orphaned tool messages are dropped rather
// than sent.
func toAnthropicMessages(messages []toolloop.Message) ([]anthropic.MessageSystemPart, []anthropic.Message) {
	var systemParts []anthropic.MessageSystemPart
	var out []anthropic.Message
	var prevAssistantHadToolCalls bool

	for i, msg := range messages {
		switch msg.Role {
		case toolloop.RoleSystem:
			systemParts = append(systemParts, anthropic.MessageSystemPart{Type: "text", Text: msg.Content})
			prevAssistantHadToolCalls = false
		case toolloop.RoleUser:
			out = append(out, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
			prevAssistantHadToolCalls = false
		case toolloop.RoleAssistant:
			var content []anthropic.MessageContent
			if msg.Content != "" && msg.Content != " " {
				content = append(content, anthropic.NewTextMessageContent(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Args)
				content = append(content, anthropic.NewToolUseMessageContent(tc.ID, tc.Name, json.RawMessage(argsJSON)))
			}
			out = append(out, anthropic.Message{Role: anthropic.RoleAssistant, Content: content})
			prevAssistantHadToolCalls = len(msg.ToolCalls) > 0
		case toolloop.RoleTool:
			if !prevAssistantHadToolCalls {
				continue
			}
			content := msg.Content
			if content == "" {
				// Anthropic may reject empty content
				content = "{}"
			}
			// msg.Name carries the tool_use_id
			out = append(out, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewToolResultMessageContent(msg.Name, content, false)},
			})
			if i+1 < len(messages) && messages[i+1].Role == toolloop.RoleAssistant {
				prevAssistantHadToolCalls = false
			}
		}
	}
	return systemParts, out
}

func toAnthropicTools(schemas []toolloop.Schema) ([]anthropic.ToolDefinition, error) {
	var defs []anthropic.ToolDefinition
	for _, s := range schemas {
		schemaObj := map[string]any{"type": "object"}
		if s.JSONSchema != "" {
			if err := json.Unmarshal([]byte(s.JSONSchema), &schemaObj); err != nil {
				return nil, fmt.Errorf("invalid tool schema JSON for %s: %w", s.Name, err)
			}
		}
		defs = append(defs, anthropic.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: schemaObj,
		})
	}
	return defs, nil
}

package providers

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/embabel/goalrun/internal/toolloop"
)

// OpenAIClient implements toolloop.ModelClient against the OpenAI chat
// completions API, or any OpenAI-compatible endpoint via a custom base URL.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed model client. baseURL may be
// empty for the default endpoint.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(config), model: model}
}

// Chat implements toolloop.ModelClient.
func (c *OpenAIClient) Chat(ctx context.Context, messages []toolloop.Message, schemas []toolloop.Schema) (toolloop.Response, error) {
	wireMsgs := toOpenAIMessages(messages)

	tools, err := toOpenAITools(schemas)
	if err != nil {
		return toolloop.Response{}, err
	}

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: wireMsgs,
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return toolloop.Response{}, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return toolloop.Response{}, fmt.Errorf("openai chat: empty response")
	}

	choice := resp.Choices[0].Message
	var calls []toolloop.ToolCall
	for _, tc := range choice.ToolCalls {
		args := make(map[string]any)
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = make(map[string]any)
			}
		}
		calls = append(calls, toolloop.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}

	return toolloop.Response{
		Assistant: toolloop.Message{Role: toolloop.RoleAssistant, Content: choice.Content, ToolCalls: calls},
		ToolCalls: calls,
	}, nil
}

// toOpenAIMessages converts the provider-agnostic transcript to OpenAI's
// wire shape. Tool messages must follow an assistant message carrying
// tool_calls; orphans are dropped.
func toOpenAIMessages(messages []toolloop.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	var prevAssistantHadToolCalls bool

	for i, msg := range messages {
		switch msg.Role {
		case toolloop.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Content,
			})
			prevAssistantHadToolCalls = false
		case toolloop.RoleUser:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
			prevAssistantHadToolCalls = false
		case toolloop.RoleAssistant:
			content := msg.Content
			if content == "" {
				// the SDK serializes empty string as null, which the API rejects
				content = " "
			}
			var toolCalls []openai.ToolCall
			for _, tc := range msg.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Args)
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(argsJSON),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				Content:   content,
				ToolCalls: toolCalls,
			})
			prevAssistantHadToolCalls = len(msg.ToolCalls) > 0
		case toolloop.RoleTool:
			if !prevAssistantHadToolCalls {
				continue
			}
			content := msg.Content
			if content == "" {
				content = "{}"
			}
			// msg.Name carries the tool_call_id
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: msg.Name,
				Content:    content,
			})
			if i+1 < len(messages) && messages[i+1].Role == toolloop.RoleAssistant {
				prevAssistantHadToolCalls = false
			}
		}
	}
	return out
}

func toOpenAITools(schemas []toolloop.Schema) ([]openai.Tool, error) {
	var tools []openai.Tool
	for _, s := range schemas {
		schemaObj := map[string]any{"type": "object"}
		if s.JSONSchema != "" {
			if err := json.Unmarshal([]byte(s.JSONSchema), &schemaObj); err != nil {
				return nil, fmt.Errorf("invalid tool schema JSON for %s: %w", s.Name, err)
			}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  schemaObj,
			},
		})
	}
	return tools, nil
}

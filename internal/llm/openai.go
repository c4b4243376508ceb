package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/a2abench/a2abench/internal/chat"
)

// OpenAIBackend talks to any OpenAI-compatible chat-completions endpoint with
// native tool calling.
type OpenAIBackend struct {
	client *openai.Client
}

// NewOpenAIBackend reads OPENAI_API_KEY (required) and OPENAI_BASE_URL
// (optional, for compatible providers) from the environment.
func NewOpenAIBackend() (*OpenAIBackend, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	cfg := openai.DefaultConfig(key)
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}
	return &OpenAIBackend{client: openai.NewClientWithConfig(cfg)}, nil
}

func (b *OpenAIBackend) Complete(ctx context.Context, messages []chat.Message, tools []chat.ToolSpec, opts Options) (*Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       opts.Model,
		Temperature: opts.Temperature,
		Messages:    toOpenAIMessages(messages),
		Tools:       toOpenAITools(tools),
	}
	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: no choices returned")
	}
	return fromOpenAIMessage(resp.Choices[0].Message)
}

func toOpenAIMessages(messages []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
		if m.Role == chat.RoleTool {
			msg.ToolCallID = m.ToolCallID
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: chat.MarshalArguments(tc.Arguments),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []chat.ToolSpec) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, spec := range tools {
		fn, ok := spec["function"].(map[string]any)
		if !ok {
			// Catalogue entries may carry the function shape at top level.
			fn = spec
		}
		name, _ := fn["name"].(string)
		if name == "" {
			continue
		}
		desc, _ := fn["description"].(string)
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: desc,
				Parameters:  fn["parameters"],
			},
		})
	}
	return out
}

func fromOpenAIMessage(msg openai.ChatCompletionMessage) (*Completion, error) {
	completion := &Completion{
		Content:          msg.Content,
		ReasoningContent: msg.ReasoningContent,
	}
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("tool call %s: decode arguments: %w", tc.Function.Name, err)
			}
		}
		completion.ToolCalls = append(completion.ToolCalls, chat.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return completion, nil
}

// Package openai provides an oracle.Oracle backed by the OpenAI Chat
// Completions API with function calling. A configurable base URL allows
// pointing the same adapter at OpenAI-compatible gateways.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/printmind/printmind/core"
	"github.com/printmind/printmind/oracle"
)

// Options configures the OpenAI oracle. Fields mirror a minimal subset of
// the Chat Completions parameters; extend via functional options.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	// BaseURL overrides the API endpoint for OpenAI-compatible services.
	BaseURL string
}

// Oracle adapts the OpenAI Chat Completions API to the oracle.Oracle contract.
type Oracle struct {
	client *openai.Client
	opts   Options
}

// New creates an OpenAI oracle using the official client.
func New(optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)

	return &Oracle{client: &client, opts: opts}
}

// NewFromClient creates an OpenAI oracle from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Oracle{client: client, opts: opts}
}

// Decide implements oracle.Oracle. Tool calls in the response become
// capability call proposals; message content becomes the answer candidate.
func (o *Oracle) Decide(ctx context.Context, req oracle.Request) (oracle.Decision, error) {
	params := openai.ChatCompletionNewParams{
		Model:               o.opts.Model,
		Messages:            buildMessages(req),
		Temperature:         openai.Float(o.opts.Temperature),
		MaxCompletionTokens: openai.Int(o.opts.MaxCompletionTokens),
	}

	if !req.FinalOnly && len(req.Capabilities) > 0 {
		params.Tools = buildTools(req.Capabilities)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return oracle.Decision{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return oracle.Decision{}, fmt.Errorf("openai api error: response carried no choices")
	}

	msg := resp.Choices[0].Message

	var calls []core.CapabilityCall
	for _, tc := range msg.ToolCalls {
		calls = append(calls, core.CapabilityCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	tokens := int(resp.Usage.TotalTokens)

	return oracle.NewDecision(msg.Content, calls, &tokens), nil
}

// Complete implements oracle.Oracle with a single tool-free generation.
func (o *Oracle) Complete(ctx context.Context, system, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               o.opts.Model,
		Messages:            messages,
		Temperature:         openai.Float(o.opts.Temperature),
		MaxCompletionTokens: openai.Int(o.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api error: response carried no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// buildMessages converts session history to chat messages. Tool-result
// messages are rendered as user-role text carrying the capability name
// because the engine does not persist assistant tool-call turns, which the
// API requires a tool-role message to follow.
func buildMessages(req oracle.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	for _, m := range req.History {
		switch m.Role {
		case core.RoleSystem:
			if m.Content != "" {
				messages = append(messages, openai.SystemMessage(m.Content))
			}
		case core.RoleAssistant:
			if m.Content != "" {
				messages = append(messages, openai.AssistantMessage(m.Content))
			}
		case core.RoleTool:
			messages = append(messages, openai.UserMessage(
				fmt.Sprintf("[%s result] %s", m.Capability, m.Content),
			))
		default:
			if m.Content != "" {
				messages = append(messages, openai.UserMessage(m.Content))
			}
		}
	}

	if req.Directive != "" {
		messages = append(messages, openai.SystemMessage(req.Directive))
	}

	return messages
}

// buildTools converts capability descriptors to OpenAI function definitions.
func buildTools(descriptors []core.Descriptor) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, len(descriptors))

	for i, d := range descriptors {
		params := d.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        d.Name,
				Description: openai.String(d.Description),
				Parameters:  params,
			},
		}
	}

	return tools
}

// Package anthropic provides an oracle.Oracle backed by the Anthropic
// Messages API with tool use.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/printmind/printmind/core"
	"github.com/printmind/printmind/oracle"
)

// Options configures the Anthropic oracle (model id, temperature, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Oracle adapts the Anthropic Messages API to the oracle.Oracle contract.
type Oracle struct {
	client *anthropic.Client
	opts   Options
}

// New creates an Anthropic oracle using the official client.
func New(optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Oracle{client: &client, opts: opts}
}

// NewFromClient creates an Anthropic oracle from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Oracle{client: client, opts: opts}
}

// Decide implements oracle.Oracle. Tool-use blocks in the response become
// capability call proposals; text becomes the final answer candidate.
func (o *Oracle) Decide(ctx context.Context, req oracle.Request) (oracle.Decision, error) {
	params := anthropic.MessageNewParams{
		Model:       o.opts.Model,
		Messages:    buildMessages(req.History),
		MaxTokens:   o.opts.MaxTokens,
		Temperature: anthropic.Float(o.opts.Temperature),
	}

	if system := buildSystem(req); len(system) > 0 {
		params.System = system
	}

	// No tool surface when the caller will not honor calls anyway.
	if !req.FinalOnly && len(req.Capabilities) > 0 {
		params.Tools = buildTools(req.Capabilities)
	}

	resp, err := o.client.Messages.New(ctx, params)
	if err != nil {
		return oracle.Decision{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var (
		text  string
		calls []core.CapabilityCall
	)
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := ""
			if toolBlock.Input != nil {
				if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(argsBytes)
				}
			}
			calls = append(calls, core.CapabilityCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}

	tokens := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)

	return oracle.NewDecision(text, calls, &tokens), nil
}

// Complete implements oracle.Oracle with a single tool-free generation.
func (o *Oracle) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       o.opts.Model,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		MaxTokens:   o.opts.MaxTokens,
		Temperature: anthropic.Float(o.opts.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := o.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}

	return text, nil
}

// buildMessages converts the session history to Anthropic messages. The
// engine does not persist tool_use blocks, so tool-result messages are
// rendered as user-role text carrying the capability name; the oracle sees
// the same information without the strict tool_use/tool_result pairing.
func buildMessages(history []core.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, m := range history {
		switch m.Role {
		case core.RoleSystem:
			continue // handled separately
		case core.RoleAssistant:
			if m.Content != "" {
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			}
		case core.RoleTool:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(
				fmt.Sprintf("[%s result] %s", m.Capability, m.Content),
			)))
		default:
			if m.Content != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}

	return messages
}

// buildSystem collects system messages plus the per-call directive.
func buildSystem(req oracle.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, m := range req.History {
		if m.Role == core.RoleSystem && m.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: m.Content})
		}
	}
	if req.Directive != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.Directive})
	}
	return blocks
}

// buildTools converts capability descriptors to Anthropic tool definitions.
func buildTools(descriptors []core.Descriptor) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(descriptors))

	for i, d := range descriptors {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if d.Parameters != nil {
			if properties, exists := d.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := d.Parameters["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					var reqStrings []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}
					inputSchema.Required = reqStrings
				}
			}
		}
		tools[i] = anthropic.ToolUnionParamOfTool(inputSchema, d.Name)
	}

	return tools
}

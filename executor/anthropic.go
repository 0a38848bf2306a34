package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/armatrix/agent-delegation-go/internal/budget"
	"github.com/armatrix/agent-delegation-go/internal/config"
	"github.com/armatrix/agent-delegation-go/internal/schema"
	"github.com/armatrix/agent-delegation-go/subagent"
)

// Defaults for the LLM executor.
const (
	DefaultModel     = anthropic.ModelClaudeSonnet4_5
	DefaultMaxTokens = 4096

	// ReportTool is the hidden tool the model must call to hand back its outcome.
	ReportTool = "report_outcome"
)

// Outcome is the report_outcome tool input.
type Outcome struct {
	Success    bool     `json:"success" jsonschema:"required,description=Whether the task was achieved"`
	Output     string   `json:"output" jsonschema:"required,description=The work product or a summary of it"`
	ToolsUsed  []string `json:"tools_used,omitempty" jsonschema:"description=Names of the tools the work relied on"`
	Confidence float64  `json:"confidence,omitempty" jsonschema:"description=Confidence in the result from 0 to 100"`
	Warnings   []string `json:"warnings,omitempty" jsonschema:"description=Caveats the delegator should know about"`
}

// AnthropicOption configures the LLM executor.
type AnthropicOption func(*anthropicOptions)

type anthropicOptions struct {
	model         anthropic.Model
	maxTokens     int64
	preset        string
	ledger        *budget.Ledger
	clientOptions []option.RequestOption
}

// WithModel sets the model used when a definition names none.
func WithModel(m anthropic.Model) AnthropicOption {
	return func(o *anthropicOptions) { o.model = m }
}

// WithMaxTokens sets the response token cap.
func WithMaxTokens(n int64) AnthropicOption {
	return func(o *anthropicOptions) { o.maxTokens = n }
}

// WithPreset selects the system prompt used for definitions without
// instructions.
func WithPreset(name string) AnthropicOption {
	return func(o *anthropicOptions) { o.preset = name }
}

// WithLedger sets the spend ledger. Costs are priced from token usage.
func WithLedger(l *budget.Ledger) AnthropicOption {
	return func(o *anthropicOptions) { o.ledger = l }
}

// WithClientOptions passes request options (API key, base URL, retries) to
// the Anthropic client.
func WithClientOptions(opts ...option.RequestOption) AnthropicOption {
	return func(o *anthropicOptions) { o.clientOptions = append(o.clientOptions, opts...) }
}

// Anthropic performs tasks with a Claude model. Each task is one Messages
// call whose tool choice is forced to the hidden report tool, so the reply
// is always a structured Outcome.
type Anthropic struct {
	client anthropic.Client
	opts   anthropicOptions
	tool   anthropic.ToolUnionParam
}

var _ Executor = (*Anthropic)(nil)

// NewAnthropic creates the LLM executor.
func NewAnthropic(opts ...AnthropicOption) *Anthropic {
	var o anthropicOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.model == "" {
		o.model = DefaultModel
	}
	if o.maxTokens == 0 {
		o.maxTokens = DefaultMaxTokens
	}
	if o.preset == "" {
		o.preset = config.DefaultPreset
	}
	if o.ledger == nil {
		o.ledger = budget.NewLedger(nil)
	}
	return &Anthropic{
		client: anthropic.NewClient(o.clientOptions...),
		opts:   o,
		tool: anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        ReportTool,
				Description: param.NewOpt("Report the outcome of the delegated task"),
				InputSchema: schema.Generate[Outcome](),
			},
		},
	}
}

// Ledger returns the executor's spend ledger.
func (a *Anthropic) Ledger() *budget.Ledger { return a.opts.ledger }

// Execute asks the model to perform req as def.
func (a *Anthropic) Execute(ctx context.Context, def subagent.Definition, req subagent.Request) (*subagent.Result, error) {
	model := a.opts.model
	if def.Model != "" {
		model = anthropic.Model(def.Model)
	}

	prompt, err := userPrompt(req)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:      model,
		MaxTokens:  a.opts.maxTokens,
		System:     []anthropic.TextBlockParam{{Text: a.systemPrompt(def)}},
		Messages:   []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Tools:      []anthropic.ToolUnionParam{a.tool},
		ToolChoice: anthropic.ToolChoiceParamOfTool(ReportTool),
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("messages: %w", err)
	}

	cost := a.opts.ledger.Record(def.ID, model, budget.Usage{
		InputTokens:              int(msg.Usage.InputTokens),
		OutputTokens:             int(msg.Usage.OutputTokens),
		CacheReadInputTokens:     int(msg.Usage.CacheReadInputTokens),
		CacheCreationInputTokens: int(msg.Usage.CacheCreationInputTokens),
	})

	out, err := extractOutcome(msg)
	if err != nil {
		return nil, err
	}
	return &subagent.Result{
		Output:          out.Output,
		ToolsUsed:       out.ToolsUsed,
		ToolInvocations: len(out.ToolsUsed),
		Collaborated:    req.Collaborate,
		Confidence:      out.Confidence,
		Cost:            cost,
		Failed:          !out.Success,
		Warnings:        out.Warnings,
	}, nil
}

func (a *Anthropic) systemPrompt(def subagent.Definition) string {
	var sb strings.Builder
	if def.Instructions != "" {
		sb.WriteString(def.Instructions)
	} else if p, ok := config.GetPreset(a.opts.preset); ok {
		sb.WriteString(p)
	}
	fmt.Fprintf(&sb, "\n\nYou are %s (role %s).", def.DisplayName(), def.Role)
	if len(def.Skills) > 0 {
		fmt.Fprintf(&sb, " Your skills: %s.", strings.Join(def.Skills, ", "))
	}
	if len(def.Tools) > 0 {
		fmt.Fprintf(&sb, " You may use: %s.", strings.Join(def.Tools, ", "))
	}
	return sb.String()
}

func userPrompt(req subagent.Request) (string, error) {
	var sb strings.Builder
	sb.WriteString(req.Task)
	if req.Payload != nil {
		data, err := json.MarshalIndent(req.Payload, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode payload: %w", err)
		}
		sb.WriteString("\n\nInput:\n")
		sb.Write(data)
	}
	if len(req.RequiredTools) > 0 {
		fmt.Fprintf(&sb, "\n\nRequired tools: %s", strings.Join(req.RequiredTools, ", "))
	}
	if req.Priority != "" {
		fmt.Fprintf(&sb, "\nPriority: %s", req.Priority)
	}
	return sb.String(), nil
}

// extractOutcome finds the report tool call in the reply.
func extractOutcome(msg *anthropic.Message) (*Outcome, error) {
	for _, block := range msg.Content {
		if block.Type != "tool_use" || block.Name != ReportTool {
			continue
		}
		var out Outcome
		if err := json.Unmarshal(block.Input, &out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ReportTool, err)
		}
		return &out, nil
	}
	return nil, fmt.Errorf("model did not call %s", ReportTool)
}

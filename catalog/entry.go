// Package catalog loads worker definitions from disk.
//
// A catalog directory holds any mix of:
//
//   - markdown files with YAML front matter, where the body becomes the
//     worker's instructions;
//   - YAML files holding one entry, a list of entries, or a mapping with a
//     "workers" list;
//   - JSON files in the same shapes.
//
// Files are discovered recursively. [Watcher] keeps a registry in step with
// the directory as files change.
package catalog

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/armatrix/agent-delegation-go/internal/schema"
	"github.com/armatrix/agent-delegation-go/subagent"
)

// Entry is one worker as written in a catalog file.
type Entry struct {
	ID              string   `json:"id,omitempty" yaml:"id" jsonschema:"description=Unique worker identifier. Defaults to the name or file name"`
	Name            string   `json:"name,omitempty" yaml:"name" jsonschema:"description=Display name"`
	Description     string   `json:"description,omitempty" yaml:"description"`
	Role            string   `json:"role,omitempty" yaml:"role" jsonschema:"description=Worker role. Unknown roles load as Custom"`
	Skills          List     `json:"skills,omitempty" yaml:"skills" jsonschema:"description=Skill tags"`
	Tools           List     `json:"tools,omitempty" yaml:"tools" jsonschema:"description=Allowed tool names or glob patterns"`
	MaxConcurrent   int      `json:"max_concurrent,omitempty" yaml:"max_concurrent" jsonschema:"minimum=0"`
	Model           string   `json:"model,omitempty" yaml:"model"`
	SuccessRate     *float64 `json:"success_rate,omitempty" yaml:"success_rate" jsonschema:"minimum=0,maximum=100"`
	AvgResponseTime Duration `json:"avg_response_time,omitempty" yaml:"avg_response_time"`
	MaxBudget       Amount   `json:"max_budget,omitempty" yaml:"max_budget" jsonschema:"description=Spend cap in USD. Zero is unlimited"`
	Command         List     `json:"command,omitempty" yaml:"command" jsonschema:"description=Argv for the process executor"`
	Instructions    string   `json:"instructions,omitempty" yaml:"instructions"`

	// Path is the file the entry was read from.
	Path string `json:"-" yaml:"-"`
}

// WorkerID returns the explicit ID, else a slug of the name, else the file
// name without extension.
func (e *Entry) WorkerID() string {
	if id := strings.TrimSpace(e.ID); id != "" {
		return id
	}
	if slug := slugify(e.Name); slug != "" {
		return slug
	}
	base := filepath.Base(e.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Definition converts the entry to a worker definition.
func (e *Entry) Definition() subagent.Definition {
	def := subagent.Definition{
		ID:            e.WorkerID(),
		Name:          strings.TrimSpace(e.Name),
		Role:          subagent.ParseRole(e.Role),
		Description:   e.Description,
		Skills:        []string(e.Skills),
		Tools:         []string(e.Tools),
		MaxConcurrent: e.MaxConcurrent,
		Instructions:  strings.TrimSpace(e.Instructions),
		Model:         e.Model,
		Command:       []string(e.Command),
		MaxBudget:     e.MaxBudget.Decimal(),
	}
	if e.SuccessRate != nil {
		v := *e.SuccessRate
		def.HistoricalSuccessRate = &v
	}
	if e.AvgResponseTime > 0 {
		v := time.Duration(e.AvgResponseTime)
		def.HistoricalResponseTime = &v
	}
	return def
}

// Schema returns the JSON schema of a catalog entry.
func Schema() ([]byte, error) {
	return schema.Document[Entry]("Worker catalog entry")
}

func slugify(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		case !dash && sb.Len() > 0:
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

// List accepts either a YAML sequence or a comma-separated string, the
// form agent front matter usually takes ("tools: Read, Grep").
type List []string

func (l *List) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*l = splitList(n.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := n.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a list or a comma-separated string", n.Line)
	}
}

func (List) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			{Type: "string"},
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Duration accepts a Go duration string ("1500ms", "2s") or a bare number
// of milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a duration", n.Line)
	}
	v := strings.TrimSpace(n.Value)
	if v == "" {
		*d = 0
		return nil
	}
	if parsed, err := time.ParseDuration(v); err == nil {
		*d = Duration(parsed)
		return nil
	}
	ms, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", n.Line, v)
	}
	*d = Duration(ms * float64(time.Millisecond))
	return nil
}

func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string", Description: "Go duration, e.g. 2s"},
			{Type: "number", Description: "milliseconds"},
		},
	}
}

// Amount is a decimal USD amount written as a number or a string.
type Amount struct {
	d decimal.Decimal
}

func (a *Amount) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected an amount", n.Line)
	}
	v := strings.TrimPrefix(strings.TrimSpace(n.Value), "$")
	if v == "" {
		a.d = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return fmt.Errorf("line %d: invalid amount %q", n.Line, n.Value)
	}
	if d.IsNegative() {
		return fmt.Errorf("line %d: amount must not be negative", n.Line)
	}
	a.d = d
	return nil
}

// Decimal returns the amount, zero when unset.
func (a Amount) Decimal() decimal.Decimal { return a.d }

func (Amount) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "number", Description: "USD"},
			{Type: "string", Description: "USD as a decimal string"},
		},
	}
}

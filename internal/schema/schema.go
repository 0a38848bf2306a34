// Package schema derives JSON Schemas from Go types: tool input schemas for
// the LLM executor and documents describing catalog entry files.
package schema

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
)

// reflector inlines every type so schemas carry no $ref indirection.
func reflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
}

// Generate returns the tool input schema for struct type T, derived from
// its json and jsonschema tags. It panics if T does not describe an object,
// which is a programming error.
func Generate[T any]() anthropic.ToolInputSchemaParam {
	var zero T
	data, err := json.Marshal(reflector().Reflect(&zero))
	if err != nil {
		panic("schema: " + err.Error())
	}

	var obj struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		panic("schema: " + err.Error())
	}
	return anthropic.ToolInputSchemaParam{
		Properties: obj.Properties,
		Required:   obj.Required,
	}
}

// Document returns the indented JSON Schema document for T under title.
func Document[T any](title string) (json.RawMessage, error) {
	var zero T
	s := reflector().Reflect(&zero)
	if title != "" {
		s.Title = title
	}
	return json.MarshalIndent(s, "", "  ")
}

package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	Success    bool     `json:"success" jsonschema:"required,description=Whether the task was achieved"`
	Summary    string   `json:"summary" jsonschema:"required,description=What was done"`
	ToolsUsed  []string `json:"tools_used,omitempty" jsonschema:"description=Tools invoked"`
	Confidence *float64 `json:"confidence,omitempty" jsonschema:"description=Self-assessed confidence 0-100"`
}

type entry struct {
	Name  string   `json:"name" yaml:"name" jsonschema:"required"`
	Role  string   `json:"role,omitempty" yaml:"role" jsonschema:"enum=QA,enum=DevOps"`
	Tools []string `json:"tools,omitempty" yaml:"tools"`
}

func TestGenerate_Properties(t *testing.T) {
	s := Generate[outcome]()

	props, ok := s.Properties.(map[string]any)
	require.True(t, ok, "Properties should be map[string]any")

	succ, ok := props["success"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boolean", succ["type"])
	assert.Equal(t, "Whether the task was achieved", succ["description"])

	tools, ok := props["tools_used"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "array", tools["type"])
	items, ok := tools["items"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", items["type"])

	_, hasConf := props["confidence"]
	assert.True(t, hasConf, "pointer fields should be present")

	assert.ElementsMatch(t, []string{"success", "summary"}, s.Required)
}

func TestGenerate_MarshalsAsObject(t *testing.T) {
	data, err := json.Marshal(Generate[outcome]())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "object", m["type"])
	assert.NotNil(t, m["properties"])
	assert.NotNil(t, m["required"])
}

func TestDocument(t *testing.T) {
	raw, err := Document[entry]("Worker catalog entry")
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "Worker catalog entry", m["title"])
	assert.Equal(t, "object", m["type"])

	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)
	role, ok := props["role"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"QA", "DevOps"}, role["enum"])
}

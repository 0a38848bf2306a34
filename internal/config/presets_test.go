package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPreset_Exists(t *testing.T) {
	content, ok := GetPreset(DefaultPreset)
	assert.True(t, ok)
	assert.Contains(t, content, "report_outcome")
}

func TestGetPreset_NotFound(t *testing.T) {
	content, ok := GetPreset("nonexistent")
	assert.False(t, ok)
	assert.Empty(t, content)
}

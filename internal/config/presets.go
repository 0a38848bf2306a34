package config

// Presets maps preset names to worker system prompts. The LLM executor uses
// them when a worker definition carries no instructions of its own.
var Presets = map[string]string{
	"worker": "You are a specialised worker in a team of agents. Complete the delegated task within your role and report the outcome with the report_outcome tool.",
	"reviewer": "You are a code reviewer in a team of agents. Review the delegated change, list concrete problems, and report the outcome with the report_outcome tool.",
}

// DefaultPreset is used when no preset is named.
const DefaultPreset = "worker"

// GetPreset returns the system prompt for the given preset name.
// Returns empty string and false if the preset is not found.
func GetPreset(name string) (string, bool) {
	content, ok := Presets[name]
	return content, ok
}

package subagent

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// AllowsTool reports whether the tool name is granted by any of the allowed
// entries. Entries are exact names or doublestar patterns.
func AllowsTool(allowed []string, tool string) bool {
	for _, pattern := range allowed {
		if pattern == tool {
			return true
		}
		if !strings.ContainsAny(pattern, "*?[{") {
			continue
		}
		ok, err := doublestar.Match(pattern, tool)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// MissingTools returns the required tools not granted by allowed, in the
// order they were required.
func MissingTools(allowed, required []string) []string {
	var missing []string
	for _, t := range required {
		if !AllowsTool(allowed, t) {
			missing = append(missing, t)
		}
	}
	return missing
}

// MatchedToolCount returns how many required tools are granted by allowed.
func MatchedToolCount(allowed, required []string) int {
	return len(required) - len(MissingTools(allowed, required))
}

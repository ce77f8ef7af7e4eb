// Package sanitize strips model-internal markup from generated text fragments.
package sanitize

import "regexp"

// Compiled once at package init. Clean itself is stateless and safe for
// concurrent use from any number of request goroutines.
var (
	controlRegex = regexp.MustCompile(`\[control_\d+\]`)
	unknownRegex = regexp.MustCompile(`<unk>`)
	toolRegex    = regexp.MustCompile(`\[TOOL_CALLS\]|\[TOOL_RESULTS\]`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// Clean removes control markers, unknown-token placeholders, and tool-call
// markers from a raw fragment. Whitespace is collapsed last so a marker that
// sat between two words does not leave a doubled space behind.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}

	text := controlRegex.ReplaceAllString(raw, "")
	text = unknownRegex.ReplaceAllString(text, "")
	text = toolRegex.ReplaceAllString(text, "")

	return multiSpace.ReplaceAllString(text, " ")
}

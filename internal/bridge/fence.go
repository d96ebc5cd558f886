package bridge

import (
	"regexp"
	"strings"
)

// fencePattern matches a fenced code block delimiter (``` or ~~~) at the start
// of a line, allowing 0-3 spaces of indentation, with an optional info string.
var fencePattern = regexp.MustCompile("(?m)^[ ]{0,3}(`{3,}|~{3,})[^\n]*$")

// StripFences returns the body of the first fenced code block in text, or
// the trimmed text when it holds no complete fence. A closing fence must use
// the same character and be at least as long as the opening one.
func StripFences(text string) string {
	matches := fencePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(text)
	}

	open := matches[0]
	openFence := text[open[2]:open[3]]
	for _, m := range matches[1:] {
		fence := text[m[2]:m[3]]
		// Closing fences carry no info string.
		if strings.TrimSpace(text[m[0]:m[1]]) != fence {
			continue
		}
		if fence[0] == openFence[0] && len(fence) >= len(openFence) {
			return strings.TrimSpace(text[open[1]:m[0]])
		}
	}

	// Unterminated fence: drop the opening line and keep the rest.
	return strings.TrimSpace(text[open[1]:])
}

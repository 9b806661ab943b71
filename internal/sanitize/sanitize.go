// Package sanitize turns free-form model output into the shape a task expects.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/gmsas95/docrefine/internal/task"
)

const (
	jsonFence    = "```json"
	genericFence = "```"
)

// summaryHeading matches a leading "Resumen:" label, optionally written as a
// markdown heading.
var summaryHeading = regexp.MustCompile(`^(?:#{1,6}[ \t]*)?Resumen:`)

// Sanitize cleans text according to the policy of t. It never fails: input
// that does not match the expected shape is returned trimmed but otherwise
// as-is.
func Sanitize(text string, t task.Task) string {
	if text == "" {
		return text
	}

	text = stripFences(text)

	switch t {
	case task.Summarize:
		text = stripSummaryHeading(text)
	case task.Structure:
		text = seekJSON(text)
	case task.Extract:
		text = seekJSON(text)
		text = cutAfterArray(text)
	case task.Clean:
	default:
	}

	return strings.TrimSpace(text)
}

func stripFences(text string) string {
	text = strings.ReplaceAll(text, jsonFence, "")
	return strings.ReplaceAll(text, genericFence, "")
}

// stripSummaryHeading removes every leading "Resumen:" label. Whitespace is
// trimmed before each match so labels after a blank line or a removed fence
// are caught on the first pass.
func stripSummaryHeading(text string) string {
	text = strings.TrimSpace(text)
	for {
		loc := summaryHeading.FindStringIndex(text)
		if loc == nil {
			return text
		}
		text = strings.TrimSpace(text[loc[1]:])
	}
}

// seekJSON drops any preamble before the first '[' or, failing that, the
// first '{'.
func seekJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "[") || strings.HasPrefix(text, "{") {
		return text
	}
	if i := strings.Index(text, "["); i >= 0 {
		return text[i:]
	}
	if i := strings.Index(text, "{"); i >= 0 {
		return text[i:]
	}
	return text
}

// cutAfterArray drops trailing prose after a top-level array. Objects are
// left alone.
func cutAfterArray(text string) string {
	if !strings.HasPrefix(text, "[") {
		return text
	}
	if i := strings.LastIndex(text, "]"); i >= 0 {
		return text[:i+1]
	}
	return text
}

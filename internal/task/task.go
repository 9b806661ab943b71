// Package task defines the closed set of refinement tasks.
package task

import "strings"

// Task selects the prompt and the sanitization policy for one refinement call.
type Task int

const (
	Clean Task = iota
	Structure
	Extract
	Summarize
)

// All lists every task in declaration order.
var All = []Task{Clean, Structure, Extract, Summarize}

// Parse maps a task name to a Task. Unknown names fall back to Clean; the
// second return value reports whether the name was recognized.
func Parse(name string) (Task, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "clean":
		return Clean, true
	case "structure":
		return Structure, true
	case "extract":
		return Extract, true
	case "summarize":
		return Summarize, true
	default:
		return Clean, false
	}
}

func (t Task) String() string {
	switch t {
	case Clean:
		return "clean"
	case Structure:
		return "structure"
	case Extract:
		return "extract"
	case Summarize:
		return "summarize"
	default:
		return "clean"
	}
}

// WantsJSON reports whether the task's output contract is JSON.
func (t Task) WantsJSON() bool {
	return t == Structure || t == Extract
}

// Names returns the string form of every task.
func Names() []string {
	names := make([]string, len(All))
	for i, t := range All {
		names[i] = t.String()
	}
	return names
}

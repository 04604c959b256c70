package runx

import (
	"context"
	"strings"
)

// Body is the executable part of a task.
type Body func(ctx context.Context, call *Call) error

// Task is a named, documented unit of work bound to a directory.
type Task struct {
	Name        string
	Description string
	// Dir is the absolute directory the body runs in.
	Dir       string
	Signature *Signature
	Source    SourceLocation
	Body      Body
	// Auto marks the task that runs when no task name is given.
	Auto bool
}

// Title is the name followed by the rendered signature.
func (t *Task) Title() string {
	sig := t.Signature.String()
	if sig == "" {
		return t.Name
	}
	return t.Name + " " + sig
}

// NormalizeName collapses whitespace in a compound task name.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func lookupKey(name string) string {
	return strings.ToLower(NormalizeName(name))
}

// Import is a request to load the Runfile of another directory.
type Import struct {
	Dir    string
	Source SourceLocation
}

package runx

import (
	"fmt"
	"strings"
)

// RunfileNotFoundError is returned when no Runfile exists in a directory or
// any of its ancestors.
type RunfileNotFoundError struct {
	Dir string
}

func (e *RunfileNotFoundError) Error() string {
	return fmt.Sprintf("no Runfile found in %s", e.Dir)
}

// MultipleRunfilesError is returned when a directory holds more than one
// recognized Runfile.
type MultipleRunfilesError struct {
	Dir   string
	Names []string
}

func (e *MultipleRunfilesError) Error() string {
	return fmt.Sprintf("multiple Runfiles found in %s: %s", e.Dir, strings.Join(e.Names, ", "))
}

// MalformedRunfileError reports a Runfile that could not be turned into tasks.
type MalformedRunfileError struct {
	Source SourceLocation
	Reason string
}

func (e *MalformedRunfileError) Error() string {
	return fmt.Sprintf("%s at %s", e.Reason, e.Source)
}

// ImportError wraps a failure that happened while loading an imported Runfile.
type ImportError struct {
	Source SourceLocation
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import from %s: %v", e.Source, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

type DuplicateTaskError struct {
	Name   string
	First  SourceLocation
	Second SourceLocation
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("duplicate task %s defined at %s and %s", e.Name, e.First, e.Second)
}

type NoTasksError struct {
	Files []string
}

func (e *NoTasksError) Error() string {
	return "no tasks defined"
}

type TaskNotFoundError struct {
	Tokens []string
}

func (e *TaskNotFoundError) Error() string {
	if len(e.Tokens) == 0 {
		return "task not found"
	}
	return fmt.Sprintf("task not found: %s", strings.Join(e.Tokens, " "))
}

type DirectoryNotFoundError struct {
	Task string
	Dir  string
}

func (e *DirectoryNotFoundError) Error() string {
	return fmt.Sprintf("directory not found: %s", e.Dir)
}

type UnknownOptionError struct {
	Name string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("invalid option --%s", e.Name)
}

type MissingArgumentsError struct {
	Names []string
}

func (e *MissingArgumentsError) Error() string {
	names := make([]string, len(e.Names))
	for i, name := range e.Names {
		names[i] = ParamName(name)
	}
	return fmt.Sprintf("missing required arguments: %s", strings.Join(names, " "))
}

type TooManyArgumentsError struct {
	Given int
	Max   int
}

func (e *TooManyArgumentsError) Error() string {
	return fmt.Sprintf("too many arguments: given %d, max %d", e.Given, e.Max)
}

type MissingOptionsError struct {
	Names []string
}

func (e *MissingOptionsError) Error() string {
	names := make([]string, len(e.Names))
	for i, name := range e.Names {
		names[i] = "--" + OptionName(name)
	}
	return fmt.Sprintf("missing required options: %s", strings.Join(names, " "))
}

type MultipleAutoTasksError struct {
	Tasks   []string
	Sources []SourceLocation
}

func (e *MultipleAutoTasksError) Error() string {
	parts := make([]string, len(e.Tasks))
	for i, name := range e.Tasks {
		parts[i] = fmt.Sprintf("%s (%s)", name, e.Sources[i])
	}
	return fmt.Sprintf("multiple auto tasks defined: %s", strings.Join(parts, ", "))
}

// TaskError attributes a failure to the task that was running.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("in task %s: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

type VersionError struct {
	Constraint string
	Version    string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("runx %s does not satisfy the required version %s", e.Version, e.Constraint)
}

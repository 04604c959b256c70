package runx

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Loader evaluates one Runfile format.
type Loader interface {
	// Filenames lists the Runfile names handled by this loader.
	Filenames() []string
	// Load evaluates the file at rf.Path and reports its declarations to rf.
	Load(ctx context.Context, rf *Runfile) error
}

// TaskSpec is everything a Runfile declares about a single task.
type TaskSpec struct {
	Name        string
	Description string
	Signature   *Signature
	Body        Body
	Auto        bool
	Source      SourceLocation
}

type pendingDescription struct {
	text   string
	source SourceLocation
}

// Runfile collects the tasks and imports declared by a single file.
type Runfile struct {
	Path string
	Dir  string

	tasks   []*Task
	imports []Import
	pending *pendingDescription
}

func NewRunfile(path string) (*Runfile, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", path)
	}

	return &Runfile{
		Path: path,
		Dir:  filepath.Dir(path),
	}, nil
}

// Describe sets the description for the next task.
func (r *Runfile) Describe(text string, source SourceLocation) error {
	if r.pending != nil {
		return &MalformedRunfileError{Source: r.pending.source, Reason: "task description without a task"}
	}

	r.pending = &pendingDescription{text: text, source: source}
	return nil
}

// Define appends a task bound to the Runfile's directory. A description set
// by Describe is consumed.
func (r *Runfile) Define(spec TaskSpec) (*Task, error) {
	desc := spec.Description
	if r.pending != nil {
		if desc != "" {
			return nil, &MalformedRunfileError{Source: r.pending.source, Reason: "task description without a task"}
		}
		desc = r.pending.text
		r.pending = nil
	}

	name := NormalizeName(spec.Name)
	if name == "" {
		return nil, &MalformedRunfileError{Source: spec.Source, Reason: "task declared without a name"}
	}
	if spec.Body == nil {
		return nil, &MalformedRunfileError{Source: spec.Source, Reason: "task " + name + " declared without a body"}
	}

	sig := spec.Signature
	if sig == nil {
		sig = NewSignature()
	}
	if err := sig.Validate(); err != nil {
		return nil, &MalformedRunfileError{Source: spec.Source, Reason: "task " + name + ": " + err.Error()}
	}

	task := &Task{
		Name:        name,
		Description: desc,
		Dir:         r.Dir,
		Signature:   sig,
		Source:      spec.Source,
		Body:        spec.Body,
		Auto:        spec.Auto,
	}
	r.tasks = append(r.tasks, task)
	return task, nil
}

// Import requests the Runfile in dir to be loaded as well. Relative
// directories are resolved against the Runfile's directory.
func (r *Runfile) Import(dir string, source SourceLocation) {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.Dir, dir)
	}

	r.imports = append(r.imports, Import{Dir: filepath.Clean(dir), Source: source})
}

// Finish is called once the whole file was evaluated.
func (r *Runfile) Finish() error {
	if r.pending != nil {
		return &MalformedRunfileError{Source: r.pending.source, Reason: "task description without a task"}
	}
	return nil
}

func (r *Runfile) Tasks() []*Task {
	return r.tasks
}

func (r *Runfile) Imports() []Import {
	return r.imports
}

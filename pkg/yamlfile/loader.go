// Package yamlfile loads declarative Runfile.yml files whose task bodies are
// shell scripts.
package yamlfile

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/schmich/runx/pkg/runx"
	"github.com/schmich/runx/pkg/shell"
)

// Loader evaluates Runfile.yml and Runfile.yaml files.
type Loader struct{}

func New() *Loader {
	return &Loader{}
}

func (l *Loader) Filenames() []string {
	return []string{"Runfile.yml", "Runfile.yaml"}
}

type taskDef struct {
	Desc            string            `yaml:"desc"`
	Help            string            `yaml:"help"`
	Run             string            `yaml:"run"`
	Command         string            `yaml:"command"`
	Args            []string          `yaml:"args"`
	Optional        []string          `yaml:"optional"`
	Rest            string            `yaml:"rest"`
	Options         []string          `yaml:"options"`
	RequiredOptions []string          `yaml:"required_options"`
	RestOptions     bool              `yaml:"rest_options"`
	Auto            bool              `yaml:"auto"`
	Env             map[string]string `yaml:"env"`
}

func (d *taskDef) description() string {
	if d.Desc != "" {
		return d.Desc
	}
	return d.Help
}

func (d *taskDef) script() string {
	if d.Run != "" {
		return d.Run
	}
	return d.Command
}

func (d *taskDef) signature() *runx.Signature {
	sig := runx.NewSignature().
		Arg(d.Args...).
		OptionalArg(d.Optional...).
		Key(d.Options...).
		RequiredKey(d.RequiredOptions...)
	if d.Rest != "" {
		sig.RestArg(d.Rest)
	}
	if d.RestOptions {
		sig.AcceptAnyKeys()
	}
	return sig
}

type fileLoader struct {
	rf *runx.Runfile
}

func (l *Loader) Load(ctx context.Context, rf *runx.Runfile) error {
	content, err := os.ReadFile(rf.Path)
	if err != nil {
		return eris.Wrapf(err, "failed to read %s", rf.Path)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return &runx.MalformedRunfileError{Source: runx.SourceLocation{File: rf.Path}, Reason: err.Error()}
	}

	fl := &fileLoader{rf: rf}
	if len(doc.Content) == 0 {
		return nil
	}
	return fl.document(doc.Content[0])
}

func (fl *fileLoader) source(node *yaml.Node) runx.SourceLocation {
	return runx.SourceLocation{File: fl.rf.Path, Line: node.Line}
}

func (fl *fileLoader) malformed(node *yaml.Node, reason string, args ...interface{}) error {
	return &runx.MalformedRunfileError{Source: fl.source(node), Reason: fmt.Sprintf(reason, args...)}
}

func (fl *fileLoader) document(root *yaml.Node) error {
	if root.Kind != yaml.MappingNode {
		return fl.malformed(root, "expected a mapping at the top level")
	}

	var requires, imports, tasks *yaml.Node
	for idx := 0; idx+1 < len(root.Content); idx += 2 {
		key, value := root.Content[idx], root.Content[idx+1]
		switch key.Value {
		case "requires":
			requires = value
		case "import":
			imports = value
		case "tasks":
			tasks = value
		}
	}

	// a document without any of the known keys is a bare task tree
	if requires == nil && imports == nil && tasks == nil {
		tasks = root
	}

	if requires != nil {
		if requires.Kind != yaml.ScalarNode {
			return fl.malformed(requires, "requires must be a version constraint")
		}
		if err := runx.CheckVersion(requires.Value); err != nil {
			return err
		}
	}

	if imports != nil {
		if err := fl.imports(imports); err != nil {
			return err
		}
	}

	if tasks != nil {
		if tasks.Kind != yaml.MappingNode {
			return fl.malformed(tasks, "tasks must be a mapping")
		}
		return fl.group(nil, tasks)
	}
	return nil
}

func (fl *fileLoader) imports(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		fl.rf.Import(node.Value, fl.source(node))
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fl.malformed(item, "import entries must be directories")
			}
			fl.rf.Import(item.Value, fl.source(item))
		}
	default:
		return fl.malformed(node, "import must be a directory or a list of directories")
	}
	return nil
}

func isTask(node *yaml.Node) bool {
	for idx := 0; idx+1 < len(node.Content); idx += 2 {
		switch node.Content[idx].Value {
		case "run", "command":
			// a mapping here is a child task named run or command
			if node.Content[idx+1].Kind == yaml.ScalarNode {
				return true
			}
		}
	}
	return false
}

// group walks a mapping of tasks. Nested mappings without a script are
// groups whose key prefixes the names of their children.
func (fl *fileLoader) group(prefix []string, node *yaml.Node) error {
	for idx := 0; idx+1 < len(node.Content); idx += 2 {
		key, value := node.Content[idx], node.Content[idx+1]
		path := append(append([]string{}, prefix...), key.Value)

		if value.Kind != yaml.MappingNode {
			return fl.malformed(value, "task %s must be a mapping", strings.Join(path, " "))
		}

		if !isTask(value) {
			if err := fl.group(path, value); err != nil {
				return err
			}
			continue
		}

		var def taskDef
		if err := value.Decode(&def); err != nil {
			return fl.malformed(value, "invalid task %s: %v", strings.Join(path, " "), err)
		}

		name := strings.Join(path, " ")
		_, err := fl.rf.Define(runx.TaskSpec{
			Name:        name,
			Description: def.description(),
			Signature:   def.signature(),
			Body:        makeBody(fl.source(key), def),
			Auto:        def.Auto,
			Source:      fl.source(key),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// makeBody runs the task script with positional values as $1..$n and keyed
// values as OPT_<NAME> variables.
func makeBody(source runx.SourceLocation, def taskDef) runx.Body {
	script := def.script()

	return func(ctx context.Context, call *runx.Call) error {
		env := make(map[string]string, len(def.Env)+len(call.Keyed))
		for name, value := range def.Env {
			env[name] = value
		}
		for _, key := range call.Keys() {
			env["OPT_"+runx.ParamName(key)] = call.String(key)
		}

		return shell.Run(ctx, script, shell.Options{
			Name: source.String(),
			Env:  shell.Environ(ctx, env),
			Args: call.Positional,
		})
	}
}

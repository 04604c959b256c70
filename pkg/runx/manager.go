package runx

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Manager owns the task registry built from a root Runfile and its imports.
type Manager struct {
	loaders map[string]Loader
	names   []string

	seen      map[string]bool
	files     []string
	perFile   map[string][]*Task
	registry  map[string]*Task
	auto      *Task
	commonDir string
}

// NewManager creates a manager that recognizes the Runfile names of the
// given loaders. Earlier loaders win if two claim the same name.
func NewManager(loaders ...Loader) *Manager {
	m := &Manager{
		loaders: make(map[string]Loader),
		seen:    make(map[string]bool),
		perFile: make(map[string][]*Task),
	}

	for _, loader := range loaders {
		for _, name := range loader.Filenames() {
			if _, ok := m.loaders[name]; ok {
				continue
			}
			m.loaders[name] = loader
			m.names = append(m.names, name)
		}
	}

	return m
}

// Filenames lists every recognized Runfile name.
func (m *Manager) Filenames() []string {
	return append([]string{}, m.names...)
}

// Find locates the root Runfile for dir.
func (m *Manager) Find(dir string) (string, error) {
	return FindRunfile(dir, m.names)
}

// Load evaluates the Runfile at path and every Runfile it imports, then
// builds the registry.
func (m *Manager) Load(ctx context.Context, path string) error {
	if m.registry != nil {
		return eris.New("tasks are already loaded")
	}

	imports, err := m.loadFile(ctx, path)
	if err != nil {
		return err
	}

	queue := enqueue(nil, nil, imports)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		runfile, ok, err := RunfileIn(next.Dir, m.names)
		if err == nil && !ok {
			err = &RunfileNotFoundError{Dir: next.Dir}
		}
		if err == nil {
			imports, err = m.loadFile(ctx, runfile)
		}
		if err != nil {
			for imp := next; imp != nil; imp = imp.parent {
				err = &ImportError{Source: imp.Source, Err: err}
			}
			return err
		}

		queue = enqueue(queue, next, imports)
	}

	return m.merge()
}

// pendingImport remembers which import led to an import so that failures
// report the whole chain.
type pendingImport struct {
	Import
	parent *pendingImport
}

func enqueue(queue []*pendingImport, parent *pendingImport, imports []Import) []*pendingImport {
	for _, imp := range imports {
		queue = append(queue, &pendingImport{Import: imp, parent: parent})
	}
	return queue
}

func (m *Manager) loadFile(ctx context.Context, path string) ([]Import, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", path)
	}

	if m.seen[path] {
		return nil, nil
	}
	m.seen[path] = true

	loader, ok := m.loaders[filepath.Base(path)]
	if !ok {
		return nil, eris.Errorf("%s is not a recognized Runfile", path)
	}

	rf, err := NewRunfile(path)
	if err != nil {
		return nil, err
	}

	Log(ctx).Debug().Str("file", path).Msg("loading Runfile")

	leave, err := enterDir(ctx, rf.Dir)
	if err != nil {
		return nil, err
	}
	defer leave()

	if err := loader.Load(ctx, rf); err != nil {
		return nil, err
	}
	if err := rf.Finish(); err != nil {
		return nil, err
	}

	m.files = append(m.files, path)
	m.perFile[path] = rf.Tasks()
	return rf.Imports(), nil
}

func (m *Manager) merge() error {
	registry := make(map[string]*Task)
	autos := []*Task{}

	for _, file := range m.files {
		for _, task := range m.perFile[file] {
			key := lookupKey(task.Name)
			if prev, ok := registry[key]; ok {
				return &DuplicateTaskError{Name: task.Name, First: prev.Source, Second: task.Source}
			}

			registry[key] = task
			if task.Auto {
				autos = append(autos, task)
			}
		}
	}

	if len(registry) == 0 {
		return &NoTasksError{Files: append([]string{}, m.files...)}
	}

	if len(autos) > 1 {
		err := &MultipleAutoTasksError{}
		for _, task := range autos {
			err.Tasks = append(err.Tasks, task.Name)
			err.Sources = append(err.Sources, task.Source)
		}
		return err
	}
	if len(autos) == 1 {
		m.auto = autos[0]
	}

	dirs := make([]string, len(m.files))
	for idx, file := range m.files {
		dirs[idx] = filepath.Dir(file)
	}
	m.commonDir = commonDir(dirs)
	m.registry = registry
	return nil
}

// Files returns the loaded Runfiles in load order.
func (m *Manager) Files() []string {
	return append([]string{}, m.files...)
}

// FileTasks returns the tasks declared in the given file, in declaration order.
func (m *Manager) FileTasks(file string) []*Task {
	return m.perFile[file]
}

// Tasks returns every registered task in load order.
func (m *Manager) Tasks() []*Task {
	tasks := []*Task{}
	for _, file := range m.files {
		tasks = append(tasks, m.perFile[file]...)
	}
	return tasks
}

// Auto returns the task marked to run without a name, if any.
func (m *Manager) Auto() *Task {
	return m.auto
}

// CommonDir is the deepest directory containing every loaded Runfile.
func (m *Manager) CommonDir() string {
	return m.commonDir
}

// Lookup finds a task by its (case-insensitive) name.
func (m *Manager) Lookup(name string) (*Task, bool) {
	task, ok := m.registry[lookupKey(name)]
	return task, ok
}

// Resolve finds the task with the longest name matching the leading tokens.
// The remaining tokens are returned as the task's arguments. Blank tokens
// never belong to a task name.
func (m *Manager) Resolve(tokens []string) (*Task, []string, error) {
	named := 0
	for named < len(tokens) && strings.TrimSpace(tokens[named]) != "" {
		named++
	}

	for n := named; n > 0; n-- {
		key := strings.ToLower(strings.Join(tokens[:n], " "))
		if task, ok := m.registry[key]; ok {
			return task, append([]string{}, tokens[n:]...), nil
		}
	}

	return nil, nil, &TaskNotFoundError{Tokens: tokens}
}

// Run maps args onto the task's signature and calls its body inside the
// task directory.
func (m *Manager) Run(ctx context.Context, task *Task, args []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(task.Dir)
	if err != nil || !info.IsDir() {
		return &TaskError{Task: task.Name, Err: &DirectoryNotFoundError{Task: task.Name, Dir: task.Dir}}
	}

	call, err := MapArgs(task.Signature, args)
	if err != nil {
		return &TaskError{Task: task.Name, Err: err}
	}

	leave, err := enterDir(ctx, task.Dir)
	if err != nil {
		return &TaskError{Task: task.Name, Err: err}
	}
	defer leave()

	logger := Log(ctx).With().Str("task", task.Name).Logger()
	logger.Info().Str("dir", task.Dir).Msgf("in %s", task.Dir)

	ctx = WithLogger(ctx, &logger)
	ctx = WithDispatcher(ctx, m)
	if err := task.Body(ctx, call); err != nil {
		return &TaskError{Task: task.Name, Err: err}
	}
	return nil
}

// Dispatch resolves tokens to a task and runs it.
func (m *Manager) Dispatch(ctx context.Context, tokens []string) error {
	task, args, err := m.Resolve(tokens)
	if err != nil {
		return err
	}

	return m.Run(ctx, task, args)
}

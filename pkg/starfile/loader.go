package starfile

import (
	"context"
	"os"
	"runtime"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/schmich/runx/pkg/runx"
)

// Filename is the Runfile name handled by this package.
const Filename = "Runfile.star"

type scriptCtx struct {
	ctx       context.Context
	rf        *runx.Runfile
	filename  string
	dir       string
	yamlCache map[string]interface{}
	// failure keeps the original error of a failed builtin since Starlark
	// only hands back its message.
	failure error
}

func getCtx(thread *starlark.Thread) *scriptCtx {
	return thread.Local("scriptCtx").(*scriptCtx)
}

// fail records err as the reason the script stopped and returns it.
func fail(thread *starlark.Thread, err error) error {
	getCtx(thread).failure = err
	return err
}

// Loader evaluates Runfile.star files.
type Loader struct{}

func New() *Loader {
	return &Loader{}
}

func (l *Loader) Filenames() []string {
	return []string{Filename}
}

var builtins = starlark.StringDict{
	"OS":              starlark.String(runtime.GOOS),
	"ARCH":            starlark.String(runtime.GOARCH),
	"task":            starlark.NewBuiltin("task", starTask),
	"describe":        starlark.NewBuiltin("describe", starDescribe),
	"import_dir":      starlark.NewBuiltin("import_dir", starImportDir),
	"require_version": starlark.NewBuiltin("require_version", starRequireVersion),
	"sh":              starlark.NewBuiltin("sh", starSh),
	"run":             starlark.NewBuiltin("run", starRun),
	"getenv":          starlark.NewBuiltin("getenv", starGetenv),
	"setenv":          starlark.NewBuiltin("setenv", starSetenv),
	"read_yaml":       starlark.NewBuiltin("read_yaml", starReadYaml),
	"read_json":       starlark.NewBuiltin("read_json", starReadJSON),
	"isdir":           starlark.NewBuiltin("isdir", starIsdir),
	"isfile":          starlark.NewBuiltin("isfile", starIsfile),
	"resolve_path":    starlark.NewBuiltin("resolve_path", starResolvePath),
	"info":            starlark.NewBuiltin("info", starInfo),
	"warn":            starlark.NewBuiltin("warn", starWarn),
}

func newThread(sctx *scriptCtx, name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(thread *starlark.Thread, msg string) {
			runx.Log(getCtx(thread).ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	thread.SetLocal("scriptCtx", sctx)
	return thread
}

// Load executes the script at rf.Path. Top-level statements run once; task
// bodies are kept as callables and run later through the registry.
func (l *Loader) Load(ctx context.Context, rf *runx.Runfile) error {
	script, err := os.ReadFile(rf.Path)
	if err != nil {
		return eris.Wrapf(err, "failed to read %s", rf.Path)
	}

	sctx := &scriptCtx{
		ctx:       ctx,
		rf:        rf,
		filename:  rf.Path,
		dir:       rf.Dir,
		yamlCache: make(map[string]interface{}),
	}
	thread := newThread(sctx, "main")

	stop := context.AfterFunc(ctx, func() {
		thread.Cancel("interrupted")
	})
	defer stop()

	_, err = starlark.ExecFile(thread, rf.Path, script, builtins)

	// the Runfile is complete, any later task() call is an error
	sctx.rf = nil

	if err != nil {
		return scriptError(sctx, err)
	}
	return nil
}

func scriptError(sctx *scriptCtx, err error) error {
	if sctx.failure != nil {
		return sctx.failure
	}
	if cerr := sctx.ctx.Err(); cerr != nil {
		return cerr
	}

	if evalError, ok := err.(*starlark.EvalError); ok {
		return eris.Errorf("failed to execute %s:\n%s", sctx.filename, evalError.Backtrace())
	}
	return eris.Wrapf(err, "failed to execute %s", sctx.filename)
}

// Package shell runs task bodies written as POSIX shell scripts on the
// embedded mvdan.cc/sh interpreter.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/schmich/runx/pkg/runx"
)

// Options configures a single script run.
type Options struct {
	// Name is used in parse errors, usually "file:line".
	Name string
	Dir  string
	// Env replaces the process environment when not nil.
	Env []string
	// Args become the positional parameters $1..$n.
	Args []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ExitError reports a script that exited with a non-zero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) ExitCode() int {
	return e.Code
}

// Run executes script with errexit enabled.
func Run(ctx context.Context, script string, opts Options) error {
	parser := syntax.NewParser()
	file, err := parser.Parse(strings.NewReader(script), opts.Name)
	if err != nil {
		return eris.Wrap(err, "failed to parse shell script")
	}

	if opts.Dir == "" {
		opts.Dir, err = os.Getwd()
		if err != nil {
			return eris.Wrap(err, "failed to determine the working directory")
		}
	}

	env := opts.Env
	if env == nil {
		env = Environ(ctx, nil)
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	runner, err := interp.New(
		interp.Dir(opts.Dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.ExecHandler(execHandler),
		interp.OpenHandler(openHandler),
		interp.StdIO(opts.Stdin, stdout, stderr),
		interp.Params(append([]string{"-e", "--"}, opts.Args...)...),
	)
	if err != nil {
		return eris.Wrap(err, "failed to initialize runner")
	}

	printer := syntax.NewPrinter(syntax.Minify(true))
	strBuffer := strings.Builder{}

	for _, stmt := range file.Stmts {
		strBuffer.Reset()
		if err := printer.Print(&strBuffer, stmt); err == nil {
			runx.Log(ctx).Debug().Bool("command", true).Msg(strBuffer.String())
		}

		if err := runner.Run(ctx, stmt); err != nil {
			if status, ok := interp.IsExitStatus(err); ok {
				if status == 0 {
					return nil
				}
				return &ExitError{Code: int(status)}
			}
			return err
		}

		if runner.Exited() {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}

// Output runs script like Run and returns what it wrote to stdout.
func Output(ctx context.Context, script string, opts Options) (string, error) {
	var buf bytes.Buffer
	opts.Stdout = &buf

	err := Run(ctx, script, opts)
	return buf.String(), err
}

// Environ returns the process environment with the run id and extra
// variables applied on top.
func Environ(ctx context.Context, extra map[string]string) []string {
	overrides := make(map[string]string, len(extra)+1)
	if id := runx.RunID(ctx); id != "" {
		overrides[runx.RunIDEnv] = id
	}
	for name, value := range extra {
		overrides[name] = value
	}

	osEnv := os.Environ()
	env := make([]string, 0, len(osEnv)+len(overrides))
	for _, item := range osEnv {
		name := strings.SplitN(item, "=", 2)[0]
		if _, ok := overrides[name]; !ok {
			env = append(env, item)
		}
	}

	for name, value := range overrides {
		env = append(env, name+"="+value)
	}
	return env
}

var defaultExecHandler = interp.DefaultExecHandler(2 * time.Second)

func execHandler(ctx context.Context, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "runx":
			if d, ok := runx.DispatcherFromContext(ctx); ok {
				return d.Dispatch(ctx, args[1:])
			}
		case "mv", "rm", "mkdir":
			// always use our own implementation so that scripts behave the
			// same on every platform
			return runHelper(ctx, args)
		}
	}

	return defaultExecHandler(ctx, args)
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

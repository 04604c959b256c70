package starfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"

	"github.com/schmich/runx/pkg/runx"
	"github.com/schmich/runx/pkg/shell"
)

func callerLocation(thread *starlark.Thread) runx.SourceLocation {
	pos := thread.CallFrame(1).Pos
	return runx.SourceLocation{File: pos.Filename(), Line: int(pos.Line)}
}

func loadingRunfile(thread *starlark.Thread, fn *starlark.Builtin) (*runx.Runfile, error) {
	rf := getCtx(thread).rf
	if rf == nil {
		return nil, eris.Errorf("%s() can only be called while the Runfile is loading", fn.Name())
	}
	return rf, nil
}

func info(thread *starlark.Thread, msg string, args ...interface{}) {
	ctx := getCtx(thread)
	source := callerLocation(thread)

	runx.Log(ctx.ctx).Info().
		Msgf("%s: %s", source, fmt.Sprintf(msg, args...))
}

func warn(thread *starlark.Thread, msg string, args ...interface{}) {
	ctx := getCtx(thread)
	source := callerLocation(thread)

	runx.Log(ctx.ctx).Warn().
		Msgf("%s: %s", source, fmt.Sprintf(msg, args...))
}

// * Declarations

func starTask(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var body starlark.Callable
	var desc string
	var required, optional, options, requiredOptions *starlark.List
	var rest string
	var restOptions, auto bool

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "body", &body, "desc?", &desc,
		"args?", &required, "optional?", &optional, "rest?", &rest, "options?", &options,
		"required_options?", &requiredOptions, "rest_options?", &restOptions, "auto?", &auto)
	if err != nil {
		return nil, err
	}

	rf, err := loadingRunfile(thread, fn)
	if err != nil {
		return nil, err
	}

	sig := runx.NewSignature()
	for _, item := range []struct {
		list  *starlark.List
		field string
		add   func(names ...string) *runx.Signature
	}{
		{required, "args", sig.Arg},
		{optional, "optional", sig.OptionalArg},
		{options, "options", sig.Key},
		{requiredOptions, "required_options", sig.RequiredKey},
	} {
		names, err := starlarkIterable2stringSlice(item.list, item.field)
		if err != nil {
			return nil, err
		}
		item.add(names...)
	}
	if rest != "" {
		sig.RestArg(rest)
	}
	if restOptions {
		sig.AcceptAnyKeys()
	}

	sctx := getCtx(thread)
	_, err = rf.Define(runx.TaskSpec{
		Name:        name,
		Description: desc,
		Signature:   sig,
		Body:        makeBody(sctx, name, body),
		Auto:        auto,
		Source:      callerLocation(thread),
	})
	if err != nil {
		return nil, fail(thread, err)
	}

	return starlark.None, nil
}

func starDescribe(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &text)
	if err != nil {
		return nil, err
	}

	rf, err := loadingRunfile(thread, fn)
	if err != nil {
		return nil, err
	}

	if err := rf.Describe(text, callerLocation(thread)); err != nil {
		return nil, fail(thread, err)
	}

	return &describeBuilder{text: text}, nil
}

func starImportDir(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var dir string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &dir)
	if err != nil {
		return nil, err
	}

	rf, err := loadingRunfile(thread, fn)
	if err != nil {
		return nil, err
	}

	rf.Import(dir, callerLocation(thread))
	return starlark.None, nil
}

func starRequireVersion(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var constraint string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &constraint)
	if err != nil {
		return nil, err
	}

	if err := runx.CheckVersion(constraint); err != nil {
		return nil, fail(thread, err)
	}
	return starlark.None, nil
}

// * Execution

func starSh(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var script string
	var capture bool
	var env *starlark.Dict

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "script", &script, "capture?", &capture, "env?", &env)
	if err != nil {
		return nil, err
	}

	sctx := getCtx(thread)
	extra, err := starlarkDict2stringMap(env, "env")
	if err != nil {
		return nil, err
	}

	source := callerLocation(thread)
	opts := shell.Options{
		Name: source.String(),
		Env:  shell.Environ(sctx.ctx, extra),
	}

	if capture {
		out, err := shell.Output(sctx.ctx, script, opts)
		if err != nil {
			return nil, fail(thread, err)
		}
		return starlark.String(out), nil
	}

	if err := shell.Run(sctx.ctx, script, opts); err != nil {
		return nil, fail(thread, err)
	}
	return starlark.None, nil
}

func starRun(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, eris.Errorf("%s: unexpected keyword arguments, pass options as strings", fn.Name())
	}

	tokens, err := starlarkIterable2stringSlice(args, "arguments")
	if err != nil {
		return nil, err
	}

	sctx := getCtx(thread)
	d, ok := runx.DispatcherFromContext(sctx.ctx)
	if !ok {
		return nil, eris.Errorf("%s() can only be called from a task body", fn.Name())
	}

	if err := d.Dispatch(sctx.ctx, tokens); err != nil {
		return nil, fail(thread, err)
	}
	return starlark.None, nil
}

// * Environment and files

func starGetenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string
	var defaultValue string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &key, "default?", &defaultValue)
	if err != nil {
		return nil, err
	}

	value, ok := os.LookupEnv(key)
	if !ok {
		value = defaultValue
	}
	return starlark.String(value), nil
}

func starSetenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string
	var value string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &key, &value)
	if err != nil {
		return nil, err
	}

	if err := os.Setenv(key, value); err != nil {
		return nil, eris.Wrapf(err, "failed to set %s", key)
	}
	return starlark.None, nil
}

func starReadYaml(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var yamlFile string
	var yamlKey string
	var defaultValue starlark.Value = starlark.None

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &yamlFile, &yamlKey, &defaultValue)
	if err != nil {
		return nil, err
	}

	sctx := getCtx(thread)
	yamlFile = normalizePath(sctx, yamlFile)

	doc, loaded := sctx.yamlCache[yamlFile]
	if !loaded {
		content, err := os.ReadFile(yamlFile)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to open file %s", yamlFile)
		}

		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, eris.Wrapf(err, "failed to parse file %s", yamlFile)
		}
		sctx.yamlCache[yamlFile] = doc
	}

	value := doc
	if yamlKey != "" {
		for _, key := range strings.Split(yamlKey, ".") {
			switch node := value.(type) {
			case map[string]interface{}:
				value = node[key]
			case []interface{}:
				idx, err := strconv.Atoi(key)
				if err != nil || idx < 0 || idx >= len(node) {
					value = nil
				} else {
					value = node[idx]
				}
			default:
				value = nil
			}

			if value == nil {
				return defaultValue, nil
			}
		}
	}

	if value == nil {
		return defaultValue, nil
	}
	return interfaceToStarlark(value)
}

func starReadJSON(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var jsonFile string
	var path string
	var defaultValue starlark.Value = starlark.None

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &jsonFile, &path, &defaultValue)
	if err != nil {
		return nil, err
	}

	jsonFile = normalizePath(getCtx(thread), jsonFile)
	content, err := os.ReadFile(jsonFile)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open file %s", jsonFile)
	}

	if !gjson.ValidBytes(content) {
		return nil, eris.Errorf("%s does not contain valid JSON", jsonFile)
	}

	result := gjson.GetBytes(content, path)
	if !result.Exists() {
		return defaultValue, nil
	}
	return interfaceToStarlark(result.Value())
}

func starIsdir(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var dirPath string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &dirPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(normalizePath(getCtx(thread), dirPath))
	return starlark.Bool(err == nil && info.IsDir()), nil
}

func starIsfile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var filePath string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &filePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(normalizePath(getCtx(thread), filePath))
	return starlark.Bool(err == nil && info.Mode().IsRegular()), nil
}

func starResolvePath(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, eris.Errorf("%s: unexpected keyword arguments", fn.Name())
	}
	if len(args) < 1 {
		return nil, eris.Errorf("%s: expects at least one argument", fn.Name())
	}

	parts, err := starlarkIterable2stringSlice(args, "arguments")
	if err != nil {
		return nil, err
	}

	return starlark.String(normalizePath(getCtx(thread), parts...)), nil
}

// * Logging

func starInfo(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	info(thread, "%s", message)
	return starlark.None, nil
}

func starWarn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	warn(thread, "%s", message)
	return starlark.None, nil
}

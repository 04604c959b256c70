package luafile

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	lua "github.com/yuin/gopher-lua"

	"github.com/schmich/runx/pkg/runx"
	"github.com/schmich/runx/pkg/shell"
)

func (s *script) install() {
	for name, fn := range map[string]lua.LGFunction{
		"task":            s.luaTask,
		"describe":        s.luaDescribe,
		"import":          s.luaImport,
		"require_version": s.luaRequireVersion,
		"sh":              s.luaSh,
		"run":             s.luaRun,
		"getenv":          s.luaGetenv,
		"setenv":          s.luaSetenv,
		"info":            s.luaInfo,
		"warn":            s.luaWarn,
		"print":           s.luaInfo,
	} {
		s.L.SetGlobal(name, s.L.NewFunction(fn))
	}
}

// * Declarations

// luaTask accepts either task(name, fn [, spec]) or task{name = ..., run = ...}.
func (s *script) luaTask(L *lua.LState) int {
	rf, ok := s.loading()
	if !ok {
		return 0
	}

	var name string
	var fn *lua.LFunction
	var spec *lua.LTable

	if tbl, isTable := L.Get(1).(*lua.LTable); isTable {
		spec = tbl
		name = lua.LVAsString(spec.RawGetString("name"))
		fn, _ = spec.RawGetString("run").(*lua.LFunction)
		if fn == nil {
			L.ArgError(1, "task table needs a run function")
			return 0
		}
	} else {
		name = L.CheckString(1)
		fn = L.CheckFunction(2)
		spec = L.OptTable(3, L.NewTable())
	}

	sig := runx.NewSignature()
	for _, item := range []struct {
		field string
		add   func(names ...string) *runx.Signature
	}{
		{"args", sig.Arg},
		{"optional", sig.OptionalArg},
		{"options", sig.Key},
		{"required_options", sig.RequiredKey},
	} {
		names, err := stringList(spec.RawGetString(item.field), item.field)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		item.add(names...)
	}
	if rest := lua.LVAsString(spec.RawGetString("rest")); rest != "" {
		sig.RestArg(rest)
	}
	if lua.LVAsBool(spec.RawGetString("rest_options")) {
		sig.AcceptAnyKeys()
	}

	_, err := rf.Define(runx.TaskSpec{
		Name:        name,
		Description: lua.LVAsString(spec.RawGetString("desc")),
		Signature:   sig,
		Body:        s.body(fn, sig),
		Auto:        lua.LVAsBool(spec.RawGetString("auto")),
		Source:      s.caller(),
	})
	if err != nil {
		return s.fail(err)
	}
	return 0
}

func (s *script) luaDescribe(L *lua.LState) int {
	text := L.CheckString(1)

	rf, ok := s.loading()
	if !ok {
		return 0
	}
	if err := rf.Describe(text, s.caller()); err != nil {
		return s.fail(err)
	}
	return 0
}

func (s *script) luaImport(L *lua.LState) int {
	dir := L.CheckString(1)

	rf, ok := s.loading()
	if !ok {
		return 0
	}
	rf.Import(dir, s.caller())
	return 0
}

func (s *script) luaRequireVersion(L *lua.LState) int {
	if err := runx.CheckVersion(L.CheckString(1)); err != nil {
		return s.fail(err)
	}
	return 0
}

// * Execution

func (s *script) luaSh(L *lua.LState) int {
	script := L.CheckString(1)
	capture := L.OptBool(2, false)

	extra := make(map[string]string)
	if env := L.OptTable(3, nil); env != nil {
		env.ForEach(func(key, value lua.LValue) {
			extra[key.String()] = value.String()
		})
	}

	source := s.caller()
	opts := shell.Options{
		Name: source.String(),
		Env:  shell.Environ(s.ctx, extra),
	}

	if capture {
		out, err := shell.Output(s.ctx, script, opts)
		if err != nil {
			return s.fail(err)
		}
		L.Push(lua.LString(out))
		return 1
	}

	if err := shell.Run(s.ctx, script, opts); err != nil {
		return s.fail(err)
	}
	return 0
}

func (s *script) luaRun(L *lua.LState) int {
	tokens := make([]string, L.GetTop())
	for idx := range tokens {
		tokens[idx] = L.CheckString(idx + 1)
	}

	d, ok := runx.DispatcherFromContext(s.ctx)
	if !ok {
		L.RaiseError("run() can only be called from a task body")
		return 0
	}
	if err := d.Dispatch(s.ctx, tokens); err != nil {
		return s.fail(err)
	}
	return 0
}

func (s *script) luaGetenv(L *lua.LState) int {
	value, ok := os.LookupEnv(L.CheckString(1))
	if !ok {
		L.Push(L.Get(2))
		return 1
	}
	L.Push(lua.LString(value))
	return 1
}

func (s *script) luaSetenv(L *lua.LState) int {
	key := L.CheckString(1)
	value := L.CheckString(2)

	if err := os.Setenv(key, value); err != nil {
		return s.fail(eris.Wrapf(err, "failed to set %s", key))
	}
	return 0
}

func (s *script) luaInfo(L *lua.LState) int {
	runx.Log(s.ctx).Info().Msgf("%s: %s", s.caller(), joinArgs(L))
	return 0
}

func (s *script) luaWarn(L *lua.LState) int {
	runx.Log(s.ctx).Warn().Msgf("%s: %s", s.caller(), joinArgs(L))
	return 0
}

// * Task bodies

// body wraps fn as a task body. Positional values are passed in order,
// followed by a table of keyed values when sig declares any. Omitted
// optional values are passed as nil so the table always lands in the same
// parameter. With a rest parameter the table follows the last value.
func (s *script) body(fn *lua.LFunction, sig *runx.Signature) runx.Body {
	return func(ctx context.Context, call *runx.Call) error {
		prev := s.ctx
		s.ctx = ctx
		s.L.SetContext(ctx)
		defer func() {
			s.ctx = prev
			s.L.SetContext(prev)
		}()
		s.failure = nil

		args := make([]lua.LValue, 0, len(call.Positional)+1)
		for _, value := range call.Positional {
			args = append(args, lua.LString(value))
		}
		if sig.HasKeyed() {
			if sig.Rest == "" {
				for len(args) < len(sig.Required)+len(sig.Optional) {
					args = append(args, lua.LNil)
				}
			}

			keyed := s.L.NewTable()
			for _, key := range call.Keys() {
				switch raw := call.Keyed[key].(type) {
				case string:
					keyed.RawSetString(key, lua.LString(raw))
				case []string:
					list := s.L.NewTable()
					for _, item := range raw {
						list.Append(lua.LString(item))
					}
					keyed.RawSetString(key, list)
				}
			}
			args = append(args, keyed)
		}

		err := s.L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}, args...)
		if err != nil {
			return s.error(err)
		}
		return nil
	}
}

// * Helpers

func stringList(value lua.LValue, field string) ([]string, error) {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LString:
		return []string{string(v)}, nil
	case *lua.LTable:
		result := make([]string, 0, v.Len())
		for idx := 1; idx <= v.Len(); idx++ {
			item, ok := v.RawGetInt(idx).(lua.LString)
			if !ok {
				return nil, eris.Errorf("%s: item %d must be a string", field, idx)
			}
			result = append(result, string(item))
		}
		return result, nil
	default:
		return nil, eris.Errorf("%s must be a list of strings, not %s", field, value.Type())
	}
}

func joinArgs(L *lua.LState) string {
	msg := ""
	for idx := 1; idx <= L.GetTop(); idx++ {
		if idx > 1 {
			msg += " "
		}
		msg += L.ToStringMeta(L.Get(idx)).String()
	}
	return msg
}

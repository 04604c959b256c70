// Package luafile loads Runfile.lua files into a sandboxed gopher-lua state.
package luafile

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	lua "github.com/yuin/gopher-lua"

	"github.com/schmich/runx/pkg/runx"
)

// Filename is the Runfile name handled by this package.
const Filename = "Runfile.lua"

// Loader evaluates Runfile.lua files.
type Loader struct{}

func New() *Loader {
	return &Loader{}
}

func (l *Loader) Filenames() []string {
	return []string{Filename}
}

// script is the state of one loaded file. It outlives Load since task
// bodies are functions living in the Lua state.
type script struct {
	L  *lua.LState
	rf *runx.Runfile
	// ctx is the context of the innermost running call.
	ctx     context.Context
	failure error
}

func (l *Loader) Load(ctx context.Context, rf *runx.Runfile) error {
	s := &script{
		L:   newState(),
		rf:  rf,
		ctx: ctx,
	}
	s.L.SetContext(ctx)
	s.install()

	err := s.L.DoFile(rf.Path)
	s.rf = nil
	if err != nil {
		return s.error(err)
	}
	return nil
}

func (s *script) error(err error) error {
	if s.failure != nil {
		failure := s.failure
		s.failure = nil
		return failure
	}
	if cerr := s.ctx.Err(); cerr != nil {
		return cerr
	}

	if apiErr, ok := err.(*lua.ApiError); ok {
		return eris.New(strings.TrimSpace(apiErr.Object.String()))
	}
	return eris.Wrap(err, "lua error")
}

// fail records err as the reason the script stopped and raises it in Lua.
func (s *script) fail(err error) int {
	s.failure = err
	s.L.RaiseError("%s", err.Error())
	return 0
}

func (s *script) caller() runx.SourceLocation {
	return runx.ParseSourceLocation(s.L.Where(1))
}

func (s *script) loading() (*runx.Runfile, bool) {
	if s.rf == nil {
		s.L.RaiseError("tasks can only be declared while the Runfile is loading")
		return nil, false
	}
	return s.rf, true
}

// newState creates a Lua state with only the side-effect free standard
// libraries.
func newState() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}

	return L
}

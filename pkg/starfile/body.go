package starfile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/schmich/runx/pkg/runx"
)

// makeBody wraps a Starlark callable as a task body. Each call runs on a
// fresh thread whose context is the task's.
func makeBody(loadCtx *scriptCtx, name string, fn starlark.Callable) runx.Body {
	return func(ctx context.Context, call *runx.Call) error {
		sctx := &scriptCtx{
			ctx:       ctx,
			filename:  loadCtx.filename,
			dir:       loadCtx.dir,
			yamlCache: loadCtx.yamlCache,
		}
		thread := newThread(sctx, "task "+name)

		stop := context.AfterFunc(ctx, func() {
			thread.Cancel("interrupted")
		})
		defer stop()

		args := make(starlark.Tuple, len(call.Positional))
		for idx, value := range call.Positional {
			args[idx] = starlark.String(value)
		}

		keys := call.Keys()
		kwargs := make([]starlark.Tuple, 0, len(keys))
		for _, key := range keys {
			var value starlark.Value
			switch raw := call.Keyed[key].(type) {
			case string:
				value = starlark.String(raw)
			case []string:
				items := make([]starlark.Value, len(raw))
				for idx, item := range raw {
					items[idx] = starlark.String(item)
				}
				value = starlark.NewList(items)
			}
			kwargs = append(kwargs, starlark.Tuple{starlark.String(key), value})
		}

		_, err := starlark.Call(thread, fn, args, kwargs)
		if err == nil {
			return nil
		}

		if sctx.failure != nil {
			return sctx.failure
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if evalError, ok := err.(*starlark.EvalError); ok {
			return eris.New(evalError.Backtrace())
		}
		return eris.Wrapf(err, "failed to call %s", fn.Name())
	}
}

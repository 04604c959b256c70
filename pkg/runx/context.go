package runx

import (
	"context"

	"github.com/rs/zerolog"
)

type (
	logKey        struct{}
	runIDKey      struct{}
	dispatcherKey struct{}
)

var nopLogger = zerolog.Nop()

// Log returns the logger attached to ctx. Without one, all events are dropped.
func Log(ctx context.Context) *zerolog.Logger {
	logger, ok := ctx.Value(logKey{}).(*zerolog.Logger)
	if !ok {
		return &nopLogger
	}

	return logger
}

// WithLogger attaches the given logger to the context
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, logKey{}, logger)
}

// WithRunID tags the context with the id of the current runx invocation.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// RunIDEnv is the variable that carries the run id into shell bodies.
const RunIDEnv = "RUNX_RUN_ID"

// Dispatcher runs registered tasks by their command line tokens.
type Dispatcher interface {
	Dispatch(ctx context.Context, tokens []string) error
}

// WithDispatcher makes d available to task bodies for nested dispatch.
func WithDispatcher(ctx context.Context, d Dispatcher) context.Context {
	return context.WithValue(ctx, dispatcherKey{}, d)
}

// DispatcherFromContext returns the dispatcher of the currently running task.
// It is only set while a task body runs.
func DispatcherFromContext(ctx context.Context) (Dispatcher, bool) {
	d, ok := ctx.Value(dispatcherKey{}).(Dispatcher)
	return d, ok
}

// Package cmd implements the runx command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/schmich/runx/pkg/config"
	"github.com/schmich/runx/pkg/luafile"
	"github.com/schmich/runx/pkg/runx"
	"github.com/schmich/runx/pkg/starfile"
	"github.com/schmich/runx/pkg/yamlfile"
)

// exitInterrupted is the conventional status for SIGINT.
const exitInterrupted = 130

var helpTokens = map[string]bool{
	"-h":     true,
	"--help": true,
	"help":   true,
	"-?":     true,
	"/?":     true,
}

// app holds everything a single invocation needs.
type app struct {
	cfg    *config.Config
	stderr io.Writer
	color  bool
}

func newRootCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "runx [task...] [arguments...]",
		Short: "Run tasks defined in the nearest Runfile",
		Long: `runx searches the current directory and its parents for a Runfile
(Runfile.star, Runfile.yml, Runfile.yaml or Runfile.lua), loads it with all
of its imports and runs the task named by the leading arguments.`,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceErrors:      true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), args)
		},
	}
}

func newManager() *runx.Manager {
	return runx.NewManager(starfile.New(), yamlfile.New(), luafile.New())
}

func (a *app) run(ctx context.Context, tokens []string) error {
	m := newManager()

	wd, err := os.Getwd()
	if err != nil {
		return eris.Wrap(err, "failed to retrieve the current working directory")
	}

	path, err := m.Find(wd)
	if err != nil {
		return err
	}

	if err := m.Load(ctx, path); err != nil {
		return err
	}

	if len(tokens) == 0 {
		if auto := m.Auto(); auto != nil {
			return m.Run(ctx, auto, nil)
		}
		return a.showHelp(m, path)
	}

	if len(tokens) == 1 && helpTokens[tokens[0]] {
		if _, ok := m.Lookup(tokens[0]); !ok {
			return a.showHelp(m, path)
		}
	}

	return m.Dispatch(ctx, tokens)
}

// Execute runs runx with the process arguments and returns the exit status.
func Execute() int {
	return execute(context.Background(), os.Args[1:], os.Stderr)
}

func execute(ctx context.Context, args []string, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "[runx] error: %s\n", err)
		return 1
	}

	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		if cfg.Debug {
			return eris.ToString(err, true)
		}
		return err.Error()
	}

	a := &app{
		cfg:    cfg,
		stderr: stderr,
		color:  useColor(cfg, stderr),
	}

	runID := cfg.RunID
	if runID == "" {
		runID = nanoid.New()
	}

	logger := zerolog.New(NewConsoleWriter(stderr, a.color, cfg.Debug)).
		Level(cfg.LogLevel()).
		With().Str("run", runID).Logger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = runx.WithLogger(ctx, &logger)
	ctx = runx.WithRunID(ctx, runID)

	if args == nil {
		args = []string{}
	}

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stderr)
	root.SetErr(stderr)

	err = root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	return exitCode(ctx, &logger, err)
}

// exitCode reports err and picks the process exit status for it.
func exitCode(ctx context.Context, logger *zerolog.Logger, err error) int {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return exitInterrupted
	}

	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) && coded.ExitCode() > 0 {
		return coded.ExitCode()
	}

	logger.Error().Err(err).Msg("")
	return 1
}

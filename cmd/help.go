package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/term"

	"github.com/schmich/runx/pkg/config"
	"github.com/schmich/runx/pkg/runx"
)

func (a *app) showHelp(m *runx.Manager, runfile string) error {
	fmt.Fprintf(a.stderr, "[runx] in %s\n\n", filepath.Dir(runfile))

	return m.WriteHelp(a.stderr, runx.HelpOptions{
		Width: helpWidth(a.cfg, a.stderr),
		Color: a.color,
	})
}

// helpWidth prefers the configured width, then the terminal, then $COLUMNS.
// One column is kept free so full lines don't wrap in the terminal.
func helpWidth(cfg *config.Config, out io.Writer) int {
	if cfg.Width > 0 {
		return cfg.Width
	}

	if f, ok := out.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width - 1
		}
	}

	if width, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && width > 0 {
		return width - 1
	}

	return runx.DefaultHelpWidth
}

func useColor(cfg *config.Config, out io.Writer) bool {
	if cfg.NoColor || os.Getenv("NO_COLOR") != "" {
		return false
	}

	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/interp"
)

// runHelper executes one of the portable file helpers. Relative paths are
// resolved against the shell's current directory, not the process one.
func runHelper(ctx context.Context, args []string) error {
	hc := interp.HandlerCtx(ctx)

	var cmd *cobra.Command
	switch args[0] {
	case "mv":
		cmd = newMvCmd(hc.Dir)
	case "rm":
		cmd = newRmCmd(hc.Dir)
	case "mkdir":
		cmd = newMkdirCmd(hc.Dir)
	default:
		return eris.Errorf("unknown helper %s", args[0])
	}

	cmd.SetArgs(args[1:])
	cmd.SetOut(hc.Stdout)
	cmd.SetErr(hc.Stderr)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(hc.Stderr, "%s: %v\n", args[0], err)
		return interp.NewExitStatus(1)
	}
	return nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}

// expandArgs resolves the arguments and, on Windows, expands glob patterns
// since there is no shell to do it for us.
func expandArgs(dir string, args []string, allowEmpty bool) ([]string, error) {
	items := make([]string, 0, len(args))
	for _, arg := range args {
		path := resolve(dir, arg)
		if runtime.GOOS != "windows" {
			items = append(items, path)
			continue
		}

		matches, err := filepath.Glob(path)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to resolve pattern %s", arg)
		}
		if matches == nil && !allowEmpty {
			return nil, eris.Errorf("pattern %s produced no matches", arg)
		}
		items = append(items, matches...)
	}
	return items, nil
}

func newMvCmd(dir string) *cobra.Command {
	return &cobra.Command{
		Use:   "mv SOURCE... DEST",
		Short: "Portable implementation of the POSIX mv command",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := resolve(dir, args[len(args)-1])
			destParent := filepath.Dir(dest)
			info, err := os.Stat(destParent)
			if err != nil {
				return eris.Wrapf(err, "could not find destination directory %s", destParent)
			}
			if !info.IsDir() {
				return eris.Errorf("%s is not a directory", destParent)
			}

			destIsDir := false
			info, err = os.Stat(dest)
			if err == nil {
				destIsDir = info.IsDir()
			} else if !errors.Is(err, os.ErrNotExist) {
				return eris.Wrapf(err, "failed to check destination %s", dest)
			}

			items, err := expandArgs(dir, args[:len(args)-1], false)
			if err != nil {
				return err
			}

			if len(items) > 1 && !destIsDir {
				return eris.Errorf("can't move multiple items to %s because it is not a directory", dest)
			}

			for _, item := range items {
				itemDest := dest
				if destIsDir {
					itemDest = filepath.Join(dest, filepath.Base(item))
				}

				if err := os.Rename(item, itemDest); err != nil {
					return eris.Wrapf(err, "failed to move %s to %s", item, itemDest)
				}
			}
			return nil
		},
	}
}

func newRmCmd(dir string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm PATH...",
		Short: "Portable implementation of the POSIX rm command",
		RunE: func(cmd *cobra.Command, args []string) error {
			recursive, err := cmd.Flags().GetBool("recursive")
			if err != nil {
				return err
			}

			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}

			items, err := expandArgs(dir, args, force)
			if err != nil {
				return err
			}

			for _, item := range items {
				info, err := os.Stat(item)
				if err != nil {
					if force && errors.Is(err, os.ErrNotExist) {
						continue
					}
					return eris.Wrapf(err, "could not stat %s", item)
				}

				if info.IsDir() && !recursive {
					return eris.Errorf("%s is a directory but -r wasn't passed", item)
				}
			}

			for _, item := range items {
				if err := os.RemoveAll(item); err != nil {
					return eris.Wrapf(err, "could not delete %s", item)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolP("recursive", "r", false, "recursively delete directories")
	cmd.Flags().BoolP("force", "f", false, "ignore missing files")
	return cmd
}

func newMkdirCmd(dir string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkdir DIR...",
		Short: "Portable implementation of the POSIX mkdir command",
		RunE: func(cmd *cobra.Command, args []string) error {
			makeParents, err := cmd.Flags().GetBool("parents")
			if err != nil {
				return err
			}

			for _, item := range args {
				path := resolve(dir, item)
				if makeParents {
					err = os.MkdirAll(path, 0o755)
				} else {
					err = os.Mkdir(path, 0o755)
				}

				if err != nil {
					return eris.Wrapf(err, "failed to create %s", path)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolP("parents", "p", false, "create parent directories as needed")
	return cmd
}

package runx

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// RunfileIn returns the path of the single recognized Runfile in dir. The
// boolean is false if dir contains none of the given names.
func RunfileIn(dir string, names []string) (string, bool, error) {
	found := []string{}
	for _, name := range names {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", false, eris.Wrapf(err, "failed to check %s", path)
		}

		if !info.IsDir() {
			found = append(found, name)
		}
	}

	switch len(found) {
	case 0:
		return "", false, nil
	case 1:
		return filepath.Join(dir, found[0]), true, nil
	default:
		return "", false, &MultipleRunfilesError{Dir: dir, Names: found}
	}
}

// FindRunfile ascends from start towards the filesystem root and returns the
// first Runfile it finds.
func FindRunfile(start string, names []string) (string, error) {
	start, err := filepath.Abs(start)
	if err != nil {
		return "", eris.Wrapf(err, "failed to resolve %s", start)
	}

	path := start
	for {
		runfile, ok, err := RunfileIn(path, names)
		if err != nil {
			return "", err
		}
		if ok {
			return runfile, nil
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", &RunfileNotFoundError{Dir: start}
		}

		path = parent
	}
}

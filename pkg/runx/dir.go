package runx

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
)

// enterDir changes the process working directory to dir. The returned
// function restores the previous one and must be called on every path out.
func enterDir(ctx context.Context, dir string) (func(), error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, eris.Wrap(err, "failed to determine the working directory")
	}

	if err := os.Chdir(dir); err != nil {
		return nil, eris.Wrapf(err, "failed to enter %s", dir)
	}

	return func() {
		if err := os.Chdir(prev); err != nil {
			Log(ctx).Warn().Err(err).Msgf("failed to return to %s", prev)
		}
	}, nil
}

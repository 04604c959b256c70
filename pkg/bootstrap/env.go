// Package bootstrap undoes the environment changes made by the launcher that
// bundles runx with its own libraries.
package bootstrap

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// ShadowPrefix marks the variables holding the user's original values.
const ShadowPrefix = "RUNX_"

// Restored lists the variables the launcher overrides.
var Restored = []string{
	"LD_LIBRARY_PATH",
	"DYLD_LIBRARY_PATH",
	"TERMINFO",
	"SSL_CERT_DIR",
	"SSL_CERT_FILE",
	"RUBYOPT",
	"RUBYLIB",
	"GEM_HOME",
	"GEM_PATH",
}

// RestoreEnvironment copies every non-blank RUNX_<NAME> value back into NAME
// and unsets NAME otherwise. The shadow variables are removed afterwards so
// task bodies never see them.
func RestoreEnvironment() error {
	for _, name := range Restored {
		shadow := ShadowPrefix + name

		value := strings.TrimSpace(os.Getenv(shadow))
		if value == "" {
			if err := os.Unsetenv(name); err != nil {
				return eris.Wrapf(err, "failed to unset %s", name)
			}
		} else if err := os.Setenv(name, value); err != nil {
			return eris.Wrapf(err, "failed to restore %s", name)
		}

		if err := os.Unsetenv(shadow); err != nil {
			return eris.Wrapf(err, "failed to unset %s", shadow)
		}
	}

	return nil
}

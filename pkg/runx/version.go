package runx

import (
	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"
)

// Version is the runx release. Overridden at build time via -ldflags.
var Version = "0.4.0"

// CheckVersion fails unless Version satisfies the semver constraint.
func CheckVersion(constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return eris.Wrapf(err, "invalid version constraint %q", constraint)
	}

	v, err := semver.NewVersion(Version)
	if err != nil {
		return eris.Wrapf(err, "invalid runx version %q", Version)
	}

	if !c.Check(v) {
		return &VersionError{Constraint: constraint, Version: Version}
	}
	return nil
}

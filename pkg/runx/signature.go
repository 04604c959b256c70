package runx

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Signature describes which arguments a task body accepts. Positional
// parameters are either required, optional or a single rest parameter which
// collects everything left over. Keyed parameters are filled from --name
// options on the command line.
type Signature struct {
	Required     []string
	Optional     []string
	Rest         string
	RequiredKeys []string
	OptionalKeys []string
	// AnyKeys accepts options that were not declared.
	AnyKeys bool
}

// NewSignature returns a signature that accepts no arguments at all.
func NewSignature() *Signature {
	return &Signature{}
}

// Arg appends required positional parameters.
func (s *Signature) Arg(names ...string) *Signature {
	s.Required = append(s.Required, names...)
	return s
}

// OptionalArg appends optional positional parameters.
func (s *Signature) OptionalArg(names ...string) *Signature {
	s.Optional = append(s.Optional, names...)
	return s
}

// RestArg sets the parameter that collects all remaining positional values.
func (s *Signature) RestArg(name string) *Signature {
	s.Rest = name
	return s
}

// Key appends optional keyed parameters.
func (s *Signature) Key(names ...string) *Signature {
	for _, name := range names {
		s.OptionalKeys = append(s.OptionalKeys, KeyName(name))
	}
	return s
}

// RequiredKey appends keyed parameters which must be passed.
func (s *Signature) RequiredKey(names ...string) *Signature {
	for _, name := range names {
		s.RequiredKeys = append(s.RequiredKeys, KeyName(name))
	}
	return s
}

// AcceptAnyKeys makes the signature accept undeclared options.
func (s *Signature) AcceptAnyKeys() *Signature {
	s.AnyKeys = true
	return s
}

// MaxPositional returns the number of positional values the signature can
// take, or -1 if a rest parameter makes it unbounded.
func (s *Signature) MaxPositional() int {
	if s.Rest != "" {
		return -1
	}
	return len(s.Required) + len(s.Optional)
}

// HasKeyed reports whether any keyed values can reach the body.
func (s *Signature) HasKeyed() bool {
	return s.AnyKeys || s.Rest != "" || len(s.RequiredKeys) > 0 || len(s.OptionalKeys) > 0
}

func (s *Signature) declaresKey(key string) bool {
	for _, name := range s.RequiredKeys {
		if name == key {
			return true
		}
	}
	for _, name := range s.OptionalKeys {
		if name == key {
			return true
		}
	}
	return false
}

// Validate rejects signatures that name a parameter twice.
func (s *Signature) Validate() error {
	seen := make(map[string]bool)
	positional := append(append([]string{}, s.Required...), s.Optional...)
	if s.Rest != "" {
		positional = append(positional, s.Rest)
	}

	for _, name := range positional {
		if name == "" {
			return eris.New("empty argument name")
		}
		if seen[name] {
			return eris.Errorf("argument %s declared twice", name)
		}
		seen[name] = true
	}

	seen = make(map[string]bool)
	for _, name := range append(append([]string{}, s.RequiredKeys...), s.OptionalKeys...) {
		if name == "" {
			return eris.New("empty option name")
		}
		if seen[name] {
			return eris.Errorf("option --%s declared twice", OptionName(name))
		}
		seen[name] = true
	}

	return nil
}

// String renders the usage line, e.g. "SOURCE [DEST] --tag VALUE [--force VALUE]".
func (s *Signature) String() string {
	parts := make([]string, 0, len(s.Required)+len(s.Optional)+len(s.RequiredKeys)+len(s.OptionalKeys)+1)

	for _, name := range s.Required {
		parts = append(parts, ParamName(name))
	}
	for _, name := range s.Optional {
		parts = append(parts, "["+ParamName(name)+"]")
	}
	if s.Rest != "" {
		parts = append(parts, "["+ParamName(s.Rest)+"...]")
	}
	for _, name := range s.RequiredKeys {
		parts = append(parts, "--"+OptionName(name)+" VALUE")
	}
	for _, name := range s.OptionalKeys {
		parts = append(parts, "[--"+OptionName(name)+" VALUE]")
	}
	if s.AnyKeys {
		parts = append(parts, "[--NAME VALUE...]")
	}

	return strings.Join(parts, " ")
}

// KeyName converts an option name as typed on the command line into the key
// handed to task bodies.
func KeyName(option string) string {
	return strings.ReplaceAll(option, "-", "_")
}

// OptionName is the inverse of KeyName.
func OptionName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// ParamName is the upper-case display form of a parameter.
func ParamName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

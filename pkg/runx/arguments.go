package runx

import (
	"regexp"
	"sort"
	"strings"
)

// Call is a command line mapped onto a task signature.
type Call struct {
	Positional []string
	// Keyed values are either a string or, for repeated options, a []string.
	Keyed map[string]interface{}

	sig *Signature
}

var optionPattern = regexp.MustCompile(`^--?(.+?)(=(.*))?$`)

// MapArgs classifies the given tokens as positional or keyed arguments and
// checks them against sig.
func MapArgs(sig *Signature, tokens []string) (*Call, error) {
	if sig == nil {
		sig = NewSignature()
	}

	call := &Call{
		Positional: []string{},
		Keyed:      map[string]interface{}{},
		sig:        sig,
	}

	for idx := 0; idx < len(tokens); idx++ {
		token := tokens[idx]
		if token == "-" || token == "--" {
			call.Positional = append(call.Positional, token)
			continue
		}

		match := optionPattern.FindStringSubmatch(token)
		if match == nil {
			call.Positional = append(call.Positional, token)
			continue
		}

		name := match[1]
		key := KeyName(name)
		if !sig.declaresKey(key) && !sig.AnyKeys && sig.Rest == "" {
			return nil, &UnknownOptionError{Name: name}
		}

		var value string
		if match[2] != "" {
			value = match[3]
		} else if idx+1 < len(tokens) {
			idx++
			value = tokens[idx]
		}

		call.add(key, value)
	}

	if len(call.Positional) < len(sig.Required) {
		return nil, &MissingArgumentsError{Names: append([]string{}, sig.Required[len(call.Positional):]...)}
	}

	if max := sig.MaxPositional(); max >= 0 && len(call.Positional) > max {
		return nil, &TooManyArgumentsError{Given: len(call.Positional), Max: max}
	}

	missing := []string{}
	for _, key := range sig.RequiredKeys {
		if _, ok := call.Keyed[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingOptionsError{Names: missing}
	}

	return call, nil
}

func (c *Call) add(key, value string) {
	switch prev := c.Keyed[key].(type) {
	case nil:
		c.Keyed[key] = value
	case string:
		c.Keyed[key] = []string{prev, value}
	case []string:
		c.Keyed[key] = append(prev, value)
	}
}

// Values returns the positional values, followed by the keyed map if the
// signature declares any keyed parameter.
func (c *Call) Values() []interface{} {
	values := make([]interface{}, 0, len(c.Positional)+1)
	for _, value := range c.Positional {
		values = append(values, value)
	}

	if c.sig != nil && c.sig.HasKeyed() {
		values = append(values, c.Keyed)
	}
	return values
}

// Keys returns the keyed names in sorted order.
func (c *Call) Keys() []string {
	keys := make([]string, 0, len(c.Keyed))
	for key := range c.Keyed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// String returns the keyed value as a single string. Repeated values are
// joined with spaces.
func (c *Call) String(key string) string {
	switch value := c.Keyed[key].(type) {
	case string:
		return value
	case []string:
		return strings.Join(value, " ")
	}
	return ""
}

// List returns the keyed value as a list regardless of how often it was passed.
func (c *Call) List(key string) []string {
	switch value := c.Keyed[key].(type) {
	case string:
		return []string{value}
	case []string:
		return value
	}
	return nil
}

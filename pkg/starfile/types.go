package starfile

import (
	"fmt"

	"go.starlark.net/starlark"
)

// describeBuilder is returned by describe() so that a description and its
// task can be declared in one expression: describe("...").task(...).
type describeBuilder struct {
	text string
}

var (
	_ starlark.Value    = (*describeBuilder)(nil)
	_ starlark.HasAttrs = (*describeBuilder)(nil)
)

func (d *describeBuilder) String() string {
	return fmt.Sprintf("describe(%q)", d.text)
}

func (d *describeBuilder) Type() string {
	return "describe"
}

func (d *describeBuilder) Freeze() {}

func (d *describeBuilder) Truth() starlark.Bool {
	return starlark.True
}

func (d *describeBuilder) Hash() (uint32, error) {
	return starlark.String(d.text).Hash()
}

func (d *describeBuilder) Attr(name string) (starlark.Value, error) {
	if name == "task" {
		return starlark.NewBuiltin("task", starTask), nil
	}
	return nil, nil
}

func (d *describeBuilder) AttrNames() []string {
	return []string{"task"}
}

package container

import "fmt"

// Descriptor is an activation strategy bound to a name. Activate may
// register scoped overrides, push diagnostic frames and touch the lifetime
// store it owns; it never changes global state outside that lifetime.
type Descriptor interface {
	Activate(ctx *ActivationContext, name string) (any, error)
	String() string
}

// ValueDescriptor returns its value untouched. Pre-built instances and raw
// configuration data are registered through it.
type ValueDescriptor struct {
	value any
}

// Value returns a descriptor for a ready value.
func Value(v any) *ValueDescriptor {
	return &ValueDescriptor{value: v}
}

func (d *ValueDescriptor) Activate(*ActivationContext, string) (any, error) {
	return d.value, nil
}

func (d *ValueDescriptor) String() string {
	return fmt.Sprintf("value %T", d.value)
}

// AggregateDescriptor rebuilds a tree of []any and map[string]any, replacing
// every descriptor found inside with its activated value.
type AggregateDescriptor struct {
	value any
}

// Aggregate returns a descriptor walking v on each activation.
func Aggregate(v any) *AggregateDescriptor {
	return &AggregateDescriptor{value: v}
}

func (d *AggregateDescriptor) Activate(ctx *ActivationContext, name string) (any, error) {
	return ctx.parse(d.value, name)
}

func (d *AggregateDescriptor) String() string {
	return fmt.Sprintf("aggregate %T", d.value)
}

// asDescriptor wraps anything that is not already a descriptor.
func asDescriptor(v any) Descriptor {
	if d, ok := v.(Descriptor); ok {
		return d
	}
	return Value(v)
}

// contextualDescriptor activates inner with extra bindings visible only to
// its own sub-resolution. It is built on the fly for When/Needs/Give.
type contextualDescriptor struct {
	inner    Descriptor
	services map[string]Descriptor
}

func (d *contextualDescriptor) Activate(ctx *ActivationContext, name string) (any, error) {
	restore := ctx.localize()
	defer restore()
	for dep, sd := range d.services {
		ctx.Register(dep, sd)
	}
	return d.inner.Activate(ctx, name)
}

func (d *contextualDescriptor) String() string {
	return d.inner.String()
}

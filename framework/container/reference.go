package container

import "strings"

// Lazy resolves a dependency on demand. Every call starts from a fresh copy
// of the scope captured when the reference was activated; override maps
// apply to that call only. Values that are not descriptors are bound as
// ready values.
type Lazy func(overrides ...map[string]any) (any, error)

// ReferenceDescriptor resolves another name in the current scope, eagerly
// or through a Lazy.
type ReferenceDescriptor struct {
	target   string
	lazy     bool
	optional bool
	def      any
	services map[string]Descriptor
}

// ReferenceOption configures a ReferenceDescriptor.
type ReferenceOption func(*ReferenceDescriptor)

// Optional makes a missing target resolve to def instead of failing.
func Optional(def any) ReferenceOption {
	return func(d *ReferenceDescriptor) {
		d.optional = true
		d.def = def
	}
}

// Overrides binds extra services for the resolution of the target only.
func Overrides(services map[string]Descriptor) ReferenceOption {
	return func(d *ReferenceDescriptor) {
		d.services = services
	}
}

// Ref returns an eager reference to name.
func Ref(name string, opts ...ReferenceOption) *ReferenceDescriptor {
	d := &ReferenceDescriptor{target: name}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// LazyRef returns a reference that activates to a Lazy.
func LazyRef(name string, opts ...ReferenceOption) *ReferenceDescriptor {
	d := Ref(name, opts...)
	d.lazy = true
	return d
}

// Target returns the referenced name.
func (d *ReferenceDescriptor) Target() string { return d.target }

func (d *ReferenceDescriptor) Activate(ctx *ActivationContext, name string) (v any, err error) {
	ctx.enter(name, d, len(d.services) > 0)
	defer func() { ctx.leave(err) }()

	for dep, sd := range d.services {
		ctx.Register(dep, sd)
	}

	if d.lazy {
		return d.deferred(ctx.Clone()), nil
	}
	return d.resolve(ctx)
}

func (d *ReferenceDescriptor) resolve(ctx *ActivationContext) (any, error) {
	if d.optional {
		return ctx.Resolve(d.target, d.def)
	}
	return ctx.Resolve(d.target)
}

func (d *ReferenceDescriptor) deferred(snapshot *ActivationContext) Lazy {
	return func(overrides ...map[string]any) (any, error) {
		ctx := snapshot.Clone()
		for _, m := range overrides {
			for name, v := range m {
				ctx.Register(name, asDescriptor(v))
			}
		}
		v, err := d.resolve(ctx)
		if err != nil {
			return nil, &ActivationError{Service: d.target, Err: err, Stack: ctx.failureStack()}
		}
		return v, nil
	}
}

func (d *ReferenceDescriptor) String() string {
	var b strings.Builder
	if d.lazy {
		b.WriteString("lazy ")
	}
	b.WriteString("@")
	b.WriteString(d.target)
	if d.optional {
		b.WriteString("?")
	}
	return b.String()
}

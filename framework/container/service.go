package container

import (
	"fmt"
	"reflect"
	"strings"
)

// funcIdentity keys process-wide singletons built by a function. Closures
// created from the same literal share their code pointer and therefore one
// singleton; use WithSingletonKey to tell them apart.
type funcIdentity uintptr

// Injection calls Method on a freshly built instance with Args resolved.
type Injection struct {
	Method string
	Args   any
}

// ServiceDescriptor builds instances through a constructor under a
// Lifetime. It is immutable once built; instance caches live in the
// lifetime stores, never in the descriptor.
type ServiceDescriptor struct {
	kind       string
	ctor       reflect.Value
	structType reflect.Type
	identity   any

	params    any
	hasParams bool
	inject    []Injection
	services  map[string]Descriptor
	cleanup   any
	lifetime  Lifetime
}

// ServiceOption configures a ServiceDescriptor.
type ServiceOption func(*ServiceDescriptor)

// WithLifetime sets the caching policy. The default is LifetimeCall.
func WithLifetime(l Lifetime) ServiceOption {
	return func(d *ServiceDescriptor) {
		if l != nil {
			d.lifetime = l
		}
	}
}

// WithParams passes args positionally to the constructor. Args may embed
// descriptors at any depth inside []any and map[string]any values.
func WithParams(args ...any) ServiceOption {
	return func(d *ServiceDescriptor) {
		d.params = args
		d.hasParams = true
	}
}

// WithParam passes a single argument, usually a map[string]any, to the
// constructor.
func WithParam(arg any) ServiceOption {
	return func(d *ServiceDescriptor) {
		d.params = arg
		d.hasParams = true
	}
}

// WithInject calls method on the built instance with args resolved.
func WithInject(method string, args any) ServiceOption {
	return func(d *ServiceDescriptor) {
		d.inject = append(d.inject, Injection{Method: method, Args: args})
	}
}

// WithServices binds services visible only to this descriptor's own
// sub-resolution.
func WithServices(services map[string]Descriptor) ServiceOption {
	return func(d *ServiceDescriptor) {
		d.services = services
	}
}

// WithCleanup sets the callback run when the owning container is disposed:
// a method name on the instance, or a func taking the instance or nothing
// and returning nothing or an error.
func WithCleanup(cleanup any) ServiceOption {
	return func(d *ServiceDescriptor) {
		d.cleanup = cleanup
	}
}

// WithSingletonKey overrides the identity process-wide singletons are
// cached under.
func WithSingletonKey(key any) ServiceOption {
	return func(d *ServiceDescriptor) {
		d.identity = key
	}
}

// NewFactory returns a descriptor calling factory, a function returning T
// or (T, error).
func NewFactory(factory any, opts ...ServiceOption) (*ServiceDescriptor, error) {
	fn := reflect.ValueOf(factory)
	if err := validateFunc(fn); err != nil {
		return nil, err
	}
	d := &ServiceDescriptor{kind: "factory", ctor: fn, identity: funcIdentity(fn.Pointer())}
	return d.apply(opts)
}

// NewType returns a descriptor for typ: a reflect.Type of a struct (or
// pointer to struct) allocated as *T with an object param decoded into its
// fields, or a constructor function called like a factory.
func NewType(typ any, opts ...ServiceOption) (*ServiceDescriptor, error) {
	d := &ServiceDescriptor{kind: "type"}
	switch t := typ.(type) {
	case reflect.Type:
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: %s is not a struct type", ErrInvalidFactory, t)
		}
		d.structType = t
		d.identity = t
	default:
		fn := reflect.ValueOf(typ)
		if err := validateFunc(fn); err != nil {
			return nil, err
		}
		d.ctor = fn
		d.identity = funcIdentity(fn.Pointer())
	}
	d, err := d.apply(opts)
	if err != nil {
		return nil, err
	}
	if d.structType != nil && d.hasParams {
		if _, positional := d.params.([]any); positional {
			return nil, fmt.Errorf("%w: struct type %s takes an object param, not positional params", ErrInvalidFactory, d.structType)
		}
	}
	return d, nil
}

// Factory is NewFactory that panics on an invalid factory.
func Factory(factory any, opts ...ServiceOption) *ServiceDescriptor {
	d, err := NewFactory(factory, opts...)
	if err != nil {
		panic(fmt.Errorf("container: %w", err))
	}
	return d
}

// Type is NewType that panics on an invalid type.
func Type(typ any, opts ...ServiceOption) *ServiceDescriptor {
	d, err := NewType(typ, opts...)
	if err != nil {
		panic(fmt.Errorf("container: %w", err))
	}
	return d
}

func (d *ServiceDescriptor) apply(opts []ServiceOption) (*ServiceDescriptor, error) {
	d.lifetime = LifetimeCall
	for _, opt := range opts {
		opt(d)
	}
	if err := validateCleanup(d.cleanup); err != nil {
		return nil, err
	}
	for _, inj := range d.inject {
		if inj.Method == "" {
			return nil, fmt.Errorf("injection method name cannot be empty")
		}
	}
	return d, nil
}

// Lifetime returns the caching policy bound at construction.
func (d *ServiceDescriptor) Lifetime() Lifetime { return d.lifetime }

func (d *ServiceDescriptor) String() string {
	var target string
	if d.structType != nil {
		target = "*" + d.structType.String()
	} else {
		target = funcName(d.ctor)
	}
	return fmt.Sprintf("%s %s [%s]", d.kind, target, d.lifetime.Type())
}

// Activate returns the cached instance when the lifetime store holds one.
// Otherwise it guards the store against re-entry, registers local services,
// resolves params and injections, builds the instance and stores it. The
// guard is released on every exit path.
func (d *ServiceDescriptor) Activate(ctx *ActivationContext, name string) (v any, err error) {
	s := d.lifetime.initialize(d, ctx)
	if s.has() {
		return s.get(), nil
	}

	ctx.enter(name, d, len(d.services) > 0)
	defer func() { ctx.leave(err) }()

	if err := s.usable(); err != nil {
		return nil, err
	}

	if s.guarded() {
		release, ok := ctx.acquire(s.key())
		if !ok {
			return nil, &CyclicReferenceError{Name: name, Service: d.String()}
		}
		defer release()
	}

	for dep, sd := range d.services {
		ctx.Register(dep, sd)
	}

	instance, err := d.create(ctx)
	if err != nil {
		return nil, err
	}
	for i, inj := range d.inject {
		args, err := ctx.parse(inj.Args, fmt.Sprintf("inject[%d].%s", i, inj.Method))
		if err != nil {
			return nil, err
		}
		if err := invokeMethod(instance, inj.Method, args); err != nil {
			return nil, fmt.Errorf("inject %s: %w", inj.Method, err)
		}
	}

	s.store(instance, d.cleanupFor(instance))
	return instance, nil
}

func (d *ServiceDescriptor) create(ctx *ActivationContext) (any, error) {
	var resolved any
	if d.hasParams {
		var err error
		if resolved, err = ctx.parse(d.params, "params"); err != nil {
			return nil, err
		}
	}

	if d.structType != nil {
		ptr := reflect.New(d.structType)
		if resolved != nil {
			if err := decode(resolved, ptr.Interface()); err != nil {
				return nil, fmt.Errorf("populate %s: %w", d.structType, err)
			}
		}
		return ptr.Interface(), nil
	}

	var args []any
	switch {
	case !d.hasParams:
	case isPositional(d.params):
		args = resolved.([]any)
	default:
		args = []any{resolved}
	}
	return call(d.ctor, args)
}

func isPositional(params any) bool {
	_, ok := params.([]any)
	return ok
}

func validateCleanup(cleanup any) error {
	switch c := cleanup.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("cleanup method name cannot be empty")
		}
		return nil
	}
	fn := reflect.ValueOf(cleanup)
	if fn.Kind() != reflect.Func || fn.Type().NumIn() > 1 || fn.Type().NumOut() > 1 {
		return fmt.Errorf("cleanup must be a method name or a func taking at most the instance, got %T", cleanup)
	}
	if fn.Type().NumOut() == 1 && !fn.Type().Out(0).Implements(errorType) {
		return fmt.Errorf("cleanup may only return an error, got %s", fn.Type())
	}
	return nil
}

func (d *ServiceDescriptor) cleanupFor(instance any) func() error {
	switch c := d.cleanup.(type) {
	case nil:
		return nil
	case string:
		return func() error { return invokeMethod(instance, c, nil) }
	}
	fn := reflect.ValueOf(d.cleanup)
	return func() error {
		var args []any
		if fn.Type().NumIn() == 1 {
			args = []any{instance}
		}
		_, err := call(fn, args)
		return err
	}
}

package container

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ── Service map ───────────────────────────────────────────────────────────────

// ServiceMap maps names to descriptors. A miss delegates to the parent
// map, so registrations on a parent are visible to existing children.
type ServiceMap struct {
	mu      sync.RWMutex
	owner   *Container
	entries map[string]Descriptor
	parent  *ServiceMap
}

func newServiceMap(owner *Container, parent *ServiceMap) *ServiceMap {
	return &ServiceMap{owner: owner, entries: make(map[string]Descriptor), parent: parent}
}

// lookup returns the descriptor bound to name and the container owning it.
func (m *ServiceMap) lookup(name string) (Descriptor, *Container, bool) {
	for cur := m; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		d, ok := cur.entries[name]
		cur.mu.RUnlock()
		if ok {
			return d, cur.owner, true
		}
	}
	return nil, nil, false
}

func (m *ServiceMap) set(entries map[string]Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.entries, entries)
}

func (m *ServiceMap) names() []string {
	seen := make(map[string]struct{})
	for cur := m; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		for k := range cur.entries {
			seen[k] = struct{}{}
		}
		cur.mu.RUnlock()
	}
	return slices.Sorted(maps.Keys(seen))
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container owns a live service map, the Container and Hierarchy lifetime
// caches and an ordered list of cleanup callbacks.
//
// Resolution is single-threaded: one Resolve call never suspends. The map
// and caches are locked so that registration, introspection and disposal
// from other goroutines stay consistent.
type Container struct {
	id       string
	services *ServiceMap
	parent   *Container
	root     *Container
	log      *zap.Logger
	resolver TypeResolver

	mu         sync.Mutex
	instances  map[*ServiceDescriptor]any
	cleanup    []func() error
	disposed   bool
	tags       map[string][]string
	contextual map[string]map[string]Descriptor
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *Container) {
		if log != nil {
			c.log = log
		}
	}
}

// WithTypeResolver sets the resolver Configure uses for string $type and
// $factory specifiers.
func WithTypeResolver(r TypeResolver) Option {
	return func(c *Container) {
		c.resolver = r
	}
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.init(nil)
	c.root = c
	c.log = c.log.With(zap.String("container", c.id))
	return c
}

func (c *Container) init(parent *ServiceMap) {
	c.id = uuid.NewString()
	c.services = newServiceMap(c, parent)
	c.instances = make(map[*ServiceDescriptor]any)
	c.tags = make(map[string][]string)
	c.contextual = make(map[string]map[string]Descriptor)
}

// CreateChildContainer returns a container whose map delegates to c's.
func (c *Container) CreateChildContainer() *Container {
	child := &Container{parent: c, root: c.root, resolver: c.resolver}
	child.init(c.services)
	child.log = c.log.With(zap.String("child", child.id))
	return child
}

// ID returns the container's unique identifier.
func (c *Container) ID() string { return c.id }

// Parent returns the parent container, or nil for a root.
func (c *Container) Parent() *Container { return c.parent }

// Root returns the top of the hierarchy.
func (c *Container) Root() *Container { return c.root }

// ── Registration ──────────────────────────────────────────────────────────────

// Register binds d to name and returns c for chaining. An empty name or a
// nil descriptor is a programming error and panics.
//
//	c.Register("db", container.Factory(NewDB, container.WithLifetime(container.LifetimeContainer))).
//	    Register("dsn", container.Value("postgres://localhost"))
func (c *Container) Register(name string, d Descriptor) *Container {
	return c.RegisterAll(map[string]Descriptor{name: d})
}

// RegisterAll binds every entry of services in one step.
func (c *Container) RegisterAll(services map[string]Descriptor) *Container {
	for name, d := range services {
		mustValid(name, d)
	}
	c.services.set(services)
	c.log.Debug("services registered", zap.Strings("names", slices.Sorted(maps.Keys(services))))
	return c
}

// RegisterValue binds a ready value to name.
func (c *Container) RegisterValue(name string, v any) *Container {
	return c.Register(name, Value(v))
}

func mustValid(name string, d Descriptor) {
	if name == "" {
		panic(fmt.Errorf("container: register: %w", ErrInvalidName))
	}
	if d == nil {
		panic(fmt.Errorf("container: register %q: %w", name, ErrNilDescriptor))
	}
}

// Alias makes alias resolve whatever target resolves to.
func (c *Container) Alias(target, alias string) *Container {
	if target == alias {
		panic(fmt.Sprintf("container: [%s] is aliased to itself", target))
	}
	return c.Register(alias, Ref(target))
}

// Tag groups names under tag; Tagged resolves them in order.
func (c *Container) Tag(names []string, tag string) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[tag] = append(c.tags[tag], names...)
	return c
}

// Tagged resolves every name tagged with tag, parent tags first.
func (c *Container) Tagged(tag string) ([]any, error) {
	var names []string
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		names = append(slices.Clone(cur.tags[tag]), names...)
		cur.mu.Unlock()
	}
	out := make([]any, 0, len(names))
	for _, name := range names {
		v, err := c.Resolve(name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Has reports whether name is bound in c or one of its parents.
func (c *Container) Has(name string) bool {
	_, _, ok := c.services.lookup(name)
	return ok
}

// Lookup returns the descriptor bound to name.
func (c *Container) Lookup(name string) (Descriptor, bool) {
	d, _, ok := c.services.lookup(name)
	return d, ok
}

// Names returns every visible name, sorted.
func (c *Container) Names() []string {
	return c.services.names()
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Resolve activates name in a fresh ActivationContext. A missing name
// returns the first default when one is given. Every failure is returned as
// an *ActivationError carrying the activation path.
func (c *Container) Resolve(name string, def ...any) (any, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if c.Disposed() {
		return nil, &ActivationError{Service: name, Err: ErrDisposed, Stack: []Frame{{Name: name}}}
	}
	ctx := newActivationContext(c)
	v, err := ctx.Resolve(name, def...)
	if err != nil {
		c.log.Debug("activation failed", zap.String("service", name), zap.Error(err))
		return nil, &ActivationError{Service: name, Err: err, Stack: ctx.failureStack()}
	}
	return v, nil
}

// Resolve is a generic helper that resolves name and asserts the result.
//
//	db, err := container.Resolve[*sql.DB](c, "db")
func Resolve[T any](c *Container, name string, def ...T) (T, error) {
	var zero T
	var v any
	var err error
	if len(def) > 0 {
		v, err = c.Resolve(name, def[0])
	} else {
		v, err = c.Resolve(name)
	}
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("container: Resolve[%T]: [%s] resolved to %T", zero, name, v)
	}
	return typed, nil
}

// MustResolve is Resolve that panics on failure.
func MustResolve[T any](c *Container, name string) T {
	v, err := Resolve[T](c, name)
	if err != nil {
		panic(err)
	}
	return v
}

// ── Instance caches ───────────────────────────────────────────────────────────

func (c *Container) cached(d *ServiceDescriptor) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.instances[d]
	return v, ok
}

func (c *Container) cache(d *ServiceDescriptor, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.disposed {
		c.instances[d] = v
	}
}

// ── Disposal ──────────────────────────────────────────────────────────────────

// OnDispose registers cb to run when c is disposed. Callbacks run in reverse
// registration order. Registering on a disposed container runs cb at once.
func (c *Container) OnDispose(cb func()) {
	if cb == nil {
		return
	}
	c.onDispose(func() error {
		cb()
		return nil
	})
}

func (c *Container) onDispose(cb func() error) {
	c.mu.Lock()
	if !c.disposed {
		c.cleanup = append(c.cleanup, cb)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.runCleanup(cb)
}

// Dispose runs every cleanup callback once, newest first. Failures and
// panics of single callbacks are logged and do not stop the rest. Calls
// after the first are no-ops. A disposed container no longer resolves.
func (c *Container) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	callbacks := c.cleanup
	c.cleanup = nil
	c.instances = make(map[*ServiceDescriptor]any)
	c.mu.Unlock()

	for i := len(callbacks) - 1; i >= 0; i-- {
		c.runCleanup(callbacks[i])
	}
	c.log.Debug("container disposed", zap.Int("callbacks", len(callbacks)))
}

func (c *Container) runCleanup(cb func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			c.log.Warn("cleanup panicked", zap.Any("panic", rec))
		}
	}()
	if err := cb(); err != nil {
		c.log.Warn("cleanup failed", zap.Error(err))
	}
}

// Disposed reports whether Dispose has been called.
func (c *Container) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

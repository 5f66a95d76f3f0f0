package container

import (
	"fmt"
	"maps"
	"slices"
)

// binding pairs a descriptor with the container that owns it. Container
// lifetime instances are cached on the owner.
type binding struct {
	descriptor Descriptor
	owner      *Container
}

// scope is a local overlay of bindings layered over the container's map.
type scope struct {
	entries map[string]binding
	parent  *scope
}

func (s *scope) lookup(name string) (binding, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.entries[name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// frame is a diagnostic stack entry plus the scope to restore on leave.
type frame struct {
	Frame
	saved *scope
}

// contextCache holds Context lifetime instances for one top-level resolve
// call and every clone derived from it.
type contextCache struct {
	values map[*ServiceDescriptor]any
}

// ActivationContext is the resolution environment of one Container.Resolve
// call. It is not safe for concurrent use.
type ActivationContext struct {
	container *Container
	owner     *Container
	scope     *scope
	stack     []frame
	failure   []Frame

	cache   *contextCache
	pending map[slotKey]int
}

func newActivationContext(c *Container) *ActivationContext {
	return &ActivationContext{
		container: c,
		owner:     c,
		cache:     &contextCache{values: make(map[*ServiceDescriptor]any)},
		pending:   make(map[slotKey]int),
	}
}

// Container returns the container performing the resolution.
func (ctx *ActivationContext) Container() *Container {
	return ctx.container
}

func (ctx *ActivationContext) lookup(name string) (binding, bool) {
	if b, ok := ctx.scope.lookup(name); ok {
		return b, true
	}
	d, owner, ok := ctx.container.services.lookup(name)
	if !ok {
		return binding{}, false
	}
	return binding{descriptor: d, owner: owner}, true
}

// Resolve activates the descriptor bound to name in the current scope. When
// name is unbound the first default is returned, or a *NotFoundError when
// none was given.
func (ctx *ActivationContext) Resolve(name string, def ...any) (any, error) {
	b, ok := ctx.lookup(name)
	if !ok {
		if len(def) > 0 {
			return def[0], nil
		}
		ctx.capture(Frame{Name: name})
		return nil, &NotFoundError{Name: name}
	}

	prev := ctx.owner
	ctx.owner = b.owner
	defer func() { ctx.owner = prev }()

	d := b.descriptor
	if overrides := contextualOverrides(ctx.container, b.owner, name); len(overrides) > 0 {
		d = &contextualDescriptor{inner: d, services: overrides}
	}
	return d.Activate(ctx, name)
}

// Register binds d to name in the current overlay. The binding is visible
// to the activation that created the overlay and everything it resolves.
func (ctx *ActivationContext) Register(name string, d Descriptor) {
	if ctx.scope == nil {
		ctx.scope = &scope{entries: make(map[string]binding)}
	}
	ctx.scope.entries[name] = binding{descriptor: d, owner: ctx.owner}
}

// localize opens a fresh overlay and returns the function restoring the
// previous one.
func (ctx *ActivationContext) localize() func() {
	saved := ctx.scope
	ctx.scope = &scope{entries: make(map[string]binding), parent: saved}
	return func() { ctx.scope = saved }
}

func (ctx *ActivationContext) enter(name string, d Descriptor, localize bool) {
	f := frame{Frame: Frame{Name: name}, saved: ctx.scope}
	if d != nil {
		f.Service = d.String()
	}
	ctx.stack = append(ctx.stack, f)
	if localize {
		ctx.scope = &scope{entries: make(map[string]binding), parent: ctx.scope}
	}
}

// leave pops the innermost frame. A non-nil err records the stack as it was
// at the failure, once per context.
func (ctx *ActivationContext) leave(err error) {
	if err != nil {
		ctx.capture()
	}
	last := ctx.stack[len(ctx.stack)-1]
	ctx.stack = ctx.stack[:len(ctx.stack)-1]
	ctx.scope = last.saved
}

func (ctx *ActivationContext) capture(extra ...Frame) {
	if ctx.failure != nil {
		return
	}
	ctx.failure = append(ctx.Stack(), extra...)
}

// Stack returns the current activation path, outermost frame first.
func (ctx *ActivationContext) Stack() []Frame {
	out := make([]Frame, len(ctx.stack))
	for i, f := range ctx.stack {
		out[i] = f.Frame
	}
	return out
}

func (ctx *ActivationContext) failureStack() []Frame {
	if ctx.failure != nil {
		return ctx.failure
	}
	return ctx.Stack()
}

// Clone returns a context sharing this one's lifetime caches and pending
// set, over a frozen copy of the current scope chain. Registrations made
// afterwards on either context are invisible to the other.
func (ctx *ActivationContext) Clone() *ActivationContext {
	var chain []*scope
	for s := ctx.scope; s != nil; s = s.parent {
		chain = append(chain, s)
	}
	var frozen *scope
	if len(chain) > 0 {
		flat := make(map[string]binding)
		for i := len(chain) - 1; i >= 0; i-- {
			maps.Copy(flat, chain[i].entries)
		}
		frozen = &scope{entries: flat}
	}
	return &ActivationContext{
		container: ctx.container,
		owner:     ctx.owner,
		scope:     frozen,
		cache:     ctx.cache,
		pending:   ctx.pending,
	}
}

// visit increments the pending count of key and returns the previous one.
func (ctx *ActivationContext) visit(key slotKey) int {
	n := ctx.pending[key]
	ctx.pending[key] = n + 1
	return n
}

func (ctx *ActivationContext) unvisit(key slotKey) {
	if n := ctx.pending[key]; n > 1 {
		ctx.pending[key] = n - 1
		return
	}
	delete(ctx.pending, key)
}

// acquire marks key pending. It fails when key is already pending, which
// means the slot is being re-entered before its first activation finished.
func (ctx *ActivationContext) acquire(key slotKey) (release func(), ok bool) {
	if ctx.visit(key) > 0 {
		ctx.unvisit(key)
		return nil, false
	}
	return func() { ctx.unvisit(key) }, true
}

// parse walks data replacing every embedded descriptor with its activated
// value. Only []any and map[string]any are walked; any other value is
// returned as is.
func (ctx *ActivationContext) parse(data any, path string) (any, error) {
	switch v := data.(type) {
	case Descriptor:
		return v.Activate(ctx, path)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := ctx.parse(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for _, k := range slices.Sorted(maps.Keys(v)) {
			r, err := ctx.parse(v[k], path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return data, nil
	}
}

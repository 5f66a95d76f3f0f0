package container

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ActivationType names one of the five caching policies.
type ActivationType int

const (
	// ActivateSingleton shares one instance per process, keyed by the
	// constructor identity. Unrelated containers resolving the same
	// constructor get the same instance.
	ActivateSingleton ActivationType = iota

	// ActivateContainer caches the instance on the container the
	// descriptor is registered in.
	ActivateContainer

	// ActivateHierarchy caches the instance on the container performing
	// the resolution, so a parent and its children each get their own.
	ActivateHierarchy

	// ActivateContext shares the instance within one top-level Resolve.
	ActivateContext

	// ActivateCall builds a new instance every time.
	ActivateCall
)

// String returns the configuration name of the activation type.
func (t ActivationType) String() string {
	switch t {
	case ActivateSingleton:
		return "singleton"
	case ActivateContainer:
		return "container"
	case ActivateHierarchy:
		return "hierarchy"
	case ActivateContext:
		return "context"
	case ActivateCall:
		return "call"
	default:
		return "unknown"
	}
}

// ParseActivationType maps a configuration value to an ActivationType.
func ParseActivationType(s string) (ActivationType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "singleton":
		return ActivateSingleton, nil
	case "container":
		return ActivateContainer, nil
	case "hierarchy":
		return ActivateHierarchy, nil
	case "context":
		return ActivateContext, nil
	case "call":
		return ActivateCall, nil
	default:
		return 0, fmt.Errorf("unknown activation type %q", s)
	}
}

// Lifetime returns the strategy implementing t.
func (t ActivationType) Lifetime() Lifetime {
	switch t {
	case ActivateSingleton:
		return LifetimeSingleton
	case ActivateContainer:
		return LifetimeContainer
	case ActivateHierarchy:
		return LifetimeHierarchy
	case ActivateContext:
		return LifetimeContext
	default:
		return LifetimeCall
	}
}

// Lifetime is the caching strategy bound to a ServiceDescriptor when it is
// built. The set of strategies is closed.
type Lifetime interface {
	Type() ActivationType
	initialize(d *ServiceDescriptor, ctx *ActivationContext) slot
}

var (
	LifetimeSingleton Lifetime = singletonLifetime{}
	LifetimeContainer Lifetime = containerLifetime{}
	LifetimeHierarchy Lifetime = hierarchyLifetime{}
	LifetimeContext   Lifetime = contextLifetime{}
	LifetimeCall      Lifetime = callLifetime{}
)

// slotKey identifies one cache entry: the store holding it and the id
// inside that store.
type slotKey struct {
	store any
	id    any
}

// slot is the scoped store entry a lifetime hands out for one activation.
type slot interface {
	key() slotKey
	guarded() bool
	usable() error
	has() bool
	get() any
	store(value any, cleanup func() error)
}

// ---------------------------------------------------------------------------
// Singleton
// ---------------------------------------------------------------------------

// singletonRegistry is process-wide. Entries are never evicted except by
// ResetSingletons.
type singletonRegistry struct {
	mu        sync.Mutex
	instances map[any]any
}

var singletons = &singletonRegistry{instances: make(map[any]any)}

// ResetSingletons drops every process-wide singleton. It exists for tests;
// cleanups of dropped instances are not run.
func ResetSingletons() {
	singletons.mu.Lock()
	defer singletons.mu.Unlock()
	singletons.instances = make(map[any]any)
}

type singletonLifetime struct{}

func (singletonLifetime) Type() ActivationType { return ActivateSingleton }

func (singletonLifetime) initialize(d *ServiceDescriptor, ctx *ActivationContext) slot {
	return &singletonSlot{id: d.identity, resolver: ctx.container}
}

type singletonSlot struct {
	id       any
	resolver *Container
}

func (s *singletonSlot) key() slotKey  { return slotKey{store: singletons, id: s.id} }
func (s *singletonSlot) guarded() bool { return true }
func (s *singletonSlot) usable() error { return nil }

func (s *singletonSlot) has() bool {
	singletons.mu.Lock()
	defer singletons.mu.Unlock()
	_, ok := singletons.instances[s.id]
	return ok
}

func (s *singletonSlot) get() any {
	singletons.mu.Lock()
	defer singletons.mu.Unlock()
	return singletons.instances[s.id]
}

func (s *singletonSlot) store(value any, cleanup func() error) {
	singletons.mu.Lock()
	singletons.instances[s.id] = value
	singletons.mu.Unlock()
	if cleanup != nil {
		s.resolver.log.Debug("cleanup ignored for process-wide singleton", zap.Any("identity", s.id))
	}
}

// ---------------------------------------------------------------------------
// Container and Hierarchy
// ---------------------------------------------------------------------------

type containerLifetime struct{}

func (containerLifetime) Type() ActivationType { return ActivateContainer }

func (containerLifetime) initialize(d *ServiceDescriptor, ctx *ActivationContext) slot {
	return &containerSlot{owner: ctx.owner, d: d}
}

type hierarchyLifetime struct{}

func (hierarchyLifetime) Type() ActivationType { return ActivateHierarchy }

func (hierarchyLifetime) initialize(d *ServiceDescriptor, ctx *ActivationContext) slot {
	return &containerSlot{owner: ctx.container, d: d}
}

// containerSlot keeps the instance on a container and ties its cleanup to
// that container's disposal.
type containerSlot struct {
	owner *Container
	d     *ServiceDescriptor
}

func (s *containerSlot) key() slotKey  { return slotKey{store: s.owner, id: s.d} }
func (s *containerSlot) guarded() bool { return true }

// usable fails once the owning container is disposed.
func (s *containerSlot) usable() error {
	if s.owner.Disposed() {
		return fmt.Errorf("%w: %s", ErrDisposed, s.owner.id)
	}
	return nil
}

func (s *containerSlot) has() bool {
	_, ok := s.owner.cached(s.d)
	return ok
}

func (s *containerSlot) get() any {
	v, _ := s.owner.cached(s.d)
	return v
}

func (s *containerSlot) store(value any, cleanup func() error) {
	s.owner.cache(s.d, value)
	if cleanup != nil {
		s.owner.onDispose(cleanup)
	}
}

// ---------------------------------------------------------------------------
// Context
// ---------------------------------------------------------------------------

type contextLifetime struct{}

func (contextLifetime) Type() ActivationType { return ActivateContext }

func (contextLifetime) initialize(d *ServiceDescriptor, ctx *ActivationContext) slot {
	return &contextSlot{cache: ctx.cache, d: d}
}

type contextSlot struct {
	cache *contextCache
	d     *ServiceDescriptor
}

func (s *contextSlot) key() slotKey  { return slotKey{store: s.cache, id: s.d} }
func (s *contextSlot) guarded() bool { return true }
func (s *contextSlot) usable() error { return nil }

func (s *contextSlot) has() bool {
	_, ok := s.cache.values[s.d]
	return ok
}

func (s *contextSlot) get() any { return s.cache.values[s.d] }

// store drops cleanup: context instances end with the resolve call.
func (s *contextSlot) store(value any, _ func() error) {
	s.cache.values[s.d] = value
}

// ---------------------------------------------------------------------------
// Call
// ---------------------------------------------------------------------------

type callLifetime struct{}

func (callLifetime) Type() ActivationType { return ActivateCall }

func (callLifetime) initialize(*ServiceDescriptor, *ActivationContext) slot {
	return callSlot{}
}

// callSlot never caches and is never guarded, so a service may depend on
// itself and get a fresh instance each time.
type callSlot struct{}

func (callSlot) key() slotKey            { return slotKey{} }
func (callSlot) guarded() bool           { return false }
func (callSlot) usable() error           { return nil }
func (callSlot) has() bool               { return false }
func (callSlot) get() any                { return nil }
func (callSlot) store(any, func() error) {}

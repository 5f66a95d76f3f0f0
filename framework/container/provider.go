package container

import (
	"fmt"
	"sync"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups related registrations.
//
// Register binds services; it should not resolve anything. Boot runs after
// every eager provider has been registered and may resolve freely.
//
//	type StorageProvider struct{ container.BaseProvider }
//
//	func (p *StorageProvider) Register(app *container.Container) error {
//	    app.Register("store", container.Factory(NewStore,
//	        container.WithLifetime(container.LifetimeContainer),
//	        container.WithCleanup("Close")))
//	    return nil
//	}
type ServiceProvider interface {
	// Register binds services into the container.
	Register(app *Container) error

	// Boot is called after all eager providers are registered.
	Boot(app *Container) error

	// Provides lists the names a deferred provider registers.
	Provides() []string

	// IsDeferred reports whether Register should wait until one of the
	// Provides names is first resolved.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable no-op implementation of Boot, Provides and
// IsDeferred.
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }
func (p *BaseProvider) Provides() []string      { return nil }
func (p *BaseProvider) IsDeferred() bool        { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers and boots ServiceProviders, loading deferred
// ones on first use.
type ProviderRegistry struct {
	app        *Container
	mu         sync.Mutex
	eager      []ServiceProvider
	deferred   map[string]ServiceProvider
	registered map[ServiceProvider]bool
	failed     map[ServiceProvider]error
	booted     bool
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app,
		deferred:   make(map[string]ServiceProvider),
		registered: make(map[ServiceProvider]bool),
		failed:     make(map[ServiceProvider]error),
	}
}

// Register adds a provider. Eager providers register at once and boot at
// once when the registry is already booted; deferred providers bind a
// placeholder for each name they provide.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	r.mu.Lock()
	if r.registered[provider] {
		r.mu.Unlock()
		return nil
	}
	r.registered[provider] = true

	if provider.IsDeferred() {
		placeholders := make(map[string]Descriptor, len(provider.Provides()))
		for _, name := range provider.Provides() {
			r.deferred[name] = provider
			placeholders[name] = &deferredDescriptor{registry: r, provider: provider, name: name}
		}
		r.mu.Unlock()
		r.app.RegisterAll(placeholders)
		return nil
	}

	r.eager = append(r.eager, provider)
	booted := r.booted
	r.mu.Unlock()

	if err := provider.Register(r.app); err != nil {
		return fmt.Errorf("register provider %T: %w", provider, err)
	}
	if booted {
		if err := provider.Boot(r.app); err != nil {
			return fmt.Errorf("boot provider %T: %w", provider, err)
		}
	}
	return nil
}

// load registers a deferred provider the first time one of its names is
// resolved. A failure is kept and returned to every later resolution.
func (r *ProviderRegistry) load(provider ServiceProvider) error {
	r.mu.Lock()
	if err, ok := r.failed[provider]; ok {
		r.mu.Unlock()
		return err
	}
	pending := false
	for name, p := range r.deferred {
		if p == provider {
			delete(r.deferred, name)
			pending = true
		}
	}
	booted := r.booted
	r.mu.Unlock()
	if !pending {
		return nil
	}

	if err := provider.Register(r.app); err != nil {
		return r.fail(provider, fmt.Errorf("register deferred provider %T: %w", provider, err))
	}
	if booted {
		if err := provider.Boot(r.app); err != nil {
			return r.fail(provider, fmt.Errorf("boot deferred provider %T: %w", provider, err))
		}
	}
	return nil
}

func (r *ProviderRegistry) fail(provider ServiceProvider, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[provider] = err
	return err
}

// Boot calls Boot on every eager provider once.
func (r *ProviderRegistry) Boot() error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	eager := append([]ServiceProvider(nil), r.eager...)
	r.mu.Unlock()

	for _, provider := range eager {
		if err := provider.Boot(r.app); err != nil {
			return fmt.Errorf("boot provider %T: %w", provider, err)
		}
	}
	return nil
}

// Booted returns true if Boot() has been called.
func (r *ProviderRegistry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Providers returns all registered eager providers.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServiceProvider(nil), r.eager...)
}

// deferredDescriptor stands in for a name of a deferred provider. Its first
// activation registers the provider, which rebinds the name, then resolves
// the name again.
type deferredDescriptor struct {
	registry *ProviderRegistry
	provider ServiceProvider
	name     string
}

func (d *deferredDescriptor) Activate(ctx *ActivationContext, name string) (v any, err error) {
	ctx.enter(name, d, false)
	defer func() { ctx.leave(err) }()

	if err := d.registry.load(d.provider); err != nil {
		return nil, err
	}
	if current, ok := d.registry.app.Lookup(d.name); !ok || current == Descriptor(d) {
		return nil, &NotFoundError{Name: d.name}
	}
	return ctx.Resolve(d.name)
}

func (d *deferredDescriptor) String() string {
	return fmt.Sprintf("deferred %T", d.provider)
}

// Package container provides a descriptor-based IoC (Inversion of Control)
// container, a declarative configuration layer on top of it and a Service
// Provider system.
//
// # Overview
//
// Every name in a container is bound to a Descriptor: a strategy that knows
// how to produce a value inside an ActivationContext. Resolving a name walks
// the descriptor graph, caching instances according to the Lifetime bound to
// each ServiceDescriptor.
//
// # Container Lifecycle
//
//  1. Create: c := container.New(container.WithLogger(log))
//  2. Register descriptors, directly or through c.Configure
//  3. Register providers and Boot them
//  4. Resolve services
//  5. Dispose: c.Dispose() runs cleanups newest first
//
// # Descriptors
//
//	// Ready value
//	c.Register("dsn", container.Value("postgres://localhost"))
//
//	// Factory with positional params, cached on c
//	c.Register("db", container.Factory(sql.Open,
//	    container.WithParams("postgres", container.Ref("dsn")),
//	    container.WithLifetime(container.LifetimeContainer),
//	    container.WithCleanup("Close")))
//
//	// Struct type populated from an object param
//	c.Register("cfg", container.Type(reflect.TypeOf(Config{}),
//	    container.WithParam(map[string]any{"Port": container.Ref("port")})))
//
//	// Alias
//	c.Alias("db", "database")
//
// # Lifetimes
//
//	LifetimeSingleton  one instance per process, keyed by constructor
//	LifetimeContainer  one instance per registering container
//	LifetimeHierarchy  one instance per resolving container
//	LifetimeContext    one instance per top-level Resolve
//	LifetimeCall       a new instance every time (the default)
//
// # Resolving
//
//	raw, err := c.Resolve("db")
//	db, err := container.Resolve[*sql.DB](c, "db")
//	port, err := container.Resolve[int](c, "port", 8080) // default on miss
//
// Failures are returned as *ActivationError carrying the activation path.
// errors.Is matches ErrNotFound and ErrCyclicReference through it.
//
// # Lazy References
//
//	c.Register("handler", container.Factory(NewHandler,
//	    container.WithParams(container.LazyRef("session"))))
//
//	func NewHandler(session container.Lazy) *Handler { ... }
//
//	s, err := h.session(map[string]any{"user": current})
//
// Overrides passed to a Lazy apply to that call only.
//
// # Configuration
//
//	err := c.Configure(ctx, map[string]any{
//	    "port": map[string]any{"$value": 8080},
//	    "srv": map[string]any{
//	        "$factory":   "http:NewServer",
//	        "params":     []any{map[string]any{"$dependency": "port"}},
//	        "activation": "singleton",
//	    },
//	}, container.WithResolver(registry))
//
// # Contextual Binding
//
//	c.When("PhotoController").Needs("Filesystem").Give(container.Factory(NewS3))
//
// # Tags
//
//	c.Tag([]string{"CpuReport", "MemReport"}, "reports")
//	reports, err := c.Tagged("reports")
//
// # Service Providers
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(app *container.Container) error {
//	    return app.Configure(context.Background(), mailerConfig)
//	}
//
//	registry := container.NewProviderRegistry(c)
//	registry.Register(&AppServiceProvider{})
//	registry.Boot()
//
// Deferred providers return true from IsDeferred and list their names in
// Provides; Register runs on the first resolve of one of those names.
package container

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/inspect"
	"github.com/km-arc/go-ioc/framework/logging"
	"github.com/km-arc/go-ioc/framework/providers"
	"github.com/km-arc/go-ioc/framework/routing"
)

const shutdownTimeout = 5 * time.Second

// Application is the composition root. It embeds the container and the
// provider registry so user code can call app.Register(), app.Resolve()
// and app.Configure() directly.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	// Types resolves the "module:export" specifiers of service files.
	Types *container.Registry

	config *config.Config
	log    *zap.Logger
}

// New loads configuration, builds the logger and registers the framework
// providers.
func New(envFiles ...string) (*Application, error) {
	cfg := config.Load(envFiles...)
	log := logging.New(cfg.Log).With(zap.String("app", cfg.App.Name))
	types := container.NewRegistry()

	c := container.New(container.WithLogger(log), container.WithTypeResolver(types))
	a := &Application{
		Container: c,
		Providers: container.NewProviderRegistry(c),
		Types:     types,
		config:    cfg,
		log:       log,
	}

	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LoggingServiceProvider{Logger: log},
		&providers.RoutingServiceProvider{},
		&providers.InspectServiceProvider{},
	} {
		if err := a.Providers.Register(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) error {
	return a.Providers.Register(provider)
}

// Boot runs the Boot() phase on all providers.
func (a *Application) Boot() error {
	return a.Providers.Boot()
}

// Configure registers the services declared in a YAML or JSON file.
func (a *Application) Configure(ctx context.Context, path string) error {
	services, err := config.LoadServices(path)
	if err != nil {
		return err
	}
	if err := a.Container.Configure(ctx, services, container.WithConfigID(path)); err != nil {
		return err
	}
	a.log.Info("services configured", zap.String("file", path), zap.Int("services", len(services)))
	return nil
}

// Config returns the configuration loaded by New.
func (a *Application) Config() *config.Config { return a.config }

// Logger returns the application logger.
func (a *Application) Logger() *zap.Logger { return a.log }

// Router resolves the HTTP router.
func (a *Application) Router() (*routing.Router, error) {
	return container.Resolve[*routing.Router](a.Container, "router")
}

// Inspector resolves the service inspector.
func (a *Application) Inspector() (*inspect.Inspector, error) {
	return container.Resolve[*inspect.Inspector](a.Container, "inspector")
}

// Run boots the application and, when INSPECT_ADDR is set, serves the
// inspector until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Boot(); err != nil {
		return err
	}
	addr := a.config.Inspect.Addr
	if addr == "" {
		a.log.Info("application booted", zap.Int("services", len(a.Names())))
		return nil
	}

	router, err := a.Router()
	if err != nil {
		return err
	}
	in, err := a.Inspector()
	if err != nil {
		return err
	}
	in.Routes(router)

	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: shutdownTimeout}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()
	a.log.Info("inspector listening", zap.String("addr", addr))

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("inspector: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.log.Info("shutting down inspector")
		return srv.Shutdown(shutdownCtx)
	}
}

// Close disposes the container and flushes the logger.
func (a *Application) Close() {
	a.Dispose()
	_ = a.log.Sync()
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.config.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.config.App.Debug }

package providers

import (
	"context"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/inspect"
	"github.com/km-arc/go-ioc/framework/logging"
	"github.com/km-arc/go-ioc/framework/routing"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the application configuration.
//
// Bound names:
//   - "config"         → *config.Config
//   - "configuration"  → alias of "config"
//
// A preloaded Config is bound as is; otherwise it is loaded from EnvFiles on
// first use and cached on the container.
type ConfigServiceProvider struct {
	container.BaseProvider
	EnvFiles []string
	Config   *config.Config
}

func (p *ConfigServiceProvider) Register(app *container.Container) error {
	if p.Config != nil {
		app.RegisterValue("config", p.Config)
	} else {
		envFiles := p.EnvFiles
		app.Register("config", container.Factory(func() *config.Config {
			return config.Load(envFiles...)
		}, container.WithLifetime(container.LifetimeContainer)))
	}
	app.Alias("config", "configuration")
	return nil
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider binds the zap logger.
//
// Bound names:
//   - "logger"  → *zap.Logger
//
// Without a preset Logger one is built from config.Log and synced when the
// container is disposed.
type LoggingServiceProvider struct {
	container.BaseProvider
	Logger *zap.Logger
}

func (p *LoggingServiceProvider) Register(app *container.Container) error {
	if p.Logger != nil {
		app.RegisterValue("logger", p.Logger)
		return nil
	}
	return app.Configure(context.Background(), map[string]any{
		"logger": map[string]any{
			"$factory":   newLogger,
			"params":     []any{map[string]any{"$dependency": "config"}},
			"activation": "container",
			"cleanup":    syncLogger,
		},
	}, container.WithConfigID("providers.logging"))
}

func newLogger(cfg *config.Config) *zap.Logger {
	return logging.New(cfg.Log)
}

func syncLogger(log *zap.Logger) {
	_ = log.Sync()
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router.
//
// Bound names:
//   - "router"  → *routing.Router
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) error {
	app.Register("router", container.Factory(routing.New,
		container.WithParams(container.Ref("logger", container.Optional(nil))),
		container.WithLifetime(container.LifetimeContainer)))
	return nil
}

// ── InspectServiceProvider ────────────────────────────────────────────────────

// InspectServiceProvider registers the service inspector. It is deferred:
// nothing is bound until "inspector" is first resolved.
//
// Bound names:
//   - "inspector"  → *inspect.Inspector
type InspectServiceProvider struct {
	container.BaseProvider
}

func (p *InspectServiceProvider) Register(app *container.Container) error {
	app.Register("inspector", container.Factory(inspect.New,
		container.WithParams(container.Value(app), container.Ref("logger", container.Optional(nil))),
		container.WithLifetime(container.LifetimeContainer)))
	return nil
}

func (p *InspectServiceProvider) IsDeferred() bool   { return true }
func (p *InspectServiceProvider) Provides() []string { return []string{"inspector"} }

package container

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Configuration field names.
const (
	keyValue      = "$value"
	keyDependency = "$dependency"
	keyType       = "$type"
	keyFactory    = "$factory"
	keyParse      = "parse"
	keyLazy       = "lazy"
	keyOptional   = "optional"
	keyDefault    = "default"
	keyServices   = "services"
	keyParams     = "params"
	keyInject     = "inject"
	keyActivation = "activation"
	keyCleanup    = "cleanup"
)

var markers = []string{keyValue, keyDependency, keyType, keyFactory}

// ConfigureOption configures one Configure call.
type ConfigureOption func(*configureOptions)

type configureOptions struct {
	resolver TypeResolver
	id       string
}

// WithResolver overrides the container's TypeResolver for one call.
func WithResolver(r TypeResolver) ConfigureOption {
	return func(o *configureOptions) {
		o.resolver = r
	}
}

// WithConfigID names the configuration in errors and logs, usually after
// the file it came from.
func WithConfigID(id string) ConfigureOption {
	return func(o *configureOptions) {
		o.id = id
	}
}

// Configure turns a declarative configuration into descriptors and
// registers them in one step.
//
//	err := c.Configure(ctx, map[string]any{
//	    "dsn": map[string]any{"$value": "postgres://localhost"},
//	    "db": map[string]any{
//	        "$factory":   "db:Open",
//	        "params":     []any{map[string]any{"$dependency": "dsn"}},
//	        "activation": "container",
//	        "cleanup":    "Close",
//	    },
//	})
//
// String specifiers are resolved concurrently through the TypeResolver
// before anything is built. Cancelling ctx, or any error, leaves the
// container's map unchanged.
func (c *Container) Configure(ctx context.Context, config map[string]any, opts ...ConfigureOption) error {
	o := configureOptions{resolver: c.resolver, id: "<inline>"}
	for _, opt := range opts {
		opt(&o)
	}

	names := slices.Sorted(maps.Keys(config))
	specs := make(map[string]string)
	for _, name := range names {
		collectSpecs(config[name], name, specs)
	}

	types, err := resolveTypes(ctx, o, specs)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("configure %s: %w", o.id, err)
	}

	p := &parser{id: o.id, types: types}
	services := make(map[string]Descriptor, len(config))
	for _, name := range names {
		if name == "" {
			return p.fail(name, ErrInvalidName)
		}
		v, err := p.parse(config[name], name)
		if err != nil {
			return err
		}
		services[name] = toDescriptor(v)
	}

	c.RegisterAll(services)
	c.log.Debug("configuration applied",
		zap.String("config", o.id),
		zap.Int("services", len(services)),
		zap.Int("types", len(types)))
	return nil
}

// collectSpecs records the path of every string $type or $factory found
// in v. Raw values are not descended into.
func collectSpecs(v any, path string, specs map[string]string) {
	switch x := v.(type) {
	case []any:
		for i, item := range x {
			collectSpecs(item, fmt.Sprintf("%s[%d]", path, i), specs)
		}
	case map[string]any:
		for _, key := range []string{keyType, keyFactory} {
			if s, ok := x[key].(string); ok {
				if _, seen := specs[s]; !seen {
					specs[s] = path + "." + key
				}
			}
		}
		_, isValue := x[keyValue]
		for _, k := range slices.Sorted(maps.Keys(x)) {
			if k == keyDefault || (k == keyValue && x[keyParse] != true) {
				continue
			}
			if isValue && k != keyValue {
				continue
			}
			collectSpecs(x[k], path+"."+k, specs)
		}
	}
}

func resolveTypes(ctx context.Context, o configureOptions, specs map[string]string) (map[string]any, error) {
	types := make(map[string]any, len(specs))
	if len(specs) == 0 {
		return types, nil
	}
	if o.resolver == nil {
		spec := slices.Sorted(maps.Keys(specs))[0]
		return nil, &ConfigError{ConfigID: o.id, Path: specs[spec], Err: fmt.Errorf("no type resolver for %q", spec)}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for spec, path := range specs {
		g.Go(func() error {
			v, err := o.resolver.ResolveType(gctx, spec)
			if err == nil && v == nil {
				err = fmt.Errorf("%w: %q resolved to nil", ErrUnknownType, spec)
			}
			if err != nil {
				return &ConfigError{ConfigID: o.id, Path: path, Err: err}
			}
			mu.Lock()
			types[spec] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return types, nil
}

// toDescriptor wraps a parsed configuration node.
func toDescriptor(v any) Descriptor {
	switch x := v.(type) {
	case Descriptor:
		return x
	case []any, map[string]any:
		return Aggregate(x)
	default:
		return Value(x)
	}
}

// parser rewrites configuration nodes into descriptors. Its output is a
// descriptor or a plain []any / map[string]any tree holding descriptors.
type parser struct {
	id    string
	types map[string]any
}

func (p *parser) fail(path string, err error) error {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return err
	}
	return &ConfigError{ConfigID: p.id, Path: path, Err: err}
}

func (p *parser) parse(v any, path string) (any, error) {
	switch x := v.(type) {
	case Descriptor:
		return x, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			r, err := p.parse(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		var found []string
		for _, m := range markers {
			if _, ok := x[m]; ok {
				found = append(found, m)
			}
		}
		if len(found) > 1 {
			return nil, p.fail(path, fmt.Errorf("conflicting markers %v", found))
		}
		if len(found) == 1 {
			switch found[0] {
			case keyValue:
				return p.value(x, path)
			case keyDependency:
				return p.reference(x, path)
			default:
				return p.service(x, path, found[0])
			}
		}
		out := make(map[string]any, len(x))
		for _, k := range slices.Sorted(maps.Keys(x)) {
			r, err := p.parse(x[k], path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func (p *parser) value(m map[string]any, path string) (any, error) {
	parse, err := p.flag(m, keyParse, path)
	if err != nil {
		return nil, err
	}
	if !parse {
		return Value(m[keyValue]), nil
	}
	inner, err := p.parse(m[keyValue], path+"."+keyValue)
	if err != nil {
		return nil, err
	}
	return Aggregate(inner), nil
}

func (p *parser) reference(m map[string]any, path string) (any, error) {
	name, ok := m[keyDependency].(string)
	if !ok || name == "" {
		return nil, p.fail(path+"."+keyDependency, fmt.Errorf("dependency name must be a non-empty string, got %T", m[keyDependency]))
	}
	lazy, err := p.flag(m, keyLazy, path)
	if err != nil {
		return nil, err
	}
	def, hasDefault := m[keyDefault]
	optional := hasDefault
	if _, set := m[keyOptional]; set {
		if optional, err = p.flag(m, keyOptional, path); err != nil {
			return nil, err
		}
	}
	services, err := p.services(m[keyServices], path+"."+keyServices)
	if err != nil {
		return nil, err
	}

	var opts []ReferenceOption
	if optional {
		opts = append(opts, Optional(def))
	}
	if len(services) > 0 {
		opts = append(opts, Overrides(services))
	}
	if lazy {
		return LazyRef(name, opts...), nil
	}
	return Ref(name, opts...), nil
}

func (p *parser) service(m map[string]any, path, marker string) (any, error) {
	ctor := m[marker]
	if spec, ok := ctor.(string); ok {
		if ctor, ok = p.types[spec]; !ok {
			return nil, p.fail(path+"."+marker, fmt.Errorf("%w: %q", ErrUnknownType, spec))
		}
	}

	var opts []ServiceOption
	if raw, ok := m[keyActivation]; ok && raw != nil {
		s, isString := raw.(string)
		if !isString {
			return nil, p.fail(path+"."+keyActivation, fmt.Errorf("activation must be a string, got %T", raw))
		}
		t, err := ParseActivationType(s)
		if err != nil {
			return nil, p.fail(path+"."+keyActivation, err)
		}
		opts = append(opts, WithLifetime(t.Lifetime()))
	}

	if raw, ok := m[keyParams]; ok {
		params, err := p.parse(raw, path+"."+keyParams)
		if err != nil {
			return nil, err
		}
		if list, positional := params.([]any); positional {
			opts = append(opts, WithParams(list...))
		} else {
			opts = append(opts, WithParam(params))
		}
	}

	injections, err := p.injections(m[keyInject], path+"."+keyInject)
	if err != nil {
		return nil, err
	}
	for _, inj := range injections {
		opts = append(opts, WithInject(inj.Method, inj.Args))
	}

	services, err := p.services(m[keyServices], path+"."+keyServices)
	if err != nil {
		return nil, err
	}
	if len(services) > 0 {
		opts = append(opts, WithServices(services))
	}

	if cleanup, ok := m[keyCleanup]; ok && cleanup != nil {
		opts = append(opts, WithCleanup(cleanup))
	}

	var d *ServiceDescriptor
	if marker == keyFactory {
		d, err = NewFactory(ctor, opts...)
	} else {
		d, err = NewType(ctor, opts...)
	}
	if err != nil {
		return nil, p.fail(path, err)
	}
	return d, nil
}

// injections accepts one {method: args} map or a list of them.
func (p *parser) injections(v any, path string) ([]Injection, error) {
	var specs []any
	switch x := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		specs = []any{x}
	case []any:
		specs = x
	default:
		return nil, p.fail(path, fmt.Errorf("inject must be an object or a list of objects, got %T", v))
	}

	var out []Injection
	for i, spec := range specs {
		specPath := path
		if _, isList := v.([]any); isList {
			specPath = fmt.Sprintf("%s[%d]", path, i)
		}
		m, ok := spec.(map[string]any)
		if !ok {
			return nil, p.fail(specPath, fmt.Errorf("injection must be an object, got %T", spec))
		}
		for _, method := range slices.Sorted(maps.Keys(m)) {
			args, err := p.parse(m[method], specPath+"."+method)
			if err != nil {
				return nil, err
			}
			out = append(out, Injection{Method: method, Args: args})
		}
	}
	return out, nil
}

func (p *parser) services(v any, path string) (map[string]Descriptor, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, p.fail(path, fmt.Errorf("services must be an object, got %T", v))
	}
	out := make(map[string]Descriptor, len(m))
	for _, name := range slices.Sorted(maps.Keys(m)) {
		r, err := p.parse(m[name], path+"."+name)
		if err != nil {
			return nil, err
		}
		out[name] = toDescriptor(r)
	}
	return out, nil
}

func (p *parser) flag(m map[string]any, key, path string) (bool, error) {
	switch v := m[key].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		return false, p.fail(path+"."+key, fmt.Errorf("%s must be a boolean, got %T", key, v))
	}
}

package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownType is returned by Registry for specifiers it does not hold.
var ErrUnknownType = errors.New("unknown type specifier")

// TypeResolver turns a "module:export" specifier into a constructor: a
// function or a reflect.Type. It is consulted only while configuring.
type TypeResolver interface {
	ResolveType(ctx context.Context, spec string) (any, error)
}

// TypeResolverFunc adapts a function to TypeResolver.
type TypeResolverFunc func(ctx context.Context, spec string) (any, error)

func (f TypeResolverFunc) ResolveType(ctx context.Context, spec string) (any, error) {
	return f(ctx, spec)
}

// Registry is an in-memory TypeResolver.
//
//	reg := container.NewRegistry().
//	    Provide("db:Open", db.Open).
//	    Provide("app:Config", reflect.TypeOf(app.Config{}))
type Registry struct {
	mu    sync.RWMutex
	items map[string]any
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]any)}
}

// Provide stores a constructor under spec and returns the registry for
// chaining.
func (r *Registry) Provide(spec string, ctor any) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[spec] = ctor
	return r
}

// ResolveType implements TypeResolver.
func (r *Registry) ResolveType(ctx context.Context, spec string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[spec]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, spec)
	}
	return v, nil
}

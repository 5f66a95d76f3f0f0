package container

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound matches any *NotFoundError.
	ErrNotFound = errors.New("service not found")

	// ErrCyclicReference matches any *CyclicReferenceError.
	ErrCyclicReference = errors.New("cyclic reference detected")

	// ErrInvalidName is raised when a service is registered or resolved
	// under an empty name.
	ErrInvalidName = errors.New("service name cannot be empty")

	// ErrNilDescriptor is raised when a nil descriptor is registered.
	ErrNilDescriptor = errors.New("descriptor cannot be nil")

	// ErrInvalidFactory is returned when a constructor is not a function
	// returning (T) or (T, error), or a struct type.
	ErrInvalidFactory = errors.New("constructor must be a function returning (T) or (T, error)")

	// ErrDisposed is raised when a disposed container is asked to resolve
	// or to hold a new instance.
	ErrDisposed = errors.New("container is disposed")
)

// Frame is one entry of the activation path.
type Frame struct {
	Name    string `json:"name"`
	Service string `json:"service"`
}

func (f Frame) String() string {
	if f.Service == "" {
		return f.Name
	}
	return f.Name + " (" + f.Service + ")"
}

func formatStack(stack []Frame) string {
	parts := make([]string, len(stack))
	for i, f := range stack {
		parts[i] = f.String()
	}
	return strings.Join(parts, " -> ")
}

// ActivationError is the envelope returned by Container.Resolve and by lazy
// references. Stack is ordered from the requested service down to the
// frame where the failure happened.
type ActivationError struct {
	Service string
	Err     error
	Stack   []Frame
}

func (e *ActivationError) Error() string {
	if len(e.Stack) == 0 {
		return fmt.Sprintf("activation of %q failed: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("activation of %q failed: %v [%s]", e.Service, e.Err, formatStack(e.Stack))
}

func (e *ActivationError) Unwrap() error {
	return e.Err
}

// NotFoundError is raised when a name resolves to nothing and no default
// was supplied.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("service %q not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CyclicReferenceError is raised when a cached lifetime slot is entered
// again while its first activation is still pending.
type CyclicReferenceError struct {
	Name    string
	Service string
}

func (e *CyclicReferenceError) Error() string {
	return fmt.Sprintf("cyclic reference detected while activating %q (%s)", e.Name, e.Service)
}

func (e *CyclicReferenceError) Is(target error) bool {
	return target == ErrCyclicReference
}

// ConfigError is raised while turning a declarative configuration into
// descriptors. Path points into the configuration tree, e.g.
// "db.params[0].$dependency".
type ConfigError struct {
	ConfigID string
	Path     string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s: %v", e.ConfigID, e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

package container

import "maps"

// ContextualBuilder implements the fluent contextual binding API.
//
//	c.When("PhotoController").Needs("Filesystem").Give(container.Factory(NewS3))
//
// While PhotoController is being activated, and only then, resolving
// Filesystem yields the given descriptor.
type ContextualBuilder struct {
	container *Container
	concrete  string
	needs     string
}

// When starts a contextual binding chain for the service named concrete.
// Bindings declared on a child also apply to services its parents own,
// but only for resolutions made through that child.
func (c *Container) When(concrete string) *ContextualBuilder {
	return &ContextualBuilder{container: c, concrete: concrete}
}

// Needs specifies which name the concrete service depends on.
func (b *ContextualBuilder) Needs(name string) *ContextualBuilder {
	b.needs = name
	return b
}

// Give provides the descriptor used when the concrete service resolves the
// needed name.
func (b *ContextualBuilder) Give(d Descriptor) {
	mustValid(b.needs, d)
	c := b.container
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.contextual[b.concrete]; !ok {
		c.contextual[b.concrete] = make(map[string]Descriptor)
	}
	c.contextual[b.concrete][b.needs] = d
}

// GiveValue is a shorthand for Give with a ready value.
//
//	c.When("PhotoController").Needs("storagePath").GiveValue("/tmp/photos")
func (b *ContextualBuilder) GiveValue(value any) {
	b.Give(Value(value))
}

// contextualOverrides merges the overrides declared for concrete on every
// container from owner down to resolving. Declarations nearer to resolving
// win, so a child can refine a service registered in its parent.
func contextualOverrides(resolving, owner *Container, concrete string) map[string]Descriptor {
	var chain []*Container
	for c := resolving; c != nil; c = c.parent {
		chain = append(chain, c)
		if c == owner {
			break
		}
	}
	var merged map[string]Descriptor
	for i := len(chain) - 1; i >= 0; i-- {
		overrides := chain[i].contextualFor(concrete)
		if len(overrides) == 0 {
			continue
		}
		if merged == nil {
			merged = make(map[string]Descriptor, len(overrides))
		}
		maps.Copy(merged, overrides)
	}
	return merged
}

// contextualFor returns a copy of the overrides declared for concrete.
func (c *Container) contextualFor(concrete string) map[string]Descriptor {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.contextual[concrete]) == 0 {
		return nil
	}
	return maps.Clone(c.contextual[concrete])
}

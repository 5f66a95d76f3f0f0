package container_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/container"
)

type widget struct {
	id int
}

// counter returns a constructor numbering each widget it builds.
func counter() (func() *widget, *int) {
	n := 0
	return func() *widget {
		n++
		return &widget{id: n}
	}, &n
}

func newSharedWidget() *widget { return &widget{} }

func TestActivationType_StringAndParse(t *testing.T) {
	tests := []struct {
		in   string
		want container.ActivationType
	}{
		{"singleton", container.ActivateSingleton},
		{"container", container.ActivateContainer},
		{"Hierarchy", container.ActivateHierarchy},
		{" context ", container.ActivateContext},
		{"call", container.ActivateCall},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := container.ParseActivationType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, got.Lifetime().Type())
		})
	}

	_, err := container.ParseActivationType("request")
	assert.Error(t, err)
	assert.Equal(t, "hierarchy", container.ActivateHierarchy.String())
	assert.Equal(t, "unknown", container.ActivationType(42).String())
}

func TestDefaultLifetimeIsCall(t *testing.T) {
	d := container.Factory(newSharedWidget)
	assert.Equal(t, container.ActivateCall, d.Lifetime().Type())
}

// ── Singleton ─────────────────────────────────────────────────────────────────

func TestSingleton_SharedAcrossUnrelatedContainers(t *testing.T) {
	container.ResetSingletons()
	t.Cleanup(container.ResetSingletons)

	a := container.New()
	b := container.New()
	a.Register("w", container.Factory(newSharedWidget, container.WithLifetime(container.LifetimeSingleton)))
	b.Register("other-name", container.Factory(newSharedWidget, container.WithLifetime(container.LifetimeSingleton)))

	fromA, err := a.Resolve("w")
	require.NoError(t, err)
	fromB, err := b.Resolve("other-name")
	require.NoError(t, err)

	assert.Same(t, fromA, fromB)
}

func TestSingleton_KeyedByExplicitKey(t *testing.T) {
	container.ResetSingletons()
	t.Cleanup(container.ResetSingletons)

	first, _ := counter()
	second, _ := counter()

	c := container.New()
	c.Register("one", container.Factory(first,
		container.WithLifetime(container.LifetimeSingleton), container.WithSingletonKey("one")))
	c.Register("two", container.Factory(second,
		container.WithLifetime(container.LifetimeSingleton), container.WithSingletonKey("two")))

	one, err := c.Resolve("one")
	require.NoError(t, err)
	two, err := c.Resolve("two")
	require.NoError(t, err)
	assert.NotSame(t, one, two)
}

func TestResetSingletons(t *testing.T) {
	container.ResetSingletons()
	t.Cleanup(container.ResetSingletons)

	c := container.New()
	c.Register("w", container.Factory(newSharedWidget, container.WithLifetime(container.LifetimeSingleton)))

	before, err := c.Resolve("w")
	require.NoError(t, err)
	container.ResetSingletons()
	after, err := c.Resolve("w")
	require.NoError(t, err)

	assert.NotSame(t, before, after)
}

// ── Container ─────────────────────────────────────────────────────────────────

func TestContainerLifetime_SameContainerSameInstance(t *testing.T) {
	ctor, calls := counter()
	c := container.New()
	c.Register("w", container.Factory(ctor, container.WithLifetime(container.LifetimeContainer)))

	first, err := c.Resolve("w")
	require.NoError(t, err)
	second, err := c.Resolve("w")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, *calls)
}

func TestContainerLifetime_SiblingsGetDistinctInstances(t *testing.T) {
	ctor, _ := counter()
	d := container.Factory(ctor, container.WithLifetime(container.LifetimeContainer))

	root := container.New()
	left := root.CreateChildContainer()
	right := root.CreateChildContainer()
	left.Register("w", d)
	right.Register("w", d)

	fromLeft, err := left.Resolve("w")
	require.NoError(t, err)
	fromRight, err := right.Resolve("w")
	require.NoError(t, err)

	assert.NotSame(t, fromLeft, fromRight)
}

func TestContainerLifetime_CachedOnRegisteringContainer(t *testing.T) {
	ctor, calls := counter()
	parent := container.New()
	parent.Register("w", container.Factory(ctor, container.WithLifetime(container.LifetimeContainer)))

	fromChild, err := parent.CreateChildContainer().Resolve("w")
	require.NoError(t, err)
	fromParent, err := parent.Resolve("w")
	require.NoError(t, err)

	assert.Same(t, fromChild, fromParent)
	assert.Equal(t, 1, *calls)
}

// ── Hierarchy ─────────────────────────────────────────────────────────────────

func TestHierarchyLifetime_ParentAndChildDistinct(t *testing.T) {
	ctor, calls := counter()
	parent := container.New()
	parent.Register("w", container.Factory(ctor, container.WithLifetime(container.LifetimeHierarchy)))
	child := parent.CreateChildContainer()

	fromParent, err := parent.Resolve("w")
	require.NoError(t, err)
	fromChild, err := child.Resolve("w")
	require.NoError(t, err)
	again, err := child.Resolve("w")
	require.NoError(t, err)

	assert.NotSame(t, fromParent, fromChild)
	assert.Same(t, fromChild, again)
	assert.Equal(t, 2, *calls)
}

// ── Context ───────────────────────────────────────────────────────────────────

type pair struct {
	left, right *widget
}

func TestContextLifetime_SharedWithinOneResolve(t *testing.T) {
	ctor, _ := counter()
	c := container.New()
	c.Register("w", container.Factory(ctor, container.WithLifetime(container.LifetimeContext)))
	c.Register("pair", container.Factory(func(l, r *widget) *pair { return &pair{left: l, right: r} },
		container.WithParams(container.Ref("w"), container.Ref("w"))))

	first, err := container.Resolve[*pair](c, "pair")
	require.NoError(t, err)
	second, err := container.Resolve[*pair](c, "pair")
	require.NoError(t, err)

	assert.Same(t, first.left, first.right)
	assert.NotSame(t, first.left, second.left)
}

// ── Call ──────────────────────────────────────────────────────────────────────

func TestCallLifetime_FreshEveryTime(t *testing.T) {
	ctor, calls := counter()
	c := container.New()
	c.Register("w", container.Factory(ctor))

	first, err := c.Resolve("w")
	require.NoError(t, err)
	second, err := c.Resolve("w")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, *calls)
}

type node struct {
	next container.Lazy
}

func TestCallLifetime_SelfReferenceAllowed(t *testing.T) {
	c := container.New()
	c.Register("node", container.Factory(func(next container.Lazy) *node { return &node{next: next} },
		container.WithParams(container.LazyRef("node"))))

	n, err := container.Resolve[*node](c, "node")
	require.NoError(t, err)

	v, err := n.next()
	require.NoError(t, err)
	m, ok := v.(*node)
	require.True(t, ok)
	assert.NotSame(t, n, m)

	v, err = m.next()
	require.NoError(t, err)
	assert.NotSame(t, m, v)
}

// ── Cycles ────────────────────────────────────────────────────────────────────

func TestCycle_NonCallLifetimeFails(t *testing.T) {
	lifetimes := []container.Lifetime{
		container.LifetimeSingleton,
		container.LifetimeContainer,
		container.LifetimeHierarchy,
		container.LifetimeContext,
	}
	for _, l := range lifetimes {
		t.Run(l.Type().String(), func(t *testing.T) {
			container.ResetSingletons()
			t.Cleanup(container.ResetSingletons)

			c := container.New()
			c.Register("a", container.Factory(func(b *widget) *widget { return &widget{} },
				container.WithLifetime(l), container.WithSingletonKey("cycle-a"),
				container.WithParams(container.Ref("b"))))
			c.Register("b", container.Factory(func(a *widget) *widget { return &widget{} },
				container.WithLifetime(l), container.WithSingletonKey("cycle-b"),
				container.WithParams(container.Ref("a"))))

			_, err := c.Resolve("a")
			require.ErrorIs(t, err, container.ErrCyclicReference)

			var cyc *container.CyclicReferenceError
			require.ErrorAs(t, err, &cyc)
			assert.Equal(t, "a", cyc.Name)

			var ae *container.ActivationError
			require.ErrorAs(t, err, &ae)
			require.NotEmpty(t, ae.Stack)
			assert.Equal(t, "a", ae.Stack[0].Name)
			assert.Equal(t, "a", ae.Stack[len(ae.Stack)-1].Name)
		})
	}
}

func TestCycle_GuardReleasedForRetry(t *testing.T) {
	c := container.New()
	c.Register("a", container.Factory(func(b any) *widget { return &widget{id: 1} },
		container.WithLifetime(container.LifetimeContainer),
		container.WithParams(container.Ref("b"))))
	c.Register("b", container.Ref("a"))

	_, err := c.Resolve("a")
	require.ErrorIs(t, err, container.ErrCyclicReference)

	c.RegisterValue("b", "fixed")
	v, err := container.Resolve[*widget](c, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, v.id)
}

func TestFailure_GuardReleasedForRetry(t *testing.T) {
	attempts := 0
	c := container.New()
	c.Register("flaky", container.Factory(func() (*widget, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("not yet")
		}
		return &widget{id: attempts}, nil
	}, container.WithLifetime(container.LifetimeContainer)))

	_, err := c.Resolve("flaky")
	require.Error(t, err)

	w, err := container.Resolve[*widget](c, "flaky")
	require.NoError(t, err)
	assert.Equal(t, 2, w.id)
}

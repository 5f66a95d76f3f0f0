package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/container"
)

func passLazy(l container.Lazy) container.Lazy { return l }

func TestRef_String(t *testing.T) {
	assert.Equal(t, "@db", container.Ref("db").String())
	assert.Equal(t, "@db?", container.Ref("db", container.Optional(nil)).String())
	assert.Equal(t, "lazy @db", container.LazyRef("db").String())
	assert.Equal(t, "db", container.LazyRef("db").Target())
}

func TestRef_OptionalFallsBackToDefault(t *testing.T) {
	c := container.New()
	c.Register("port", container.Ref("configured-port", container.Optional(8080)))

	v, err := c.Resolve("port")
	require.NoError(t, err)
	assert.Equal(t, 8080, v)

	c.RegisterValue("configured-port", 9000)
	v, err = c.Resolve("port")
	require.NoError(t, err)
	assert.Equal(t, 9000, v)
}

func TestRef_OverridesVisibleOnlyToTarget(t *testing.T) {
	c := container.New()
	c.Register("greeting", container.Factory(greet, container.WithParams(container.Ref("name"))))
	c.Register("local", container.Ref("greeting", container.Overrides(map[string]container.Descriptor{
		"name": container.Value("local"),
	})))

	v, err := c.Resolve("local")
	require.NoError(t, err)
	assert.Equal(t, "hello local", v)

	_, err = c.Resolve("greeting")
	assert.ErrorIs(t, err, container.ErrNotFound)
}

func TestLazyRef_OverridesDoNotLeakBetweenCalls(t *testing.T) {
	c := container.New()
	c.Register("greeting", container.Factory(greet, container.WithParams(container.Ref("name"))))
	c.Register("lazy", container.Factory(passLazy, container.WithParams(container.LazyRef("greeting"))))

	lazy, err := container.Resolve[container.Lazy](c, "lazy")
	require.NoError(t, err)

	for _, name := range []string{"alice", "bob", "carol"} {
		v, err := lazy(map[string]any{"name": name})
		require.NoError(t, err)
		assert.Equal(t, "hello "+name, v)
	}

	_, err = lazy()
	require.ErrorIs(t, err, container.ErrNotFound)

	var ae *container.ActivationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "greeting", ae.Service)
	require.NotEmpty(t, ae.Stack)
	assert.Equal(t, "name", ae.Stack[len(ae.Stack)-1].Name)
}

func TestLazyRef_OverrideAcceptsDescriptors(t *testing.T) {
	c := container.New()
	c.RegisterValue("real-name", "dave")
	c.Register("greeting", container.Factory(greet, container.WithParams(container.Ref("name"))))
	c.Register("lazy", container.Factory(passLazy, container.WithParams(container.LazyRef("greeting"))))

	lazy, err := container.Resolve[container.Lazy](c, "lazy")
	require.NoError(t, err)

	v, err := lazy(map[string]any{"name": container.Ref("real-name")})
	require.NoError(t, err)
	assert.Equal(t, "hello dave", v)
}

func TestLazyRef_SeesScopeAtActivation(t *testing.T) {
	c := container.New()
	c.Register("greeting", container.Factory(greet, container.WithParams(container.Ref("name"))))
	c.Register("lazy", container.Factory(passLazy,
		container.WithParams(container.LazyRef("greeting")),
		container.WithServices(map[string]container.Descriptor{"name": container.Value("scoped")})))

	lazy, err := container.Resolve[container.Lazy](c, "lazy")
	require.NoError(t, err)

	v, err := lazy()
	require.NoError(t, err)
	assert.Equal(t, "hello scoped", v)

	v, err = lazy(map[string]any{"name": "override"})
	require.NoError(t, err)
	assert.Equal(t, "hello override", v)

	v, err = lazy()
	require.NoError(t, err)
	assert.Equal(t, "hello scoped", v)
}

func TestLazyRef_SharesContextCache(t *testing.T) {
	ctor, calls := counter()
	c := container.New()
	c.Register("w", container.Factory(ctor, container.WithLifetime(container.LifetimeContext)))
	c.Register("holder", container.Factory(func(w *widget, l container.Lazy) *pair {
		v, err := l()
		if err != nil {
			panic(err)
		}
		return &pair{left: w, right: v.(*widget)}
	}, container.WithParams(container.Ref("w"), container.LazyRef("w"))))

	p, err := container.Resolve[*pair](c, "holder")
	require.NoError(t, err)
	assert.Same(t, p.left, p.right)
	assert.Equal(t, 1, *calls)
}

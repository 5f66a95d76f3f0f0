package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/config"
)

// ── Load ─────────────────────────────────────────────────────────────────────

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load("testdata/empty.env")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"App.Name", cfg.App.Name, "go-ioc"},
		{"App.Env", cfg.App.Env, "local"},
		{"Log.Level", cfg.Log.Level, "info"},
		{"Log.Format", cfg.Log.Format, "console"},
		{"Services.File", cfg.Services.File, ""},
		{"Inspect.Addr", cfg.Inspect.Addr, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
	assert.True(t, cfg.App.Debug)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("APP_NAME", "MyApp")
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_DEBUG", "false")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("SERVICES_FILE", "services.yaml")

	cfg := config.Load("testdata/empty.env")

	assert.Equal(t, "MyApp", cfg.App.Name)
	assert.Equal(t, "production", cfg.App.Env)
	assert.False(t, cfg.App.Debug)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "services.yaml", cfg.Services.File)
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	keys := []string{"APP_NAME", "LOG_LEVEL", "INSPECT_ADDR"}
	for _, k := range keys {
		if _, set := os.LookupEnv(k); set {
			t.Skipf("%s already set in the environment", k)
		}
	}
	t.Cleanup(func() {
		for _, k := range keys {
			_ = os.Unsetenv(k)
		}
	})

	cfg := config.Load("testdata/app.env")

	assert.Equal(t, "FromFile", cfg.App.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9090", cfg.Inspect.Addr)
}

func TestLoad_MissingEnvFileIsNotFatal(t *testing.T) {
	assert.NotPanics(t, func() { config.Load("testdata/does-not-exist.env") })
}

// ── Get helpers ──────────────────────────────────────────────────────────────

func TestGetHelpers(t *testing.T) {
	t.Setenv("IOC_STR", "value")
	t.Setenv("IOC_INT", "42")
	t.Setenv("IOC_BAD_INT", "forty-two")
	t.Setenv("IOC_BOOL", "true")
	t.Setenv("IOC_BAD_BOOL", "maybe")

	assert.Equal(t, "value", config.Get("IOC_STR", "fallback"))
	assert.Equal(t, "fallback", config.Get("IOC_UNSET", "fallback"))
	assert.Equal(t, 42, config.GetInt("IOC_INT", 0))
	assert.Equal(t, 7, config.GetInt("IOC_BAD_INT", 7))
	assert.Equal(t, 7, config.GetInt("IOC_UNSET", 7))
	assert.True(t, config.GetBool("IOC_BOOL", false))
	assert.True(t, config.GetBool("IOC_BAD_BOOL", true))
	assert.False(t, config.GetBool("IOC_UNSET", false))
}

// ── LoadServices ─────────────────────────────────────────────────────────────

func TestLoadServices_YAML(t *testing.T) {
	services, err := config.LoadServices("testdata/services.yaml")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"$value": 8080}, services["port"])

	greeting := services["greeting"].(map[string]any)
	assert.Equal(t, "app:Greet", greeting["$factory"])
	assert.Equal(t, "container", greeting["activation"])
	assert.Equal(t, []any{map[string]any{"$dependency": "name", "default": "world"}}, greeting["params"])
}

func TestLoadServices_JSON(t *testing.T) {
	services, err := config.LoadServices("testdata/services.json")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"$value": float64(8080)}, services["port"])

	greeting := services["greeting"].(map[string]any)
	assert.Equal(t, "app:Greet", greeting["$factory"])
	assert.Equal(t, []any{map[string]any{"$dependency": "name", "default": "world"}}, greeting["params"])
}

func TestLoadServices_YAMLNonStringKeysNormalized(t *testing.T) {
	services, err := config.ParseServices([]byte("codes:\n  $value:\n    1: one\n    2: two\n"), ".yml")
	require.NoError(t, err)

	codes := services["codes"].(map[string]any)
	assert.Equal(t, map[string]any{"1": "one", "2": "two"}, codes["$value"])
}

func TestLoadServices_Errors(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"a": `), 0o600))
	toml := filepath.Join(dir, "services.toml")
	require.NoError(t, os.WriteFile(toml, []byte(`a = 1`), 0o600))

	_, err := config.LoadServices(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = config.LoadServices(broken)
	assert.ErrorContains(t, err, "broken.json")

	_, err = config.LoadServices(toml)
	assert.ErrorIs(t, err, config.ErrUnsupportedFormat)
}

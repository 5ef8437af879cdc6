package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type defaultsConfig struct {
	Name    string `env:"CFG_TEST_DEFAULTS_NAME" envDefault:"codeai"`
	Workers int    `env:"CFG_TEST_DEFAULTS_WORKERS" envDefault:"4"`
	Debug   bool   `env:"CFG_TEST_DEFAULTS_DEBUG" envDefault:"true"`
}

type envConfig struct {
	Name    string `env:"CFG_TEST_ENV_NAME"`
	Workers int    `env:"CFG_TEST_ENV_WORKERS"`
}

type cachedConfig struct {
	Value string `env:"CFG_TEST_CACHED_VALUE"`
}

type requiredConfig struct {
	Secret string `env:"CFG_TEST_REQUIRED_SECRET,required"`
}

func TestLoad(t *testing.T) {
	t.Run("uses defaults", func(t *testing.T) {
		var cfg defaultsConfig
		require.NoError(t, Load(&cfg))

		assert.Equal(t, "codeai", cfg.Name)
		assert.Equal(t, 4, cfg.Workers)
		assert.True(t, cfg.Debug)
	})

	t.Run("reads environment", func(t *testing.T) {
		t.Setenv("CFG_TEST_ENV_NAME", "reviewer")
		t.Setenv("CFG_TEST_ENV_WORKERS", "16")

		var cfg envConfig
		require.NoError(t, Load(&cfg))

		assert.Equal(t, "reviewer", cfg.Name)
		assert.Equal(t, 16, cfg.Workers)
	})

	t.Run("caches first parse per type", func(t *testing.T) {
		t.Cleanup(reset)
		t.Setenv("CFG_TEST_CACHED_VALUE", "first")

		var first cachedConfig
		require.NoError(t, Load(&first))

		t.Setenv("CFG_TEST_CACHED_VALUE", "second")

		var second cachedConfig
		require.NoError(t, Load(&second))

		assert.Equal(t, "first", first.Value)
		assert.Equal(t, "first", second.Value)
	})

	t.Run("missing required value", func(t *testing.T) {
		var cfg requiredConfig
		err := Load(&cfg)

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParsingConfig))
	})

	t.Run("nil pointer", func(t *testing.T) {
		err := Load[defaultsConfig](nil)
		assert.ErrorIs(t, err, ErrNilPointer)
	})

	t.Run("explicit environ bypasses cache", func(t *testing.T) {
		var cfg requiredConfig
		err := Load(&cfg, WithEnviron(map[string]string{
			"CFG_TEST_REQUIRED_SECRET": "s3cr3t",
		}))

		require.NoError(t, err)
		assert.Equal(t, "s3cr3t", cfg.Secret)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on missing required value", func(t *testing.T) {
		var cfg requiredConfig
		assert.Panics(t, func() { MustLoad(&cfg) })
	})

	t.Run("does not panic on valid config", func(t *testing.T) {
		var cfg defaultsConfig
		assert.NotPanics(t, func() { MustLoad(&cfg) })
	})
}

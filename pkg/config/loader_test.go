package config_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pgtask/pkg/config"
)

type workerConfig struct {
	Workers      int           `env:"PGTASK_TEST_WORKERS" envDefault:"4"`
	TaskType     string        `env:"PGTASK_TEST_TASK_TYPE" envDefault:"common"`
	PollInterval time.Duration `env:"PGTASK_TEST_POLL_INTERVAL" envDefault:"5s"`
	Queues       []string      `env:"PGTASK_TEST_QUEUES" envSeparator:","`
}

type priorityConfig struct {
	Priority     string `env:"PGTASK_TEST_PRIORITY"`
	FallbackOnly string `env:"PGTASK_TEST_FALLBACK_ONLY"`
}

type requiredConfig struct {
	DSN string `env:"PGTASK_TEST_REQUIRED_DSN,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config.ResetCache()

		var cfg workerConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, 4, cfg.Workers)
		assert.Equal(t, "common", cfg.TaskType)
		assert.Equal(t, 5*time.Second, cfg.PollInterval)
		assert.Empty(t, cfg.Queues)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("PGTASK_TEST_WORKERS", "16")
		t.Setenv("PGTASK_TEST_POLL_INTERVAL", "250ms")
		t.Setenv("PGTASK_TEST_QUEUES", "a,b")

		var cfg workerConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, 16, cfg.Workers)
		assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
		assert.Equal(t, []string{"a", "b"}, cfg.Queues)
	})

	t.Run("cached per type", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("PGTASK_TEST_WORKERS", "2")

		var first workerConfig
		require.NoError(t, config.Load(&first))

		t.Setenv("PGTASK_TEST_WORKERS", "3")

		var second workerConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, 2, second.Workers)

		config.ResetCache()

		var third workerConfig
		require.NoError(t, config.Load(&third))
		assert.Equal(t, 3, third.Workers)
	})

	t.Run("cached value is a copy", func(t *testing.T) {
		config.ResetCache()

		var first workerConfig
		require.NoError(t, config.Load(&first))
		first.Workers = 100

		var second workerConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, 4, second.Workers)
	})

	t.Run("missing required variable", func(t *testing.T) {
		config.ResetCache()

		var cfg requiredConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)

		// A failed parse is not cached
		t.Setenv("PGTASK_TEST_REQUIRED_DSN", "postgres://localhost/pgtask")
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "postgres://localhost/pgtask", cfg.DSN)
	})

	t.Run("invalid value", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("PGTASK_TEST_WORKERS", "many")

		var cfg workerConfig
		assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		assert.ErrorIs(t, config.Load[workerConfig](nil), config.ErrNilPointer)
	})

	t.Run("concurrent loads agree", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("PGTASK_TEST_WORKERS", "7")

		var wg sync.WaitGroup
		results := make([]workerConfig, 20)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, config.Load(&results[i]))
			}()
		}
		wg.Wait()

		for _, cfg := range results {
			assert.Equal(t, 7, cfg.Workers)
		}
	})
}

func TestMustLoad(t *testing.T) {
	config.ResetCache()

	var cfg requiredConfig
	assert.Panics(t, func() { config.MustLoad(&cfg) })

	t.Setenv("PGTASK_TEST_REQUIRED_DSN", "postgres://db/pgtask")
	assert.NotPanics(t, func() { config.MustLoad(&cfg) })
	assert.Equal(t, "postgres://db/pgtask", cfg.DSN)
}

// unsetEnv removes keys for the duration of the test; t.Setenv restores them.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadEnv(t *testing.T) {
	keys := []string{
		"PGTASK_TEST_WORKERS",
		"PGTASK_TEST_TASK_TYPE",
		"PGTASK_TEST_QUEUES",
		"PGTASK_TEST_PRIORITY",
		"PGTASK_TEST_FALLBACK_ONLY",
	}

	t.Run("custom file", func(t *testing.T) {
		unsetEnv(t, keys...)
		config.ResetCache()

		require.NoError(t, config.LoadEnv("testdata/.env.custom"))

		var cfg workerConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 8, cfg.Workers)
		assert.Equal(t, "reports", cfg.TaskType)
		assert.Equal(t, []string{"default", "mail", "reports"}, cfg.Queues)
	})

	t.Run("earlier files win", func(t *testing.T) {
		unsetEnv(t, keys...)
		config.ResetCache()

		require.NoError(t, config.LoadEnv("testdata/.env.custom", "testdata/.env.fallback"))

		var cfg priorityConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "custom_file_value", cfg.Priority)
		assert.Equal(t, "from_fallback", cfg.FallbackOnly)
	})

	t.Run("process environment wins", func(t *testing.T) {
		unsetEnv(t, keys...)
		config.ResetCache()
		t.Setenv("PGTASK_TEST_PRIORITY", "from_process")

		require.NoError(t, config.LoadEnv("testdata/.env.custom"))

		var cfg priorityConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "from_process", cfg.Priority)
	})

	t.Run("missing files are skipped", func(t *testing.T) {
		assert.NoError(t, config.LoadEnv("testdata/does-not-exist.env"))
	})

	t.Run("malformed file", func(t *testing.T) {
		err := config.LoadEnv("testdata/.env.broken")
		assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
		assert.Panics(t, func() { config.MustLoadEnv("testdata/.env.broken") })
	})
}

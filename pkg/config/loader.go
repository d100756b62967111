package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is read before the first Load unless LoadEnv ran earlier.
const DefaultEnvFile = ".env"

var (
	cacheMu sync.Mutex
	cache   = map[reflect.Type]any{}

	envOnce sync.Once
)

// Load parses environment variables into v using its env struct tags.
//
// Each config type is parsed once per process. Later calls copy the cached
// value into v, so pgtaskd components asking for the same type always agree.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	envOnce.Do(func() {
		// A missing .env is fine; values may come from the real environment.
		_ = loadFiles(DefaultEnvFile)
	})

	key := reflect.TypeFor[T]()

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache[key] = parsed
	*v = parsed

	return nil
}

// MustLoad is Load for configuration the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: load %s: %v", reflect.TypeFor[T](), err))
	}
}

// LoadEnv reads the given dotenv files into the process environment,
// skipping files that don't exist. Variables already set are never
// overwritten, and earlier files win over later ones. With no paths the
// default .env file is read.
//
// LoadEnv must run before the first Load of a type to affect it.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{DefaultEnvFile}
	}
	envOnce.Do(func() {})
	return loadFiles(paths...)
}

// MustLoadEnv is LoadEnv that panics on a malformed file.
func MustLoadEnv(paths ...string) {
	if err := LoadEnv(paths...); err != nil {
		panic(fmt.Sprintf("config: load env files: %v", err))
	}
}

// ResetCache drops every cached config so the next Load parses the
// environment again. Intended for tests.
func ResetCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	clear(cache)
}

func loadFiles(paths ...string) error {
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

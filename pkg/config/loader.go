package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// registry keeps one parsed value per configuration type.
type registry struct {
	mu     sync.Mutex
	values map[reflect.Type]any
}

var (
	loaded = &registry{values: make(map[reflect.Type]any)}

	dotenvOnce sync.Once
	dotenvErr  error
)

// Option tweaks how Load reads the environment.
type Option func(*loadOptions)

type loadOptions struct {
	files   []string
	environ map[string]string
}

// WithDotenvFiles overrides the list of dotenv files read before the first Load.
// Missing files are ignored. Values already present in the process environment win.
func WithDotenvFiles(files ...string) Option {
	return func(o *loadOptions) {
		o.files = files
	}
}

// WithEnviron parses from the given map instead of the process environment.
// Values read this way are not cached.
func WithEnviron(environ map[string]string) Option {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load populates v from environment variables according to its `env` struct tags.
//
// A .env file in the working directory is read once per process. The first successful
// parse of a type is cached and every later Load of the same type returns that copy,
// so configuration is effectively read once at startup.
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	o := &loadOptions{files: []string{".env"}}
	for _, opt := range opts {
		opt(o)
	}

	if o.environ != nil {
		if err := env.ParseWithOptions(v, env.Options{Environment: o.environ}); err != nil {
			return errors.Join(ErrParsingConfig, err)
		}
		return nil
	}

	readDotenv(o.files)

	key := reflect.TypeFor[T]()

	loaded.mu.Lock()
	defer loaded.mu.Unlock()

	if cached, ok := loaded.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	loaded.values[key] = parsed
	*v = parsed

	return nil
}

// MustLoad is Load for configuration the process cannot start without.
// It panics when parsing fails.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

// DotenvError reports a malformed dotenv file seen by the first Load call, if any.
// A missing file is not an error.
func DotenvError() error {
	return dotenvErr
}

func readDotenv(files []string) {
	dotenvOnce.Do(func() {
		for _, f := range files {
			if err := godotenv.Load(f); err != nil && !isNotExist(err) {
				dotenvErr = errors.Join(ErrDotenvFile, fmt.Errorf("%s: %w", f, err))
			}
		}
	})
}

// reset drops cached values. Tests only.
func reset() {
	loaded.mu.Lock()
	loaded.values = make(map[reflect.Type]any)
	loaded.mu.Unlock()
}

// Package registry provides small string-keyed registries used to look up
// pluggable constructors by name: tabular backbones, video decoders. Entries
// carry an optional provider tag so error messages and listings can say
// where a constructor came from.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrUnknownKey is returned by Get when no entry matches.
var ErrUnknownKey = errors.New("registry: unknown key")

// Registry maps names to values of type T. Safe for concurrent use.
type Registry[T any] struct {
	name string

	mu      sync.RWMutex
	entries map[string]entry[T]
}

type entry[T any] struct {
	value    T
	provider string
}

// Option configures a Register call.
type Option func(*registerOptions)

type registerOptions struct {
	provider string
	override bool
}

// WithProvider records where the entry comes from, e.g. "gomlx".
func WithProvider(p string) Option {
	return func(o *registerOptions) { o.provider = p }
}

// WithOverride allows replacing an existing entry of the same key.
func WithOverride() Option {
	return func(o *registerOptions) { o.override = true }
}

// New creates an empty registry. The name only appears in error messages.
func New[T any](name string) *Registry[T] {
	return &Registry[T]{name: name, entries: make(map[string]entry[T])}
}

// Register adds value under key. Registering a duplicate key without
// WithOverride returns an error so typos do not silently shadow entries.
func (r *Registry[T]) Register(key string, value T, opts ...Option) error {
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists && !o.override {
		return errors.Errorf("registry %q already has an entry for %q", r.name, key)
	}
	r.entries[key] = entry[T]{value: value, provider: o.provider}
	return nil
}

// MustRegister is Register for package-init wiring, panicking on error.
func (r *Registry[T]) MustRegister(key string, value T, opts ...Option) {
	if err := r.Register(key, value, opts...); err != nil {
		panic(err)
	}
}

// Get returns the value registered under key.
func (r *Registry[T]) Get(key string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrUnknownKey, "%q in registry %q (available: %s)",
			key, r.name, strings.Join(r.names(), ", "))
	}
	return e.value, nil
}

// Provider returns the provider tag recorded for key, if any.
func (r *Registry[T]) Provider(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[key].provider
}

// Names lists the registered keys, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry[T]) names() []string {
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

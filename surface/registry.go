// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"cmp"
	"errors"
	"slices"
	"sync"
)

// Factory creates a surface with the given options.
type Factory func(opts Options) (Surface, error)

// Backend is a registered surface implementation.
type Backend struct {
	// Name is the unique identifier used with OpenByName.
	Name string

	// Priority orders automatic selection, higher first. Window system
	// backends use 100, the offscreen backend 10.
	Priority int

	// Factory creates surfaces.
	Factory Factory

	// Available reports whether the backend can run on this system.
	Available func() bool
}

var globalRegistry = NewRegistry()

// Registry holds the known surface backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]*Backend
}

// NewRegistry creates an empty registry. Most code uses the package-level
// functions, which operate on the global registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]*Backend)}
}

// Register adds a backend to the global registry. A nil available means the
// backend is always available. Registering an existing name replaces it.
func Register(name string, priority int, factory Factory, available func() bool) {
	globalRegistry.Register(name, priority, factory, available)
}

// Unregister removes a backend from the global registry.
func Unregister(name string) { globalRegistry.Unregister(name) }

// List returns the registered backend names, highest priority first.
func List() []string { return globalRegistry.List() }

// Available returns the usable backend names, highest priority first.
func Available() []string { return globalRegistry.Available() }

// Open creates a surface on the best available backend.
func Open(opts Options) (Surface, error) { return globalRegistry.Open(opts) }

// OpenByName creates a surface on the named backend.
func OpenByName(name string, opts Options) (Surface, error) {
	return globalRegistry.OpenByName(name, opts)
}

// Register adds a backend to r.
func (r *Registry) Register(name string, priority int, factory Factory, available func() bool) {
	if available == nil {
		available = func() bool { return true }
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = &Backend{Name: name, Priority: priority, Factory: factory, Available: available}
}

// Unregister removes a backend from r.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, name)
}

// Get returns a copy of the named backend entry.
func (r *Registry) Get(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	if !ok {
		return Backend{}, false
	}
	return *b, true
}

// List returns all backend names of r, highest priority first.
func (r *Registry) List() []string { return r.names(false) }

// Available returns the usable backend names of r, highest priority first.
func (r *Registry) Available() []string { return r.names(true) }

// Open tries every available backend in priority order and returns the
// first surface created. The last factory error is returned if all fail.
func (r *Registry) Open(opts Options) (Surface, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	names := r.Available()
	if len(names) == 0 {
		return nil, ErrNoBackendAvailable
	}
	var lastErr error
	for _, name := range names {
		s, err := r.OpenByName(name, opts)
		if err == nil {
			return s, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// OpenByName creates a surface on the named backend of r.
func (r *Registry) OpenByName(name string, opts Options) (Surface, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	b, ok := r.Get(name)
	if !ok {
		return nil, &BackendNotFoundError{Name: name}
	}
	if !b.Available() {
		return nil, &BackendUnavailableError{Name: name}
	}
	return b.Factory(opts)
}

// names returns backend names by descending priority, ties by name.
func (r *Registry) names(onlyAvailable bool) []string {
	r.mu.RLock()
	backends := make([]*Backend, 0, len(r.backends))
	for _, b := range r.backends {
		backends = append(backends, b)
	}
	r.mu.RUnlock()

	slices.SortFunc(backends, func(a, b *Backend) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	names := make([]string, 0, len(backends))
	for _, b := range backends {
		if onlyAvailable && !b.Available() {
			continue
		}
		names = append(names, b.Name)
	}
	return names
}

// ErrNoBackendAvailable is returned when no backend is registered or none
// is available on this system.
var ErrNoBackendAvailable = errors.New("surface: no backend available")

// BackendNotFoundError indicates a named backend is not registered.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return "surface: backend not found: " + e.Name
}

// BackendUnavailableError indicates a backend exists but cannot run here.
type BackendUnavailableError struct {
	Name string
}

func (e *BackendUnavailableError) Error() string {
	return "surface: backend unavailable: " + e.Name
}

func init() {
	Register(OffscreenName, 10, func(opts Options) (Surface, error) {
		return NewOffscreen(opts)
	}, nil)
}

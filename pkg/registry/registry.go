package registry

import (
	"sort"
	"sync"

	"github.com/chuang453/batch-process/pkg/errors"
	"github.com/chuang453/batch-process/pkg/logging"
)

// Registry is a generic, thread-safe registry for storing and retrieving
// items by name. Registering a name that already exists overwrites the
// previous item and notifies subscribers, so processor implementations can
// be swapped between runs without restarting the host.
type Registry[T any] interface {
	// Register adds an item to the registry, replacing any existing
	// item under the same name.
	Register(name string, item T) error

	// Get retrieves an item from the registry
	Get(name string) (T, error)

	// Remove removes an item from the registry
	Remove(name string) error

	// List returns all registered names in sorted order
	List() []string

	// Has checks if an item is registered
	Has(name string) bool

	// Clear removes all items from the registry
	Clear()

	// Count returns the number of registered items
	Count() int

	// Subscribe adds a callback invoked with the name of every
	// subsequent registration (including replacements)
	Subscribe(fn func(name string, replaced bool))
}

// registry is the internal implementation of Registry
type registry[T any] struct {
	mu          sync.RWMutex
	items       map[string]T
	subscribers []func(name string, replaced bool)
}

// New creates a new Registry instance
func New[T any]() Registry[T] {
	return &registry[T]{
		items: make(map[string]T),
	}
}

// Register adds an item to the registry. An existing name is overwritten
// with a non-fatal notice rather than an error.
func (r *registry[T]) Register(name string, item T) error {
	if name == "" {
		return errors.New(errors.ErrInvalidInput, "registry name cannot be empty")
	}

	r.mu.Lock()
	_, replaced := r.items[name]
	r.items[name] = item
	subscribers := append([]func(string, bool){}, r.subscribers...)
	r.mu.Unlock()

	if replaced {
		logger := logging.GetLogger("registry")
		logger.Warn().
			Str("name", name).
			Msg("item already registered, will be replaced")
	}

	for _, fn := range subscribers {
		fn(name, replaced)
	}
	return nil
}

// Get retrieves an item from the registry
func (r *registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[name]
	if !exists {
		var zero T
		return zero, errors.Newf(errors.ErrNotFound, "item '%s' not found in registry", name)
	}

	return item, nil
}

// Remove removes an item from the registry
func (r *registry[T]) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; !exists {
		return errors.Newf(errors.ErrNotFound, "item '%s' not found in registry", name)
	}

	delete(r.items, name)
	return nil
}

// List returns all registered names in sorted order
func (r *registry[T]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// Has checks if an item is registered
func (r *registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.items[name]
	return exists
}

// Clear removes all items from the registry
func (r *registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make(map[string]T)
}

// Count returns the number of registered items
func (r *registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items)
}

// Subscribe adds a registration-change callback
func (r *registry[T]) Subscribe(fn func(name string, replaced bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscribers = append(r.subscribers, fn)
}

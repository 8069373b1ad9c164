package remote

import "sync"

// The process-wide registry is an explicit singleton behind a single
// access point: created on first use, torn down with Shutdown, and
// resettable for test isolation. Nothing else in this package keeps
// hidden global state besides the connection cache, which Reset also
// drops.

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
)

// Default returns the process-wide registry, creating it (and its
// endpoint) lazily on first use.
func Default() (*Registry, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRegistry == nil {
		r, err := NewRegistry()
		if err != nil {
			return nil, err
		}

		defaultRegistry = r
	}

	return defaultRegistry, nil
}

// Publish publishes obj on the process-wide registry.
func Publish(obj any) (Handle, error) {
	r, err := Default()
	if err != nil {
		return Handle{}, err
	}

	return r.Publish(obj)
}

// Shutdown stops the process-wide registry endpoint. The next call to
// Default creates a fresh one with a new address and secret.
func Shutdown() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRegistry == nil {
		return nil
	}

	err := defaultRegistry.Close()
	defaultRegistry = nil

	return err
}

// Reset tears down the process-wide registry and drops all cached
// connections. Intended for test isolation.
func Reset() error {
	err := Shutdown()

	resetClients()

	return err
}

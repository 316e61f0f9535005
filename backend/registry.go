package backend

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gpucontext"
)

// Backend names.
const (
	// NameNative opens the best GPU backend linked into the wgpu HAL.
	NameNative = "native"

	// NameSoftware opens the CPU backend. Always available.
	NameSoftware = "software"
)

// Factory opens a share group on a particular backend.
type Factory func(opts ...Option) (*ShareGroup, error)

// Priority order for OpenDefault (first that opens wins).
var backendPriority = []string{NameNative, NameSoftware}

var factories = gpucontext.NewRegistry[Factory](gpucontext.WithPriority(backendPriority...))

func init() {
	Register(NameNative, OpenNative)
	Register(NameSoftware, OpenSoftware)
}

// Register registers a backend factory with the given name.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, f Factory) {
	factories.Register(name, func() Factory { return f })
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	factories.Unregister(name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	names := factories.Available()
	slices.Sort(names)
	return names
}

// IsRegistered reports whether a backend with the given name is registered.
func IsRegistered(name string) bool {
	return factories.Has(name)
}

// OpenByName opens the named backend.
func OpenByName(name string, opts ...Option) (*ShareGroup, error) {
	f := factories.Get(name)
	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	return f(opts...)
}

// OpenDefault opens the best available backend. Backends are tried in
// priority order (native, then software, then anything else registered);
// a backend that fails to open is skipped.
func OpenDefault(opts ...Option) (*ShareGroup, error) {
	order := make([]string, 0, factories.Count())
	for _, name := range backendPriority {
		if factories.Has(name) {
			order = append(order, name)
		}
	}
	for _, name := range Available() {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}

	var errs []error
	for _, name := range order {
		g, err := OpenByName(name, opts...)
		if err == nil {
			slogger().Info("backend: selected", "name", name)
			return g, nil
		}
		slogger().Debug("backend: unavailable", "name", name, "err", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrBackendNotAvailable
	}
	return nil, errors.Join(errs...)
}

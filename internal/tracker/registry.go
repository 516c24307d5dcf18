package tracker

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownSource is returned by NewSource for a name no adapter registered.
var ErrUnknownSource = errors.New("unknown source tracker")

// SourceFactory creates an uninitialized Source.
type SourceFactory func() Source

var (
	registryMu sync.RWMutex
	factories  = make(map[string]SourceFactory)
)

// Register makes a source adapter available under name. Adapters call it
// from init. Registering a nil factory or the same name twice panics.
func Register(name string, factory SourceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("tracker: Register factory is nil for " + name)
	}
	if _, dup := factories[name]; dup {
		panic("tracker: Register called twice for " + name)
	}
	factories[name] = factory
}

// NewSource returns a fresh instance of the named adapter. The name is
// matched case-insensitively.
func NewSource(name string) (Source, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	registryMu.RLock()
	factory := factories[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownSource, name, strings.Join(Names(), ", "))
	}
	return factory(), nil
}

// Names lists the registered adapters, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// unregister removes name; tests use it to undo Register.
func unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

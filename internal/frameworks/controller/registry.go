package controller

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]NewController)
)

// Register registers a controller constructor by name.
// This is typically called from init() in controller packages.
// Duplicate registration returns an error.
func Register(name string, newFunc NewController) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return fmt.Errorf("controller %q already registered", name)
	}
	registry[name] = newFunc
	return nil
}

// MustRegister is like Register but panics on error.
// Use this in init() where returning an error is not possible.
func MustRegister(name string, newFunc NewController) {
	if err := Register(name, newFunc); err != nil {
		panic(err)
	}
}

// Get returns the constructor for a registered controller, or nil.
func Get(name string) NewController {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// Registered returns the sorted names of all registered controllers.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resetRegistry is for testing only. Clears the registry.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]NewController)
}

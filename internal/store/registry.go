package store

import (
	"fmt"
	"sort"
	"sync"
)

// DriverConfig holds configuration for driver selection and initialization.
type DriverConfig struct {
	// Driver is the driver name: memory, json, sqlite, mirror
	Driver string `json:"driver" toml:"driver"`

	// DataDir is the directory for data files (json files, sqlite db)
	DataDir string `json:"data_dir" toml:"data_dir"`

	// Mirror holds settings for the mirror driver.
	Mirror MirrorConfig `json:"mirror" toml:"mirror"`
}

// MirrorConfig controls the JSON export of the mirror driver.
type MirrorConfig struct {
	// IncludeCookies keeps Cookie and Set-Cookie headers in the export.
	// They are redacted by default.
	IncludeCookies bool `json:"include_cookies" toml:"include_cookies"`
}

// DriverFactory is a function that creates a driver instance.
type DriverFactory func(cfg *DriverConfig) (Driver, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// Register registers a driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// New creates a driver instance based on the configuration.
func New(cfg *DriverConfig) (Driver, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown driver: %s", cfg.Driver)
	}

	return factory(cfg)
}

// AvailableDrivers returns the sorted list of registered driver names.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package twotier

import (
	"github.com/kirky-x/twotier/internal/config"
	"github.com/kirky-x/twotier/internal/registry"
)

// instances holds every named Cache a process has initialized through Init,
// replacing a package-level global singleton with an explicit, resettable
// handle that tests and multi-service hosts can manage directly.
var instances = registry.New[*Cache]()

// Init builds a Cache for service via New and registers it under name so it
// can be retrieved later with Get. It returns an error if name is already
// registered — call Reset first to replace an existing instance.
func Init(name string, cfg config.ServiceConfig, opts Options) (*Cache, error) {
	c, err := New(name, cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := instances.Init(name, c); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Get returns the Cache registered under name, if any.
func Get(name string) (*Cache, bool) {
	return instances.Get(name)
}

// Reset closes and deregisters the Cache registered under name, if present.
func Reset(name string) error {
	return instances.Reset(name)
}

// ResetAll closes and deregisters every registered Cache.
func ResetAll() error {
	return instances.ResetAll()
}

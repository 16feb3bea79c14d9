package plugin

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ynotnauk/go-convex/interfaces"
)

// Factory builds a plugin for the given server.
type Factory func(server interfaces.Server) (interfaces.Plugin, error)

var (
	factories   = make(map[string]Factory)
	factoriesMu sync.RWMutex
)

// Register makes a plugin available by name, usually from an init function.
// It panics if name is blank, factory is nil or name is already registered.
func Register(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if name == "" {
		panic("plugin: Register name is blank")
	}
	if factory == nil {
		panic("plugin: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("plugin: Register called twice for %q", name))
	}
	factories[name] = factory
}

// Registered returns the sorted names of all registered plugins.
func Registered() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func lookup(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	factory, ok := factories[name]
	return factory, ok
}

package dialect

import (
	"sort"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]*Dialect{}
)

// Register publishes d under its lowercased name. Adapter packages call it
// from init() next to their adapter registration.
func Register(d *Dialect) {
	if d == nil || d.Name == "" {
		panic("dialect: Register needs a named dialect")
	}
	registryMu.Lock()
	registry[strings.ToLower(d.Name)] = d
	registryMu.Unlock()
}

// Get looks up a registered dialect by name, ignoring case.
func Get(name string) (*Dialect, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[strings.ToLower(name)]
	return d, ok
}

// List returns the registered dialect names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

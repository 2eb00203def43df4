package ports

import (
	"fmt"
	"sort"
	"sync"
)

// Adapter bundles the platform-specific collaborators for one backend (a
// capture method plus its matching recognizer and input injector).
type Adapter struct {
	Frames     FrameProvider
	Recognizer NodeRecognizer
	Input      InputActuator
}

// AdapterFactory constructs an adapter bound to a window title.
type AdapterFactory func(windowTitle string) (*Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterFactory)
)

// RegisterAdapter makes a platform adapter available under a name referenced
// from plan configuration. Platform packages call this from init.
func RegisterAdapter(name string, factory AdapterFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// NewAdapter builds the named adapter.
func NewAdapter(name, windowTitle string) (*Adapter, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no platform adapter registered under %q (available: %v)", name, AdapterNames())
	}
	return factory(windowTitle)
}

// AdapterNames lists registered adapters in sorted order.
func AdapterNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

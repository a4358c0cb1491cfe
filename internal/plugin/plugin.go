// Package plugin is the table of module implementations compiled into the
// binary. A resource that a registry scope is authorized to serve can only
// be executed when an implementation with the same logical name is
// registered here.
package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/e5r/devcom/internal/deverr"
)

// Kind is the resource scheme a module is served under.
type Kind string

// Module kinds.
const (
	KindCommand Kind = "cmd"
	KindLibrary Kind = "lib"
)

// Factory creates a fresh module instance.
type Factory func() any

type key struct {
	kind Kind
	name string
}

// Table maps (kind, name) to module factories. It is safe for concurrent use.
type Table struct {
	mu        sync.RWMutex
	factories map[key]Factory
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{factories: make(map[key]Factory)}
}

// Register adds a factory. Panics on an empty name or a duplicate.
func (t *Table) Register(kind Kind, name string, f Factory) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if name == "" {
		panic("plugin: cannot register module with empty name")
	}
	k := key{kind, name}
	if _, exists := t.factories[k]; exists {
		panic(fmt.Sprintf("plugin: %s://%s already registered", kind, name))
	}
	t.factories[k] = f
}

// Has reports whether (kind, name) is registered.
func (t *Table) Has(kind Kind, name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.factories[key{kind, name}]
	return ok
}

// Load instantiates the module registered for (kind, name).
func (t *Table) Load(kind Kind, name string) (any, error) {
	t.mu.RLock()
	f, ok := t.factories[key{kind, name}]
	t.mu.RUnlock()
	if !ok {
		return nil, deverr.ContractViolation("no implementation registered for %s://%s", kind, name)
	}
	return f(), nil
}

// Names returns the registered names of kind in sorted order.
func (t *Table) Names(kind Kind) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var names []string
	for k := range t.factories {
		if k.kind == kind {
			names = append(names, k.name)
		}
	}
	sort.Strings(names)
	return names
}

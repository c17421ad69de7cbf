package yamlconfig

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/centraunit/aop"
)

// Catalog maps the type names used in configuration files to Go types.
// Go cannot look types up by name at run time, so every contract, implementation and
// factory a file refers to must be added first.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewCatalog returns a catalog holding types under their aop.TypeName.
func NewCatalog(types ...reflect.Type) *Catalog {
	c := &Catalog{types: make(map[string]reflect.Type, len(types))}
	c.Add(types...)
	return c
}

// Add registers each type under its package-qualified name. Nil types are skipped.
func (c *Catalog) Add(types ...reflect.Type) {
	for _, t := range types {
		if t != nil {
			c.AddNamed(aop.TypeName(t), t)
		}
	}
}

// AddNamed registers t under an additional name, e.g. a short alias.
func (c *Catalog) AddNamed(name string, t reflect.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[name] = t
}

// Lookup returns the type registered under name.
func (c *Catalog) Lookup(name string) (reflect.Type, error) {
	c.mu.RLock()
	t, ok := c.types[name]
	c.mu.RUnlock()
	if !ok {
		return nil, &UnknownTypeError{Name: name}
	}
	return t, nil
}

// Names returns the registered names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownTypeError reports a configuration file naming a type missing from the catalog.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("type %q is not in the catalog", e.Name)
}

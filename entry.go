package aop

import "reflect"

// Entry binds one aspect factory type to a sort order and the contract methods
// its aspect intercepts. Entries are equal when their factory types are equal.
type Entry struct {
	factoryType reflect.Type
	sortOrder   int
	factory     Factory
	methods     []Method
	index       map[Method]struct{}
}

// NewEntry creates an entry for factoryType. Zero methods are dropped and duplicates
// collapse; a nil method list yields an empty set.
func NewEntry(factoryType reflect.Type, sortOrder int, methods ...Method) (*Entry, error) {
	if factoryType == nil {
		return nil, &NilArgumentError{Name: "factoryType"}
	}
	if err := ValidateFactoryType(factoryType); err != nil {
		return nil, err
	}
	e := &Entry{
		factoryType: factoryType,
		sortOrder:   sortOrder,
		index:       make(map[Method]struct{}, len(methods)),
	}
	e.union(methods)
	return e, nil
}

// ValidateFactoryType checks that t is a concrete, instantiable type whose value or
// pointer implements Factory.
func ValidateFactoryType(t reflect.Type) error {
	if t == nil {
		return &NilArgumentError{Name: "factoryType"}
	}
	base := t
	for base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if base.Kind() == reflect.Interface {
		return &InvalidTypeError{Name: "factoryType", Type: t.String(), Reason: "must be a concrete type"}
	}
	if !t.Implements(factoryInterface) && !reflect.PointerTo(t).Implements(factoryInterface) {
		return &InvalidTypeError{Name: "factoryType", Type: t.String(), Reason: "must implement aop.Factory"}
	}
	return nil
}

// FactoryType returns the type of the factory producing this entry's aspect.
func (e *Entry) FactoryType() reflect.Type { return e.factoryType }

// Factory returns the factory instance attached to the entry, or nil when the
// container's factory for FactoryType is used.
func (e *Entry) Factory() Factory { return e.factory }

// SortOrder returns the entry's position key; higher values run further out.
func (e *Entry) SortOrder() int { return e.sortOrder }

// AddMethods adds methods to the set. Adding a method twice has no effect.
func (e *Entry) AddMethods(methods ...Method) error {
	if methods == nil {
		return &NilArgumentError{Name: "methods"}
	}
	if len(methods) == 0 {
		return &InvalidArgumentError{Name: "methods", Reason: "value cannot be an empty collection"}
	}
	e.union(methods)
	return nil
}

// RemoveMethods removes methods from the set. A nil or empty list is a no-op.
func (e *Entry) RemoveMethods(methods ...Method) {
	if len(methods) == 0 {
		return
	}
	drop := make(map[Method]struct{}, len(methods))
	for _, m := range methods {
		drop[m] = struct{}{}
	}
	kept := e.methods[:0]
	for _, m := range e.methods {
		if _, ok := drop[m]; ok {
			delete(e.index, m)
			continue
		}
		kept = append(kept, m)
	}
	e.methods = kept
}

// Methods returns a snapshot of the method set in insertion order.
func (e *Entry) Methods() []Method {
	return append([]Method(nil), e.methods...)
}

// Intercepts reports whether the entry applies to m. An empty set applies to every method.
func (e *Entry) Intercepts(m Method) bool {
	if len(e.methods) == 0 {
		return true
	}
	_, ok := e.index[m]
	return ok
}

// Equal reports whether both entries configure the same factory type.
func (e *Entry) Equal(other *Entry) bool {
	if e == other {
		return true
	}
	if e == nil || other == nil {
		return false
	}
	return e.factoryType == other.factoryType
}

func (e *Entry) union(methods []Method) {
	for _, m := range methods {
		if m.IsZero() {
			continue
		}
		if _, ok := e.index[m]; ok {
			continue
		}
		e.index[m] = struct{}{}
		e.methods = append(e.methods, m)
	}
}

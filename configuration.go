package aop

import (
	"cmp"
	"reflect"
	"slices"
)

// FactoryFunc builds a service instance inside the container.
type FactoryFunc func(ctx *ContainerContext) (any, error)

// Binding identifies a service registration: a contract interface implemented either
// by a concrete type or by a factory function.
type Binding struct {
	Contract       reflect.Type
	Implementation reflect.Type
	Factory        FactoryFunc
	Scope          Scope

	factoryID *factoryID
}

// factoryID tags the factory of one NewFactoryBinding call; copies of the binding share it.
type factoryID struct{ _ byte }

// NewBinding validates and returns a type-based binding.
func NewBinding(contract, implementation reflect.Type, scope Scope) (Binding, error) {
	if err := validateContract(contract); err != nil {
		return Binding{}, err
	}
	if implementation == nil {
		return Binding{}, &NilArgumentError{Name: "implementation"}
	}
	base := implementation
	if base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if base.Kind() == reflect.Interface {
		return Binding{}, &InvalidTypeError{Name: "implementation", Type: implementation.String(), Reason: "must be a concrete type"}
	}
	if !implementation.Implements(contract) {
		return Binding{}, &InvalidTypeError{
			Name:   "implementation",
			Type:   implementation.String(),
			Reason: "does not implement " + contract.String(),
		}
	}
	return Binding{Contract: contract, Implementation: implementation, Scope: scope}, nil
}

// NewFactoryBinding validates and returns a factory-based binding.
func NewFactoryBinding(contract reflect.Type, factory FactoryFunc, scope Scope) (Binding, error) {
	if err := validateContract(contract); err != nil {
		return Binding{}, err
	}
	if factory == nil {
		return Binding{}, &NilArgumentError{Name: "factory"}
	}
	return Binding{Contract: contract, Factory: factory, Scope: scope, factoryID: &factoryID{}}, nil
}

func validateContract(contract reflect.Type) error {
	if contract == nil {
		return &NilArgumentError{Name: "contract"}
	}
	if contract.Kind() != reflect.Interface {
		return &InvalidTypeError{Name: "contract", Type: contract.String(), Reason: "must be an interface"}
	}
	return nil
}

// Equal reports whether both bindings have the same contract, implementation and factory.
// A factory is the same only when both bindings come from one NewFactoryBinding call.
func (b Binding) Equal(other Binding) bool {
	return b.Contract == other.Contract &&
		b.Implementation == other.Implementation &&
		b.sameFactory(other)
}

// UsesFactory reports whether the binding is built by a factory function.
func (b Binding) UsesFactory() bool { return b.Factory != nil }

func (b Binding) sameFactory(other Binding) bool {
	if b.Factory == nil || other.Factory == nil {
		return b.Factory == nil && other.Factory == nil
	}
	return b.factoryID != nil && b.factoryID == other.factoryID
}

// EntryOption customizes Configuration.AddEntry.
type EntryOption func(*entryOptions)

type entryOptions struct {
	sortOrder    int
	hasSortOrder bool
	methods      []Method
	factory      Factory
}

// WithSortOrder sets an explicit sort order. It must be at least one.
func WithSortOrder(order int) EntryOption {
	return func(o *entryOptions) {
		o.sortOrder = order
		o.hasSortOrder = true
	}
}

// WithMethods restricts the entry to the given methods. Without it, or when every
// given method is zero, the entry covers all methods of the contract.
func WithMethods(methods ...Method) EntryOption {
	return func(o *entryOptions) {
		o.methods = append(o.methods, methods...)
	}
}

// WithFactory attaches f to the entry, so that this service's aspect is created by f
// instead of the container's factory for the type. A nil f is ignored.
func WithFactory(f Factory) EntryOption {
	return func(o *entryOptions) {
		if f != nil {
			o.factory = f
		}
	}
}

// Configuration holds the aspect entries of one Binding.
// Two configurations are equal when their bindings are equal.
type Configuration struct {
	binding Binding
	entries []*Entry
}

// NewConfiguration creates an empty configuration for binding.
func NewConfiguration(binding *Binding) (*Configuration, error) {
	if binding == nil {
		return nil, &NilArgumentError{Name: "binding"}
	}
	if err := validateContract(binding.Contract); err != nil {
		return nil, err
	}
	return &Configuration{binding: *binding}, nil
}

// Binding returns the registration the configuration belongs to.
func (c *Configuration) Binding() Binding { return c.binding }

// AddEntry attaches the aspect produced by factoryType. When an entry for the same
// factory type exists, its method set is extended and its sort order is kept.
func (c *Configuration) AddEntry(factoryType reflect.Type, opts ...EntryOption) error {
	if factoryType == nil {
		return &NilArgumentError{Name: "factoryType"}
	}
	var o entryOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.hasSortOrder && o.sortOrder < 1 {
		return &InvalidSortOrderError{SortOrder: o.sortOrder}
	}
	if o.factory != nil && reflect.TypeOf(o.factory) != factoryType {
		return &InvalidTypeError{
			Name:   "factory",
			Type:   reflect.TypeOf(o.factory).String(),
			Reason: "does not match factory type " + factoryType.String(),
		}
	}
	sortOrder := o.sortOrder
	if !o.hasSortOrder {
		sortOrder = c.nextSortOrder()
	}

	methods := make([]Method, 0, len(o.methods))
	for _, m := range o.methods {
		if !m.IsZero() {
			methods = append(methods, m)
		}
	}
	if len(methods) == 0 {
		methods = MethodsOf(c.binding.Contract)
	}

	if existing := c.entry(factoryType); existing != nil {
		if existing.factory == nil {
			existing.factory = o.factory
		}
		if len(methods) == 0 {
			return nil
		}
		return existing.AddMethods(methods...)
	}

	entry, err := NewEntry(factoryType, sortOrder, methods...)
	if err != nil {
		return err
	}
	entry.factory = o.factory
	c.entries = append(c.entries, entry)
	return nil
}

// Aspects returns the entries ordered by descending sort order. Entries with equal
// sort orders keep their insertion order.
func (c *Configuration) Aspects() []*Entry {
	out := append([]*Entry(nil), c.entries...)
	slices.SortStableFunc(out, func(a, b *Entry) int {
		return cmp.Compare(b.sortOrder, a.sortOrder)
	})
	return out
}

// ShouldIntercept reports whether the aspect of factoryType applies to method.
func (c *Configuration) ShouldIntercept(factoryType reflect.Type, method Method) bool {
	for _, e := range c.entries {
		if e.factoryType == factoryType && e.Intercepts(method) {
			return true
		}
	}
	return false
}

// Equal reports whether both configurations belong to the same binding.
func (c *Configuration) Equal(other *Configuration) bool {
	if c == other {
		return true
	}
	if c == nil || other == nil {
		return false
	}
	return c.binding.Equal(other.binding)
}

func (c *Configuration) entry(factoryType reflect.Type) *Entry {
	for _, e := range c.entries {
		if e.factoryType == factoryType {
			return e
		}
	}
	return nil
}

func (c *Configuration) nextSortOrder() int {
	if len(c.entries) == 0 {
		return 1
	}
	highest := c.entries[0].sortOrder
	for _, e := range c.entries[1:] {
		highest = max(highest, e.sortOrder)
	}
	return highest + 1
}

// Package aop provides aspect-oriented interception for services registered in a
// dependency injection container.
//
// Services are registered as (contract interface, implementation) pairs. Each
// registration owns a Configuration listing the aspect factories that wrap it and
// the contract methods each factory intercepts. When the container resolves a
// service with aspects, it wraps the instance in a Proxy that routes every
// intercepted call through the aspects' PreInvoke and PostInvoke hooks.
package aop

import "reflect"

// Lifecycle defines the interface for services that require initialization and cleanup.
// Implementing it is optional; the container calls the hooks when present.
type Lifecycle interface {
	// OnBoot is called after the container has constructed the service.
	// It receives the ContainerContext the service is resolved in.
	OnBoot(ctx *ContainerContext) error

	// OnShutdown is called when the service is being terminated.
	// It should clean up any resources held by the service.
	OnShutdown(ctx *ContainerContext) error
}

// Scope defines the lifetime and sharing behavior of a service.
type Scope string

// Available service scopes
const (
	// ScopeTransient creates a new instance for each resolution
	ScopeTransient Scope = "transient"
	// ScopeScoped shares an instance within a scope created by Container.NewScope
	ScopeScoped Scope = "scoped"
	// ScopeSingleton shares a single instance across the application
	ScopeSingleton Scope = "singleton"
)

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeTransient, ScopeScoped, ScopeSingleton:
		return true
	}
	return false
}

// Aspect is the advice applied around an intercepted call.
// Both hooks receive the same Invocation; PreInvoke may clear Invocation.Proceed
// to short-circuit the wrapped call.
type Aspect interface {
	PreInvoke(inv *Invocation)
	PostInvoke(inv *Invocation)
}

// Factory produces the Aspect attached to one service registration.
// The concrete type of a Factory is the key aspects are configured under.
type Factory interface {
	Create(binding Binding, ctx *ContainerContext) (Aspect, error)
}

// Provider stores aspect configurations and answers interception queries.
type Provider interface {
	// AddConfiguration stores cfg, replacing any configuration with an equal binding.
	AddConfiguration(cfg *Configuration) error

	// Configurations returns the stored configurations in insertion order.
	Configurations() []*Configuration

	// Last returns the most recently added configuration.
	Last() (*Configuration, bool)

	// Lookup returns the configuration registered for the contract and
	// implementation, or nil when there is none.
	Lookup(contract, implementation reflect.Type) (*Configuration, error)

	// LoadConfiguration hydrates the provider from its backing store.
	LoadConfiguration() error

	// ShouldIntercept reports whether the aspect produced by factoryType intercepts
	// method for the given registration.
	ShouldIntercept(factoryType, contract, implementation reflect.Type, method Method) (bool, error)
}

var (
	factoryInterface   = reflect.TypeOf((*Factory)(nil)).Elem()
	lifecycleInterface = reflect.TypeOf((*Lifecycle)(nil)).Elem()
	errorInterface     = reflect.TypeOf((*error)(nil)).Elem()
)

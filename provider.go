package aop

import "reflect"

// InMemoryProvider keeps aspect configurations in a slice, in registration order.
// It is not safe for concurrent mutation; build it during start-up.
type InMemoryProvider struct {
	configurations []*Configuration
}

// NewInMemoryProvider returns an empty provider.
func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{}
}

// AddConfiguration records cfg, replacing any configuration for an equal binding.
func (p *InMemoryProvider) AddConfiguration(cfg *Configuration) error {
	if cfg == nil {
		return &NilArgumentError{Name: "configuration"}
	}
	for i, existing := range p.configurations {
		if existing.Equal(cfg) {
			p.configurations = append(p.configurations[:i], p.configurations[i+1:]...)
			break
		}
	}
	p.configurations = append(p.configurations, cfg)
	return nil
}

// Configurations returns the recorded configurations in registration order.
func (p *InMemoryProvider) Configurations() []*Configuration {
	return append([]*Configuration(nil), p.configurations...)
}

// Last returns the most recently added configuration.
func (p *InMemoryProvider) Last() (*Configuration, bool) {
	if len(p.configurations) == 0 {
		return nil, false
	}
	return p.configurations[len(p.configurations)-1], true
}

// Lookup finds the configuration for contract and implementation. A factory-based
// binding matches any implementation of its contract. It returns nil when nothing matches.
func (p *InMemoryProvider) Lookup(contract, implementation reflect.Type) (*Configuration, error) {
	if contract == nil {
		return nil, &NilArgumentError{Name: "contract"}
	}
	if implementation == nil {
		return nil, &NilArgumentError{Name: "implementation"}
	}
	for _, cfg := range p.configurations {
		b := cfg.binding
		if b.Contract != contract {
			continue
		}
		if b.UsesFactory() || b.Implementation == implementation {
			return cfg, nil
		}
	}
	return nil, nil
}

// LoadConfiguration is unsupported: the in-memory provider has no backing store.
func (p *InMemoryProvider) LoadConfiguration() error {
	return &UnsupportedOperationError{
		Operation: "LoadConfiguration",
		Reason:    "the in-memory provider has no external store to load from",
	}
}

// ShouldIntercept reports whether the aspect built by factoryType intercepts method on
// the registration of contract and implementation. Unregistered pairs yield false.
func (p *InMemoryProvider) ShouldIntercept(factoryType, contract, implementation reflect.Type, method Method) (bool, error) {
	switch {
	case factoryType == nil:
		return false, &NilArgumentError{Name: "factoryType"}
	case contract == nil:
		return false, &NilArgumentError{Name: "contract"}
	case implementation == nil:
		return false, &NilArgumentError{Name: "implementation"}
	case method.IsZero():
		return false, &NilArgumentError{Name: "method"}
	}
	cfg, err := p.Lookup(contract, implementation)
	if err != nil || cfg == nil {
		return false, err
	}
	return cfg.ShouldIntercept(factoryType, method), nil
}

var _ Provider = (*InMemoryProvider)(nil)

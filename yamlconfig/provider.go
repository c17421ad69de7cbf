// Package yamlconfig stores aspect configurations in a YAML file.
//
// Its Provider behaves like aop.InMemoryProvider for registrations made in code and
// adds LoadConfiguration, which applies the file on top of them.
package yamlconfig

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/centraunit/aop"
	"go.uber.org/zap"
)

// Provider is an aop.Provider backed by a YAML document.
//
// Loading never mutates configurations that readers may hold: the file is applied to a
// copy of the current configurations, which then replaces them. Proxies created before
// a load keep the decisions they were built with.
type Provider struct {
	current atomic.Pointer[aop.InMemoryProvider]

	path    string
	catalog *Catalog
	logger  *zap.Logger

	mu      sync.Mutex
	created []aop.Binding
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger load results are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider returns a provider reading path and resolving type names in catalog.
func NewProvider(path string, catalog *Catalog, opts ...Option) *Provider {
	if catalog == nil {
		catalog = NewCatalog()
	}
	p := &Provider{
		path:    path,
		catalog: catalog,
		logger:  zap.NewNop(),
	}
	p.current.Store(aop.NewInMemoryProvider())
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Path returns the file the provider loads.
func (p *Provider) Path() string { return p.path }

func (p *Provider) AddConfiguration(cfg *aop.Configuration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Load().AddConfiguration(cfg)
}

func (p *Provider) Configurations() []*aop.Configuration {
	return p.current.Load().Configurations()
}

func (p *Provider) Last() (*aop.Configuration, bool) {
	return p.current.Load().Last()
}

func (p *Provider) Lookup(contract, implementation reflect.Type) (*aop.Configuration, error) {
	return p.current.Load().Lookup(contract, implementation)
}

func (p *Provider) ShouldIntercept(factoryType, contract, implementation reflect.Type, method aop.Method) (bool, error) {
	return p.current.Load().ShouldIntercept(factoryType, contract, implementation, method)
}

// LoadConfiguration reads the file and applies every service it lists. Services
// already configured gain the file's aspects; others get a new configuration whose
// binding can be added to a container with RegisterServices. Loading is additive:
// aspects removed from the file stay configured until the process restarts.
func (p *Provider) LoadConfiguration() error {
	doc, err := ReadDocument(p.path)
	if err != nil {
		return err
	}
	return p.Apply(doc)
}

// Apply merges doc into the provider. On error the provider is left unchanged.
func (p *Provider) Apply(doc *Document) error {
	if doc == nil {
		return &aop.NilArgumentError{Name: "document"}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	next, err := clone(p.current.Load())
	if err != nil {
		return err
	}
	var created []aop.Binding
	for i, svc := range doc.Services {
		b, err := p.applyService(next, svc)
		if err != nil {
			return fmt.Errorf("services[%d] (%s): %w", i, svc.Contract, err)
		}
		if b != nil {
			created = append(created, *b)
		}
	}
	p.current.Store(next)
	p.created = append(p.created, created...)

	p.logger.Info("aspect configuration loaded",
		zap.String("path", p.path),
		zap.Int("services", len(doc.Services)),
		zap.Int("new_services", len(created)),
	)
	return nil
}

// applyService applies svc to target and returns the binding it introduced, if any.
func (p *Provider) applyService(target *aop.InMemoryProvider, svc ServiceDocument) (*aop.Binding, error) {
	contract, err := p.catalog.Lookup(svc.Contract)
	if err != nil {
		return nil, err
	}
	var impl reflect.Type
	if svc.Implementation != "" {
		if impl, err = p.catalog.Lookup(svc.Implementation); err != nil {
			return nil, err
		}
	}

	cfg, created, err := configuration(target, contract, impl, svc.Scope)
	if err != nil {
		return nil, err
	}

	for _, a := range svc.Aspects {
		factoryType, err := p.catalog.Lookup(a.Factory)
		if err != nil {
			return nil, err
		}
		var opts []aop.EntryOption
		if a.SortOrder != nil {
			opts = append(opts, aop.WithSortOrder(*a.SortOrder))
		}
		if len(a.Methods) > 0 {
			methods := make([]aop.Method, 0, len(a.Methods))
			for _, name := range a.Methods {
				m, err := aop.MethodOf(contract, name)
				if err != nil {
					return nil, err
				}
				methods = append(methods, m)
			}
			opts = append(opts, aop.WithMethods(methods...))
		}
		if err := cfg.AddEntry(factoryType, opts...); err != nil {
			return nil, err
		}
		p.logger.Debug("aspect configured",
			zap.String("contract", contract.String()),
			zap.String("factory", a.Factory),
			zap.Strings("methods", a.Methods),
		)
	}
	return created, nil
}

// configuration finds the configuration for contract and impl in target, creating it
// when the file introduces a new service. A nil impl matches any registration of contract.
func configuration(target *aop.InMemoryProvider, contract, impl reflect.Type, scope string) (*aop.Configuration, *aop.Binding, error) {
	for _, cfg := range target.Configurations() {
		b := cfg.Binding()
		if b.Contract != contract {
			continue
		}
		if impl == nil || b.UsesFactory() || b.Implementation == impl {
			return cfg, nil, nil
		}
	}
	if impl == nil {
		return nil, nil, &aop.BindingNotFoundError{Type: contract.String()}
	}

	if scope == "" {
		scope = string(aop.ScopeTransient)
	}
	binding, err := aop.NewBinding(contract, impl, aop.Scope(scope))
	if err != nil {
		return nil, nil, err
	}
	cfg, err := aop.NewConfiguration(&binding)
	if err != nil {
		return nil, nil, err
	}
	if err := target.AddConfiguration(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, &binding, nil
}

// clone deep-copies the configurations of src.
func clone(src *aop.InMemoryProvider) (*aop.InMemoryProvider, error) {
	dst := aop.NewInMemoryProvider()
	for _, cfg := range src.Configurations() {
		b := cfg.Binding()
		copied, err := aop.NewConfiguration(&b)
		if err != nil {
			return nil, err
		}
		for _, e := range cfg.Aspects() {
			// An empty method set already means every method, as AddEntry's default does.
			if err := copied.AddEntry(e.FactoryType(), aop.WithSortOrder(e.SortOrder()), aop.WithMethods(e.Methods()...), aop.WithFactory(e.Factory())); err != nil {
				return nil, err
			}
		}
		if err := dst.AddConfiguration(copied); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// RegisterServices registers the bindings of services introduced by the file in c.
func (p *Provider) RegisterServices(c *aop.Container) error {
	if c == nil {
		return &aop.NilArgumentError{Name: "container"}
	}
	p.mu.Lock()
	bindings := append([]aop.Binding(nil), p.created...)
	p.mu.Unlock()

	for _, b := range bindings {
		if err := c.Register(b); err != nil {
			return err
		}
	}
	return nil
}

var _ aop.Provider = (*Provider)(nil)

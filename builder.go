package aop

import (
	"reflect"

	"go.uber.org/zap"
)

// RegistrationBuilder registers services in a Container and records their aspect
// configurations in a Provider. Aspects are always attached to the most recently
// registered service.
type RegistrationBuilder struct {
	container *Container
	provider  Provider
	logger    *zap.Logger
}

// AddAspectSupport enables aspects on c. The provider is registered as the singleton
// for the Provider contract; a nil provider is replaced by a new InMemoryProvider.
func AddAspectSupport(c *Container, provider Provider) (*RegistrationBuilder, error) {
	if c == nil {
		return nil, &NilArgumentError{Name: "container"}
	}
	if provider == nil {
		provider = NewInMemoryProvider()
	}
	binding, err := NewFactoryBinding(TypeOf[Provider](), func(*ContainerContext) (any, error) {
		return provider, nil
	}, ScopeSingleton)
	if err != nil {
		return nil, err
	}
	if err := c.Register(binding); err != nil {
		return nil, err
	}
	c.SetProvider(provider)
	return &RegistrationBuilder{
		container: c,
		provider:  provider,
		logger:    c.Logger().Named("aspects"),
	}, nil
}

// Container returns the container services are registered in.
func (b *RegistrationBuilder) Container() *Container { return b.container }

// Provider returns the provider configurations are recorded in.
func (b *RegistrationBuilder) Provider() Provider { return b.provider }

// AddService registers implementation for contract and starts its aspect configuration.
func (b *RegistrationBuilder) AddService(contract, implementation reflect.Type, scope Scope) error {
	binding, err := NewBinding(contract, implementation, scope)
	if err != nil {
		return err
	}
	return b.add(binding)
}

// AddServiceFactory registers factory for contract and starts its aspect configuration.
func (b *RegistrationBuilder) AddServiceFactory(contract reflect.Type, factory FactoryFunc, scope Scope) error {
	binding, err := NewFactoryBinding(contract, factory, scope)
	if err != nil {
		return err
	}
	return b.add(binding)
}

func (b *RegistrationBuilder) add(binding Binding) error {
	cfg, err := NewConfiguration(&binding)
	if err != nil {
		return err
	}
	if err := b.container.Register(binding); err != nil {
		return err
	}
	return b.provider.AddConfiguration(cfg)
}

// AddAspect attaches the aspect built by factoryType to the last registered service.
func (b *RegistrationBuilder) AddAspect(factoryType reflect.Type, opts ...EntryOption) error {
	if err := ValidateFactoryType(factoryType); err != nil {
		return err
	}
	cfg, ok := b.provider.Last()
	if !ok {
		return &NoServiceRegisteredError{Aspect: TypeName(factoryType)}
	}
	if err := cfg.AddEntry(factoryType, opts...); err != nil {
		return err
	}
	b.logger.Debug("aspect added",
		zap.String("contract", cfg.Binding().Contract.String()),
		zap.String("factory", TypeName(factoryType)),
	)
	return nil
}

// AddAspectFactory attaches the aspect built by f to the last registered service. f
// also becomes the container's factory for its type, which serves entries that carry
// no factory of their own such as those loaded from a file.
func (b *RegistrationBuilder) AddAspectFactory(f Factory, opts ...EntryOption) error {
	if f == nil {
		return &NilArgumentError{Name: "factory"}
	}
	if err := b.container.RegisterFactory(f); err != nil {
		return err
	}
	all := make([]EntryOption, 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, WithFactory(f))
	return b.AddAspect(reflect.TypeOf(f), all...)
}

// RegisterFactory registers a configured factory instance with the container.
func (b *RegistrationBuilder) RegisterFactory(f Factory) error {
	return b.container.RegisterFactory(f)
}

// AddTransient registers I as a transient implementation of S.
func AddTransient[S, I any](b *RegistrationBuilder) error {
	return b.AddService(TypeOf[S](), TypeOf[I](), ScopeTransient)
}

// AddScoped registers I as a scoped implementation of S.
func AddScoped[S, I any](b *RegistrationBuilder) error {
	return b.AddService(TypeOf[S](), TypeOf[I](), ScopeScoped)
}

// AddSingleton registers I as the singleton implementation of S.
func AddSingleton[S, I any](b *RegistrationBuilder) error {
	return b.AddService(TypeOf[S](), TypeOf[I](), ScopeSingleton)
}

// AddTransientFactory registers factory as a transient provider of S.
func AddTransientFactory[S any](b *RegistrationBuilder, factory func(*ContainerContext) (S, error)) error {
	return addFactory(b, factory, ScopeTransient)
}

// AddScopedFactory registers factory as a scoped provider of S.
func AddScopedFactory[S any](b *RegistrationBuilder, factory func(*ContainerContext) (S, error)) error {
	return addFactory(b, factory, ScopeScoped)
}

// AddSingletonFactory registers factory as the singleton provider of S.
func AddSingletonFactory[S any](b *RegistrationBuilder, factory func(*ContainerContext) (S, error)) error {
	return addFactory(b, factory, ScopeSingleton)
}

func addFactory[S any](b *RegistrationBuilder, factory func(*ContainerContext) (S, error), scope Scope) error {
	if factory == nil {
		return &NilArgumentError{Name: "factory"}
	}
	return b.AddServiceFactory(TypeOf[S](), func(ctx *ContainerContext) (any, error) {
		return factory(ctx)
	}, scope)
}

// AddAspect attaches the aspect built by F to the last registered service.
func AddAspect[F Factory](b *RegistrationBuilder, opts ...EntryOption) error {
	return b.AddAspect(TypeOf[F](), opts...)
}

package aop

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// bindingDefinition represents a service binding in the container.
// Singleton instances are cached on the definition; target is the unwrapped instance.
type bindingDefinition struct {
	binding     Binding
	mu          sync.Mutex
	instance    any
	target      any
	initialized bool
}

type resolutionState struct {
	chain    map[string]bool
	mu       sync.Mutex
	keyCache []string
}

// Container manages service bindings, their lifetimes and the aspects wrapping them.
// It provides thread-safe resolution and detects circular factories per goroutine.
type Container struct {
	bindings        map[string]*bindingDefinition
	factories       map[reflect.Type]Factory
	provider        Provider
	ctx             *ContainerContext
	logger          *zap.Logger
	mu              sync.RWMutex
	booted          bool
	resolutionState sync.Map
	resolutionMu    sync.RWMutex
	statePool       sync.Pool
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger used for registration and resolution events.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContext sets the root context services are resolved in.
func WithContext(ctx *ContainerContext) Option {
	return func(c *Container) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// WithProvider sets the aspect configuration provider.
func WithProvider(provider Provider) Option {
	return func(c *Container) {
		c.provider = provider
	}
}

var (
	once             sync.Once
	defaultContainer *Container
	typeStringCache  sync.Map
)

func makeBindingKey(serviceType reflect.Type) string {
	if cached, ok := typeStringCache.Load(serviceType); ok {
		return cached.(string)
	}
	typeStr := serviceType.String()
	typeStringCache.Store(serviceType, typeStr)
	return typeStr
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		bindings:  make(map[string]*bindingDefinition, 32),
		factories: make(map[reflect.Type]Factory),
		ctx:       NewContainerContext(context.Background()),
		logger:    zap.NewNop(),
		statePool: sync.Pool{
			New: func() any {
				return &resolutionState{
					chain:    make(map[string]bool, 8),
					keyCache: make([]string, 0, 8),
				}
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetContainer returns the process-wide container, created on first access.
func GetContainer() *Container {
	once.Do(func() {
		defaultContainer = New()
	})
	return defaultContainer
}

// Reset clears all state of the process-wide container.
// This function is intended for testing purposes only.
func Reset() {
	GetContainer().reset()
}

// Boot resolves every singleton of the process-wide container.
func Boot() error {
	return GetContainer().Boot()
}

// Shutdown shuts down the process-wide container's singletons.
func Shutdown(clearBindings bool) error {
	return GetContainer().Shutdown(clearBindings)
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger { return c.logger }

// Context returns the root context services are resolved in.
func (c *Container) Context() *ContainerContext { return c.ctx }

// SetProvider replaces the aspect configuration provider. A nil provider disables wrapping.
func (c *Container) SetProvider(provider Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provider = provider
}

// Provider returns the aspect configuration provider, if any.
func (c *Container) Provider() Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.provider
}

// Register adds b to the container, replacing any binding for the same contract.
func (c *Container) Register(b Binding) error {
	if err := validateContract(b.Contract); err != nil {
		return err
	}
	if b.Factory == nil {
		if _, err := NewBinding(b.Contract, b.Implementation, b.Scope); err != nil {
			return err
		}
	}
	if !b.Scope.Valid() {
		return &InvalidArgumentError{Name: "scope", Reason: fmt.Sprintf("unknown scope %q", b.Scope)}
	}

	key := makeBindingKey(b.Contract)
	c.mu.Lock()
	_, replaced := c.bindings[key]
	c.bindings[key] = &bindingDefinition{binding: b}
	c.mu.Unlock()

	c.logger.Debug("service registered",
		zap.String("contract", key),
		zap.String("scope", string(b.Scope)),
		zap.Bool("replaced", replaced),
	)
	return nil
}

// RegisterFactory makes f the factory used for aspects configured under its type.
// Factory types without a registered instance are instantiated from their zero value.
func (c *Container) RegisterFactory(f Factory) error {
	if f == nil {
		return &NilArgumentError{Name: "factory"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[reflect.TypeOf(f)] = f
	return nil
}

// NewScope returns a context carrying a fresh scope for ScopeScoped services.
func (c *Container) NewScope(parent *ContainerContext) *ContainerContext {
	if parent == nil {
		parent = c.ctx
	}
	ctx := newScope(parent)
	id, _ := ctx.ScopeID()
	c.logger.Debug("scope created", zap.String(ScopeIDKey, id))
	return ctx
}

// CloseScope calls OnShutdown on the scope's Lifecycle instances in reverse creation order.
func (c *Container) CloseScope(ctx *ContainerContext) error {
	s := ctx.scope()
	if s == nil {
		return &MissingContextValueError{Key: ScopeIDKey}
	}
	instances := s.drain()
	for _, instance := range slices.Backward(instances) {
		if l, ok := instance.(Lifecycle); ok {
			if err := l.OnShutdown(ctx); err != nil {
				return &ShutdownError{Type: reflect.TypeOf(instance).String(), Err: err}
			}
		}
	}
	return nil
}

// Resolve returns the service registered for contract, resolved in ctx.
// A nil ctx resolves in the container's root context.
func (c *Container) Resolve(ctx *ContainerContext, contract reflect.Type) (any, error) {
	if contract == nil {
		return nil, &NilArgumentError{Name: "contract"}
	}
	if ctx == nil {
		ctx = c.ctx
	}
	key := makeBindingKey(contract)

	c.mu.RLock()
	def, ok := c.bindings[key]
	c.mu.RUnlock()
	if !ok {
		return nil, &BindingNotFoundError{Type: key}
	}

	if err := c.startResolving(key); err != nil {
		return nil, err
	}
	defer c.finishResolving(key)

	switch def.binding.Scope {
	case ScopeSingleton:
		return c.resolveSingleton(ctx, def)
	case ScopeScoped:
		return c.resolveScoped(ctx, key, def)
	default:
		instance, _, err := c.build(ctx, def.binding)
		return instance, err
	}
}

// Resolve returns the service registered for T from c.
func Resolve[T any](c *Container) (T, error) {
	return ResolveScoped[T](c, nil)
}

// ResolveScoped returns the service registered for T, resolved in ctx.
func ResolveScoped[T any](c *Container, ctx *ContainerContext) (T, error) {
	var zero T
	contract := TypeOf[T]()
	instance, err := c.Resolve(ctx, contract)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, &TypeMismatchError{Expected: contract.String(), Got: reflect.TypeOf(instance).String()}
	}
	return typed, nil
}

// Boot resolves every singleton binding. It is a no-op once the container has booted.
func (c *Container) Boot() error {
	c.mu.Lock()
	if c.booted {
		c.mu.Unlock()
		return nil
	}
	contracts := make([]reflect.Type, 0, len(c.bindings))
	for _, def := range c.bindings {
		if def.binding.Scope == ScopeSingleton {
			contracts = append(contracts, def.binding.Contract)
		}
	}
	c.mu.Unlock()

	for _, contract := range contracts {
		if _, err := c.Resolve(c.ctx, contract); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.booted = true
	c.mu.Unlock()
	c.logger.Debug("container booted", zap.Int("singletons", len(contracts)))
	return nil
}

// Shutdown calls OnShutdown on every initialized singleton and drops the cached instances.
// If clearBindings is true, it also removes all bindings from the container.
func (c *Container) Shutdown(clearBindings bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, def := range c.bindings {
		def.mu.Lock()
		if !def.initialized {
			def.mu.Unlock()
			continue
		}
		target := def.target
		def.instance, def.target, def.initialized = nil, nil, false
		def.mu.Unlock()

		if l, ok := target.(Lifecycle); ok {
			if err := l.OnShutdown(c.ctx); err != nil {
				return &ShutdownError{Type: key, Err: err}
			}
		}
	}

	if clearBindings {
		c.resolutionMu.Lock()
		c.bindings = make(map[string]*bindingDefinition)
		c.resolutionState = sync.Map{}
		c.resolutionMu.Unlock()
	}
	c.booted = false
	return nil
}

func (c *Container) reset() {
	c.mu.Lock()
	c.resolutionMu.Lock()

	c.bindings = make(map[string]*bindingDefinition)
	c.factories = make(map[reflect.Type]Factory)
	c.provider = nil
	c.resolutionState = sync.Map{}
	c.booted = false

	c.resolutionMu.Unlock()
	c.mu.Unlock()
}

func (c *Container) resolveSingleton(ctx *ContainerContext, def *bindingDefinition) (any, error) {
	def.mu.Lock()
	defer def.mu.Unlock()
	if def.initialized {
		return def.instance, nil
	}
	instance, target, err := c.build(ctx, def.binding)
	if err != nil {
		return nil, err
	}
	def.instance, def.target, def.initialized = instance, target, true
	return instance, nil
}

func (c *Container) resolveScoped(ctx *ContainerContext, key string, def *bindingDefinition) (any, error) {
	s := ctx.scope()
	if s == nil {
		return nil, &MissingContextValueError{Key: ScopeIDKey}
	}
	if instance, ok := s.load(key); ok {
		return instance, nil
	}
	instance, target, err := c.build(ctx, def.binding)
	if err != nil {
		return nil, err
	}
	kept, _ := s.store(key, instance, target)
	return kept, nil
}

// build creates, boots and wraps one instance of b.
func (c *Container) build(ctx *ContainerContext, b Binding) (any, any, error) {
	contract := b.Contract
	var (
		target any
		err    error
	)
	if b.Factory != nil {
		target, err = b.Factory(ctx)
		if err != nil {
			return nil, nil, &InitializationError{Type: contract.String(), Err: err}
		}
		if target == nil {
			return nil, nil, &InitializationError{Type: contract.String(), Err: fmt.Errorf("factory returned nil")}
		}
	} else {
		target = instantiate(b.Implementation)
	}

	if !reflect.TypeOf(target).Implements(contract) {
		return nil, nil, &TypeMismatchError{Expected: contract.String(), Got: reflect.TypeOf(target).String()}
	}
	if l, ok := target.(Lifecycle); ok {
		if err := l.OnBoot(ctx); err != nil {
			return nil, nil, &InitializationError{Type: contract.String(), Err: err}
		}
	}

	instance, err := c.wrap(ctx, b, target)
	if err != nil {
		return nil, nil, err
	}
	c.logger.Debug("service resolved",
		zap.String("contract", contract.String()),
		zap.String("implementation", reflect.TypeOf(target).String()),
		zap.Bool("proxied", instance != target),
	)
	return instance, target, nil
}

// wrap returns target behind the contract's proxy when its configuration has aspects.
func (c *Container) wrap(ctx *ContainerContext, b Binding, target any) (any, error) {
	provider := c.Provider()
	if provider == nil {
		return target, nil
	}
	cfg, err := provider.Lookup(b.Contract, reflect.TypeOf(target))
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return target, nil
	}
	entries := cfg.Aspects()
	if len(entries) == 0 {
		return target, nil
	}

	interceptors := make([]Interceptor, 0, len(entries))
	for _, entry := range entries {
		factory := entry.Factory()
		if factory == nil {
			if factory, err = c.factory(entry.FactoryType()); err != nil {
				return nil, err
			}
		}
		aspect, err := factory.Create(b, ctx)
		if err != nil {
			return nil, &AspectCreationError{Factory: TypeName(entry.FactoryType()), Err: err}
		}
		if aspect == nil {
			return nil, &AspectCreationError{Factory: TypeName(entry.FactoryType()), Err: fmt.Errorf("factory returned nil aspect")}
		}
		interceptors = append(interceptors, Interceptor{FactoryType: entry.FactoryType(), Aspect: aspect})
	}

	proxy, err := NewProxy(b.Contract, target, provider, interceptors...)
	if err != nil {
		return nil, err
	}
	return proxy.typed()
}

func (c *Container) factory(factoryType reflect.Type) (Factory, error) {
	c.mu.RLock()
	f, ok := c.factories[factoryType]
	c.mu.RUnlock()
	if ok {
		return f, nil
	}
	if err := ValidateFactoryType(factoryType); err != nil {
		return nil, err
	}
	if f, ok := instantiate(factoryType).(Factory); ok {
		return f, nil
	}
	return reflect.New(factoryType).Interface().(Factory), nil
}

// instantiate returns a new zero value of t; pointer types get a fresh pointee.
func instantiate(t reflect.Type) any {
	if t.Kind() == reflect.Ptr {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.New(t).Elem().Interface()
}

func (c *Container) getResolutionState() *resolutionState {
	id := goroutineID()

	c.resolutionMu.RLock()
	state, ok := c.resolutionState.Load(id)
	c.resolutionMu.RUnlock()
	if ok {
		return state.(*resolutionState)
	}

	c.resolutionMu.Lock()
	defer c.resolutionMu.Unlock()

	if state, ok := c.resolutionState.Load(id); ok {
		return state.(*resolutionState)
	}

	state = c.statePool.Get()
	c.resolutionState.Store(id, state)
	return state.(*resolutionState)
}

func (c *Container) startResolving(key string) error {
	state := c.getResolutionState()
	state.mu.Lock()
	defer state.mu.Unlock()

	if state.chain[key] {
		return &CircularDependencyError{Type: key}
	}
	state.chain[key] = true
	state.keyCache = append(state.keyCache, key)
	return nil
}

func (c *Container) finishResolving(key string) {
	state := c.getResolutionState()
	state.mu.Lock()
	delete(state.chain, key)
	isEmpty := len(state.chain) == 0
	state.mu.Unlock()

	if isEmpty {
		c.resolutionMu.Lock()
		id := goroutineID()
		if s, ok := c.resolutionState.Load(id); ok {
			c.resolutionState.Delete(id)
			rs := s.(*resolutionState)
			for _, k := range rs.keyCache {
				delete(rs.chain, k)
			}
			rs.keyCache = rs.keyCache[:0]
			c.statePool.Put(rs)
		}
		c.resolutionMu.Unlock()
	}
}

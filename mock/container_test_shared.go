package mock

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/centraunit/aop"
)

// Store is a lifecycle-managed backend the aspects sit in front of.
type Store interface {
	aop.Lifecycle
	Connect() error
	GetContextValue(key string) (any, error)
}

// Index reads through a Store resolved when it boots.
type Index interface {
	aop.Lifecycle
	Get(key string) any
}

// MemoryStore records its boot scope and the number of times it was shut down.
type MemoryStore struct {
	connected bool
	ctx       *aop.ContainerContext
	ScopeID   string
	Shutdowns int
}

func (m *MemoryStore) Connect() error { return nil }

func (m *MemoryStore) OnBoot(ctx *aop.ContainerContext) error {
	m.connected = true
	m.ctx = ctx
	if id, ok := ctx.ScopeID(); ok {
		m.ScopeID = id
	}
	return nil
}

func (m *MemoryStore) OnShutdown(*aop.ContainerContext) error {
	m.connected = false
	m.ctx = nil
	m.Shutdowns++
	return nil
}

func (m *MemoryStore) GetContextValue(key string) (any, error) {
	if m.ctx == nil {
		return nil, errors.New("store is not booted")
	}
	return m.ctx.Value(key), nil
}

func (m *MemoryStore) IsConnected() bool { return m.connected }

// FailingStore refuses to boot while ShouldFail is set.
type FailingStore struct {
	MemoryStore
	ShouldFail bool
}

func (f *FailingStore) OnBoot(ctx *aop.ContainerContext) error {
	if f.ShouldFail {
		return fmt.Errorf("store unavailable")
	}
	return f.MemoryStore.OnBoot(ctx)
}

type StoreIndex struct {
	store Store
}

func (i *StoreIndex) OnBoot(ctx *aop.ContainerContext) error {
	store, err := aop.ResolveScoped[Store](aop.GetContainer(), ctx)
	if err != nil {
		return err
	}
	i.store = store
	return nil
}

func (i *StoreIndex) OnShutdown(*aop.ContainerContext) error { return nil }

func (i *StoreIndex) Get(string) any { return nil }

// Publisher and Subscriber resolve each other on boot and can never both be built.
type Publisher interface {
	aop.Lifecycle
	Subscriber() Subscriber
}

type Subscriber interface {
	aop.Lifecycle
	Publisher() Publisher
}

type LoopPublisher struct{ sub Subscriber }

func (p *LoopPublisher) OnBoot(ctx *aop.ContainerContext) (err error) {
	p.sub, err = aop.ResolveScoped[Subscriber](aop.GetContainer(), ctx)
	return err
}

func (p *LoopPublisher) OnShutdown(*aop.ContainerContext) error { return nil }
func (p *LoopPublisher) Subscriber() Subscriber                { return p.sub }

type LoopSubscriber struct{ pub Publisher }

func (s *LoopSubscriber) OnBoot(ctx *aop.ContainerContext) (err error) {
	s.pub, err = aop.ResolveScoped[Publisher](aop.GetContainer(), ctx)
	return err
}

func (s *LoopSubscriber) OnShutdown(*aop.ContainerContext) error { return nil }
func (s *LoopSubscriber) Publisher() Publisher                  { return s.pub }

// Gateway, Handler and Backend form a three level dependency chain.
type Gateway interface {
	aop.Lifecycle
	Handler() Handler
}

type Handler interface {
	aop.Lifecycle
	Backend() Backend
}

type Backend interface {
	Respond() string
}

// StaticBackend has no lifecycle hooks.
type StaticBackend struct {
	Body string
}

func (b *StaticBackend) Respond() string {
	if b.Body == "" {
		return "deep"
	}
	return b.Body
}

type ForwardingHandler struct{ backend Backend }

func (h *ForwardingHandler) OnBoot(ctx *aop.ContainerContext) (err error) {
	h.backend, err = aop.ResolveScoped[Backend](aop.GetContainer(), ctx)
	return err
}

func (h *ForwardingHandler) OnShutdown(*aop.ContainerContext) error { return nil }
func (h *ForwardingHandler) Backend() Backend                      { return h.backend }

type RoutingGateway struct{ handler Handler }

func (g *RoutingGateway) OnBoot(ctx *aop.ContainerContext) (err error) {
	g.handler, err = aop.ResolveScoped[Handler](aop.GetContainer(), ctx)
	return err
}

func (g *RoutingGateway) OnShutdown(*aop.ContainerContext) error { return nil }
func (g *RoutingGateway) Handler() Handler                      { return g.handler }

// Worker reports whether it is between boot and shutdown.
type Worker interface {
	aop.Lifecycle
	Running() bool
}

// CountingWorker counts its boots.
type CountingWorker struct {
	running atomic.Bool
	Boots   int
}

func (w *CountingWorker) OnBoot(*aop.ContainerContext) error {
	w.running.Store(true)
	w.Boots++
	return nil
}

func (w *CountingWorker) OnShutdown(*aop.ContainerContext) error {
	w.running.Store(false)
	return nil
}

func (w *CountingWorker) Running() bool { return w.running.Load() }

// Reporter depends on both a Store and an Index.
type Reporter interface {
	aop.Lifecycle
	Report() string
}

type StoreReporter struct {
	Store Store
	Index Index
}

func (r *StoreReporter) OnBoot(ctx *aop.ContainerContext) (err error) {
	c := aop.GetContainer()
	if r.Store, err = aop.ResolveScoped[Store](c, ctx); err != nil {
		return err
	}
	r.Index, err = aop.ResolveScoped[Index](c, ctx)
	return err
}

func (r *StoreReporter) OnShutdown(*aop.ContainerContext) error { return nil }

func (r *StoreReporter) Report() string {
	return fmt.Sprintf("store=%T index=%T", r.Store, r.Index)
}

// Bind registers implementation I for contract S in the process-wide container.
func Bind[S, I any](scope aop.Scope) error {
	b, err := aop.NewBinding(aop.TypeOf[S](), aop.TypeOf[I](), scope)
	if err != nil {
		return err
	}
	return aop.GetContainer().Register(b)
}

// BindInstance registers a factory returning instance for contract S.
func BindInstance[S any](instance S, scope aop.Scope) error {
	b, err := aop.NewFactoryBinding(aop.TypeOf[S](), func(*aop.ContainerContext) (any, error) {
		return instance, nil
	}, scope)
	if err != nil {
		return err
	}
	return aop.GetContainer().Register(b)
}

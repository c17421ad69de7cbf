package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/centraunit/aop"
)

// ErrNotFound is returned by MemoryRepository for unknown ids.
var ErrNotFound = errors.New("not found")

// ErrEmpty is sent by MemoryRepository.Flush when there is nothing to flush.
var ErrEmpty = errors.New("nothing to flush")

type MyUnitTestClass struct {
	X int
	Y string
}

// TestInterface covers the four method kinds.
type TestInterface interface {
	GetClassByID(id int) *MyUnitTestClass
	GetClassByIDAsync(id int) <-chan *MyUnitTestClass
	Test(x int, y string, c *MyUnitTestClass)
	TestAsync(x int, y string, c *MyUnitTestClass) <-chan struct{}
}

type MyTestInterface struct {
	calls atomic.Int32
}

func (m *MyTestInterface) GetClassByID(id int) *MyUnitTestClass {
	m.calls.Add(1)
	return &MyUnitTestClass{X: id, Y: fmt.Sprintf("testing %d", id)}
}

func (m *MyTestInterface) GetClassByIDAsync(id int) <-chan *MyUnitTestClass {
	m.calls.Add(1)
	ch := make(chan *MyUnitTestClass, 1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		ch <- &MyUnitTestClass{X: id, Y: fmt.Sprintf("testing %d", id)}
		close(ch)
	}()
	return ch
}

func (m *MyTestInterface) Test(x int, y string, c *MyUnitTestClass) {
	m.calls.Add(1)
}

func (m *MyTestInterface) TestAsync(x int, y string, c *MyUnitTestClass) <-chan struct{} {
	m.calls.Add(1)
	done := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(done)
	}()
	return done
}

// Calls returns how many contract methods ran on m.
func (m *MyTestInterface) Calls() int {
	return int(m.calls.Load())
}

// Repository covers context arguments, trailing errors and variadic parameters.
type Repository interface {
	Find(ctx context.Context, id int) (*MyUnitTestClass, error)
	Save(ctx context.Context, c *MyUnitTestClass) error
	Tag(id int, tags ...string) int
	Flush(ctx context.Context) <-chan error
}

type MemoryRepository struct {
	mu    sync.Mutex
	items map[int]*MyUnitTestClass
	tags  map[int][]string
}

func (r *MemoryRepository) Find(ctx context.Context, id int) (*MyUnitTestClass, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.items[id]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) Save(ctx context.Context, c *MyUnitTestClass) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items == nil {
		r.items = make(map[int]*MyUnitTestClass)
	}
	r.items[c.X] = c
	return nil
}

func (r *MemoryRepository) Tag(id int, tags ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tags == nil {
		r.tags = make(map[int][]string)
	}
	r.tags[id] = append(r.tags[id], tags...)
	return len(r.tags[id])
}

func (r *MemoryRepository) Flush(ctx context.Context) <-chan error {
	r.mu.Lock()
	empty := len(r.items) == 0
	r.items = nil
	r.mu.Unlock()

	ch := make(chan error, 1)
	if empty {
		ch <- ErrEmpty
	}
	close(ch)
	return ch
}

// Recorder collects hook events in the order they happen.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *Recorder) Add(event string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// RecordingAspect records "<name>:pre:<method>" and "<name>:post:<method>" events.
// With Stop set it short-circuits the call and returns Value instead.
type RecordingAspect struct {
	Name     string
	Recorder *Recorder
	Stop     bool
	Value    any
	Seen     []*aop.Invocation
	seenMu   sync.Mutex
}

func (a *RecordingAspect) PreInvoke(inv *aop.Invocation) {
	a.Recorder.Add(a.Name + ":pre:" + inv.TargetMethod.Name())
	if a.Stop {
		inv.Proceed = false
		inv.ReturnValue = a.Value
	}
}

func (a *RecordingAspect) PostInvoke(inv *aop.Invocation) {
	a.seenMu.Lock()
	a.Seen = append(a.Seen, inv)
	a.seenMu.Unlock()
	a.Recorder.Add(a.Name + ":post:" + inv.TargetMethod.Name())
}

// Invocations returns the invocations that reached PostInvoke.
func (a *RecordingAspect) Invocations() []*aop.Invocation {
	a.seenMu.Lock()
	defer a.seenMu.Unlock()
	return append([]*aop.Invocation(nil), a.Seen...)
}

// TestAspectFactory produces a RecordingAspect named "first".
type TestAspectFactory struct {
	Recorder *Recorder
	Created  []aop.Binding
}

func (f *TestAspectFactory) Create(b aop.Binding, ctx *aop.ContainerContext) (aop.Aspect, error) {
	f.Created = append(f.Created, b)
	return &RecordingAspect{Name: "first", Recorder: f.Recorder}, nil
}

// TestAspectFactory2 produces a RecordingAspect named "second".
type TestAspectFactory2 struct {
	Recorder *Recorder
}

func (f *TestAspectFactory2) Create(b aop.Binding, ctx *aop.ContainerContext) (aop.Aspect, error) {
	return &RecordingAspect{Name: "second", Recorder: f.Recorder}, nil
}

// ShortCircuitFactory produces a RecordingAspect that stops every call.
type ShortCircuitFactory struct {
	Recorder *Recorder
	Value    any
}

func (f *ShortCircuitFactory) Create(b aop.Binding, ctx *aop.ContainerContext) (aop.Aspect, error) {
	return &RecordingAspect{Name: "stop", Recorder: f.Recorder, Stop: true, Value: f.Value}, nil
}

// FailingFactory cannot create its aspect.
type FailingFactory struct{}

func (FailingFactory) Create(aop.Binding, *aop.ContainerContext) (aop.Aspect, error) {
	return nil, errors.New("factory unavailable")
}

// NotAFactory does not implement aop.Factory.
type NotAFactory struct{}

type testInterfaceProxy struct{ *aop.Proxy }

func (p testInterfaceProxy) GetClassByID(id int) *MyUnitTestClass {
	return aop.As[*MyUnitTestClass](p.Call("GetClassByID", id)[0])
}

func (p testInterfaceProxy) GetClassByIDAsync(id int) <-chan *MyUnitTestClass {
	return aop.As[<-chan *MyUnitTestClass](p.Call("GetClassByIDAsync", id)[0])
}

func (p testInterfaceProxy) Test(x int, y string, c *MyUnitTestClass) {
	p.Call("Test", x, y, c)
}

func (p testInterfaceProxy) TestAsync(x int, y string, c *MyUnitTestClass) <-chan struct{} {
	return aop.As[<-chan struct{}](p.Call("TestAsync", x, y, c)[0])
}

type repositoryProxy struct{ *aop.Proxy }

func (p repositoryProxy) Find(ctx context.Context, id int) (*MyUnitTestClass, error) {
	out := p.Call("Find", ctx, id)
	return aop.As[*MyUnitTestClass](out[0]), aop.Err(out[1])
}

func (p repositoryProxy) Save(ctx context.Context, c *MyUnitTestClass) error {
	return aop.Err(p.Call("Save", ctx, c)[0])
}

func (p repositoryProxy) Tag(id int, tags ...string) int {
	return aop.As[int](p.Call("Tag", id, tags)[0])
}

func (p repositoryProxy) Flush(ctx context.Context) <-chan error {
	return aop.As[<-chan error](p.Call("Flush", ctx)[0])
}

func init() {
	aop.RegisterProxy(func(p *aop.Proxy) TestInterface { return testInterfaceProxy{p} })
	aop.RegisterProxy(func(p *aop.Proxy) Repository { return repositoryProxy{p} })
}

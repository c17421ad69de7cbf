package aop

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ScopeIDKey is the ContainerContext key holding the identifier of the current scope.
const ScopeIDKey = "scope_id"

type scopeStateKey struct{}

// ContainerContext extends the standard context.Context with container-specific functionality.
// It provides value inheritance and merging capabilities for service resolution.
type ContainerContext struct {
	context.Context
	values sync.Map
}

// NewContainerContext creates a new ContainerContext wrapping a standard context.Context.
func NewContainerContext(parent context.Context) *ContainerContext {
	if parent == nil {
		parent = context.Background()
	}
	return &ContainerContext{
		Context: parent,
	}
}

// WithValue returns a new ContainerContext with the provided key-value pair.
// The new context inherits all values from the receiver.
func (c *ContainerContext) WithValue(key, val any) *ContainerContext {
	newCtx := &ContainerContext{
		Context: c.Context,
	}
	c.values.Range(func(k, v any) bool {
		newCtx.values.Store(k, v)
		return true
	})
	newCtx.values.Store(key, val)
	return newCtx
}

func (c *ContainerContext) Parent() context.Context {
	return c.Context
}

func (c *ContainerContext) Value(key any) any {
	if c == nil {
		return nil
	}
	if val, ok := c.values.Load(key); ok {
		return val
	}
	if c.Context != nil {
		return c.Context.Value(key)
	}
	return nil
}

// MergeWith combines values from another ContainerContext.
// Values from the other context override existing values with the same key.
func (c *ContainerContext) MergeWith(other *ContainerContext) *ContainerContext {
	newCtx := NewContainerContext(c.Context)
	c.values.Range(func(k, v any) bool {
		newCtx.values.Store(k, v)
		return true
	})
	if other != nil {
		other.values.Range(func(k, v any) bool {
			newCtx.values.Store(k, v)
			return true
		})
	}
	return newCtx
}

// ScopeID returns the identifier of the scope the context belongs to.
func (c *ContainerContext) ScopeID() (string, bool) {
	id, ok := c.Value(ScopeIDKey).(string)
	return id, ok && id != ""
}

// scopeState caches the scoped instances of one scope. Instances are kept in
// creation order so they can be shut down in reverse.
type scopeState struct {
	mu        sync.Mutex
	instances map[string]any
	order     []any
}

func newScope(parent *ContainerContext) *ContainerContext {
	return parent.
		WithValue(ScopeIDKey, uuid.NewString()).
		WithValue(scopeStateKey{}, &scopeState{instances: make(map[string]any)})
}

func (c *ContainerContext) scope() *scopeState {
	if c == nil {
		return nil
	}
	s, _ := c.Value(scopeStateKey{}).(*scopeState)
	return s
}

func (s *scopeState) load(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.instances[key]
	return v, ok
}

// store keeps instance unless another goroutine stored one first, and returns the kept one.
func (s *scopeState) store(key string, instance, target any) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.instances[key]; ok {
		return existing, false
	}
	s.instances[key] = instance
	s.order = append(s.order, target)
	return instance, true
}

func (s *scopeState) drain() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.order
	s.order = nil
	s.instances = make(map[string]any)
	return out
}

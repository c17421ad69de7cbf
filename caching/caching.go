// Package caching provides an aspect that serves repeated calls of value-producing
// methods from Redis.
//
// Results are stored as JSON under the call's description, e.g.
// "aop:*app.Repo.Find(ctx, 7)", so arguments must print stably with %v. Calls that
// end in an error are not cached.
package caching

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"github.com/centraunit/aop"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FactoryType is the key the caching aspect is configured under.
var FactoryType = aop.TypeOf[*Factory]()

// DefaultTTL is how long results are kept when no TTL is configured.
const DefaultTTL = 5 * time.Minute

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type hitKey struct{}

// Client is the subset of the go-redis client used by the aspect.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Factory creates caching aspects sharing one Redis client.
type Factory struct {
	client Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithPrefix sets the key prefix. The default is "aop:".
func WithPrefix(prefix string) Option {
	return func(f *Factory) { f.prefix = prefix }
}

// WithTTL sets how long results are kept. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(f *Factory) { f.ttl = ttl }
}

// WithLogger sets the logger Redis failures are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFactory returns a Factory caching through client.
func NewFactory(client Client, opts ...Option) *Factory {
	f := &Factory{
		client: client,
		prefix: "aop:",
		ttl:    DefaultTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) Create(aop.Binding, *aop.ContainerContext) (aop.Aspect, error) {
	if f.client == nil {
		return nil, errors.New("caching: factory has no redis client")
	}
	return &Aspect{factory: f}, nil
}

// Aspect short-circuits calls whose result is cached and stores the results of the
// others. Methods that do not produce exactly one value are passed through.
type Aspect struct {
	factory *Factory
}

func (a *Aspect) PreInvoke(inv *aop.Invocation) {
	typ, ok := resultType(inv)
	if !ok {
		return
	}
	f := a.factory
	data, err := f.client.Get(inv.Context(), f.prefix+inv.Description).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return
	case err != nil:
		f.logger.Warn("cache lookup failed", zap.String("call", inv.Description), zap.Error(err))
		return
	}

	v := reflect.New(typ)
	if err := json.Unmarshal(data, v.Interface()); err != nil {
		f.logger.Warn("cached value unreadable", zap.String("call", inv.Description), zap.Error(err))
		return
	}
	inv.ReturnValue = v.Elem().Interface()
	inv.Proceed = false
	inv.Set(hitKey{}, true)
}

func (a *Aspect) PostInvoke(inv *aop.Invocation) {
	if _, hit := inv.Get(hitKey{}); hit || !inv.Proceed || inv.Err != nil {
		return
	}
	if _, ok := resultType(inv); !ok {
		return
	}
	f := a.factory
	data, err := json.Marshal(inv.ReturnValue)
	if err != nil {
		f.logger.Warn("result not cacheable", zap.String("call", inv.Description), zap.Error(err))
		return
	}
	if err := f.client.Set(inv.Context(), f.prefix+inv.Description, data, f.ttl).Err(); err != nil {
		f.logger.Warn("cache store failed", zap.String("call", inv.Description), zap.Error(err))
	}
}

// IsHit reports whether inv was served from the cache.
func IsHit(inv *aop.Invocation) bool {
	_, hit := inv.Get(hitKey{})
	return hit
}

// resultType returns the type of the single value the method produces.
func resultType(inv *aop.Invocation) (reflect.Type, bool) {
	fn := inv.TargetMethod.Type()
	if fn == nil {
		return nil, false
	}
	n := fn.NumOut()
	if n > 0 && fn.Out(n-1) == errorType {
		n--
	}
	switch {
	case n != 1:
		return nil, false
	case inv.Kind == aop.SyncFunction:
		return fn.Out(0), true
	case inv.Kind == aop.AsyncFunction:
		return fn.Out(0).Elem(), true
	}
	return nil, false
}

// AddCachingAspect registers f and attaches it to the last registered service.
func AddCachingAspect(b *aop.RegistrationBuilder, f *Factory, opts ...aop.EntryOption) error {
	if f == nil {
		return &aop.NilArgumentError{Name: "factory"}
	}
	return b.AddAspectFactory(f, opts...)
}

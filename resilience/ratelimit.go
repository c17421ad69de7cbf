package resilience

import (
	"errors"
	"sync"

	"github.com/centraunit/aop"
	"golang.org/x/time/rate"
)

// ErrRateLimited is the error of calls rejected by the rate limiter.
var ErrRateLimited = errors.New("rate limit exceeded")

// LimiterFactoryType is the key the rate limiting aspect is configured under.
var LimiterFactoryType = aop.TypeOf[*LimiterFactory]()

// LimiterFactory creates rate limiting aspects. Each service gets one token bucket
// shared by all of its intercepted methods.
type LimiterFactory struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLimiterFactory allows limit calls per second with bursts of burst calls.
func NewLimiterFactory(limit rate.Limit, burst int) *LimiterFactory {
	return &LimiterFactory{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *LimiterFactory) Create(b aop.Binding, _ *aop.ContainerContext) (aop.Aspect, error) {
	service := aop.TypeName(b.Implementation)
	if service == "" {
		service = aop.TypeName(b.Contract)
	}
	return &LimiterAspect{limiter: f.limiter(service)}, nil
}

func (f *LimiterFactory) limiter(service string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limiters == nil {
		f.limiters = make(map[string]*rate.Limiter)
	}
	l, ok := f.limiters[service]
	if !ok {
		l = rate.NewLimiter(f.limit, f.burst)
		f.limiters[service] = l
	}
	return l
}

// LimiterAspect rejects calls with ErrRateLimited once the service's bucket is empty.
type LimiterAspect struct {
	limiter *rate.Limiter
}

func (a *LimiterAspect) PreInvoke(inv *aop.Invocation) {
	if !a.limiter.Allow() {
		inv.Proceed = false
		inv.Err = ErrRateLimited
	}
}

func (a *LimiterAspect) PostInvoke(*aop.Invocation) {}

// AddRateLimit registers f and attaches it to the last registered service.
func AddRateLimit(b *aop.RegistrationBuilder, f *LimiterFactory, opts ...aop.EntryOption) error {
	if f == nil {
		return &aop.NilArgumentError{Name: "factory"}
	}
	return b.AddAspectFactory(f, opts...)
}

// Package resilience provides aspects that protect services from overload: a circuit
// breaker that stops calling a failing method and a rate limiter.
//
// Both reject a call by clearing Invocation.Proceed and setting Invocation.Err, so the
// caller sees the error through the method's trailing error result or its error
// channel. Methods without an error result return zero values when rejected.
package resilience

import (
	"sync"
	"time"

	"github.com/centraunit/aop"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerFactoryType is the key the circuit breaker aspect is configured under.
var BreakerFactoryType = aop.TypeOf[*BreakerFactory]()

// BreakerSettings configures the breakers created by a BreakerFactory. One breaker
// guards each method of each service.
type BreakerSettings struct {
	// MaxRequests is the number of calls let through while half-open.
	MaxRequests uint32
	// Interval is the cyclic period after which closed-state counts are cleared.
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
	// MinRequests is the number of calls needed before the failure ratio is evaluated.
	MinRequests uint32
	// FailureThreshold is the failure ratio that opens the breaker.
	FailureThreshold float64
}

// DefaultBreakerSettings returns conservative breaker settings.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		MinRequests:      5,
		FailureThreshold: 0.5,
	}
}

// BreakerFactory creates circuit breaker aspects. Breakers are shared by every aspect
// the factory creates, so transient services keep their failure history.
type BreakerFactory struct {
	settings BreakerSettings
	logger   *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.TwoStepCircuitBreaker
}

// NewBreakerFactory returns a factory creating breakers with settings.
func NewBreakerFactory(settings BreakerSettings, logger *zap.Logger) *BreakerFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakerFactory{
		settings: settings,
		logger:   logger,
		breakers: make(map[string]*gobreaker.TwoStepCircuitBreaker),
	}
}

func (f *BreakerFactory) Create(b aop.Binding, _ *aop.ContainerContext) (aop.Aspect, error) {
	service := aop.TypeName(b.Implementation)
	if service == "" {
		service = aop.TypeName(b.Contract)
	}
	return &BreakerAspect{factory: f, service: service}, nil
}

// State returns the state of the breaker guarding method of service, creating it if needed.
func (f *BreakerFactory) State(service, method string) gobreaker.State {
	return f.breaker(service + "." + method).State()
}

func (f *BreakerFactory) breaker(name string) *gobreaker.TwoStepCircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.breakers == nil {
		f.breakers = make(map[string]*gobreaker.TwoStepCircuitBreaker)
	}
	if cb, ok := f.breakers[name]; ok {
		return cb
	}
	settings := f.settings
	logger := f.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	f.breakers[name] = cb
	return cb
}

type breakerDone struct{}

// BreakerAspect rejects calls while the method's breaker is open and reports the
// outcome of the calls it lets through. A call fails when it ends with an error.
type BreakerAspect struct {
	factory *BreakerFactory
	service string
}

func (a *BreakerAspect) PreInvoke(inv *aop.Invocation) {
	done, err := a.factory.breaker(a.service + "." + inv.TargetMethod.Name()).Allow()
	if err != nil {
		inv.Proceed = false
		inv.Err = err
		return
	}
	inv.Set(breakerDone{}, done)
}

func (a *BreakerAspect) PostInvoke(inv *aop.Invocation) {
	v, ok := inv.Get(breakerDone{})
	if !ok {
		return
	}
	v.(func(bool))(inv.Err == nil)
}

// AddCircuitBreaker registers f and attaches it to the last registered service.
func AddCircuitBreaker(b *aop.RegistrationBuilder, f *BreakerFactory, opts ...aop.EntryOption) error {
	if f == nil {
		return &aop.NilArgumentError{Name: "factory"}
	}
	return b.AddAspectFactory(f, opts...)
}

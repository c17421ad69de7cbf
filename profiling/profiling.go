// Package profiling provides an aspect that measures how long intercepted calls take.
//
// Durations are observed on a Prometheus histogram labelled by service and method.
// Calls slower than the configured threshold are also logged as warnings.
package profiling

import (
	"errors"
	"time"

	"github.com/centraunit/aop"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// FactoryType is the key the profiling aspect is configured under.
var FactoryType = aop.TypeOf[*Factory]()

// DefaultSlowThreshold is the duration above which a call is logged as slow.
const DefaultSlowThreshold = 500 * time.Millisecond

type startKey struct{}

// Factory creates profiling aspects sharing one histogram.
type Factory struct {
	duration  *prometheus.HistogramVec
	logger    *zap.Logger
	threshold time.Duration
	buckets   []float64
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger slow calls are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithSlowThreshold sets the duration above which a call is logged. Zero disables logging.
func WithSlowThreshold(d time.Duration) Option {
	return func(f *Factory) { f.threshold = d }
}

// WithBuckets overrides the histogram buckets, in seconds.
func WithBuckets(buckets ...float64) Option {
	return func(f *Factory) { f.buckets = buckets }
}

// NewFactory creates the aop_call_duration_seconds histogram and registers it with reg.
// A histogram already registered under that name is reused. A nil reg leaves the
// histogram unregistered.
func NewFactory(reg prometheus.Registerer, opts ...Option) (*Factory, error) {
	f := &Factory{
		logger:    zap.NewNop(),
		threshold: DefaultSlowThreshold,
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aop",
		Name:      "call_duration_seconds",
		Help:      "Duration of intercepted service calls in seconds",
		Buckets:   f.buckets,
	}, []string{"service", "method"})

	if reg != nil {
		if err := reg.Register(f.duration); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				return nil, err
			}
			f.duration = existing
		}
	}
	return f, nil
}

// Collector exposes the histogram, e.g. for registering it elsewhere.
func (f *Factory) Collector() prometheus.Collector { return f.duration }

// Create returns an Aspect observing calls of the service bound by b.
func (f *Factory) Create(b aop.Binding, _ *aop.ContainerContext) (aop.Aspect, error) {
	if f.duration == nil {
		return nil, errors.New("profiling: factory not created with NewFactory")
	}
	service := aop.TypeName(b.Implementation)
	if service == "" {
		service = aop.TypeName(b.Contract)
	}
	return &Aspect{
		service:   service,
		duration:  f.duration,
		logger:    f.logger,
		threshold: f.threshold,
	}, nil
}

// Aspect times each call from PreInvoke to PostInvoke.
type Aspect struct {
	service   string
	duration  *prometheus.HistogramVec
	logger    *zap.Logger
	threshold time.Duration
}

func (a *Aspect) PreInvoke(inv *aop.Invocation) {
	inv.Set(startKey{}, time.Now())
}

func (a *Aspect) PostInvoke(inv *aop.Invocation) {
	v, ok := inv.Get(startKey{})
	if !ok {
		return
	}
	elapsed := time.Since(v.(time.Time))
	a.duration.WithLabelValues(a.service, inv.TargetMethod.Name()).Observe(elapsed.Seconds())

	if a.threshold > 0 && elapsed > a.threshold {
		a.logger.Warn("slow call",
			zap.String("call", inv.Description),
			zap.String("invocation_id", inv.ID),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", a.threshold),
		)
	}
}

// AddProfilingAspect registers f and attaches it to the last registered service.
func AddProfilingAspect(b *aop.RegistrationBuilder, f *Factory, opts ...aop.EntryOption) error {
	if f == nil {
		return &aop.NilArgumentError{Name: "factory"}
	}
	return b.AddAspectFactory(f, opts...)
}

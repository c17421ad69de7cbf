package profiling_test

import (
	"errors"
	"testing"
	"time"

	"github.com/centraunit/aop"
	"github.com/centraunit/aop/mock"
	"github.com/centraunit/aop/profiling"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type ProfilingTestSuite struct {
	suite.Suite
	registry *prometheus.Registry
	builder  *aop.RegistrationBuilder
}

func (s *ProfilingTestSuite) SetupTest() {
	s.registry = prometheus.NewRegistry()
	var err error
	s.builder, err = aop.AddAspectSupport(aop.New(), nil)
	s.Require().NoError(err)
}

func (s *ProfilingTestSuite) TestObservesEachMethod() {
	factory, err := profiling.NewFactory(s.registry)
	s.Require().NoError(err)
	s.Require().NoError(aop.AddTransient[mock.TestInterface, *mock.MyTestInterface](s.builder))
	s.Require().NoError(profiling.AddProfilingAspect(s.builder, factory))

	svc, err := aop.Resolve[mock.TestInterface](s.builder.Container())
	s.Require().NoError(err)

	svc.GetClassByID(1)
	svc.GetClassByID(2)
	<-svc.TestAsync(1, "a", nil)

	s.Equal(2, testutil.CollectAndCount(factory.Collector(), "aop_call_duration_seconds"))

	families, err := s.registry.Gather()
	s.Require().NoError(err)
	s.Require().Len(families, 1)

	counts := map[string]uint64{}
	for _, m := range families[0].GetMetric() {
		var method, service string
		for _, l := range m.GetLabel() {
			switch l.GetName() {
			case "method":
				method = l.GetValue()
			case "service":
				service = l.GetValue()
			}
		}
		s.Equal("github.com/centraunit/aop/mock.MyTestInterface", service)
		counts[method] = m.GetHistogram().GetSampleCount()
	}
	s.Equal(map[string]uint64{"GetClassByID": 2, "TestAsync": 1}, counts)
}

func (s *ProfilingTestSuite) TestAsyncDurationCoversCompletion() {
	factory, err := profiling.NewFactory(s.registry)
	s.Require().NoError(err)
	s.Require().NoError(aop.AddTransient[mock.TestInterface, *mock.MyTestInterface](s.builder))
	s.Require().NoError(profiling.AddProfilingAspect(s.builder, factory))

	svc, err := aop.Resolve[mock.TestInterface](s.builder.Container())
	s.Require().NoError(err)
	<-svc.GetClassByIDAsync(1)

	families, err := s.registry.Gather()
	s.Require().NoError(err)
	s.Require().Len(families, 1)
	s.Require().Len(families[0].GetMetric(), 1)
	s.GreaterOrEqual(families[0].GetMetric()[0].GetHistogram().GetSampleSum(), (5 * time.Millisecond).Seconds())
}

func (s *ProfilingTestSuite) TestSlowCallsAreLogged() {
	core, logs := observer.New(zap.WarnLevel)
	factory, err := profiling.NewFactory(s.registry,
		profiling.WithLogger(zap.New(core)),
		profiling.WithSlowThreshold(time.Nanosecond),
		profiling.WithBuckets(0.001, 0.01, 0.1),
	)
	s.Require().NoError(err)
	s.Require().NoError(aop.AddTransient[mock.TestInterface, *mock.MyTestInterface](s.builder))
	s.Require().NoError(profiling.AddProfilingAspect(s.builder, factory, aop.WithMethods(aop.MustMethod[mock.TestInterface]("TestAsync"))))

	svc, err := aop.Resolve[mock.TestInterface](s.builder.Container())
	s.Require().NoError(err)
	<-svc.TestAsync(7, "slow", nil)
	svc.GetClassByID(1)

	entries := logs.FilterMessage("slow call").All()
	s.Require().Len(entries, 1)
	s.Equal(`*mock.MyTestInterface.TestAsync(7, "slow", <nil>)`, entries[0].ContextMap()["call"])
}

func (s *ProfilingTestSuite) TestThresholdZeroDisablesLogging() {
	core, logs := observer.New(zap.DebugLevel)
	factory, err := profiling.NewFactory(nil, profiling.WithLogger(zap.New(core)), profiling.WithSlowThreshold(0))
	s.Require().NoError(err)

	aspect, err := factory.Create(aop.Binding{Contract: aop.TypeOf[mock.TestInterface]()}, nil)
	s.Require().NoError(err)
	inv, err := aop.NewInvocation(aop.MustMethod[mock.TestInterface]("GetClassByID"), []any{1})
	s.Require().NoError(err)
	aspect.PreInvoke(inv)
	aspect.PostInvoke(inv)

	s.Zero(logs.Len())
	s.Equal(1, testutil.CollectAndCount(factory.Collector()))
}

func (s *ProfilingTestSuite) TestReusesRegisteredHistogram() {
	first, err := profiling.NewFactory(s.registry)
	s.Require().NoError(err)
	second, err := profiling.NewFactory(s.registry)
	s.Require().NoError(err)
	s.Same(first.Collector(), second.Collector())
}

func (s *ProfilingTestSuite) TestUnconfiguredFactoryFailsResolution() {
	s.Require().NoError(aop.AddTransient[mock.TestInterface, *mock.MyTestInterface](s.builder))
	s.Require().NoError(aop.AddAspect[*profiling.Factory](s.builder))

	_, err := aop.Resolve[mock.TestInterface](s.builder.Container())
	var creationErr *aop.AspectCreationError
	s.True(errors.As(err, &creationErr))
}

func (s *ProfilingTestSuite) TestAddProfilingAspectNilFactory() {
	s.Require().NoError(aop.AddTransient[mock.TestInterface, *mock.MyTestInterface](s.builder))
	var nilErr *aop.NilArgumentError
	s.True(errors.As(profiling.AddProfilingAspect(s.builder, nil), &nilErr))
}

func TestProfilingSuite(t *testing.T) {
	suite.Run(t, new(ProfilingTestSuite))
}

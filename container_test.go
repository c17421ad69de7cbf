package aop_test

import (
	"errors"
	"testing"

	"github.com/centraunit/aop"
	"github.com/centraunit/aop/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type ContainerTestSuite struct {
	suite.Suite
}

func (s *ContainerTestSuite) SetupTest() {
	aop.Reset()
}

func (s *ContainerTestSuite) TestBasicInitialization() {
	s.Require().NoError(mock.Bind[mock.Store, *mock.MemoryStore](aop.ScopeTransient))
	s.Require().NoError(mock.Bind[mock.Index, *mock.StoreIndex](aop.ScopeTransient))

	db, err := aop.Resolve[mock.Store](aop.GetContainer())
	s.NoError(err)
	s.NotNil(db)
	s.True(db.(*mock.MemoryStore).IsConnected(), "store should be connected")

	cache, err := aop.Resolve[mock.Index](aop.GetContainer())
	s.NoError(err)
	s.NotNil(cache)
}

func (s *ContainerTestSuite) TestTransientCreatesNewInstances() {
	s.Require().NoError(mock.Bind[mock.Store, *mock.MemoryStore](aop.ScopeTransient))

	db1, err := aop.Resolve[mock.Store](aop.GetContainer())
	s.Require().NoError(err)
	db2, err := aop.Resolve[mock.Store](aop.GetContainer())
	s.Require().NoError(err)
	s.NotSame(db1, db2)
}

func (s *ContainerTestSuite) TestNestedDependencies() {
	s.Require().NoError(mock.Bind[mock.Backend, *mock.StaticBackend](aop.ScopeTransient))
	s.Require().NoError(mock.Bind[mock.Handler, *mock.ForwardingHandler](aop.ScopeTransient))
	s.Require().NoError(mock.Bind[mock.Gateway, *mock.RoutingGateway](aop.ScopeTransient))

	resolved, err := aop.Resolve[mock.Gateway](aop.GetContainer())
	s.NoError(err)
	s.Equal("deep", resolved.Handler().Backend().Respond())
}

func (s *ContainerTestSuite) TestComplexDependencyResolution() {
	s.Require().NoError(mock.Bind[mock.Store, *mock.MemoryStore](aop.ScopeTransient))
	s.Require().NoError(mock.Bind[mock.Index, *mock.StoreIndex](aop.ScopeTransient))
	s.Require().NoError(mock.Bind[mock.Reporter, *mock.StoreReporter](aop.ScopeTransient))

	service, err := aop.Resolve[mock.Reporter](aop.GetContainer())
	s.NoError(err)

	complex := service.(*mock.StoreReporter)
	s.NotNil(complex.Store)
	s.NotNil(complex.Index)
}

func (s *ContainerTestSuite) TestSingleton() {
	s.Run("SameInstance", func() {
		s.Require().NoError(mock.Bind[mock.Store, *mock.MemoryStore](aop.ScopeSingleton))

		instance1, err1 := aop.Resolve[mock.Store](aop.GetContainer())
		instance2, err2 := aop.Resolve[mock.Store](aop.GetContainer())
		s.NoError(err1)
		s.NoError(err2)
		s.Same(instance1, instance2, "Singleton should return same instance")
	})

	s.Run("BootedOnce", func() {
		service := &mock.CountingWorker{}
		s.Require().NoError(mock.BindInstance[mock.Worker](service, aop.ScopeSingleton))

		for i := 0; i < 3; i++ {
			instance, err := aop.Resolve[mock.Worker](aop.GetContainer())
			s.Require().NoError(err)
			s.True(instance.Running())
		}
		s.Equal(1, service.Boots)
	})
}

func (s *ContainerTestSuite) TestScoped() {
	s.Require().NoError(mock.Bind[mock.Store, *mock.MemoryStore](aop.ScopeScoped))
	c := aop.GetContainer()

	s.Run("SharedWithinScope", func() {
		scope := c.NewScope(nil)
		db1, err := aop.ResolveScoped[mock.Store](c, scope)
		s.Require().NoError(err)
		db2, err := aop.ResolveScoped[mock.Store](c, scope)
		s.Require().NoError(err)
		s.Same(db1, db2)

		id, ok := scope.ScopeID()
		s.True(ok)
		s.Equal(id, db1.(*mock.MemoryStore).ScopeID)
	})

	s.Run("DistinctAcrossScopes", func() {
		db1, err := aop.ResolveScoped[mock.Store](c, c.NewScope(nil))
		s.Require().NoError(err)
		db2, err := aop.ResolveScoped[mock.Store](c, c.NewScope(nil))
		s.Require().NoError(err)
		s.NotSame(db1, db2)
	})

	s.Run("MissingScope", func() {
		_, err := aop.Resolve[mock.Store](c)
		var missingErr *aop.MissingContextValueError
		s.Require().True(errors.As(err, &missingErr))
		s.Equal(aop.ScopeIDKey, missingErr.Key)
	})

	s.Run("CloseScope", func() {
		scope := c.NewScope(nil)
		db, err := aop.ResolveScoped[mock.Store](c, scope)
		s.Require().NoError(err)
		s.NoError(c.CloseScope(scope))
		s.False(db.(*mock.MemoryStore).IsConnected())
		s.Equal(1, db.(*mock.MemoryStore).Shutdowns)

		var missingErr *aop.MissingContextValueError
		s.True(errors.As(c.CloseScope(c.Context()), &missingErr))
	})
}

func (s *ContainerTestSuite) TestBootAndShutdown() {
	db := &mock.MemoryStore{}
	s.Require().NoError(mock.BindInstance[mock.Store](db, aop.ScopeSingleton))

	s.NoError(aop.Boot())
	s.True(db.IsConnected())
	s.NoError(aop.Boot())

	s.NoError(aop.Shutdown(false))
	s.False(db.IsConnected())
	s.Equal(1, db.Shutdowns)

	_, err := aop.Resolve[mock.Store](aop.GetContainer())
	s.NoError(err, "bindings survive a shutdown without clearing")

	s.NoError(aop.Shutdown(true))
	_, err = aop.Resolve[mock.Store](aop.GetContainer())
	var notFound *aop.BindingNotFoundError
	s.True(errors.As(err, &notFound))
}

func (s *ContainerTestSuite) TestErrorCases() {
	s.Run("BindingNotFound", func() {
		_, err := aop.Resolve[mock.Index](aop.GetContainer())
		var notFound *aop.BindingNotFoundError
		s.Require().True(errors.As(err, &notFound))
		s.Contains(err.Error(), "no binding found")
	})

	s.Run("InvalidBindings", func() {
		c := aop.GetContainer()
		var nilErr *aop.NilArgumentError
		s.True(errors.As(c.Register(aop.Binding{}), &nilErr))

		var typeErr *aop.InvalidTypeError
		s.True(errors.As(c.Register(aop.Binding{
			Contract:       aop.TypeOf[*mock.MemoryStore](),
			Implementation: aop.TypeOf[*mock.MemoryStore](),
			Scope:          aop.ScopeTransient,
		}), &typeErr))

		s.True(errors.As(c.Register(aop.Binding{Contract: aop.TypeOf[mock.Store](), Scope: aop.ScopeTransient}), &nilErr))

		var argErr *aop.InvalidArgumentError
		s.True(errors.As(c.Register(aop.Binding{
			Contract:       aop.TypeOf[mock.Store](),
			Implementation: aop.TypeOf[*mock.MemoryStore](),
		}), &argErr))
		s.True(errors.As(c.RegisterFactory(nil), &nilErr))
	})

	s.Run("FailedBoot", func() {
		s.Require().NoError(mock.BindInstance[mock.Store](&mock.FailingStore{ShouldFail: true}, aop.ScopeSingleton))

		err := aop.Boot()
		var initErr *aop.InitializationError
		s.Require().True(errors.As(err, &initErr))
		s.Contains(err.Error(), "simulated boot failure")

		s.Require().NoError(mock.BindInstance[mock.Store](&mock.FailingStore{}, aop.ScopeSingleton))
		s.NoError(aop.Boot())
	})

	s.Run("FactoryErrors", func() {
		c := aop.GetContainer()
		failing, _ := aop.NewFactoryBinding(aop.TypeOf[mock.Index](), func(*aop.ContainerContext) (any, error) {
			return nil, errors.New("no cache")
		}, aop.ScopeTransient)
		s.Require().NoError(c.Register(failing))
		_, err := aop.Resolve[mock.Index](c)
		var initErr *aop.InitializationError
		s.True(errors.As(err, &initErr))

		nilFactory, _ := aop.NewFactoryBinding(aop.TypeOf[mock.Index](), func(*aop.ContainerContext) (any, error) {
			return nil, nil
		}, aop.ScopeTransient)
		s.Require().NoError(c.Register(nilFactory))
		_, err = aop.Resolve[mock.Index](c)
		s.True(errors.As(err, &initErr))

		wrongType, _ := aop.NewFactoryBinding(aop.TypeOf[mock.Index](), func(*aop.ContainerContext) (any, error) {
			return &mock.MemoryStore{}, nil
		}, aop.ScopeTransient)
		s.Require().NoError(c.Register(wrongType))
		_, err = aop.Resolve[mock.Index](c)
		var mismatch *aop.TypeMismatchError
		s.True(errors.As(err, &mismatch))
	})

	s.Run("CircularDependency", func() {
		s.Require().NoError(mock.Bind[mock.Publisher, *mock.LoopPublisher](aop.ScopeTransient))
		s.Require().NoError(mock.Bind[mock.Subscriber, *mock.LoopSubscriber](aop.ScopeTransient))

		_, err := aop.Resolve[mock.Publisher](aop.GetContainer())
		var circular *aop.CircularDependencyError
		s.Require().True(errors.As(err, &circular))
		s.Contains(err.Error(), "circular dependency")

		_, err = aop.Resolve[mock.Publisher](aop.GetContainer())
		s.True(errors.As(err, &circular), "resolution state is released after a failure")
	})

	s.Run("CircularSingleton", func() {
		s.Require().NoError(mock.Bind[mock.Publisher, *mock.LoopPublisher](aop.ScopeSingleton))
		s.Require().NoError(mock.Bind[mock.Subscriber, *mock.LoopSubscriber](aop.ScopeSingleton))

		_, err := aop.Resolve[mock.Subscriber](aop.GetContainer())
		var circular *aop.CircularDependencyError
		s.True(errors.As(err, &circular))
	})
}

func (s *ContainerTestSuite) TestLogging() {
	core, logs := observer.New(zap.DebugLevel)
	c := aop.New(aop.WithLogger(zap.New(core)))

	b, err := aop.NewBinding(aop.TypeOf[mock.Store](), aop.TypeOf[*mock.MemoryStore](), aop.ScopeTransient)
	s.Require().NoError(err)
	s.Require().NoError(c.Register(b))
	s.Require().NoError(c.Register(b))

	registered := logs.FilterMessage("service registered").All()
	s.Require().Len(registered, 2)
	s.Equal(false, registered[0].ContextMap()["replaced"])
	s.Equal(true, registered[1].ContextMap()["replaced"])
	s.Equal("mock.Store", registered[0].ContextMap()["contract"])
}

func TestContainerSuite(t *testing.T) {
	suite.Run(t, new(ContainerTestSuite))
}

func TestGetContainerIsProcessWide(t *testing.T) {
	assert.Same(t, aop.GetContainer(), aop.GetContainer())
	assert.NotSame(t, aop.GetContainer(), aop.New())
}

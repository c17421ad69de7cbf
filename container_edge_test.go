package aop_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/centraunit/aop"
	"github.com/centraunit/aop/mock"
	"github.com/stretchr/testify/suite"
)

type EdgeCaseTestSuite struct {
	suite.Suite
}

func (s *EdgeCaseTestSuite) SetupTest() {
	aop.Reset()
}

func (s *EdgeCaseTestSuite) TestContainerEdgeCases() {
	s.Run("ShutdownDuringResolution", func() {
		s.Require().NoError(mock.Bind[mock.Store, *mock.MemoryStore](aop.ScopeTransient))

		var wg sync.WaitGroup
		errs := make(chan error, 1)
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := aop.Resolve[mock.Store](aop.GetContainer()); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			_ = aop.Shutdown(true)
		}()
		wg.Wait()
		close(errs)

		for err := range errs {
			var notFound *aop.BindingNotFoundError
			s.True(errors.As(err, &notFound), "resolution either wins or finds no binding")
		}
	})

	s.Run("MultipleConcurrentResets", func() {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = aop.Shutdown(true)
			}()
		}
		wg.Wait()
	})

	s.Run("BootWithoutBindings", func() {
		s.NoError(aop.Boot(), "Boot should succeed with no bindings")
	})

	s.Run("MultipleBoots", func() {
		aop.Reset()
		service := &mock.CountingWorker{}
		s.Require().NoError(mock.BindInstance[mock.Worker](service, aop.ScopeSingleton))
		s.NoError(aop.Boot())
		s.NoError(aop.Boot(), "Multiple boots should be safe")
		s.Equal(1, service.Boots)
	})

	s.Run("ShutdownWithoutBoot", func() {
		s.NoError(aop.Shutdown(false), "Shutdown without boot should be safe")
	})

	s.Run("MultipleShutdowns", func() {
		s.NoError(aop.Boot())
		s.NoError(aop.Shutdown(false))
		s.NoError(aop.Shutdown(false), "Multiple shutdowns should be safe")
	})
}

func (s *EdgeCaseTestSuite) TestShutdownKeepsBindings() {
	db := &mock.MemoryStore{}
	s.Require().NoError(mock.BindInstance[mock.Store](db, aop.ScopeSingleton))
	s.Require().NoError(aop.Boot())
	s.True(db.IsConnected())

	s.Require().NoError(aop.Shutdown(false))
	s.False(db.IsConnected())
	s.Equal(1, db.Shutdowns)

	instance, err := aop.Resolve[mock.Store](aop.GetContainer())
	s.Require().NoError(err)
	s.Same(db, instance)
	s.True(db.IsConnected(), "singleton is booted again after a regular shutdown")
}

func (s *EdgeCaseTestSuite) TestShutdownClearsBindings() {
	s.Require().NoError(mock.Bind[mock.Store, *mock.MemoryStore](aop.ScopeScoped))
	c := aop.GetContainer()
	scope := c.NewScope(nil)
	_, err := aop.ResolveScoped[mock.Store](c, scope)
	s.Require().NoError(err)

	s.Require().NoError(aop.Shutdown(true))

	_, err = aop.ResolveScoped[mock.Store](c, scope)
	var notFound *aop.BindingNotFoundError
	s.True(errors.As(err, &notFound), "Should not be able to resolve after clearing bindings")
}

func (s *EdgeCaseTestSuite) TestCloseScopeTwice() {
	s.Require().NoError(mock.Bind[mock.Store, *mock.MemoryStore](aop.ScopeScoped))
	c := aop.GetContainer()
	scope := c.NewScope(nil)
	instance, err := aop.ResolveScoped[mock.Store](c, scope)
	s.Require().NoError(err)

	s.NoError(c.CloseScope(scope))
	s.NoError(c.CloseScope(scope))
	s.Equal(1, instance.(*mock.MemoryStore).Shutdowns)
}

func (s *EdgeCaseTestSuite) TestResolveEdgeCases() {
	c := aop.GetContainer()

	s.Run("NilContract", func() {
		_, err := c.Resolve(nil, nil)
		var nilErr *aop.NilArgumentError
		s.True(errors.As(err, &nilErr))
	})

	s.Run("CloseScopeWithoutScope", func() {
		var missing *aop.MissingContextValueError
		s.True(errors.As(c.CloseScope(aop.NewContainerContext(nil)), &missing))
	})
}

func TestEdgeCaseSuite(t *testing.T) {
	suite.Run(t, new(EdgeCaseTestSuite))
}

package aop_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/centraunit/aop"
	"github.com/centraunit/aop/mock"
	"github.com/stretchr/testify/suite"
)

type EntryTestSuite struct {
	suite.Suite
	factoryType reflect.Type
	test        aop.Method
	getByID     aop.Method
}

func (s *EntryTestSuite) SetupTest() {
	s.factoryType = aop.TypeOf[*mock.TestAspectFactory]()
	s.test = aop.MustMethod[mock.TestInterface]("Test")
	s.getByID = aop.MustMethod[mock.TestInterface]("GetClassByID")
}

func (s *EntryTestSuite) TestNewEntry() {
	s.Run("NilFactoryType", func() {
		_, err := aop.NewEntry(nil, 1)
		var nilErr *aop.NilArgumentError
		s.Require().True(errors.As(err, &nilErr))
		s.Equal("factoryType", nilErr.Name)
	})

	s.Run("InterfaceFactoryType", func() {
		_, err := aop.NewEntry(aop.TypeOf[aop.Factory](), 1)
		var typeErr *aop.InvalidTypeError
		s.Require().True(errors.As(err, &typeErr))
		s.Contains(typeErr.Reason, "concrete")
	})

	s.Run("NotAFactory", func() {
		_, err := aop.NewEntry(aop.TypeOf[mock.NotAFactory](), 1)
		var typeErr *aop.InvalidTypeError
		s.True(errors.As(err, &typeErr))
	})

	s.Run("ValueTypeWithPointerReceiver", func() {
		entry, err := aop.NewEntry(aop.TypeOf[mock.TestAspectFactory](), 1)
		s.NoError(err)
		s.NotNil(entry)
	})

	s.Run("NilMethodsYieldEmptySet", func() {
		entry, err := aop.NewEntry(s.factoryType, 2)
		s.Require().NoError(err)
		s.Empty(entry.Methods())
		s.Equal(2, entry.SortOrder())
		s.Equal(s.factoryType, entry.FactoryType())
	})

	s.Run("DropsZeroAndDuplicateMethods", func() {
		entry, err := aop.NewEntry(s.factoryType, 1, s.test, aop.Method{}, s.test, s.getByID)
		s.Require().NoError(err)
		s.Equal([]aop.Method{s.test, s.getByID}, entry.Methods())
	})
}

func (s *EntryTestSuite) TestAddMethods() {
	entry, err := aop.NewEntry(s.factoryType, 1, s.test)
	s.Require().NoError(err)

	s.Run("Union", func() {
		s.NoError(entry.AddMethods(s.getByID, s.test))
		s.Equal([]aop.Method{s.test, s.getByID}, entry.Methods())
	})

	s.Run("Idempotent", func() {
		s.NoError(entry.AddMethods(s.getByID))
		s.Len(entry.Methods(), 2)
	})

	s.Run("NilList", func() {
		err := entry.AddMethods(nil...)
		var nilErr *aop.NilArgumentError
		s.True(errors.As(err, &nilErr))
	})

	s.Run("EmptyList", func() {
		err := entry.AddMethods([]aop.Method{}...)
		var argErr *aop.InvalidArgumentError
		s.Require().True(errors.As(err, &argErr))
		s.Equal("methods", argErr.Name)
	})
}

func (s *EntryTestSuite) TestRemoveMethods() {
	entry, err := aop.NewEntry(s.factoryType, 1, s.test, s.getByID)
	s.Require().NoError(err)

	entry.RemoveMethods(nil...)
	entry.RemoveMethods([]aop.Method{}...)
	s.Len(entry.Methods(), 2)

	snapshot := entry.Methods()
	entry.RemoveMethods(s.test)
	s.Equal([]aop.Method{s.getByID}, entry.Methods())
	s.Equal([]aop.Method{s.test, s.getByID}, snapshot)
	s.False(entry.Intercepts(s.test))
	s.True(entry.Intercepts(s.getByID))
}

func (s *EntryTestSuite) TestEmptySetInterceptsEverything() {
	entry, err := aop.NewEntry(s.factoryType, 1, s.test)
	s.Require().NoError(err)
	entry.RemoveMethods(s.test)

	s.Empty(entry.Methods())
	s.True(entry.Intercepts(s.test))
	s.True(entry.Intercepts(s.getByID))
}

func (s *EntryTestSuite) TestEqual() {
	a, _ := aop.NewEntry(s.factoryType, 1, s.test)
	b, _ := aop.NewEntry(s.factoryType, 5, s.getByID)
	c, _ := aop.NewEntry(aop.TypeOf[*mock.TestAspectFactory2](), 1, s.test)

	s.True(a.Equal(b))
	s.False(a.Equal(c))
	s.False(a.Equal(nil))
}

func TestEntrySuite(t *testing.T) {
	suite.Run(t, new(EntryTestSuite))
}

package yamlconfig_test

import (
	"errors"
	"testing"

	"github.com/centraunit/aop"
	"github.com/centraunit/aop/mock"
	"github.com/centraunit/aop/yamlconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	doc, err := yamlconfig.ParseDocument([]byte(newService))
	require.NoError(t, err)
	require.Len(t, doc.Services, 1)

	svc := doc.Services[0]
	assert.Equal(t, "singleton", svc.Scope)
	require.Len(t, svc.Aspects, 1)
	assert.Nil(t, svc.Aspects[0].SortOrder)
	assert.Equal(t, []string{"Find", "Save"}, svc.Aspects[0].Methods)
}

func TestParseDocumentEmpty(t *testing.T) {
	doc, err := yamlconfig.ParseDocument(nil)
	require.NoError(t, err)
	assert.Empty(t, doc.Services)
}

func TestParseDocumentRejects(t *testing.T) {
	cases := map[string]string{
		"MissingContract": "services:\n  - scope: transient\n",
		"UnknownScope":    "services:\n  - contract: a.B\n    scope: request\n",
		"ZeroSortOrder":   "services:\n  - contract: a.B\n    aspects:\n      - factory: f.F\n        sortOrder: 0\n",
		"MissingFactory":  "services:\n  - contract: a.B\n    aspects:\n      - methods: [Get]\n",
		"EmptyMethodName": "services:\n  - contract: a.B\n    aspects:\n      - factory: f.F\n        methods: [\"\"]\n",
		"UnknownKey":      "services:\n  - contract: a.B\n    interceptors: []\n",
		"Malformed":       "services: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := yamlconfig.ParseDocument([]byte(content))
			assert.Error(t, err)
		})
	}
}

func TestCatalog(t *testing.T) {
	catalog := yamlconfig.NewCatalog(aop.TypeOf[mock.Repository](), nil)
	catalog.AddNamed("repo", aop.TypeOf[mock.Repository]())

	typ, err := catalog.Lookup("github.com/centraunit/aop/mock.Repository")
	require.NoError(t, err)
	assert.Equal(t, aop.TypeOf[mock.Repository](), typ)

	alias, err := catalog.Lookup("repo")
	require.NoError(t, err)
	assert.Equal(t, typ, alias)

	assert.Equal(t, []string{"github.com/centraunit/aop/mock.Repository", "repo"}, catalog.Names())

	_, err = catalog.Lookup("mock.Repository")
	var unknown *yamlconfig.UnknownTypeError
	assert.True(t, errors.As(err, &unknown))
}

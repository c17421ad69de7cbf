package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const sample = `
services:
  - contract: example.com/app.Repository
    implementation: example.com/app.SQLRepository
    scope: singleton
    aspects:
      - factory: github.com/centraunit/aop/logging.Factory
        sortOrder: 1
      - factory: github.com/centraunit/aop/tracing.Factory
        sortOrder: 1
      - factory: example.com/app.AuditFactory
        methods: [Save]
  - contract: example.com/app.Repository
    implementation: example.com/app.SQLRepository
  - contract: example.com/app.Mailer
    scope: scoped
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aspects.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLintFindings(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, lintFile(writeFile(t, sample), false, zap.New(core)))

	summary := logs.FilterMessage("aspect configuration checked").All()
	require.Len(t, summary, 1)
	fields := summary[0].ContextMap()
	assert.EqualValues(t, 3, fields["services"])
	assert.EqualValues(t, 3, fields["aspects"])
	assert.EqualValues(t, 3, fields["warnings"])

	assert.Equal(t, 1, logs.FilterMessage("example.com/app.AuditFactory is not a built-in aspect; the application must add it to its catalog").Len())
	assert.Equal(t, 1, logs.FilterMessage("scope is ignored without an implementation").Len())
	assert.Equal(t, 3, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestLintStrict(t *testing.T) {
	err := lintFile(writeFile(t, sample), true, zap.NewNop())
	assert.ErrorIs(t, err, errWarnings)

	clean := "services:\n  - contract: example.com/app.Repository\n    aspects:\n      - factory: github.com/centraunit/aop/profiling.Factory\n"
	assert.NoError(t, lintFile(writeFile(t, clean), true, zap.NewNop()))
}

func TestLintInvalidDocument(t *testing.T) {
	assert.Error(t, lintFile(writeFile(t, "services:\n  - scope: singleton\n"), false, zap.NewNop()))
	assert.Error(t, lintFile(filepath.Join(t.TempDir(), "missing.yaml"), false, zap.NewNop()))
}

func TestRunUsesArgument(t *testing.T) {
	t.Setenv("AOP_LOG_LEVEL", "error")
	path := writeFile(t, sample)
	assert.NoError(t, run([]string{"-env", filepath.Join(t.TempDir(), "none.env"), path}, io.Discard))
	assert.ErrorIs(t, run([]string{"-env", filepath.Join(t.TempDir(), "none.env"), "-strict", path}, io.Discard), errWarnings)
	assert.Error(t, run([]string{"-unknown"}, io.Discard))
}

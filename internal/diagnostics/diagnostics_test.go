package diagnostics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/usefulness/keeper/internal/classfile"
	"github.com/usefulness/keeper/internal/tracer"
)

var unresolved = []tracer.UnresolvedReference{
	{Reference: classfile.MethodRef("prod/Bar", "missing", "(I)V"), Referrers: []string{"test/FooTest", "test/OtherTest"}},
	{Reference: classfile.FieldRef("prod/Bar", "gone", "J"), Referrers: []string{"test/FooTest"}},
}

func TestPermissiveLogsWarnings(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rep, err := NewReporter(PolicyPermissive, zap.New(core)).Report(unresolved)
	require.NoError(t, err)

	assert.False(t, rep.Failed())
	assert.Equal(t, SeverityWarning, rep.Severity)
	require.Len(t, rep.Entries, 2)
	assert.Equal(t, "prod.Bar#missing(int)", rep.Entries[0].Symbol)

	warnings := logs.FilterMessage("unresolved reference").FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 2)
	assert.Equal(t, "prod.Bar#missing(int)", warnings[0].ContextMap()["symbol"])
	assert.Contains(t, warnings[0].ContextMap()["error"], "from test.FooTest, test.OtherTest")
}

func TestStrictFails(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rep, err := NewReporter(PolicyStrict, zap.New(core)).Report(unresolved)

	var symbols *UnresolvedSymbolsError
	require.True(t, errors.As(err, &symbols))
	assert.Len(t, symbols.Entries, 2)
	assert.Contains(t, err.Error(), "prod.Bar#gone")
	assert.True(t, rep.Failed())
	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestNothingUnresolved(t *testing.T) {
	for _, policy := range []Policy{PolicyPermissive, PolicyStrict} {
		rep, err := NewReporter(policy, nil).Report(nil)
		require.NoError(t, err)
		assert.False(t, rep.Failed())
		assert.Equal(t, SeverityInfo, rep.Severity)
		assert.Equal(t, "no unresolved references\n", rep.Text())
	}
}

func TestReportText(t *testing.T) {
	rep, err := NewReporter("", nil).Report(unresolved[:1])
	require.NoError(t, err)
	assert.Equal(t, PolicyPermissive, rep.Policy)
	assert.Equal(t, `1 unresolved reference(s) (permissive):
  prod.Bar#missing(int)
    referenced from test.FooTest
    referenced from test.OtherTest
`, rep.Text())
}

package inference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/usefulness/keeper/internal/classfile/classtest"
	"github.com/usefulness/keeper/internal/diagnostics"
	"github.com/usefulness/keeper/internal/loader"
	"github.com/usefulness/keeper/internal/output"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memSink struct {
	content []byte
	calls   int
}

func (s *memSink) WriteRules(_ context.Context, content []byte) error {
	s.calls++
	s.content = append([]byte(nil), content...)
	return nil
}

var (
	base = classtest.Class{
		Name:    "prod/Base",
		Methods: []classtest.Method{{Name: "helper", Descriptor: "()V"}},
	}
	bareBase = classtest.Class{Name: "prod/Base"}
	bar      = classtest.Class{Name: "prod/Bar", Super: "prod/Base"}
	fooTest  = classtest.Class{
		Name: "test/FooTest",
		Methods: []classtest.Method{{Name: "check", Descriptor: "()V", Code: []classtest.Insn{
			classtest.InvokeVirtual("prod/Bar", "helper", "()V"),
			classtest.InvokeInterface("java/util/List", "get", "(I)Ljava/lang/Object;"),
		}}},
	}
)

type fixture struct {
	dir     string
	roots   string
	targets string
}

func newFixture(t *testing.T, targets ...classtest.Class) fixture {
	t.Helper()
	dir := t.TempDir()
	return fixture{
		dir:     dir,
		roots:   classtest.WriteDir(t, filepath.Join(dir, "test-classes"), fooTest),
		targets: classtest.WriteJar(t, filepath.Join(dir, "app.jar"), targets...),
	}
}

const scenarioRules = `-keep class prod.Bar
-keep class prod.Base {
  void helper();
}
`

func TestRunInheritedMemberScenario(t *testing.T) {
	f := newFixture(t, base, bar)
	sink := &memSink{}

	res, err := New(nil, nil).Run(context.Background(), Request{Roots: []string{f.roots}, Targets: []string{f.targets}}, sink)
	require.NoError(t, err)

	assert.Equal(t, scenarioRules, string(sink.content))
	assert.Equal(t, 1, sink.calls)
	assert.Len(t, res.Rules, 2)
	assert.Equal(t, 1, res.Members())
	assert.Equal(t, 1, res.RootClasses)
	assert.Equal(t, 2, res.TargetClasses)
	assert.False(t, res.Report.Failed())
}

func TestRunIsDeterministic(t *testing.T) {
	f := newFixture(t, base, bar)
	req := Request{Roots: []string{f.roots}, Targets: []string{f.targets}, Workers: 4}

	first := filepath.Join(f.dir, "first.pro")
	second := filepath.Join(f.dir, "second.pro")
	_, err := New(nil, nil).Run(context.Background(), req, output.FileSink{Path: first})
	require.NoError(t, err)
	req.Workers = 1
	_, err = New(nil, nil).Run(context.Background(), req, output.FileSink{Path: second})
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, scenarioRules, string(a))
}

func TestRunStrictLeavesOutputUntouched(t *testing.T) {
	f := newFixture(t, bareBase, bar)
	dest := filepath.Join(f.dir, "keeper.pro")
	require.NoError(t, os.WriteFile(dest, []byte("previous\n"), 0o644))
	debugDir := filepath.Join(f.dir, "debug")

	res, err := New(nil, nil).Run(context.Background(), Request{
		Roots:    []string{f.roots},
		Targets:  []string{f.targets},
		Policy:   diagnostics.PolicyStrict,
		DebugDir: debugDir,
	}, output.FileSink{Path: dest})

	var symbols *diagnostics.UnresolvedSymbolsError
	require.True(t, errors.As(err, &symbols), "got %v", err)
	require.Len(t, symbols.Entries, 1)
	assert.Equal(t, "prod.Bar#helper()", symbols.Entries[0].Symbol)
	require.NotNil(t, res)
	assert.True(t, res.Report.Failed())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(data))

	unresolved, err := os.ReadFile(filepath.Join(debugDir, output.UnresolvedFile))
	require.NoError(t, err)
	assert.Equal(t, "prod.Bar#helper() <- test.FooTest\n", string(unresolved))
}

func TestRunPermissiveWarns(t *testing.T) {
	f := newFixture(t, bareBase, bar)
	core, logs := observer.New(zapcore.InfoLevel)
	sink := &memSink{}

	res, err := New(zap.New(core), nil).Run(context.Background(), Request{Roots: []string{f.roots}, Targets: []string{f.targets}}, sink)
	require.NoError(t, err)

	assert.Equal(t, "-keep class prod.Bar\n", string(sink.content))
	assert.Equal(t, diagnostics.SeverityWarning, res.Report.Severity)
	assert.Equal(t, 1, logs.FilterMessage("unresolved reference").FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestRunFirstTargetContainerWins(t *testing.T) {
	dir := t.TempDir()
	roots := classtest.WriteDir(t, filepath.Join(dir, "test-classes"), fooTest)
	withHelper := classtest.WriteJar(t, filepath.Join(dir, "with.jar"), base, bar)
	without := classtest.WriteJar(t, filepath.Join(dir, "without.jar"), bareBase)

	sink := &memSink{}
	_, err := New(nil, nil).Run(context.Background(), Request{Roots: []string{roots}, Targets: []string{withHelper, without}}, sink)
	require.NoError(t, err)
	assert.Equal(t, scenarioRules, string(sink.content))

	sink = &memSink{}
	res, err := New(nil, nil).Run(context.Background(), Request{Roots: []string{roots}, Targets: []string{without, withHelper}}, sink)
	require.NoError(t, err)
	assert.Equal(t, "-keep class prod.Bar\n", string(sink.content))
	assert.Len(t, res.Report.Entries, 1)
}

func TestRunExtraRules(t *testing.T) {
	f := newFixture(t, base, bar)
	extraFile := filepath.Join(f.dir, "manual.pro")
	require.NoError(t, os.WriteFile(extraFile, []byte("-keep class manual.FromFile\n"), 0o644))
	sink := &memSink{}

	_, err := New(nil, nil).Run(context.Background(), Request{
		Roots:            []string{f.roots},
		Targets:          []string{f.targets},
		AllowObfuscation: true,
		ExtraRules:       []string{"-dontwarn manual.**", "-keep class manual.FromFile"},
		ExtraRuleFiles:   []string{extraFile},
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, `-keep,allowobfuscation class prod.Bar
-keep,allowobfuscation class prod.Base {
  void helper();
}
-dontwarn manual.**
-keep class manual.FromFile
`, string(sink.content))
}

func TestRunUnreadableArtifact(t *testing.T) {
	f := newFixture(t, base, bar)
	sink := &memSink{}
	_, err := New(nil, nil).Run(context.Background(), Request{
		Roots:   []string{f.roots},
		Targets: []string{filepath.Join(f.dir, "missing.jar")},
	}, sink)

	var unreadable *loader.UnreadableArtifactError
	require.True(t, errors.As(err, &unreadable), "got %v", err)
	assert.Zero(t, sink.calls)
}

func TestRunCancelledWritesNothing(t *testing.T) {
	f := newFixture(t, base, bar)
	dest := filepath.Join(f.dir, "keeper.pro")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil, nil).Run(ctx, Request{Roots: []string{f.roots}, Targets: []string{f.targets}}, output.FileSink{Path: dest})
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

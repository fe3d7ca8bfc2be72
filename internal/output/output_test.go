package output

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usefulness/keeper/internal/classfile"
	"github.com/usefulness/keeper/internal/loader"
	"github.com/usefulness/keeper/internal/rules"
	"github.com/usefulness/keeper/internal/tracer"
)

func TestWriteFileAtomicReplaces(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "rules.pro")

	require.NoError(t, WriteFileAtomic(dest, []byte("first\n")))
	require.NoError(t, WriteFileAtomic(dest, []byte("second\n")))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestWriteFileAtomicFailureKeepsDestination(t *testing.T) {
	dir := t.TempDir()
	// A directory at the destination makes the final rename fail.
	dest := filepath.Join(dir, "rules.pro")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "occupied"), 0o755))

	err := WriteFileAtomic(dest, []byte("content"))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir())
}

func TestWrite(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "keep.pro")
	rs := []rules.KeepRule{{Class: "prod/Bar"}}
	require.NoError(t, Write(rs, []string{"-dontwarn x.**"}, rules.Options{}, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "-keep class prod.Bar\n-dontwarn x.**\n", string(data))
}

func TestFileSinkHonoursCancellation(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "keep.pro")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := FileSink{Path: dest}.WriteRules(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteDebug(t *testing.T) {
	dir := t.TempDir()
	d := Debug{
		Roots: []loader.ContainerStats{
			{Path: "/in/test.jar", Kind: loader.KindArchive, Classes: 2, Bytes: 2048, Digest: 0xabc},
			{Path: "/in/gen", Excluded: true},
		},
		Targets: []loader.ContainerStats{{Path: "/in/app", Kind: loader.KindDirectory, Classes: 5, Shadowed: 1, Bytes: 10}},
		Resolved: []tracer.ResolvedReference{
			{Reference: classfile.TypeRef("prod/Bar"), Declaring: "prod/Bar"},
			{Reference: classfile.MethodRef("prod/Bar", "helper", "()V"), Declaring: "prod/Base"},
		},
		Unresolved: []tracer.UnresolvedReference{
			{Reference: classfile.MethodRef("prod/Bar", "missing", "()V"), Referrers: []string{"test/FooTest"}},
		},
		Stats: tracer.Stats{RootClasses: 1200, Scanned: 1200, References: 34000},
	}
	require.NoError(t, WriteDebug(dir, d))

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		return string(data)
	}

	inputs := read(InputsFile)
	assert.Contains(t, inputs, "/in/test.jar archive classes=2 size=2.0 kB xxh64=0000000000000abc\n")
	assert.Contains(t, inputs, "/in/gen excluded\n")
	assert.Contains(t, inputs, "/in/app directory classes=5 shadowed=1 size=10 B")
	assert.Contains(t, inputs, "root classes=1,200")
	assert.False(t, strings.Contains(inputs, "# library"))

	assert.Equal(t, "prod/Bar\nprod/Bar.helper()V -> prod/Base\n", read(ReferencesFile))
	assert.Equal(t, "prod.Bar#missing() <- test.FooTest\n", read(UnresolvedFile))
}

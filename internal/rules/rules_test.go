package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usefulness/keeper/internal/classfile"
	"github.com/usefulness/keeper/internal/tracer"
)

func resolved(ref classfile.SymbolReference, declaring string) tracer.ResolvedReference {
	return tracer.ResolvedReference{Reference: ref, Declaring: declaring}
}

func TestSynthesizeGroupsByDeclaringClass(t *testing.T) {
	got := Synthesize([]tracer.ResolvedReference{
		resolved(classfile.MethodRef("prod/Bar", "helper", "()V"), "prod/Base"),
		resolved(classfile.TypeRef("prod/Bar"), "prod/Bar"),
		resolved(classfile.MethodRef("prod/Base", "<init>", "(Ljava/lang/String;)V"), "prod/Base"),
		resolved(classfile.FieldRef("prod/Other", "count", "I"), "prod/Base"),
		resolved(classfile.MethodRef("prod/Base", "helper", "()V"), "prod/Base"),
		resolved(classfile.TypeRef("prod/Base"), "prod/Base"),
	})

	want := []KeepRule{
		{Class: "prod/Bar"},
		{Class: "prod/Base", Members: []Member{
			{Kind: classfile.KindField, Name: "count", Descriptor: "I"},
			{Kind: classfile.KindMethod, Name: "<init>", Descriptor: "(Ljava/lang/String;)V"},
			{Kind: classfile.KindMethod, Name: "helper", Descriptor: "()V"},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesizeEmpty(t *testing.T) {
	assert.Empty(t, Synthesize(nil))
}

func TestMemberRender(t *testing.T) {
	tests := []struct {
		member Member
		want   string
	}{
		{Member{Kind: classfile.KindMethod, Name: "helper", Descriptor: "()V"}, "void helper()"},
		{Member{Kind: classfile.KindMethod, Name: "<init>", Descriptor: "(Ljava/lang/String;I)V"}, "<init>(java.lang.String,int)"},
		{Member{Kind: classfile.KindMethod, Name: "<clinit>", Descriptor: "()V"}, "<clinit>()"},
		{Member{Kind: classfile.KindMethod, Name: "items", Descriptor: "([[J)[Lprod/Item;"}, "prod.Item[] items(long[][])"},
		{Member{Kind: classfile.KindField, Name: "count", Descriptor: "I"}, "int count"},
		{Member{Kind: classfile.KindField, Name: "inner", Descriptor: "Lprod/Outer$Inner;"}, "prod.Outer$Inner inner"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.member.Render())
	}
}

func TestRuleSetRender(t *testing.T) {
	rules := []KeepRule{
		{Class: "prod/Bar"},
		{Class: "prod/Base", Members: []Member{
			{Kind: classfile.KindField, Name: "count", Descriptor: "I"},
			{Kind: classfile.KindMethod, Name: "helper", Descriptor: "()V"},
		}},
	}
	extra := []string{
		"-keep class extra.First\n",
		"  ",
		"-dontwarn extra.**",
		"-keep class extra.First",
	}

	got := NewRuleSet(rules, extra, Options{}).Render()
	want := `-keep class prod.Bar
-keep class prod.Base {
  int count;
  void helper();
}
-keep class extra.First
-dontwarn extra.**
`
	assert.Equal(t, want, got)

	obfuscated := NewRuleSet(rules[:1], nil, Options{AllowObfuscation: true}).Render()
	assert.Equal(t, "-keep,allowobfuscation class prod.Bar\n", obfuscated)
}

func TestRuleSetRenderIsStable(t *testing.T) {
	rules := Synthesize([]tracer.ResolvedReference{
		resolved(classfile.MethodRef("prod/B", "b", "()V"), "prod/B"),
		resolved(classfile.MethodRef("prod/A", "a", "()V"), "prod/A"),
		resolved(classfile.FieldRef("prod/B", "f", "J"), "prod/B"),
	})
	first := NewRuleSet(rules, nil, Options{}).Render()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, NewRuleSet(rules, nil, Options{}).Render())
	}
}

func TestReadExtraFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pro")
	require.NoError(t, os.WriteFile(a, []byte("-keep class a.A\n"), 0o644))

	blocks, err := ReadExtraFiles([]string{a})
	require.NoError(t, err)
	assert.Equal(t, []string{"-keep class a.A\n"}, blocks)

	_, err = ReadExtraFiles([]string{filepath.Join(dir, "missing.pro")})
	assert.ErrorContains(t, err, "missing.pro")
}

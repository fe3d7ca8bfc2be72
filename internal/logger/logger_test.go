package logger

import (
	"bytes"
	"testing"
)

func TestStdoutLoggerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	l := &StdoutLogger{W: &buf}
	l.Logf("loaded %d classes\n", 3)
	l.Log("done")
	if got, want := buf.String(), "loaded 3 classes\ndone\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFuncfFormats(t *testing.T) {
	var got []string
	l := Funcf(func(msg string) { got = append(got, msg) })
	l.Logf("tracing %s", "roots")
	l.Log("writing")
	if len(got) != 2 || got[0] != "tracing roots" || got[1] != "writing" {
		t.Fatalf("unexpected messages: %q", got)
	}
}

func TestNewZapVerbose(t *testing.T) {
	log, err := NewZap(true)
	if err != nil {
		t.Fatalf("NewZap: %v", err)
	}
	if !log.Core().Enabled(-1) {
		t.Fatal("verbose logger should enable debug level")
	}
	quiet, err := NewZap(false)
	if err != nil {
		t.Fatalf("NewZap: %v", err)
	}
	if quiet.Core().Enabled(-1) {
		t.Fatal("default logger should not enable debug level")
	}
}

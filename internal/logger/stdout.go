package logger

import (
	"fmt"
	"io"
	"os"
)

// StdoutLogger prints progress lines to W, or to stdout when W is nil.
type StdoutLogger struct {
	W io.Writer
}

func (l *StdoutLogger) out() io.Writer {
	if l.W == nil {
		return os.Stdout
	}
	return l.W
}

func (l *StdoutLogger) Logf(format string, args ...interface{}) { fmt.Fprintf(l.out(), format, args...) }
func (l *StdoutLogger) Log(msg string)                          { fmt.Fprintln(l.out(), msg) }

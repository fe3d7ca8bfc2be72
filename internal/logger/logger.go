package logger

import "fmt"

// Logger receives user-facing progress messages. Structured diagnostics go
// through zap instead.
type Logger interface {
	Logf(format string, args ...interface{})
	Log(msg string)
}

// Discard drops every message. Used for non-interactive callers and tests.
var Discard Logger = discard{}

type discard struct{}

func (discard) Logf(string, ...interface{}) {}
func (discard) Log(string)                  {}

// Funcf adapts a formatting function, such as a spinner status update.
type Funcf func(msg string)

func (f Funcf) Logf(format string, args ...interface{}) { f(fmt.Sprintf(format, args...)) }
func (f Funcf) Log(msg string)                          { f(msg) }

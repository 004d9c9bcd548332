// Package aff4log is a small leveled logging shim: every call site
// names the object the message is about, and the actual sink is
// swappable so the imager/CLI layer (out of scope for this module)
// can redirect or silence core logging without the core importing any
// particular log framework.
package aff4log

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Level selects which messages reach the sink.
type Level int

const (
	// Debug is the most verbose level: per-chunk/per-range detail.
	Debug Level = iota
	// Info is normal operational messages (volume opened, bevy flushed).
	Info
	// Error is for failures callers recovered from (e.g. the Map's
	// page-fallback degrading to symbolic data).
	Error
	// Silent disables all output.
	Silent
)

var (
	mu     sync.Mutex
	output io.Writer = os.Stderr
	level  Level     = Info
)

// SetOutput redirects all future log output. Passing nil restores os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	output = w
}

// SetLevel sets the minimum level that reaches the sink.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

func logf(l Level, prefix string, o interface{}, format string, args ...interface{}) {
	mu.Lock()
	cur, w := level, output
	mu.Unlock()
	if l < cur {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(w, "%s: %v: %s\n", prefix, describe(o), msg)
}

// describe renders the subject of a log line: its String() if it has
// one, else %v.
func describe(o interface{}) interface{} {
	if o == nil {
		return "-"
	}
	if s, ok := o.(interface{ String() string }); ok {
		return s.String()
	}
	return o
}

// Debugf logs a Debug-level message about o.
func Debugf(o interface{}, format string, args ...interface{}) { logf(Debug, "DEBUG", o, format, args...) }

// Infof logs an Info-level message about o.
func Infof(o interface{}, format string, args ...interface{}) { logf(Info, "INFO", o, format, args...) }

// Errorf logs an Error-level message about o.
func Errorf(o interface{}, format string, args ...interface{}) { logf(Error, "ERROR", o, format, args...) }

// Package klog is the kernel's logger: leveled, ANSI-coloured output
// buffered through a ring so a slow or busy serial line never blocks an
// interrupt handler. Grounded on original_source/lib/log.c's level
// strings/colours and gating, ported from its va_list-based formatter
// to Go's fmt verbs, and on biscuit/src/circbuf/circbuf.go for the
// buffering strategy (see ring.go).
package klog

import (
	"fmt"
	"io"
	"sync"
)

// Level orders log severity, matching original_source's
// LOG_LEVEL_DEBUG..LOG_LEVEL_FATAL.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
	Fatal
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "?"
	}
}

// ansi holds the colour escape for each level; INFO carries none, same
// as original_source/lib/log.c's special-case (it strips colour codes
// around INFO lines so normal output stays plain).
var ansi = map[Level]string{
	Debug: "\x1b[36m",
	Info:  "",
	Warn:  "\x1b[33m",
	Error: "\x1b[31m",
	Fatal: "\x1b[41;37m",
}

const ansiReset = "\x1b[0m"

// Halter abstracts the hlt-forever primitive a fatal log line ends in.
// On real hardware this never returns; tests supply a stub that panics
// instead so Fatal is itself testable.
type Halter interface {
	HaltForever()
}

// Logger is a leveled logger with a ring-buffered sink. The zero value
// is not usable; use New.
type Logger struct {
	mu     sync.Mutex
	min    Level
	ring   *ring
	out    io.Writer
	halt   Halter
	colour bool
}

// New builds a Logger writing into a ring buffer of the given size
// (bytes) before being flushed to out. min is the minimum level that
// is not filtered out, matching original_source's current_log_level
// gate in log_write.
func New(out io.Writer, ringSize int, min Level, halt Halter) *Logger {
	return &Logger{min: min, ring: newRing(ringSize), out: out, halt: halt, colour: true}
}

// SetLevel changes the minimum level logged from here on.
func (l *Logger) SetLevel(min Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.min = min
}

func (l *Logger) logf(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.min {
		return
	}
	line := fmt.Sprintf(format, args...)
	if l.colour && ansi[level] != "" {
		fmt.Fprintf(l.ring, "%s[%s]%s %s\n", ansi[level], level, ansiReset, line)
	} else {
		fmt.Fprintf(l.ring, "[%s] %s\n", level, line)
	}
	l.flushLocked()
}

// flushLocked drains the ring straight to out. klog never lets buffered
// output accumulate past a single log call under simulation (there is
// no slow serial line here), but the ring stays in the path so the
// draining code is exercised the same way it would be against a real
// UART that occasionally backs up.
func (l *Logger) flushLocked() {
	if l.out == nil {
		return
	}
	l.out.Write(l.ring.Drain())
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(Info, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(Warn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(Error, format, args...) }

// fatalCallerDepth bounds how many Go call frames Fatalf dumps after
// its message line, matching the fixed depth
// biscuit/src/caller/caller.go's Callerdump was invoked with at its
// call sites.
const fatalCallerDepth = 8

// Fatalf logs at FATAL and then halts forever — it never returns on
// real hardware. Tests supply a Halter whose HaltForever panics so the
// call's non-return is still observable without hanging the test
// binary.
func (l *Logger) Fatalf(format string, args ...any) {
	l.logf(Fatal, format, args...)

	l.mu.Lock()
	dumpCallers(l.ring, 2, fatalCallerDepth)
	l.flushLocked()
	l.mu.Unlock()

	if l.halt != nil {
		l.halt.HaltForever()
	}
}

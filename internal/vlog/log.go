// Package vlog is a small leveled, key/value logger in the style used
// throughout the rest of the stack's ambient tooling. It exists so that the
// core engine never reaches for the standard library "log" package, which
// has no notion of structured fields or level filtering.
package vlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is a logging verbosity level, ordered from most to least severe.
type Level int

const (
	LvlCrit Level = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

var lvlStrings = [...]string{"CRIT", "ERROR", "WARN", "INFO", "DEBUG", "TRACE"}

func (l Level) String() string {
	if int(l) < len(lvlStrings) {
		return lvlStrings[l]
	}
	return "UNKNOWN"
}

// Logger writes leveled, structured records annotated with a fixed set of
// context fields (e.g. "target" or "component").
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	New(ctx ...interface{}) Logger
}

type logger struct {
	ctx []interface{}
}

var (
	mu        sync.Mutex
	out       io.Writer
	level     = LvlInfo
	useColor  bool
	withCaller bool
)

func init() {
	if f, ok := interface{}(os.Stderr).(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out = colorable.NewColorableStderr()
		useColor = true
	} else {
		out = os.Stderr
	}
}

// SetLevel adjusts the process-wide verbosity threshold.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetCallerInfo toggles whether records carry a "caller=file:line" field,
// resolved via go-stack so logging never needs runtime.Caller bookkeeping
// at every call site.
func SetCallerInfo(v bool) {
	mu.Lock()
	defer mu.Unlock()
	withCaller = v
}

// Root returns the package-level logger with no bound context.
func Root() Logger { return &logger{} }

// New returns a logger with additional bound key/value context.
func New(ctx ...interface{}) Logger { return Root().New(ctx...) }

func (l *logger) New(ctx ...interface{}) Logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &logger{ctx: merged}
}

func (l *logger) write(lvl Level, msg string, ctx []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if lvl > level {
		return
	}
	var b fmt.Stringer
	_ = b
	line := formatRecord(lvl, msg, append(append([]interface{}{}, l.ctx...), ctx...))
	fmt.Fprintln(out, line)
}

func formatRecord(lvl Level, msg string, ctx []interface{}) string {
	ts := time.Now().Format("2006-01-02T15:04:05.000")
	s := fmt.Sprintf("%s [%-5s] %s", ts, lvl, msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		s += fmt.Sprintf(" %v=%v", ctx[i], ctx[i+1])
	}
	if withCaller {
		s += fmt.Sprintf(" caller=%v", stack.Caller(3))
	}
	return s
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

// Package-level convenience wrappers over the root logger, mirroring the
// call-site ergonomics the rest of the module expects (vlog.Info(...)).
func Trace(msg string, ctx ...interface{}) { Root().Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { Root().Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { Root().Crit(msg, ctx...) }

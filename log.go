package zx

import (
	"bytes"
	"fmt"
	"sync"
)

// Logger is the sink baseSocket and the reaper write diagnostics to:
// pipe hiccups, detachment, and termination-cascade anomalies. Context's
// default is *logger (an in-memory buffer, convenient for tests that want
// to assert on log content); SetLogger lets an application swap in its
// own sink instead.
type Logger interface {
	Log(a ...interface{})
	Logf(format string, a ...interface{})
}

// logger is the default Logger: a small buffered log sink attached to a
// Context. It exists so that hiccups, command-drain anomalies, and pipe
// termination can be recorded without forcing every caller to wire up a
// structured logging framework just to run the test suite.
type logger struct {
	sync.Mutex
	buf bytes.Buffer
}

func (l *logger) Log(a ...interface{}) {
	l.Lock()
	defer l.Unlock()
	l.buf.WriteString(fmt.Sprint(a...))
	l.buf.WriteByte('\n')
}

func (l *logger) Logf(format string, a ...interface{}) {
	l.Lock()
	defer l.Unlock()
	l.buf.WriteString(fmt.Sprintf(format, a...))
	l.buf.WriteByte('\n')
}

func (l *logger) String() string {
	l.Lock()
	defer l.Unlock()
	return l.buf.String()
}

func (l *logger) Clear() {
	l.Lock()
	defer l.Unlock()
	l.buf.Reset()
}

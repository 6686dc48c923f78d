package shm

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/valyala/bytebufferpool"
)

// Teardown and attach failures are reported here rather than propagated:
// they happen during cleanup where the caller has no recovery action.

type logger struct {
	name      string
	out       io.Writer
	callDepth int
}

var (
	internalLogger = &logger{"", os.Stderr, 2}
	level          int

	green  = string([]byte{27, 91, 57, 50, 109}) // Debug
	blue   = string([]byte{27, 91, 57, 52, 109}) // Info
	yellow = string([]byte{27, 91, 57, 51, 109}) // Warn
	red    = string([]byte{27, 91, 57, 49, 109}) // Error
	reset  = string([]byte{27, 91, 48, 109})

	colors    = []string{green, blue, yellow, red}
	levelName = []string{"Debug", "Info", "Warn", "Error"}
)

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
	levelNoPrint
)

func init() {
	level = levelWarn
	if env := os.Getenv("SHMRING_LOG_LEVEL"); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n <= levelNoPrint {
			level = n
		}
	}
}

// SetLogLevel changes the internal logger's level. The default is Warn; the
// process env SHMRING_LOG_LEVEL also sets it.
func SetLogLevel(l int) {
	if l <= levelNoPrint {
		level = l
	}
}

func (l *logger) logf(lv int, format string, a ...interface{}) {
	if level > lv {
		return
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(colors[lv])
	file, line := "???", 0
	if _, f, n, ok := runtime.Caller(l.callDepth); ok {
		file, line = filepath.Base(f), n
	}
	_, _ = fmt.Fprintf(buf, "%s shmring [%s] ", time.Now().Format("2006-01-02 15:04:05.000000"), levelName[lv])
	if l.name != "" {
		_, _ = buf.WriteString(l.name + " ")
	}
	_, _ = fmt.Fprintf(buf, format, a...)
	_, _ = fmt.Fprintf(buf, " %s:%d", file, line)
	_, _ = buf.WriteString(reset + "\n")
	if _, err := l.out.Write(buf.B); err != nil {
		fmt.Fprintf(os.Stderr, "shmring logger write failed: %v\n", err)
	}
}

func (l *logger) debugf(format string, a ...interface{}) { l.logf(levelDebug, format, a...) }
func (l *logger) infof(format string, a ...interface{})  { l.logf(levelInfo, format, a...) }
func (l *logger) warnf(format string, a ...interface{})  { l.logf(levelWarn, format, a...) }
func (l *logger) errorf(format string, a ...interface{}) { l.logf(levelError, format, a...) }

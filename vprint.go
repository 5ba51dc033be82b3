package atomix

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"time"
)

// for tons of debug output
var verbose bool = false

var showGoID bool = true

// TsPrintfMut serializes writes from tsPrintf so concurrent goroutines
// don't interleave their log lines.
var TsPrintfMut sync.Mutex

var ourStdout io.Writer = os.Stderr

// vv is the workhorse debug print: timestamped, file:line and goroutine
// tagged, on unless forceQuiet is set (useful while bisecting test flakes).
func vv(format string, a ...interface{}) {
	if !forceQuiet {
		tsPrintf(format, a...)
	}
}

var forceQuiet = false

// pp only prints when verbose is toggled on; quieter than vv (used for
// a Submit after an Executor has been closed).
func pp(format string, a ...interface{}) {
	if verbose {
		tsPrintf(format, a...)
	}
}

func alwaysPrintf(format string, a ...interface{}) {
	tsPrintf(format, a...)
}

func tsPrintf(format string, a ...interface{}) {
	TsPrintfMut.Lock()
	defer TsPrintfMut.Unlock()
	if showGoID {
		fmt.Fprintf(ourStdout, "\n%s [goID %v] %s ", fileLine(3), goroNumber(), ts())
	} else {
		fmt.Fprintf(ourStdout, "\n%s %s ", fileLine(3), ts())
	}
	fmt.Fprintf(ourStdout, format+"\n", a...)
}

func ts() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func fileLine(depth int) string {
	_, fileName, line, ok := runtime.Caller(depth)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", path.Base(fileName), line)
}

// goroNumber returns the calling goroutine's number, parsed out of its
// own stack trace header. Only ever used for log tagging.
func goroNumber() int {
	buf := make([]byte, 64)
	nw := runtime.Stack(buf, false)
	buf = buf[:nw]
	i := 10 // len("goroutine ")
	for i < len(buf) && buf[i] != ' ' {
		i++
	}
	n, err := strconv.Atoi(string(buf[10:i]))
	if err != nil {
		return -1
	}
	return n
}

// panicOn raises a non-nil err loudly rather than swallowing it.
// Invariant violations the core must never tolerate (publish outside a
// COMMAND operation, publish on a terminal session) are raised with
// panicf below.
func panicOn(err error) {
	if err != nil {
		panic(err)
	}
}

func panicf(format string, a ...interface{}) {
	panic(fmt.Sprintf(format, a...))
}

// stack returns a stack dump for the calling goroutine, for panic
// diagnostics (see Executor.runOne).
func stack() string {
	return string(debug.Stack())
}

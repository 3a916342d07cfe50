//go:build debug

package check

import (
	"fmt"
	"path/filepath"
	"runtime"
)

func Assert(cond bool, msg string) {
	if !cond {
		fail(msg)
	}
}

func Assertf(cond bool, format string, args ...any) {
	if !cond {
		fail(fmt.Sprintf(format, args...))
	}
}

// fail panics with the location of the failed assertion.
func fail(msg string) {
	if _, file, line, ok := runtime.Caller(2); ok {
		panic(fmt.Sprintf("assertion failed at %s:%d: %s", filepath.Base(file), line, msg))
	}
	panic("assertion failed: " + msg)
}

package klog

import (
	"fmt"
	"io"
	"runtime"
)

// dumpCallers writes start..start+depth Go call frames to out, one per
// line, in the "file:line (func)" shape original_source's panic path
// prints via backtrace(3). Grounded on
// biscuit/src/caller/caller.go's Callerdump, adapted from a global
// os.Stdout print to a sink the caller chooses (the log ring, here) and
// bounded rather than walking until runtime.Caller stops succeeding, so
// a corrupted or cyclic stack can never hang a fatal log line.
func dumpCallers(out io.Writer, start, depth int) {
	for i := 0; i < depth; i++ {
		pc, file, line, ok := runtime.Caller(start + i)
		if !ok {
			return
		}
		name := "?"
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = fn.Name()
		}
		fmt.Fprintf(out, "  %s:%d (%s)\n", file, line, name)
	}
}

// Package logging provides the two on-disk logs the proxy writes
// (oclsp_proxy.log and oclsp_proxy_error.log) plus an optional OS-level
// debug-string trace. The proxy's own stdout carries nothing but framed
// LSP bytes, so diagnostics go to these files; stderr is only written by
// main's log.Fatal on a usage error or when proxyd.Run fails.
package logging

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"
)

// File is a single on-disk log, opened and closed on every write per the
// design note in spec §6 ("file handles for logs are opened per-write and
// closed immediately").
type File struct {
	path    string
	tag     string
	mu      sync.Mutex
	enabled bool
}

// NewFile builds a log writer for path, tagged with tag (the process's
// session id) in every line. When enabled is false, writes are no-ops.
func NewFile(path, tag string, enabled bool) *File {
	return &File{path: path, tag: tag, enabled: enabled}
}

// Printf appends a single formatted, timestamped line.
func (f *File) Printf(format string, args ...interface{}) {
	if f == nil || !f.enabled {
		return
	}
	f.write(fmt.Sprintf(format, args...))
}

// Exception appends a timestamped line plus the current goroutine stack,
// mirroring the original's traceback.print_exc(file=f).
func (f *File) Exception(where string, err error) {
	if f == nil || !f.enabled {
		return
	}
	msg := fmt.Sprintf("%s: %v\n%s", where, err, debug.Stack())
	f.write(msg)
}

func (f *File) write(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer fh.Close()

	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(fh, "\n[%s] [%s] %s\n", ts, f.tag, msg)
}

// Tracer is an OS-level debug-output channel, used when OCLSP_TRACE is
// set. On non-Windows platforms it is always a no-op (see
// logging_windows.go / logging_other.go).
type Tracer interface {
	Trace(msg string)
}

type noopTracer struct{}

func (noopTracer) Trace(string) {}

// NewTracer returns a platform tracer, or a no-op one when disabled.
func NewTracer(enabled bool) Tracer {
	if !enabled {
		return noopTracer{}
	}
	return platformTracer()
}

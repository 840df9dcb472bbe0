// Package shutdown implements the once-latched shutdown coordinator
// described in spec §4.2: a single flag transition observed by every
// pump, plus termination of the backend child process.
package shutdown

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/wingkinl/oclsp-proxy/internal/logging"
)

// ReasonHostClosed is the one latch reason that is never logged as an
// error — a clean EOF from the host's own stdin is the ordinary way this
// proxy's lifetime ends.
const ReasonHostClosed = "host closed its input"

// Coordinator is the single latch plus backend-process handle described in
// spec §4.2. Transitions are open -> latched(reason), never the reverse.
type Coordinator struct {
	mu      sync.Mutex
	latched bool
	reason  string

	proc     *os.Process
	errorLog *logging.File
	tracer   logging.Tracer
}

// New builds a coordinator. errorLog and tracer may be nil/no-op.
func New(errorLog *logging.File, tracer logging.Tracer) *Coordinator {
	if tracer == nil {
		tracer = noopTracer{}
	}
	return &Coordinator{errorLog: errorLog, tracer: tracer}
}

type noopTracer struct{}

func (noopTracer) Trace(string) {}

// AttachProcess records the backend's process handle so Trigger can
// terminate it. Safe to call once, before any Trigger.
func (c *Coordinator) AttachProcess(p *os.Process) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proc = p
}

// IsSet reports whether shutdown has latched.
func (c *Coordinator) IsSet() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latched
}

// Reason returns the latch reason, or "" if not yet latched.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Trigger latches shutdown with reason. The first call wins; later calls
// are ignored, satisfying the shutdown-idempotence testable property.
func (c *Coordinator) Trigger(reason string) {
	c.mu.Lock()
	if c.latched {
		c.mu.Unlock()
		return
	}
	c.latched = true
	c.reason = reason
	proc := c.proc
	c.mu.Unlock()

	msg := "triggering shutdown: " + reason
	c.tracer.Trace(msg)
	if reason != ReasonHostClosed {
		c.errorLog.Exception(msg, errors.New(reason))
	}

	if proc != nil {
		// Best-effort terminate; the supervisor escalates to Kill after
		// its grace period if the child hasn't exited. os.Interrupt is
		// the only signal os.Process.Signal accepts portably.
		_ = proc.Signal(os.Interrupt)
	}
}

// WaitThenKill blocks until done fires or grace elapses, then kills proc
// if it is still running. Called by the supervisor once shutdown has
// latched, with done reported by the child's Wait() goroutine.
func (c *Coordinator) WaitThenKill(done <-chan struct{}, grace time.Duration, proc *os.Process) {
	select {
	case <-done:
		return
	case <-time.After(grace):
		if proc != nil {
			_ = proc.Kill()
		}
	}
}

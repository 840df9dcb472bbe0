// Package proxyd wires the framed transport, id table, dialect translators,
// and injector queue built by the other internal packages into the four
// pumps and the supervisor that owns the backend child process (spec
// §4.6-4.7).
package proxyd

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/neelance/parallel"
	"github.com/pkg/errors"

	"github.com/wingkinl/oclsp-proxy/internal/config"
	"github.com/wingkinl/oclsp-proxy/internal/dialect"
	"github.com/wingkinl/oclsp-proxy/internal/env"
	"github.com/wingkinl/oclsp-proxy/internal/ids"
	"github.com/wingkinl/oclsp-proxy/internal/inject"
	"github.com/wingkinl/oclsp-proxy/internal/logging"
	"github.com/wingkinl/oclsp-proxy/internal/shutdown"
)

// KillGrace is how long the supervisor waits for the backend to exit on its
// own after shutdown latches before escalating to Kill (spec §4.7).
const KillGrace = 2 * time.Second

// Options bundles everything Run needs to build and supervise one backend
// session.
type Options struct {
	Env       env.Environment
	Config    *config.Cache
	Templates *dialect.Templates
	Log       *logging.File
	ErrorLog  *logging.File
	Tracer    logging.Tracer

	HostIn  io.Reader
	HostOut io.Writer
}

// Run spawns the backend with --stdio, starts the four pumps, and blocks
// until shutdown completes. A non-nil error means the backend never
// started; once the pumps are running, every termination path — clean or
// not — returns nil, matching spec §6 ("non-zero [exit] only when main
// raised before launching pumps").
func Run(opts Options) error {
	snapshot, err := opts.Config.Get()
	if err != nil {
		opts.ErrorLog.Exception("loading configuration", err)
	}

	cmd := exec.Command(opts.Env.BackendExePath, "--stdio")
	backendStdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "opening backend stdin")
	}
	backendStdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "opening backend stdout")
	}
	backendStderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "opening backend stderr")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "starting backend process")
	}

	opts.Log.Printf("backend started: %s (pid %d)", opts.Env.BackendExePath, cmd.Process.Pid)

	sd := shutdown.New(opts.ErrorLog, opts.Tracer)
	sd.AttachProcess(cmd.Process)

	dctx := &dialect.Context{
		Env:       opts.Env,
		Config:    snapshot,
		IDs:       ids.New(),
		Injector:  inject.New(),
		Templates: opts.Templates,
		ErrorLog:  opts.ErrorLog,
	}

	var backendStdinMu, hostStdoutMu sync.Mutex
	hostReader := bufio.NewReader(opts.HostIn)
	backendReader := bufio.NewReader(backendStdout)

	childDone := watchChild(cmd, sd)

	// Once shutdown latches, give the child KillGrace to exit, then kill it.
	go func() {
		for !sd.IsSet() {
			time.Sleep(100 * time.Millisecond)
		}
		sd.WaitThenKill(childDone, KillGrace, cmd.Process)
	}()

	// The four pumps run under one bounded, error-aggregating run-group
	// (spec §4.6's pump table); none of them returns a Go error today
	// (they report failures by latching shutdown directly), so Wait only
	// blocks until all four have returned. A panic in a pump is not
	// recovered and ends the whole process.
	par := parallel.NewRun(4)
	par.Do(func() error {
		runHostToBackend(dctx, hostReader, backendStdin, &backendStdinMu, sd)
		return nil
	})
	par.Do(func() error {
		runBackendToHost(dctx, backendReader, opts.HostOut, &hostStdoutMu, sd)
		return nil
	})
	par.Do(func() error {
		runInjector(dctx.Injector, backendStdin, &backendStdinMu, sd)
		return nil
	})
	par.Do(func() error {
		runStderr(backendStderr, opts.HostOut, &hostStdoutMu, sd, opts.ErrorLog)
		return nil
	})

	if err := par.Wait(); err != nil {
		opts.ErrorLog.Exception("pump run-group", err)
	}

	<-childDone
	opts.Log.Printf("session ended: %s", sd.Reason())
	return nil
}

// watchChild waits for the backend to exit in the background and latches
// shutdown if nothing else already has, per spec §4.7 ("On child exit,
// latch shutdown with the exit code") and §7 item 6. Go's natural
// equivalent of the original's coarse polling loop is a single blocking
// Wait on a dedicated goroutine.
func watchChild(cmd *exec.Cmd, sd *shutdown.Coordinator) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := cmd.Wait()
		if sd.IsSet() {
			return
		}
		if err != nil {
			sd.Trigger(fmt.Sprintf("backend process exited: %v", err))
		} else {
			sd.Trigger("backend process exited")
		}
	}()
	return done
}

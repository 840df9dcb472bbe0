package proxyd

import (
	"bufio"
	"io"
	"sync"
	"time"

	"github.com/wingkinl/oclsp-proxy/internal/dialect"
	"github.com/wingkinl/oclsp-proxy/internal/dynjson"
	"github.com/wingkinl/oclsp-proxy/internal/ids"
	"github.com/wingkinl/oclsp-proxy/internal/inject"
	"github.com/wingkinl/oclsp-proxy/internal/logging"
	"github.com/wingkinl/oclsp-proxy/internal/shutdown"
	"github.com/wingkinl/oclsp-proxy/internal/transport"
)

// injectorPollInterval mirrors the original's one-second
// queue.get(timeout=1.0) tick so the injector pump can observe shutdown
// promptly, per spec §5.
const injectorPollInterval = time.Second

// runHostToBackend is the host->backend pump: it owns the host's stdin and
// allocates aliases for every request it forwards (spec §4.6).
func runHostToBackend(dctx *dialect.Context, in *bufio.Reader, out io.Writer, outMu *sync.Mutex, sd *shutdown.Coordinator) {
	for {
		body, err := transport.ReadMessage(in, sd)
		if err != nil {
			if err == transport.ErrStreamClosed {
				sd.Trigger(shutdown.ReasonHostClosed)
			} else {
				sd.Trigger("host->backend read error: " + err.Error())
			}
			return
		}

		msg, perr := dynjson.Parse(body)
		if perr != nil {
			// spec §7 item 2: malformed JSON from the host is forwarded
			// raw, with the id-rewrite step skipped, never raised.
			dctx.ErrorLog.Printf("malformed JSON from host, forwarding raw: %v", perr)
			if err := transport.WriteMessage(out, outMu, body, sd, "host->backend write error"); err != nil {
				return
			}
			continue
		}

		if msg.HasID() {
			hostID := msg.RawID()
			dialect.TranslateRequest(dctx, msg)
			backendID := dctx.IDs.Alias(hostID, msg.Method())
			msg.SetID(backendID)
		} else {
			dialect.TranslateRequest(dctx, msg)
		}

		encoded, err := msg.Bytes()
		if err != nil {
			dctx.ErrorLog.Printf("encoding translated host message: %v", err)
			continue
		}
		if err := transport.WriteMessage(out, outMu, encoded, sd, "host->backend write error"); err != nil {
			return
		}
	}
}

// runBackendToHost is the backend->host pump: it resolves every response id
// against the correlation table and dispatches response-side translation
// keyed by the backend-bound method the alias recorded (spec §4.3, §4.5.2).
func runBackendToHost(dctx *dialect.Context, in *bufio.Reader, out io.Writer, outMu *sync.Mutex, sd *shutdown.Coordinator) {
	for {
		body, err := transport.ReadMessage(in, sd)
		if err != nil {
			sd.Trigger("backend closed its output")
			return
		}

		msg, perr := dynjson.Parse(body)
		if perr != nil {
			// spec §7 item 2: malformed JSON from the backend is swallowed.
			dctx.ErrorLog.Printf("malformed JSON from backend, dropping: %v", perr)
			continue
		}

		// Requests carry a method, responses don't — only responses consult
		// the alias table (spec §4.3).
		if msg.Method() == "" && msg.HasID() {
			if backendID, ok := msg.IntID(); ok {
				resolution, alias := dctx.IDs.Resolve(backendID)
				switch resolution {
				case ids.ResolutionSwallow:
					continue
				case ids.ResolutionAlias:
					msg.SetID(alias.HostID)
					dialect.TranslateResponse(dctx, alias.Method, msg)
				case ids.ResolutionForward:
					// Server-initiated request's response, or anything
					// else not tracked by this proxy: pass through.
				}
			}
		}

		encoded, err := msg.Bytes()
		if err != nil {
			dctx.ErrorLog.Printf("encoding translated backend message: %v", err)
			continue
		}
		if err := transport.WriteMessage(out, outMu, encoded, sd, "backend->host write error"); err != nil {
			return
		}
	}
}

// runInjector drains the injector queue onto the backend's stdin, sharing
// outMu with the host->backend pump so framed writes never interleave.
func runInjector(q *inject.Queue, out io.Writer, outMu *sync.Mutex, sd *shutdown.Coordinator) {
	for {
		if sd.IsSet() {
			return
		}
		body, ok := q.Get(injectorPollInterval)
		if !ok {
			continue
		}
		if err := transport.WriteMessage(out, outMu, body, sd, "injector write error"); err != nil {
			return
		}
	}
}

// runStderr wraps each backend stderr line as a cpptools/stderr
// notification to the host. Per spec §4.6 it only logs on failure; it never
// triggers shutdown, so it writes with a nil coordinator to bypass
// WriteMessage's built-in trigger-on-error behavior.
func runStderr(in io.Reader, out io.Writer, outMu *sync.Mutex, sd *shutdown.Coordinator, errorLog *logging.File) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if sd.IsSet() {
			return
		}
		msg := dynjson.Message{
			"jsonrpc": "2.0",
			"method":  "cpptools/stderr",
			"params": map[string]interface{}{
				"message":   scanner.Text(),
				"timestamp": float64(time.Now().Unix()),
			},
		}
		body, err := msg.Bytes()
		if err != nil {
			errorLog.Printf("encoding stderr notification: %v", err)
			continue
		}
		if err := transport.WriteMessage(out, outMu, body, nil, ""); err != nil {
			errorLog.Exception("stderr pump write", err)
		}
	}
}

// Package transport implements the length-prefixed LSP framing shared by
// every pipe endpoint (spec §4.1): ASCII "Key: Value\r\n" headers
// terminated by a blank line, followed by exactly Content-Length body
// bytes.
package transport

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/wingkinl/oclsp-proxy/internal/shutdown"
)

// ErrStreamClosed is returned by ReadMessage on EOF, whether it occurs
// between messages or mid-body.
var ErrStreamClosed = errors.New("stream closed")

// ReadMessage reads exactly one framed message from r. Header blocks
// missing Content-Length are discarded and the next block is attempted,
// tolerating stray blank lines between messages, as spec §4.1 requires.
// It never decodes the body; callers get raw bytes.
func ReadMessage(r *bufio.Reader, sd *shutdown.Coordinator) ([]byte, error) {
	if sd != nil && sd.IsSet() {
		return nil, ErrStreamClosed
	}

	for {
		headers := map[string]string{}
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return nil, ErrStreamClosed
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				break
			}
			idx := strings.IndexByte(line, ':')
			if idx < 0 {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(line[:idx]))
			val := strings.TrimSpace(line[idx+1:])
			headers[key] = val
		}

		lengthStr, ok := headers["content-length"]
		if !ok {
			// No Content-Length in this block: discard and try the next
			// one instead of raising, per spec §4.1.
			continue
		}
		length, err := strconv.Atoi(lengthStr)
		if err != nil {
			continue
		}

		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, ErrStreamClosed
		}
		return body, nil
	}
}

// WriteMessage writes one framed message to w, serialized by mu across
// header+body for the whole destination stream (mu is shared by every
// producer writing to that stream, e.g. the host->backend pump and the
// injector pump both write to the backend's stdin). A write error
// triggers global shutdown and is returned.
func WriteMessage(w io.Writer, mu *sync.Mutex, body []byte, sd *shutdown.Coordinator, shutdownReason string) error {
	if sd != nil && sd.IsSet() {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := io.WriteString(w, header); err != nil {
		if sd != nil {
			sd.Trigger(shutdownReason)
		}
		return errors.Wrap(err, "writing message header")
	}
	if _, err := w.Write(body); err != nil {
		if sd != nil {
			sd.Trigger(shutdownReason)
		}
		return errors.Wrap(err, "writing message body")
	}
	return nil
}

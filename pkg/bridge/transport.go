// Package bridge supervises the agent bridge process and speaks its
// line-delimited JSON protocol over stdio.
package bridge

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/grovetools/claudemon/errors"
)

// transport serializes writes to the agent's stdin, one JSON value per line.
// close does not take mu, so it can unblock a write stuck on a full pipe.
type transport struct {
	mu     sync.Mutex
	w      io.WriteCloser
	closed atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

func newTransport(w io.WriteCloser) *transport {
	return &transport{w: w}
}

// writeJSON marshals v and writes it followed by a newline. Concurrent
// callers never interleave within a line.
func (t *transport) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Transport("encode", err)
	}
	data = append(data, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return errors.Transport("write", io.ErrClosedPipe)
	}
	if _, err := t.w.Write(data); err != nil {
		if t.closed.Load() {
			err = io.ErrClosedPipe
		}
		return errors.Transport("write", err)
	}
	return nil
}

func (t *transport) close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.closeErr = t.w.Close()
	})
	return t.closeErr
}

// readLines calls fn for every non-blank line of r until EOF or a read
// error. Lines have no length limit.
func readLines(r io.Reader, fn func(line string)) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			if strings.TrimSpace(line) != "" {
				fn(line)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

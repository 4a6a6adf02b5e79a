// Package pipeconn implements the NUL-delimited pipe transport: the
// alternative carrier used when a browser is launched with
// "--remote-debugging-pipe" instead of a TCP debugging port. Chrome reads
// one NUL-terminated JSON message per write on file descriptor 3, and
// writes responses and events the same way on file descriptor 4.
package pipeconn

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/riftlab/cdpkit/pkg/transport"
)

// Conn is a pipe-based transport.Transport: a pair of already-open pipe
// ends, read end and write end, talking NUL-delimited JSON.
type Conn struct {
	in  io.WriteCloser // browser's stdin-like fd: we write requests here.
	out io.ReadCloser  // browser's stdout-like fd: we read responses/events here.

	scanner *bufio.Scanner
	log     logrus.FieldLogger

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// New wraps an already-open pair of pipe ends as a transport.Transport.
// in is the end the browser reads commands from; out is the end the
// browser writes responses and events to.
func New(in io.WriteCloser, out io.ReadCloser, log logrus.FieldLogger) *Conn {
	if log == nil {
		log = logrus.StandardLogger()
	}
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	scanner.Split(scanNULMessages)
	return &Conn{in: in, out: out, scanner: scanner, log: log}
}

// scanNULMessages is a bufio.SplitFunc that delimits messages on a
// single NUL byte instead of bufio.ScanLines' newline. Unterminated bytes
// left at EOF are not returned as a message.
func scanNULMessages(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[0:i], nil
	}
	return 0, nil, nil
}

// Send implements transport.Transport: it writes msg followed by a
// single NUL terminator.
func (c *Conn) Send(ctx context.Context, msg []byte) error {
	c.writeMu.Lock()

	done := make(chan error, 1)
	go func() {
		// The lock is held until the write finishes, even if ctx ends
		// first, so a later Send never interleaves with this one.
		defer c.writeMu.Unlock()
		if _, err := c.in.Write(msg); err != nil {
			done <- fmt.Errorf("write pipe payload: %w", err)
			return
		}
		if _, err := c.in.Write([]byte{0}); err != nil {
			done <- fmt.Errorf("write pipe terminator: %w", err)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", transport.ErrTimeout, ctx.Err())
	}
}

// Recv implements transport.Transport: it blocks until one full
// NUL-terminated message has been read.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	type result struct {
		b   []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		if c.scanner.Scan() {
			b := make([]byte, len(c.scanner.Bytes()))
			copy(b, c.scanner.Bytes())
			done <- result{b: b}
			return
		}
		err := c.scanner.Err()
		if err == nil {
			err = fmt.Errorf("%w: pipe closed by peer", transport.ErrConnectionClosed)
		}
		done <- result{err: err}
	}()

	select {
	case r := <-done:
		return r.b, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", transport.ErrTimeout, ctx.Err())
	}
}

// Close closes both pipe ends. Idempotent.
func (c *Conn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	inErr := c.in.Close()
	outErr := c.out.Close()
	if inErr != nil {
		return fmt.Errorf("close pipe input: %w", inErr)
	}
	if outErr != nil {
		return fmt.Errorf("close pipe output: %w", outErr)
	}
	return nil
}

var _ transport.Transport = (*Conn)(nil)

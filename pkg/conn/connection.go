// Package conn implements the request/response correlator: one
// Connection owns a transport.Transport and a single reader goroutine
// that demultiplexes inbound frames into pending Call waiters and
// Subscribe event queues.
package conn

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/riftlab/cdpkit/pkg/transport"
	"github.com/riftlab/cdpkit/pkg/wire"
)

// DefaultCallTimeout bounds how long Call waits for a response when the
// caller's context carries no deadline of its own.
const DefaultCallTimeout = 30 * time.Second

// ErrConnectionClosed is returned by Call once Close has run. Subscribe
// returns no error; after Close it hands back an already-closed
// Subscription.
var ErrConnectionClosed = transport.ErrConnectionClosed

// Connection correlates outbound commands with inbound responses over
// one transport.Transport, and fans out events to subscribers.
type Connection struct {
	t   transport.Transport
	ids *wire.IDAllocator
	log logrus.FieldLogger

	callTimeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan wire.Message
	subs    []*Subscription
	closed  bool
	closeCh chan struct{}
	closeOn sync.Once
}

// Option configures a Connection.
type Option func(*Connection)

// WithLogger overrides the default logrus.StandardLogger().
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Connection) { c.log = log }
}

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Connection) { c.callTimeout = d }
}

// New wraps t in a Connection and starts its reader loop. Close must be
// called to release the reader goroutine and the transport.
func New(t transport.Transport, opts ...Option) *Connection {
	c := &Connection{
		t:           t,
		ids:         wire.NewIDAllocator(),
		log:         logrus.StandardLogger(),
		callTimeout: DefaultCallTimeout,
		pending:     make(map[int64]chan wire.Message),
		closeCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

// Call sends method/params (optionally scoped to sessionID) and blocks
// for the correlated response or until ctx is done. The configured call
// timeout applies only when ctx carries no deadline of its own.
func (c *Connection) Call(ctx context.Context, method string, params json.RawMessage, sessionID string) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("call %s: %w", method, ErrConnectionClosed)
	}
	id := c.ids.Next()
	waiter := make(chan wire.Message, 1)
	c.pending[id] = waiter
	c.mu.Unlock()

	cleanup := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	msg := wire.NewCommand(id, method, params, sessionID)
	b, err := wire.Serialize(msg)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	c.writeMu.Lock()
	err = c.t.Send(ctx, b)
	c.writeMu.Unlock()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("call %s: send: %w", method, err)
	}

	ctx, cancel := c.withCallDeadline(ctx)
	defer cancel()

	select {
	case resp := <-waiter:
		if resp.Error != nil {
			return nil, wire.MapCDPError(resp.Error)
		}
		return resp.Result, nil
	case <-ctx.Done():
		cleanup()
		return nil, fmt.Errorf("call %s: %w", method, transport.ErrTimeout)
	case <-c.closeCh:
		cleanup()
		return nil, fmt.Errorf("call %s: %w", method, ErrConnectionClosed)
	}
}

func (c *Connection) withCallDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

// Close shuts the Connection down: it cancels all pending Call waiters
// and subscriptions, and closes the underlying transport. Idempotent.
func (c *Connection) Close() error {
	var err error
	c.closeOn.Do(func() {
		c.mu.Lock()
		c.closed = true
		// Pending Call waiters are woken via closeCh below, not by closing
		// their channel: a closed channel yields a ready zero Message,
		// which Call could mistake for a real empty response.
		c.pending = make(map[int64]chan wire.Message)
		for _, s := range c.subs {
			s.close()
		}
		c.subs = nil
		c.mu.Unlock()

		close(c.closeCh)
		err = c.t.Close()
	})
	return err
}

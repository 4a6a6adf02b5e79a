package conn

import (
	"context"
	"errors"
	"strings"

	"github.com/riftlab/cdpkit/pkg/wire"
)

// readLoop is the single goroutine that owns transport.Recv for the
// lifetime of the Connection. It demultiplexes each inbound frame: a
// response goes to its pending Call waiter (if any is still registered),
// an event fans out to matching Subscriptions. Both happen outside the
// pending-table lock, so a subscriber callback that re-enters Call
// cannot deadlock this loop.
func (c *Connection) readLoop() {
	ctx := context.Background()
	for {
		raw, err := c.t.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.log.WithError(err).Debug("connection reader loop exiting")
			c.Close()
			return
		}

		shape := wire.Classify(raw)
		if shape == wire.ShapeInvalid {
			c.log.WithField("frame", string(raw)).Warn("discarding unparseable cdp frame")
			continue
		}
		msg, err := wire.Parse(raw)
		if err != nil {
			c.log.WithError(err).Warn("discarding unparseable cdp frame")
			continue
		}

		switch shape {
		case wire.ShapeResponse, wire.ShapeErrorResponse:
			c.dispatchResponse(msg)
		case wire.ShapeEvent:
			c.dispatchEvent(msg)
		}
	}
}

func (c *Connection) dispatchResponse(msg wire.Message) {
	c.mu.Lock()
	waiter, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.log.WithField("id", msg.ID).Debug("response with no pending waiter")
		return
	}
	waiter <- msg
}

func (c *Connection) dispatchEvent(msg wire.Message) {
	c.mu.Lock()
	matching := make([]*Subscription, 0, 2)
	for _, s := range c.subs {
		if !strings.HasPrefix(msg.Method, s.methodPrefix) {
			continue
		}
		if s.sessionID != nil && *s.sessionID != msg.SessionID {
			continue
		}
		matching = append(matching, s)
	}
	c.mu.Unlock()

	for _, s := range matching {
		s.deliver(msg)
	}
}

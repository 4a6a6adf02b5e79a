package conn

import (
	"context"
	"sync"

	"github.com/eapache/queue"

	"github.com/riftlab/cdpkit/pkg/wire"
)

// DefaultSubscriptionCapacity bounds a Subscription's buffered backlog
// before the oldest buffered event is dropped to make room for the
// newest one.
const DefaultSubscriptionCapacity = 256

// Subscription delivers events whose method matches methodPrefix (and,
// if sessionID is non-nil, whose sessionId equals *sessionID) in arrival
// order. Its internal buffer is bounded: once full, the oldest buffered
// event is dropped to admit the newest, so a slow consumer loses history
// rather than stalling the reader loop.
type Subscription struct {
	methodPrefix string
	sessionID    *string
	capacity     int

	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool
}

func newSubscription(methodPrefix string, sessionID *string, capacity int) *Subscription {
	if capacity <= 0 {
		capacity = DefaultSubscriptionCapacity
	}
	s := &Subscription{
		methodPrefix: methodPrefix,
		sessionID:    sessionID,
		capacity:     capacity,
		q:            queue.New(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Subscribe registers a new Subscription for events whose method starts
// with methodPrefix. A nil sessionID matches events from any session
// (including the top-level browser session); a non-nil sessionID
// restricts matches to that session only.
func (c *Connection) Subscribe(methodPrefix string, sessionID *string) *Subscription {
	s := newSubscription(methodPrefix, sessionID, DefaultSubscriptionCapacity)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		s.close()
		return s
	}
	c.subs = append(c.subs, s)
	return s
}

// deliver enqueues msg, dropping the oldest buffered message first if
// the subscription is already at capacity.
func (s *Subscription) deliver(msg wire.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.q.Length() >= s.capacity {
		s.q.Remove()
	}
	s.q.Add(msg)
	s.cond.Signal()
}

// Next blocks until an event is available, ctx is done, or the
// subscription is closed (via Connection.Close or Unsubscribe).
func (s *Subscription) Next(ctx context.Context) (wire.Message, bool) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.q.Length() == 0 && !s.closed {
		if ctx.Err() != nil {
			return wire.Message{}, false
		}
		s.cond.Wait()
	}
	if s.q.Length() == 0 {
		return wire.Message{}, false
	}
	msg := s.q.Peek().(wire.Message)
	s.q.Remove()
	return msg, true
}

// Unsubscribe releases the Subscription; subsequent Next calls return
// immediately with ok=false.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.q.Length() > 0 {
		s.q.Remove()
	}
	s.close()
}

func (s *Subscription) close() {
	if s.closed {
		return
	}
	s.closed = true
	s.cond.Broadcast()
}

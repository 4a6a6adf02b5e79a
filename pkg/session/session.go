// Package session implements the CDP session registry: attaching to a
// target multiplexes a second logical conversation (identified by
// sessionId) over the same Connection, so many tabs/workers/iframes can
// be driven concurrently without opening a second transport.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/riftlab/cdpkit/pkg/conn"
)

// Session is one attached CDP session: a target id plus the sessionId
// the browser assigned when it was attached. It holds no private
// connection of its own — every Call is routed through the owning
// Registry's *conn.Connection, scoped by SessionID.
type Session struct {
	ID       string
	TargetID string

	registry *Registry
}

// Call issues method/params scoped to this session.
func (s *Session) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	return s.registry.conn.Call(ctx, method, params, s.ID)
}

// Registry tracks every Session attached over one Connection.
type Registry struct {
	conn *conn.Connection

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry wraps c for session attach/detach bookkeeping.
func NewRegistry(c *conn.Connection) *Registry {
	return &Registry{conn: c, sessions: make(map[string]*Session)}
}

type attachParams struct {
	TargetID string `json:"targetId"`
	Flatten  bool   `json:"flatten"`
}

type attachResult struct {
	SessionID string `json:"sessionId"`
}

// Attach issues Target.attachToTarget with flatten:true and registers
// the returned sessionId.
func (r *Registry) Attach(ctx context.Context, targetID string) (*Session, error) {
	params, err := json.Marshal(attachParams{TargetID: targetID, Flatten: true})
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", targetID, err)
	}
	raw, err := r.conn.Call(ctx, "Target.attachToTarget", params, "")
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", targetID, err)
	}
	var res attachResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("attach %s: parse result: %w", targetID, err)
	}

	s := &Session{ID: res.SessionID, TargetID: targetID, registry: r}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

type detachParams struct {
	SessionID string `json:"sessionId"`
}

// Detach issues Target.detachFromTarget and removes the local
// registration. It does not close the target tab: a session can be
// reattached to the same target later.
func (r *Registry) Detach(ctx context.Context, s *Session) error {
	params, err := json.Marshal(detachParams{SessionID: s.ID})
	if err != nil {
		return fmt.Errorf("detach %s: %w", s.ID, err)
	}
	_, err = r.conn.Call(ctx, "Target.detachFromTarget", params, "")

	r.mu.Lock()
	delete(r.sessions, s.ID)
	r.mu.Unlock()

	if err != nil {
		return fmt.Errorf("detach %s: %w", s.ID, err)
	}
	return nil
}

// Lookup returns the Session registered under id, if any.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

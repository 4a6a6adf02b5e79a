// Package wire implements the CDP JSON message codec: the Message/Error
// types, serialization, cheap shape classification, and the monotonic id
// allocator shared by every Connection.
package wire

import (
	"encoding/json"
	"fmt"
)

// Message is a CDP wire message sent to or received from the browser,
// in either direction: a command, a command response, or an event.
type Message struct {
	ID        int64           `json:"id,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *Error          `json:"error,omitempty"`
}

// IsResponse reports whether m is a response to a previously sent
// command (success or CDP-level error), as opposed to an event.
func (m Message) IsResponse() bool {
	return m.ID != 0
}

// IsEvent reports whether m is an unsolicited event notification.
func (m Message) IsEvent() bool {
	return m.ID == 0 && m.Method != ""
}

// Error is the CDP wire error object embedded in an error response
// ("error": {"code": ..., "message": ..., "data": ...}).
type Error struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Error satisfies the built-in error interface.
func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("%s (%d): %s", e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// NewCommand builds the outbound Message for a command. id must come
// from an IDAllocator; params may be nil.
func NewCommand(id int64, method string, params json.RawMessage, sessionID string) Message {
	return Message{ID: id, SessionID: sessionID, Method: method, Params: params}
}

// Serialize marshals m to the wire JSON form.
func Serialize(m Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal cdp message: %w", err)
	}
	return b, nil
}

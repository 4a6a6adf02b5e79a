package transport

import "errors"

// Transport-level error kinds. Wrap one of these with
// fmt.Errorf("...: %w", ErrX) to preserve errors.Is-compatibility while
// adding context.
var (
	// ErrConnectionRefused means the initial dial (TCP or TLS) failed.
	ErrConnectionRefused = errors.New("transport: connection refused")
	// ErrConnectionClosed means the transport was closed locally, either
	// by the caller or because the owning Connection shut down.
	ErrConnectionClosed = errors.New("transport: connection closed")
	// ErrConnectionReset means the peer reset the TCP connection.
	ErrConnectionReset = errors.New("transport: connection reset")
	// ErrHandshakeFailed means the WebSocket upgrade handshake did not
	// complete (wrong status code, missing or mismatched headers).
	ErrHandshakeFailed = errors.New("transport: websocket handshake failed")
	// ErrTLS means a TLS-specific dial or handshake failure.
	ErrTLS = errors.New("transport: tls error")
	// ErrInvalidFrame means a malformed RFC 6455 frame was received
	// (reserved bits set, unknown opcode, masked frame from a server).
	ErrInvalidFrame = errors.New("transport: invalid frame")
	// ErrFrameTooLarge means an inbound message exceeded MaxMessageSize.
	// The connection is aborted rather than truncating or accepting it.
	ErrFrameTooLarge = errors.New("transport: frame too large")
	// ErrTimeout means a Send or Recv did not complete within the
	// caller's context deadline.
	ErrTimeout = errors.New("transport: timeout")
)

// Package transport defines the byte-oriented, full-duplex channel that
// carries framed CDP messages between this process and a browser. It is
// deliberately small: a Connection (see package conn) only ever needs to
// send a whole message and receive a whole message, regardless of whether
// the underlying carrier is a WebSocket or a pair of OS pipes.
package transport

import "context"

// Transport carries whole JSON message payloads in order, in both
// directions, over one underlying channel (a WebSocket or a pipe pair).
//
// Implementations must serialize concurrent Send calls themselves: at most
// one frame may be mid-transmission on the wire at any time (see
// pkg/conn, which additionally guards Send with its own write mutex, but a
// Transport used outside that package must not assume a caller-side lock).
type Transport interface {
	// Send writes one complete message to the peer.
	Send(ctx context.Context, msg []byte) error
	// Recv blocks until one complete message has arrived, or ctx is done,
	// or the transport is closed.
	Recv(ctx context.Context) ([]byte, error)
	// Close releases the underlying connection. Idempotent.
	Close() error
}

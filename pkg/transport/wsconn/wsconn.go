// Package wsconn is a lightweight client implementation of the WebSocket
// protocol (RFC 6455), written specifically for fast, idiomatic
// communication with Chrome DevTools in Blink-based browsers — not as a
// general-purpose WebSocket client.
//
// Unsupported on purpose: server-side framing, proxies, the
// permessage-deflate extension (RFC 7692), and handshake customizations
// such as subprotocols, extensions, or extra headers (auth, cookies).
// Almost all CDP traffic happens over localhost in small messages, so the
// compression and multiplexing machinery a general client would need is
// waste here.
package wsconn

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/riftlab/cdpkit/pkg/transport"
)

const (
	dialTimeout = 5 * time.Second

	// DefaultMaxMessageSize is the default ceiling on a reassembled
	// inbound message, matching spec §4.1's documented default.
	DefaultMaxMessageSize = 16 * 1024 * 1024
)

// Options configures Dial.
type Options struct {
	// MaxMessageSize bounds the total size of a reassembled inbound
	// message. Zero selects DefaultMaxMessageSize.
	MaxMessageSize int64
	// TLSConfig is used for "wss://" endpoints. Nil selects a default
	// *tls.Config.
	TLSConfig *tls.Config
	// Log receives handshake and framing diagnostics. Nil selects
	// logrus.StandardLogger().
	Log logrus.FieldLogger
}

// Conn is a WebSocket connection with a buffered I/O interface, and
// implements transport.Transport.
type Conn struct {
	nc             net.Conn
	rw             *bufio.ReadWriter
	maxMessageSize int64
	log            logrus.FieldLogger

	writeMu chan struct{} // 1-buffered mutex; see Send.
}

// newConn wraps an already-dialed net.Conn.
func newConn(nc net.Conn, opts Options) *Conn {
	rw := bufio.NewReadWriter(bufio.NewReader(nc), bufio.NewWriter(nc))
	max := opts.MaxMessageSize
	if max == 0 {
		max = DefaultMaxMessageSize
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Conn{nc: nc, rw: rw, maxMessageSize: max, log: log, writeMu: make(chan struct{}, 1)}
	c.writeMu <- struct{}{}
	return c
}

// ParseEndpoint splits a "ws://host:port/path" or "wss://host:port/path"
// URL into the pieces Dial needs, applying the RFC 6455 default ports (80
// for ws, 443 for wss) when none is given.
func ParseEndpoint(rawurl string) (addr, path string, tlsEnabled bool, err error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", "", false, fmt.Errorf("invalid websocket url %q: %w", rawurl, err)
	}
	switch u.Scheme {
	case "ws":
		tlsEnabled = false
	case "wss":
		tlsEnabled = true
	default:
		return "", "", false, fmt.Errorf("unsupported websocket scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", "", false, fmt.Errorf("missing host in websocket url %q", rawurl)
	}
	port := u.Port()
	if port == "" {
		if tlsEnabled {
			port = "443"
		} else {
			port = "80"
		}
	}
	addr = net.JoinHostPort(host, port)
	path = u.RequestURI()
	if path == "" {
		path = "/"
	}
	return addr, path, tlsEnabled, nil
}

// Dial opens a TCP (or TLS) connection to the endpoint encoded in rawurl
// and performs the RFC 6455 client handshake.
func Dial(ctx context.Context, rawurl string, opts Options) (*Conn, error) {
	addr, path, tlsEnabled, err := ParseEndpoint(rawurl)
	if err != nil {
		return nil, err
	}

	d := net.Dialer{Timeout: dialTimeout}
	var nc net.Conn
	if tlsEnabled {
		tlsCfg := opts.TLSConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{ServerName: hostOnly(addr)}
		}
		nc, err = tls.DialWithDialer(&d, "tcp", addr, tlsCfg)
		if err != nil {
			return nil, fmt.Errorf("tls dial %s: %w", addr, joinErr(transport.ErrTLS, err))
		}
	} else {
		nc, err = d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, joinErr(transport.ErrConnectionRefused, err))
		}
	}

	c := newConn(nc, opts)
	if err := c.handshake(addr, path); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

func hostOnly(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}

// joinErr composes a sentinel with an underlying cause so the result
// remains errors.Is(result, sentinel) while keeping the real message.
func joinErr(sentinel, cause error) error {
	return fmt.Errorf("%w: %v", sentinel, cause)
}

// Send implements transport.Transport: it writes msg as a single masked
// TEXT frame, honoring ctx's deadline if one is set.
func (c *Conn) Send(ctx context.Context, msg []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		c.nc.SetWriteDeadline(dl)
		defer c.nc.SetWriteDeadline(time.Time{})
	}
	<-c.writeMu
	defer func() { c.writeMu <- struct{}{} }()
	if err := c.writeMessage(textFrame, msg); err != nil {
		return fmt.Errorf("write websocket message: %w", err)
	}
	return nil
}

// Recv implements transport.Transport: it blocks for one full logical
// message (de-fragmented, unmasked, control frames handled internally).
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	if dl, ok := ctx.Deadline(); ok {
		c.nc.SetReadDeadline(dl)
		defer c.nc.SetReadDeadline(time.Time{})
	}
	b, err := c.readMessage()
	if err != nil {
		return nil, fmt.Errorf("read websocket message: %w", err)
	}
	return b, nil
}

// Close implements transport.Transport.
func (c *Conn) Close() error {
	return c.closeWithStatus(1000, nil)
}

package conn_test

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlab/cdpkit/pkg/conn"
	"github.com/riftlab/cdpkit/pkg/transport/wsconn"
	"github.com/riftlab/cdpkit/pkg/wire"
)

// mockDevToolsServer hijacks one incoming HTTP connection, completes the
// RFC 6455 server-side handshake by hand (the pack carries no
// server-side WebSocket library; this is test-only scaffolding, not a
// second implementation of the client framer), and exposes raw
// readFrame/writeFrame helpers so tests can script exact CDP exchanges.
type mockDevToolsServer struct {
	ts   *httptest.Server
	conn chan net.Conn
}

func newMockDevToolsServer(t *testing.T) *mockDevToolsServer {
	t.Helper()
	m := &mockDevToolsServer{conn: make(chan net.Conn, 1)}
	m.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		nc, rw, err := hj.Hijack()
		require.NoError(t, err)

		key := r.Header.Get("Sec-WebSocket-Key")
		h := sha1.New()
		h.Write([]byte(key))
		h.Write([]byte("258EAFA5-E914-47DA-95CA-C5AB0DC85B11"))
		accept := base64.StdEncoding.EncodeToString(h.Sum(nil))

		fmt.Fprintf(rw, "HTTP/1.1 101 Switching Protocols\r\n")
		fmt.Fprintf(rw, "Upgrade: websocket\r\n")
		fmt.Fprintf(rw, "Connection: Upgrade\r\n")
		fmt.Fprintf(rw, "Sec-WebSocket-Accept: %s\r\n", accept)
		fmt.Fprintf(rw, "\r\n")
		rw.Flush()

		m.conn <- nc
		<-r.Context().Done()
	}))
	return m
}

func (m *mockDevToolsServer) url() string {
	return "ws://" + strings.TrimPrefix(m.ts.URL, "http://") + "/devtools/browser/fake"
}

func (m *mockDevToolsServer) close() { m.ts.Close() }

// acceptConn waits for the hijacked connection from the handler above.
func (m *mockDevToolsServer) acceptConn(t *testing.T) *serverSideConn {
	t.Helper()
	select {
	case nc := <-m.conn:
		return &serverSideConn{nc: nc, rw: bufio.NewReadWriter(bufio.NewReader(nc), bufio.NewWriter(nc))}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for client to connect")
		return nil
	}
}

// serverSideConn sends/receives unmasked RFC 6455 frames, the server
// side's mirror image of wsconn's client-side (masked) framing.
type serverSideConn struct {
	nc net.Conn
	rw *bufio.ReadWriter
}

func (s *serverSideConn) writeText(b []byte) error {
	if err := s.rw.WriteByte(0x81); err != nil { // FIN+text.
		return err
	}
	if len(b) <= 125 {
		if err := s.rw.WriteByte(byte(len(b))); err != nil {
			return err
		}
	} else {
		if err := s.rw.WriteByte(126); err != nil {
			return err
		}
		ext := make([]byte, 2)
		binary.BigEndian.PutUint16(ext, uint16(len(b)))
		if _, err := s.rw.Write(ext); err != nil {
			return err
		}
	}
	if _, err := s.rw.Write(b); err != nil {
		return err
	}
	return s.rw.Flush()
}

// readClientFrame reads one masked client frame and returns the
// unmasked payload.
func (s *serverSideConn) readClientFrame() ([]byte, error) {
	header := make([]byte, 2)
	if _, err := readFullConn(s.rw, header); err != nil {
		return nil, err
	}
	lenByte := header[1] & 0x7f
	var n int
	switch {
	case lenByte <= 125:
		n = int(lenByte)
	case lenByte == 126:
		ext := make([]byte, 2)
		if _, err := readFullConn(s.rw, ext); err != nil {
			return nil, err
		}
		n = int(binary.BigEndian.Uint16(ext))
	default:
		ext := make([]byte, 8)
		if _, err := readFullConn(s.rw, ext); err != nil {
			return nil, err
		}
		n = int(binary.BigEndian.Uint64(ext))
	}
	rest := make([]byte, 4+n)
	if _, err := readFullConn(s.rw, rest); err != nil {
		return nil, err
	}
	maskingKey, masked := rest[:4], rest[4:]
	unmasked := make([]byte, n)
	for i := range unmasked {
		unmasked[i] = masked[i] ^ maskingKey[i%4]
	}
	return unmasked, nil
}

func readFullConn(r *bufio.ReadWriter, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func dialConn(t *testing.T, url string) *conn.Connection {
	t.Helper()
	wc, err := wsconn.Dial(context.Background(), url, wsconn.Options{})
	require.NoError(t, err)
	return conn.New(wc)
}

// Scenario 1: version query (simple request/response round trip).
func TestEndToEndVersionQuery(t *testing.T) {
	srv := newMockDevToolsServer(t)
	defer srv.close()
	c := dialConn(t, srv.url())
	defer c.Close()
	sc := srv.acceptConn(t)

	replyCh := make(chan struct{})
	go func() {
		req, err := sc.readClientFrame()
		require.NoError(t, err)
		var m wire.Message
		require.NoError(t, json.Unmarshal(req, &m))
		assert.Equal(t, "Browser.getVersion", m.Method)
		resp := wire.Message{ID: m.ID, Result: json.RawMessage(`{"product":"HeadlessChrome/120.0"}`)}
		b, _ := wire.Serialize(resp)
		require.NoError(t, sc.writeText(b))
		close(replyCh)
	}()

	result, err := c.Call(context.Background(), "Browser.getVersion", nil, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"product":"HeadlessChrome/120.0"}`, string(result))
	<-replyCh
}

// Scenario 2: attach + session-scoped call.
func TestEndToEndAttachAndSessionCall(t *testing.T) {
	srv := newMockDevToolsServer(t)
	defer srv.close()
	c := dialConn(t, srv.url())
	defer c.Close()
	sc := srv.acceptConn(t)

	go func() {
		req, err := sc.readClientFrame()
		require.NoError(t, err)
		var m wire.Message
		require.NoError(t, json.Unmarshal(req, &m))
		assert.Equal(t, "Target.attachToTarget", m.Method)
		resp := wire.Message{ID: m.ID, Result: json.RawMessage(`{"sessionId":"SESSION1"}`)}
		b, _ := wire.Serialize(resp)
		require.NoError(t, sc.writeText(b))

		req, err = sc.readClientFrame()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(req, &m))
		assert.Equal(t, "Page.navigate", m.Method)
		assert.Equal(t, "SESSION1", m.SessionID)
		resp = wire.Message{ID: m.ID, Result: json.RawMessage(`{"frameId":"F1"}`)}
		b, _ = wire.Serialize(resp)
		require.NoError(t, sc.writeText(b))
	}()

	attachResult, err := c.Call(context.Background(), "Target.attachToTarget", json.RawMessage(`{"targetId":"T1","flatten":true}`), "")
	require.NoError(t, err)
	var attach struct{ SessionID string `json:"sessionId"` }
	require.NoError(t, json.Unmarshal(attachResult, &attach))

	navResult, err := c.Call(context.Background(), "Page.navigate", json.RawMessage(`{"url":"https://example.com"}`), attach.SessionID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"frameId":"F1"}`, string(navResult))
}

// Scenario 3: CDP error mapping, then continued use.
func TestEndToEndCDPErrorMapping(t *testing.T) {
	srv := newMockDevToolsServer(t)
	defer srv.close()
	c := dialConn(t, srv.url())
	defer c.Close()
	sc := srv.acceptConn(t)

	go func() {
		req, err := sc.readClientFrame()
		require.NoError(t, err)
		var m wire.Message
		require.NoError(t, json.Unmarshal(req, &m))
		resp := wire.Message{ID: m.ID, Error: &wire.Error{Code: -32601, Message: "Method not found"}}
		b, _ := wire.Serialize(resp)
		require.NoError(t, sc.writeText(b))

		req, err = sc.readClientFrame()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(req, &m))
		resp = wire.Message{ID: m.ID, Result: json.RawMessage(`{}`)}
		b, _ = wire.Serialize(resp)
		require.NoError(t, sc.writeText(b))
	}()

	_, err := c.Call(context.Background(), "Bogus.method", nil, "")
	require.Error(t, err)
	var cdpErr *wire.CDPError
	require.ErrorAs(t, err, &cdpErr)
	assert.Equal(t, wire.CDPMethodNotFound, cdpErr.Kind)

	_, err = c.Call(context.Background(), "Browser.getVersion", nil, "")
	require.NoError(t, err)
}

// Scenario 4: an event arrives while a Call is in flight.
func TestEndToEndEventDuringCall(t *testing.T) {
	srv := newMockDevToolsServer(t)
	defer srv.close()
	c := dialConn(t, srv.url())
	defer c.Close()
	sc := srv.acceptConn(t)

	sub := c.Subscribe("Page.loadEventFired", nil)

	go func() {
		req, err := sc.readClientFrame()
		require.NoError(t, err)
		var m wire.Message
		require.NoError(t, json.Unmarshal(req, &m))

		event := wire.Message{Method: "Page.loadEventFired", Params: json.RawMessage(`{}`)}
		eb, _ := wire.Serialize(event)
		require.NoError(t, sc.writeText(eb))

		resp := wire.Message{ID: m.ID, Result: json.RawMessage(`{}`)}
		rb, _ := wire.Serialize(resp)
		require.NoError(t, sc.writeText(rb))
	}()

	_, err := c.Call(context.Background(), "Page.navigate", json.RawMessage(`{"url":"https://example.com"}`), "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, ok := sub.Next(ctx)
	assert.True(t, ok)
}

// Scenario 5: timeout when the server never answers.
func TestEndToEndCallTimeout(t *testing.T) {
	srv := newMockDevToolsServer(t)
	defer srv.close()
	wc, err := wsconn.Dial(context.Background(), srv.url(), wsconn.Options{})
	require.NoError(t, err)
	c := conn.New(wc, conn.WithCallTimeout(50*time.Millisecond))
	defer c.Close()
	srv.acceptConn(t) // accept but never reply.

	_, err = c.Call(context.Background(), "Never.responds", nil, "")
	require.Error(t, err)
}

// Scenario 6: concurrent calls interleave correctly by id.
func TestEndToEndConcurrentCallInterleaving(t *testing.T) {
	srv := newMockDevToolsServer(t)
	defer srv.close()
	c := dialConn(t, srv.url())
	defer c.Close()
	sc := srv.acceptConn(t)

	const n = 10
	go func() {
		reqs := make([]wire.Message, 0, n)
		for i := 0; i < n; i++ {
			req, err := sc.readClientFrame()
			require.NoError(t, err)
			var m wire.Message
			require.NoError(t, json.Unmarshal(req, &m))
			reqs = append(reqs, m)
		}
		// Reply in reverse order to prove correlation isn't order-dependent.
		// Each reply echoes its request's own "i" param.
		for i := len(reqs) - 1; i >= 0; i-- {
			var p struct{ I int64 }
			require.NoError(t, json.Unmarshal(reqs[i].Params, &p))
			resp := wire.Message{ID: reqs[i].ID, Result: json.RawMessage(fmt.Sprintf(`{"echo":%d}`, p.I))}
			b, _ := wire.Serialize(resp)
			require.NoError(t, sc.writeText(b))
		}
	}()

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			result, err := c.Call(context.Background(), "Echo.call", json.RawMessage(fmt.Sprintf(`{"i":%d}`, i)), "")
			if err == nil {
				var got struct{ Echo int64 }
				if jerr := json.Unmarshal(result, &got); jerr != nil {
					err = jerr
				} else if got.Echo != int64(i) {
					err = fmt.Errorf("caller %d received the reply meant for caller %d", i, got.Echo)
				}
			}
			results <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-results)
	}
}

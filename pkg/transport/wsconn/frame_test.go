package wsconn

import (
	"context"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadErrors(t *testing.T) {
	tests := []struct {
		desc string
		b    []byte
	}{
		{"reserved bits", []byte{0x70}},
		{"invalid opcode", []byte{0x0f}},
		{"mask bit", []byte{0x80, 0x80}},
	}
	for _, tc := range tests {
		server, client := net.Pipe()
		conn := newConn(client, Options{})
		defer server.Close()
		defer client.Close()

		go func() {
			server.Write(tc.b)
			server.Read(make([]byte, 8))
		}()

		got, err := conn.readMessage()
		if err == nil {
			t.Errorf("%s: readMessage() = %#v, want error", tc.desc, got)
		}
	}
}

func TestReadSingleEmptyFrame(t *testing.T) {
	server, client := net.Pipe()
	conn := newConn(client, Options{})
	defer server.Close()
	defer client.Close()

	go func() {
		server.Write([]byte{0x81, 0x00})
	}()

	got, err := conn.readMessage()
	if err != nil {
		t.Fatalf("readMessage(); got unexpected error: %v", err)
	}
	if len(got) > 0 {
		t.Errorf("readMessage() = %#v, want empty", got)
	}
}

func TestReadThreeFrames(t *testing.T) {
	server, client := net.Pipe()
	conn := newConn(client, Options{})
	defer server.Close()
	defer client.Close()

	go func() {
		b := []byte{0x01, 0x01, 0xaa, 0x00, 0x02, 0xbb, 0xcc, 0x80, 0x03, 0xdd, 0xee, 0xff}
		server.Write(b)
	}()

	got, err := conn.readMessage()
	want := []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	if err != nil {
		t.Fatalf("readMessage(); got unexpected error: %v", err)
	}
	if !cmp.Equal(got, want) {
		t.Errorf("readMessage() = %#v, want %#v", got, want)
	}
}

func TestReadWithControlFrames(t *testing.T) {
	server, client := net.Pipe()
	conn := newConn(client, Options{})
	defer server.Close()
	defer client.Close()

	go func() {
		b := []byte{0x01, 0x01, 0xaa, 0x89, 0x04, 0x70, 0x69, 0x6e, 0x67, 0x8a, 0x00, 0x80, 0x03, 0xdd, 0xee, 0xff}
		server.Write(b)
		server.Read(make([]byte, 10)) // drain the PONG reply.
	}()

	got, err := conn.readMessage()
	want := []byte{0xaa, 0xdd, 0xee, 0xff}
	if err != nil {
		t.Fatalf("readMessage(); got unexpected error: %v", err)
	}
	if !cmp.Equal(got, want) {
		t.Errorf("readMessage() = %#v, want %#v", got, want)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	server, client := net.Pipe()
	conn := newConn(client, Options{MaxMessageSize: 4})
	defer server.Close()
	defer client.Close()

	go func() {
		// FIN+text, len=5, all masked-looking but unmasked (server frame).
		server.Write([]byte{0x81, 0x05, 1, 2, 3, 4, 5})
		server.Read(make([]byte, 32)) // drain the CLOSE frame we send back.
	}()

	if _, err := conn.readMessage(); err == nil {
		t.Error("readMessage() with oversized frame = nil error, want error")
	}
}

func TestWriteMessageIsMasked(t *testing.T) {
	server, client := net.Pipe()
	conn := newConn(client, Options{})
	defer server.Close()
	defer client.Close()

	payload := []byte("hello")
	errCh := make(chan error, 1)
	go func() { errCh <- conn.Send(context.Background(), payload) }()

	header := make([]byte, 2)
	if _, err := server.Read(header); err != nil {
		t.Fatalf("read frame header: %v", err)
	}
	if header[0] != 0x81 {
		t.Errorf("first header byte = %#x, want 0x81 (FIN+text)", header[0])
	}
	if header[1]&0x80 == 0 {
		t.Error("client frame must have the mask bit set")
	}
	length := int(header[1] & 0x7f)
	if length != len(payload) {
		t.Errorf("payload length = %d, want %d", length, len(payload))
	}
	rest := make([]byte, 4+length)
	if _, err := server.Read(rest); err != nil {
		t.Fatalf("read mask+payload: %v", err)
	}
	maskingKey := rest[:4]
	masked := rest[4:]
	unmasked := make([]byte, length)
	for i := range unmasked {
		unmasked[i] = masked[i] ^ maskingKey[i%4]
	}
	if !cmp.Equal(unmasked, payload) {
		t.Errorf("unmasked payload = %q, want %q", unmasked, payload)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send(); got unexpected error: %v", err)
	}
}

// TestWriteMessageBoundaryLengths exercises the three payload-length
// encodings (7-bit, 16-bit extended, 64-bit extended) at their exact
// boundaries: 125/126 and 65535/65536.
func TestWriteMessageBoundaryLengths(t *testing.T) {
	for _, n := range []int{125, 126, 65535, 65536} {
		server, client := net.Pipe()
		conn := newConn(client, Options{MaxMessageSize: 1 << 20})

		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i)
		}

		done := make(chan error, 1)
		go func() { done <- conn.Send(context.Background(), payload) }()

		got := readMaskedFrame(t, server, n)
		if !cmp.Equal(got, payload) {
			t.Errorf("n=%d: got payload of length %d, want %d", n, len(got), len(payload))
		}
		if err := <-done; err != nil {
			t.Errorf("n=%d: Send(); got unexpected error: %v", n, err)
		}
		server.Close()
		client.Close()
	}
}

// readMaskedFrame reads exactly one masked client frame of the given
// payload length off a raw net.Conn and returns the unmasked payload.
func readMaskedFrame(t *testing.T, r net.Conn, payloadLen int) []byte {
	t.Helper()
	header := make([]byte, 2)
	if _, err := readFull(r, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	lenByte := header[1] & 0x7f
	var extended int
	switch {
	case lenByte <= 125:
		extended = 0
	case lenByte == 126:
		extended = 2
	default:
		extended = 8
	}
	extendedBytes := make([]byte, extended)
	if extended > 0 {
		if _, err := readFull(r, extendedBytes); err != nil {
			t.Fatalf("read extended length: %v", err)
		}
	}
	rest := make([]byte, 4+payloadLen)
	if _, err := readFull(r, rest); err != nil {
		t.Fatalf("read mask+payload: %v", err)
	}
	maskingKey, masked := rest[:4], rest[4:]
	unmasked := make([]byte, payloadLen)
	for i := range unmasked {
		unmasked[i] = masked[i] ^ maskingKey[i%4]
	}
	return unmasked
}

func readFull(r net.Conn, buf []byte) (int, error) {
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

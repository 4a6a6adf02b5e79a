package wsconn

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/riftlab/cdpkit/pkg/transport"
)

// opcode is the RFC 6455 §11.8 frame opcode.
type opcode byte

const (
	continuationFrame opcode = iota
	textFrame
	binaryFrame
	// Opcodes 3-7 are reserved for further non-control frames.
	_
	_
	_
	_
	_
	connectionCloseFrame
	pingFrame
	pongFrame
	// Opcodes 11-15 are reserved for further control frames.
)

// frame is one RFC 6455 §5.2 WebSocket frame.
type frame struct {
	fin           bool
	rsv           [3]bool
	opcode        opcode
	mask          bool
	payloadLength uint64
	maskingKey    []byte
	payloadData   []byte
}

// readFrame reads and decodes one frame from the peer. closeConnection
// reports a protocol violation severe enough that the connection must be
// torn down rather than just erroring this one read.
func (c *Conn) readFrame() (f frame, closeConnection bool, err error) {
	b, err := c.rw.ReadByte()
	if err != nil {
		return f, false, err
	}
	f.fin = (b & 0x80) != 0
	f.rsv[0] = (b & 0x40) != 0
	f.rsv[1] = (b & 0x20) != 0
	f.rsv[2] = (b & 0x10) != 0
	if (b & 0x70) != 0 {
		return f, true, fmt.Errorf("%w: peer set reserved bits", transport.ErrInvalidFrame)
	}
	f.opcode = opcode(b & 0x0f)
	if (f.opcode > 2 && f.opcode < 8) || f.opcode > 10 {
		return f, true, fmt.Errorf("%w: unknown opcode %d", transport.ErrInvalidFrame, f.opcode)
	}

	b, err = c.rw.ReadByte()
	if err != nil {
		return f, false, fmt.Errorf("read second header byte: %w", err)
	}
	f.mask = (b & 0x80) != 0
	if f.mask {
		// RFC 6455 §5.1: a server MUST NOT mask frames it sends; a client
		// MUST close the connection if it detects a masked frame.
		return f, true, fmt.Errorf("%w: peer masked a server-to-client frame", transport.ErrInvalidFrame)
	}
	b &= 0x7f

	switch {
	case b <= 125:
		f.payloadLength = uint64(b)
	case b == 126:
		extended := make([]byte, 2)
		if _, err = io.ReadFull(c.rw, extended); err != nil {
			return f, false, fmt.Errorf("read extended payload length: %w", err)
		}
		f.payloadLength = uint64(binary.BigEndian.Uint16(extended))
	default:
		extended := make([]byte, 8)
		if _, err = io.ReadFull(c.rw, extended); err != nil {
			return f, false, fmt.Errorf("read extended payload length: %w", err)
		}
		f.payloadLength = binary.BigEndian.Uint64(extended)
	}

	if int64(f.payloadLength) > c.maxMessageSize {
		return f, true, fmt.Errorf("%w: frame payload %d bytes exceeds limit %d", transport.ErrFrameTooLarge, f.payloadLength, c.maxMessageSize)
	}

	f.payloadData = make([]byte, f.payloadLength)
	if _, err = io.ReadFull(c.rw, f.payloadData); err != nil {
		return f, false, fmt.Errorf("read payload: %w", err)
	}
	return f, false, nil
}

// readMessage reads and reassembles one logical message, transparently
// handling control frames (PING is answered with PONG, CLOSE triggers a
// close handshake) per RFC 6455 §§5.4-5.5, 6.2, 7.
func (c *Conn) readMessage() ([]byte, error) {
	var buf *bytes.Buffer
	var total int64

	for {
		f, shouldClose, err := c.readFrame()
		if shouldClose {
			c.log.WithError(err).Warn("closing websocket connection after protocol violation")
			c.closeWithStatus(1002, nil)
			return nil, err
		}
		if err != nil {
			return nil, err
		}

		switch f.opcode {
		case connectionCloseFrame:
			statusCode := uint16(1005)
			var reason []byte
			if f.payloadLength >= 2 {
				statusCode = binary.BigEndian.Uint16(f.payloadData[0:2])
				reason = f.payloadData[2:]
			}
			c.closeWithStatus(statusCode, nil)
			return nil, fmt.Errorf("%w: peer closed with status %d (%q)", transport.ErrConnectionClosed, statusCode, reason)
		case pingFrame:
			<-c.writeMu
			err := c.writeMessage(pongFrame, f.payloadData)
			c.writeMu <- struct{}{}
			if err != nil {
				return nil, fmt.Errorf("reply to ping: %w", err)
			}
			continue
		case pongFrame:
			continue
		}

		total += int64(len(f.payloadData))
		if total > c.maxMessageSize {
			c.closeWithStatus(1009, nil)
			return nil, fmt.Errorf("%w: reassembled message exceeds %d bytes", transport.ErrFrameTooLarge, c.maxMessageSize)
		}

		if f.fin {
			if f.opcode != continuationFrame && buf == nil {
				return f.payloadData, nil
			}
			buf.Write(f.payloadData)
			return buf.Bytes(), nil
		}
		if f.opcode != continuationFrame {
			buf = bytes.NewBuffer(f.payloadData)
		} else {
			if buf == nil {
				return nil, fmt.Errorf("%w: continuation frame with no preceding fragment", transport.ErrInvalidFrame)
			}
			buf.Write(f.payloadData)
		}
	}
}

func (c *Conn) writeFrame(f frame) error {
	var b byte
	if f.fin {
		b |= 0x80
	}
	for i := 0; i < 3; i++ {
		if f.rsv[i] {
			b |= 1 << (6 - i)
		}
	}
	b |= byte(f.opcode)
	if err := c.rw.WriteByte(b); err != nil {
		return fmt.Errorf("write first header byte: %w", err)
	}

	b = 0x80 // client frames are always masked.
	extendedLength := 0
	switch {
	case f.payloadLength <= 125:
		b |= byte(f.payloadLength)
	case f.payloadLength <= 65535:
		b |= 126
		extendedLength = 2
	default:
		b |= 127
		extendedLength = 8
	}
	if err := c.rw.WriteByte(b); err != nil {
		return fmt.Errorf("write second header byte: %w", err)
	}

	for i := 0; i < extendedLength; i++ {
		shift := uint((extendedLength - i - 1) * 8)
		if err := c.rw.WriteByte(byte((f.payloadLength >> shift) & 0xff)); err != nil {
			return fmt.Errorf("write extended payload length: %w", err)
		}
	}

	if _, err := c.rw.Write(f.maskingKey); err != nil {
		return fmt.Errorf("write masking key: %w", err)
	}
	if _, err := c.rw.Write(f.payloadData); err != nil {
		return fmt.Errorf("write masked payload: %w", err)
	}
	return c.rw.Flush()
}

func (c *Conn) writeMessage(o opcode, msg []byte) error {
	f := frame{fin: true, opcode: o, mask: true, payloadLength: uint64(len(msg))}

	f.maskingKey = make([]byte, 4)
	if _, err := io.ReadFull(rand.Reader, f.maskingKey); err != nil {
		return fmt.Errorf("generate frame masking key: %w", err)
	}
	f.payloadData = make([]byte, len(msg))
	for i := range msg {
		f.payloadData[i] = msg[i] ^ f.maskingKey[i%4]
	}
	return c.writeFrame(f)
}

// WritePing sends a "ping" control frame, for keepalive or liveness checks.
func (c *Conn) WritePing(appData []byte) error {
	if len(appData) > 125 {
		return errors.New("control frame payload must be 0-125 bytes")
	}
	return c.writeMessage(pingFrame, appData)
}

// closeWithStatus sends a CLOSE control frame carrying statusCode and
// reason, then closes the underlying network connection. The CLOSE frame
// is skipped when another frame is mid-transmission. It is safe to call
// more than once.
func (c *Conn) closeWithStatus(statusCode uint16, reason []byte) error {
	b := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(b, statusCode)
	b = append(b, reason...)
	select {
	case <-c.writeMu:
		c.writeMessage(connectionCloseFrame, b)
		c.writeMu <- struct{}{}
	default:
	}
	return c.nc.Close()
}

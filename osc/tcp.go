package osc

import (
	"context"
	"net"
	"sync"

	"github.com/Lobaro/slip"
	"github.com/pkg/errors"
)

// StreamConn sends and receives OSC packets over a stream connection. Packets
// are framed with SLIP (RFC 1055) as required by OSC 1.1 for stream
// transports. Reads and writes may happen concurrently; concurrent writes
// are serialized.
type StreamConn struct {
	conn net.Conn
	r    *slip.Reader

	wmu sync.Mutex
	w   *slip.Writer
}

// NewStreamConn wraps conn.
func NewStreamConn(conn net.Conn) *StreamConn {
	return &StreamConn{
		conn: conn,
		r:    slip.NewReader(conn),
		w:    slip.NewWriter(conn),
	}
}

// DialStream connects to a SLIP framed OSC endpoint over TCP.
func DialStream(ctx context.Context, addr string) (*StreamConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", addr)
	}
	return NewStreamConn(conn), nil
}

// ReadPacket reads the next non-empty SLIP frame. Frames that do not fit
// the reader's buffer are reassembled.
func (sc *StreamConn) ReadPacket() ([]byte, error) {
	var packet []byte
	for {
		p, isPrefix, err := sc.r.ReadPacket()
		if err != nil {
			return nil, err
		}
		packet = append(packet, p...)
		if isPrefix || len(packet) == 0 {
			continue
		}
		return packet, nil
	}
}

// WritePacket writes b as one SLIP frame.
func (sc *StreamConn) WritePacket(b []byte) error {
	sc.wmu.Lock()
	defer sc.wmu.Unlock()
	return sc.w.WritePacket(b)
}

// Receive reads and decodes the next OSC packet.
func (sc *StreamConn) Receive() (Packet, error) {
	b, err := sc.ReadPacket()
	if err != nil {
		return nil, err
	}
	return ParsePacket(b)
}

// Send encodes and writes an OSC packet.
func (sc *StreamConn) Send(p Packet) error {
	b, err := p.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encoding packet")
	}
	return errors.Wrap(sc.WritePacket(b), "writing packet")
}

// Close closes the underlying connection.
func (sc *StreamConn) Close() error {
	return sc.conn.Close()
}

// RemoteAddr returns the remote network address.
func (sc *StreamConn) RemoteAddr() net.Addr {
	return sc.conn.RemoteAddr()
}

// LocalAddr returns the local network address.
func (sc *StreamConn) LocalAddr() net.Addr {
	return sc.conn.LocalAddr()
}

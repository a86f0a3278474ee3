package server

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/showcontroller/oscws/osc"
)

// closeGracePeriod bounds how long closing a WebSocket waits for the close
// frame to be written.
const closeGracePeriod = time.Second

// Frame is a single payload exchanged with a client.
type Frame struct {
	// Binary is false for WebSocket text frames.
	Binary bool
	Data   []byte
}

// Transport carries frames between the server and one client.
// ReadFrame is called from a single goroutine, as is WriteFrame; Close may be
// called concurrently with both.
type Transport interface {
	ReadFrame() (Frame, error)
	WriteFrame(Frame) error
	Close() error
	RemoteAddr() net.Addr
}

// wsTransport is a Transport over a WebSocket connection.
type wsTransport struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadFrame() (Frame, error) {
	mt, data, err := t.conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Binary: mt == websocket.BinaryMessage, Data: data}, nil
}

func (t *wsTransport) WriteFrame(f Frame) error {
	mt := websocket.TextMessage
	if f.Binary {
		mt = websocket.BinaryMessage
	}
	return t.conn.WriteMessage(mt, f.Data)
}

// Close sends a going away close frame, unless one was sent already, and
// closes the connection.
func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

func (t *wsTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// streamTransport is a Transport over a SLIP framed stream. Every frame is
// binary.
type streamTransport struct {
	sc *osc.StreamConn
}

func newStreamTransport(sc *osc.StreamConn) *streamTransport {
	return &streamTransport{sc: sc}
}

func (t *streamTransport) ReadFrame() (Frame, error) {
	b, err := t.sc.ReadPacket()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Binary: true, Data: b}, nil
}

func (t *streamTransport) WriteFrame(f Frame) error {
	return t.sc.WritePacket(f.Data)
}

func (t *streamTransport) Close() error {
	return t.sc.Close()
}

func (t *streamTransport) RemoteAddr() net.Addr {
	return t.sc.RemoteAddr()
}

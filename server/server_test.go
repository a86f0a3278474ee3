package server

import (
	"bytes"
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/showcontroller/oscws/generator"
	"github.com/showcontroller/oscws/osc"
)

func newTestServer(t *testing.T, cfg Config, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	opts = append([]Option{WithLogger(log.New(io.Discard, "", 0))}, opts...)
	srv, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() unexpected error: %s", err)
	}
	ts := httptest.NewServer(srv.Handler())
	// The session must end before httptest waits for its handler.
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() unexpected error: %s", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (int, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() unexpected error: %s", err)
	}
	return mt, data
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = -time.Second
	if _, err := New(cfg); err == nil {
		t.Error("expected an error for a negative interval")
	}

	cfg = DefaultConfig()
	cfg.Address = "test"
	if _, err := New(cfg); err == nil {
		t.Error("expected an error for an invalid OSC address")
	}
}

func TestSessionSendsGeneratedMessages(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 20 * time.Millisecond
	_, ts := newTestServer(t, cfg)
	conn := dial(t, ts)

	for i := 0; i < 3; i++ {
		mt, data := readFrame(t, conn)
		if mt != websocket.BinaryMessage {
			t.Errorf("frame %d: message type = %d, want binary", i, mt)
		}
		if len(data)%4 != 0 {
			t.Errorf("frame %d: size %d is not a multiple of 4", i, len(data))
		}
		p, err := osc.ParsePacket(data)
		if err != nil {
			t.Fatalf("frame %d: ParsePacket() unexpected error: %s", i, err)
		}
		msg, ok := p.(*osc.Message)
		if !ok || msg.Address != generator.DefaultAddress {
			t.Errorf("frame %d: packet = %v", i, p)
		}
	}
}

func TestSessionSendsGeneratedBundles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bundle = true
	cfg.Interval = time.Hour
	_, ts := newTestServer(t, cfg)
	conn := dial(t, ts)

	_, data := readFrame(t, conn)
	p, err := osc.ParsePacket(data)
	if err != nil {
		t.Fatalf("ParsePacket() unexpected error: %s", err)
	}
	b, ok := p.(*osc.Bundle)
	if !ok {
		t.Fatalf("packet = %T, want *osc.Bundle", p)
	}
	if len(b.Bundles()) != 1 {
		t.Errorf("bundle has %d nested bundles, want 1", len(b.Bundles()))
	}
}

func TestEcho(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 0
	_, ts := newTestServer(t, cfg)
	conn := dial(t, ts)

	encoded, err := osc.NewMessage("/echo", int32(1), "two").MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range []struct {
		desc string
		mt   int
		data []byte
	}{
		{"osc", websocket.BinaryMessage, encoded},
		{"arbitrary_binary", websocket.BinaryMessage, []byte{0, 1, 2, 0xff, 0xc0}},
		{"text", websocket.TextMessage, []byte("hello")},
		{"empty", websocket.BinaryMessage, []byte{}},
	} {
		if err := conn.WriteMessage(tt.mt, tt.data); err != nil {
			t.Fatalf("%s: WriteMessage() unexpected error: %s", tt.desc, err)
		}
		mt, data := readFrame(t, conn)
		if mt != tt.mt {
			t.Errorf("%s: echoed message type = %d, want = %d", tt.desc, mt, tt.mt)
		}
		if !bytes.Equal(data, tt.data) {
			t.Errorf("%s: echoed %v, want %v", tt.desc, data, tt.data)
		}
	}
}

func TestEchoDisabledAndInboundHook(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 0
	cfg.Echo = false

	got := make(chan Frame, 1)
	_, ts := newTestServer(t, cfg, WithInbound(func(s *Session, f Frame) { got <- f }))
	conn := dial(t, ts)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatal(err)
	}
	select {
	case f := <-got:
		if f.Binary || string(f.Data) != "ping" {
			t.Errorf("inbound frame = %+v", f)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("inbound hook was not called")
	}

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected no echo")
	}
}

func TestGeneratorErrorEndsSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = time.Hour
	_, ts := newTestServer(t, cfg, WithSource(func() (osc.Packet, error) {
		return osc.NewMessage("/bad", 42), nil
	}))
	conn := dial(t, ts)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
}

func TestBroadcastAndHealth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 0
	srv, ts := newTestServer(t, cfg)
	c1, c2 := dial(t, ts), dial(t, ts)

	waitFor(t, func() bool { return srv.SessionCount() == 2 })

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok 2\n" {
		t.Errorf("healthz = %q, want \"ok 2\\n\"", body)
	}

	payload := []byte("/bcast\x00\x00,\x00\x00\x00")
	if n := srv.Broadcast(Frame{Binary: true, Data: payload}); n != 2 {
		t.Errorf("Broadcast() = %d, want 2", n)
	}
	for i, c := range []*websocket.Conn{c1, c2} {
		if _, data := readFrame(t, c); !bytes.Equal(data, payload) {
			t.Errorf("client %d got %q", i, data)
		}
	}

	c1.Close()
	waitFor(t, func() bool { return srv.SessionCount() == 1 })
}

func TestCloseSendsGoingAway(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 0
	srv, ts := newTestServer(t, cfg)
	conn := dial(t, ts)
	waitFor(t, func() bool { return srv.SessionCount() == 1 })

	srv.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("ReadMessage() error = %v, want going away close", err)
	}
	if srv.SessionCount() != 0 {
		t.Errorf("SessionCount() = %d after Close", srv.SessionCount())
	}
}

func TestStreamSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = time.Hour
	srv, err := New(cfg, WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ServeStream(ctx, ln); err != nil {
			t.Errorf("ServeStream() unexpected error: %s", err)
		}
	}()
	defer func() {
		cancel()
		srv.Close()
		wg.Wait()
	}()

	sc, err := osc.DialStream(ctx, ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer sc.Close()

	p, err := sc.Receive()
	if err != nil {
		t.Fatalf("Receive() unexpected error: %s", err)
	}
	if msg, ok := p.(*osc.Message); !ok || msg.Address != generator.DefaultAddress {
		t.Errorf("first packet = %v", p)
	}

	payload := []byte{0xc0, 1, 2, 3}
	if err := sc.WritePacket(payload); err != nil {
		t.Fatal(err)
	}
	got, err := sc.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket() unexpected error: %s", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("echoed %v, want %v", got, payload)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 0
	srv, err := New(cfg, WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx, ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return srv.SessionCount() == 1 })

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Serve() = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

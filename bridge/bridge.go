// Package bridge relays OSC packets between UDP and WebSocket clients.
//
// Every datagram received on the UDP listen address is sent to all
// WebSocket clients as a binary frame, and every WebSocket payload is sent
// as a datagram to the UDP target address.
package bridge

import (
	"context"
	"log"
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/showcontroller/oscws/generator"
	"github.com/showcontroller/oscws/server"
)

// maxDatagram is the largest UDP payload.
const maxDatagram = 65535

// Config configures a Bridge.
type Config struct {
	// UDPListen is where datagrams for WebSocket clients arrive.
	UDPListen string
	// UDPTarget receives the WebSocket clients' payloads.
	UDPTarget string
	// WSAddr is the WebSocket listen address.
	WSAddr string
	// Exclusive binds UDPListen without SO_REUSEADDR/SO_REUSEPORT.
	Exclusive bool
}

// DefaultConfig returns the default bridge configuration.
func DefaultConfig() Config {
	return Config{
		UDPListen: "localhost:41234",
		UDPTarget: "localhost:41235",
		WSAddr:    "localhost:8080",
	}
}

// Bridge is a UDP/WebSocket relay.
type Bridge struct {
	cfg    Config
	logger *log.Logger
	srv    *server.Server
	target *net.UDPAddr

	pc net.PacketConn
}

// New returns a Bridge for cfg. A nil logger means log.Default().
func New(cfg Config, logger *log.Logger) (*Bridge, error) {
	if logger == nil {
		logger = log.Default()
	}
	target, err := net.ResolveUDPAddr("udp", cfg.UDPTarget)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving UDP target %s", cfg.UDPTarget)
	}

	b := &Bridge{cfg: cfg, logger: logger, target: target}
	srv, err := server.New(server.Config{
		Addr:    cfg.WSAddr,
		Address: generator.DefaultAddress,
	}, server.WithLogger(logger), server.WithInbound(b.toUDP))
	if err != nil {
		return nil, errors.Wrap(err, "creating websocket server")
	}
	b.srv = srv
	return b, nil
}

// ListenAndServe binds the configured addresses and relays until ctx is done.
func (b *Bridge) ListenAndServe(ctx context.Context) error {
	pc, err := listenUDP(ctx, b.cfg.UDPListen, b.cfg.Exclusive)
	if err != nil {
		return errors.Wrapf(err, "listening on udp %s", b.cfg.UDPListen)
	}
	ln, err := net.Listen("tcp", b.cfg.WSAddr)
	if err != nil {
		pc.Close()
		return errors.Wrapf(err, "listening on %s", b.cfg.WSAddr)
	}
	return b.Serve(ctx, pc, ln)
}

// Serve relays between pc and the WebSocket clients accepted on ln until
// ctx is done.
func (b *Bridge) Serve(ctx context.Context, pc net.PacketConn, ln net.Listener) error {
	b.pc = pc
	b.logger.Printf("bridge relaying udp %s <-> ws://%s/ (udp target %s)", pc.LocalAddr(), ln.Addr(), b.target)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.srv.Serve(gctx, ln) })
	g.Go(func() error { return b.fromUDP(gctx, pc) })
	return g.Wait()
}

// fromUDP broadcasts every datagram read from pc.
func (b *Bridge) fromUDP(ctx context.Context, pc net.PacketConn) error {
	go func() {
		<-ctx.Done()
		pc.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "reading udp")
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		sent := b.srv.Broadcast(server.Frame{Binary: true, Data: data})
		b.logger.Printf("udp %s: relayed %d bytes to %d websocket clients", addr, n, sent)
	}
}

// toUDP sends a WebSocket payload to the UDP target.
func (b *Bridge) toUDP(sess *server.Session, f server.Frame) {
	if b.pc == nil {
		return
	}
	if _, err := b.pc.WriteTo(f.Data, b.target); err != nil {
		b.logger.Printf("session %s: relaying to udp %s failed: %v", sess.ID, b.target, err)
	}
}

// SessionCount returns the number of connected WebSocket clients.
func (b *Bridge) SessionCount() int {
	return b.srv.SessionCount()
}

func listenUDP(ctx context.Context, addr string, exclusive bool) (net.PacketConn, error) {
	var lc net.ListenConfig
	if !exclusive {
		lc.Control = reuseControl
	}
	return lc.ListenPacket(ctx, "udp", addr)
}

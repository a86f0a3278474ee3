// Package server serves OSC test traffic to WebSocket and SLIP stream
// clients. Every session receives a generated packet at a fixed interval and,
// unless disabled, gets each of its payloads echoed back unchanged.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/showcontroller/oscws/generator"
	"github.com/showcontroller/oscws/osc"
)

// Config configures a Server.
type Config struct {
	// Addr is the WebSocket listen address.
	Addr string
	// StreamAddr is the SLIP stream listen address. Empty disables it.
	StreamAddr string
	// Interval between generated packets. Zero disables them.
	Interval time.Duration
	// Bundle wraps generated messages in nested bundles.
	Bundle bool
	// Address is the OSC address of generated messages.
	Address string
	// Echo sends every inbound payload back to its sender.
	Echo bool
}

// DefaultConfig returns the configuration of the demo server.
func DefaultConfig() Config {
	return Config{
		Addr:     "127.0.0.1:8000",
		Interval: 5 * time.Second,
		Address:  generator.DefaultAddress,
		Echo:     true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Interval < 0 {
		return errors.Errorf("negative interval %s", c.Interval)
	}
	if !strings.HasPrefix(c.Address, "/") {
		return errors.Errorf("OSC address %q must start with '/'", c.Address)
	}
	return nil
}

// InboundFunc is called with every payload a session receives.
type InboundFunc func(s *Session, f Frame)

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithSource replaces the generated packet source.
func WithSource(src generator.Source) Option {
	return func(s *Server) { s.source = src }
}

// WithInbound registers fn to observe inbound payloads.
func WithInbound(fn InboundFunc) Option {
	return func(s *Server) { s.inbound = fn }
}

// Server accepts clients and runs a Session for each.
type Server struct {
	cfg        Config
	source     generator.Source
	inbound    InboundFunc
	logger     *log.Logger
	upgrader   websocket.Upgrader
	dispatcher *osc.StandardDispatcher

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	closed   bool
	wg       sync.WaitGroup
}

// New returns a Server for cfg.
func New(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	s := &Server{
		cfg:      cfg,
		logger:   log.Default(),
		sessions: make(map[uuid.UUID]*Session),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	gen := generator.New()
	gen.Address = cfg.Address
	if cfg.Bundle {
		s.source = gen.BundleSource()
	} else {
		s.source = gen.MessageSource()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.dispatcher = osc.NewStandardDispatcher()
	if err := s.dispatcher.AddMsgHandler(osc.CatchAll, func(msg *osc.Message) {
		s.logger.Printf("received OSC message %s", msg)
	}); err != nil {
		return nil, errors.Wrap(err, "adding message handler")
	}
	return s, nil
}

// Handler returns the HTTP handler serving WebSocket upgrades on "/" and a
// health check on "/healthz".
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.serveHealth).Methods(http.MethodGet)
	r.HandleFunc("/", s.serveWebSocket)
	return r
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "ok %d\n", s.SessionCount())
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	s.logger.Printf("client connecting: %s", r.RemoteAddr)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Printf("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	s.serveTransport(newWSTransport(conn))
}

// ListenAndServe listens on the configured addresses and serves until ctx
// is done or a listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.cfg.Addr)
	}
	var sln net.Listener
	if s.cfg.StreamAddr != "" {
		if sln, err = net.Listen("tcp", s.cfg.StreamAddr); err != nil {
			ln.Close()
			return errors.Wrapf(err, "listening on %s", s.cfg.StreamAddr)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Serve(gctx, ln) })
	if sln != nil {
		g.Go(func() error { return s.ServeStream(gctx, sln) })
	}
	return g.Wait()
}

// Serve serves WebSocket clients on ln until ctx is done. All sessions are
// closed before it returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Printf("websocket server listening on ws://%s/", ln.Addr())

	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()

	select {
	case err := <-errc:
		s.Close()
		return errors.Wrap(err, "serving http")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := hs.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return errors.Wrap(err, "shutting down http server")
	}
	return nil
}

// ServeStream serves SLIP stream clients on ln until ctx is done.
func (s *Server) ServeStream(ctx context.Context, ln net.Listener) error {
	s.logger.Printf("stream server listening on tcp://%s", ln.Addr())
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				time.Sleep(tempDelay)
				continue
			}
			return errors.Wrap(err, "accepting stream connection")
		}
		tempDelay = 0
		s.logger.Printf("client connecting: %s", conn.RemoteAddr())
		go s.serveTransport(newStreamTransport(osc.NewStreamConn(conn)))
	}
}

// serveTransport runs a session on t and blocks until it ends.
func (s *Server) serveTransport(t Transport) {
	sess := newSession(s, t)
	if !s.add(sess) {
		t.Close()
		return
	}
	defer s.remove(sess)

	s.logger.Printf("session %s: connection open from %s", sess.ID, t.RemoteAddr())
	err := sess.run(s.ctx)
	switch {
	case s.ctx.Err() != nil:
		s.logger.Printf("session %s: connection closed: server shutting down", sess.ID)
	case isNormalClose(err):
		s.logger.Printf("session %s: connection closed: %v", sess.ID, reason(err))
	default:
		s.logger.Printf("session %s: connection lost: %v", sess.ID, err)
	}
}

func (s *Server) add(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sessions[sess.ID] = sess
	s.wg.Add(1)
	return true
}

func (s *Server) remove(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	s.wg.Done()
}

// handleInbound echoes f and logs it. Binary payloads that decode as OSC are
// dispatched to the server's log handler.
func (s *Server) handleInbound(sess *Session, f Frame) {
	s.logger.Printf("session %s: got message (%d bytes, binary %t)", sess.ID, len(f.Data), f.Binary)
	if s.cfg.Echo {
		sess.Send(f)
	}
	if s.inbound != nil {
		s.inbound(sess, f)
	}
	if !f.Binary {
		return
	}
	p, err := osc.ParsePacket(f.Data)
	if err != nil {
		s.logger.Printf("session %s: payload is not OSC: %v", sess.ID, err)
		return
	}
	s.dispatcher.Dispatch(p)
}

// Broadcast queues f for every session and returns how many received it.
func (s *Server) Broadcast(f Frame) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.Send(f) {
			n++
		}
	}
	return n
}

// SessionCount returns the number of connected clients.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close ends all sessions and waits for them. New clients are rejected
// afterwards.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// reason describes why a session ended.
func reason(err error) string {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Text != "" {
			return fmt.Sprintf("%d %s", ce.Code, ce.Text)
		}
		return fmt.Sprintf("code %d", ce.Code)
	}
	if err == nil {
		return "done"
	}
	return err.Error()
}

func describe(p osc.Packet) string {
	switch t := p.(type) {
	case *osc.Message:
		return t.String()
	case *osc.Bundle:
		return fmt.Sprintf("#bundle with %d elements", len(t.Elements))
	default:
		return fmt.Sprintf("%T", p)
	}
}

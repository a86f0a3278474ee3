package server

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Session is one connected client.
type Session struct {
	ID uuid.UUID

	srv       *Server
	transport Transport
	out       *outbox
}

func newSession(srv *Server, t Transport) *Session {
	return &Session{
		ID:        uuid.New(),
		srv:       srv,
		transport: t,
		out:       newOutbox(),
	}
}

// RemoteAddr returns the client's network address.
func (s *Session) RemoteAddr() net.Addr {
	return s.transport.RemoteAddr()
}

// Send queues f for delivery to the client. It reports false once the
// session has ended.
func (s *Session) Send(f Frame) bool {
	return s.out.push(f)
}

// run serves the session until the client goes away, a read or write fails,
// or ctx is done. The returned error is what ended the session.
func (s *Session) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(s.readLoop)
	g.Go(func() error { return s.writeLoop(gctx) })
	if s.srv.cfg.Interval > 0 && s.srv.source != nil {
		g.Go(func() error { return s.emitLoop(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		s.out.close()
		if err := s.transport.Close(); err != nil {
			return errors.Wrap(err, "closing transport")
		}
		return nil
	})

	return g.Wait()
}

func (s *Session) readLoop() error {
	for {
		f, err := s.transport.ReadFrame()
		if err != nil {
			return err
		}
		s.srv.handleInbound(s, f)
	}
}

func (s *Session) writeLoop(ctx context.Context) error {
	for {
		f, err := s.out.pop(ctx)
		if err != nil {
			return nil
		}
		if err := s.transport.WriteFrame(f); err != nil {
			return errors.Wrap(err, "writing frame")
		}
	}
}

// emitLoop sends one generated packet right away and then one per interval.
func (s *Session) emitLoop(ctx context.Context) error {
	if err := s.emit(); err != nil {
		return err
	}

	ticker := time.NewTicker(s.srv.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.emit(); err != nil {
				return err
			}
		}
	}
}

func (s *Session) emit() error {
	p, err := s.srv.source()
	if err != nil {
		return errors.Wrap(err, "generating packet")
	}
	b, err := p.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encoding packet")
	}
	s.srv.logger.Printf("session %s: send random OSC packet (%d bytes) %s", s.ID, len(b), describe(p))
	s.Send(Frame{Binary: true, Data: b})
	return nil
}

// isNormalClose reports whether err is how a client ends a session on
// purpose.
func isNormalClose(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Cause(err) == io.EOF
}

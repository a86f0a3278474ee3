package server

import (
	"context"
	"sync"

	"github.com/eapache/queue"
	"github.com/pkg/errors"
)

var errOutboxClosed = errors.New("outbox closed")

// outbox is an unbounded FIFO of frames waiting to be written to a client.
// Any number of goroutines may push; one goroutine pops.
type outbox struct {
	mu     sync.Mutex
	q      *queue.Queue
	closed bool

	ready chan struct{}
}

func newOutbox() *outbox {
	return &outbox{q: queue.New(), ready: make(chan struct{}, 1)}
}

// push appends f. It reports false if the outbox is closed.
func (o *outbox) push(f Frame) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.q.Add(f)
	o.mu.Unlock()

	o.signal()
	return true
}

// pop removes the oldest frame, waiting for one if the outbox is empty.
// Frames pushed before close are still returned.
func (o *outbox) pop(ctx context.Context) (Frame, error) {
	for {
		o.mu.Lock()
		if o.q.Length() > 0 {
			f := o.q.Remove().(Frame)
			o.mu.Unlock()
			return f, nil
		}
		closed := o.closed
		o.mu.Unlock()

		if closed {
			return Frame{}, errOutboxClosed
		}
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-o.ready:
		}
	}
}

func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.signal()
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.q.Length()
}

func (o *outbox) signal() {
	select {
	case o.ready <- struct{}{}:
	default:
	}
}

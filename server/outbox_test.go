package server

import (
	"context"
	"testing"
	"time"
)

func TestOutboxOrder(t *testing.T) {
	o := newOutbox()
	for i := 0; i < 100; i++ {
		if !o.push(Frame{Binary: true, Data: []byte{byte(i)}}) {
			t.Fatalf("push(%d) = false", i)
		}
	}
	if o.len() != 100 {
		t.Errorf("len() = %d, want 100", o.len())
	}

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		f, err := o.pop(ctx)
		if err != nil {
			t.Fatalf("pop() unexpected error: %s", err)
		}
		if f.Data[0] != byte(i) {
			t.Fatalf("pop() = %d, want = %d", f.Data[0], i)
		}
	}
}

func TestOutboxClose(t *testing.T) {
	o := newOutbox()
	o.push(Frame{Data: []byte("last")})
	o.close()

	if o.push(Frame{Data: []byte("late")}) {
		t.Error("push() after close = true")
	}
	f, err := o.pop(context.Background())
	if err != nil || string(f.Data) != "last" {
		t.Errorf("pop() = %q, %v, want queued frame", f.Data, err)
	}
	if _, err := o.pop(context.Background()); err != errOutboxClosed {
		t.Errorf("pop() error = %v, want = %v", err, errOutboxClosed)
	}
}

func TestOutboxPopWaits(t *testing.T) {
	o := newOutbox()
	got := make(chan Frame, 1)
	go func() {
		f, err := o.pop(context.Background())
		if err == nil {
			got <- f
		}
	}()

	time.Sleep(10 * time.Millisecond)
	o.push(Frame{Data: []byte("wake")})
	select {
	case f := <-got:
		if string(f.Data) != "wake" {
			t.Errorf("pop() = %q", f.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pop() did not wake up")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.pop(ctx); err != context.Canceled {
		t.Errorf("pop() error = %v, want = %v", err, context.Canceled)
	}
}

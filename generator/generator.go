// Package generator builds synthetic OSC test packets.
package generator

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/showcontroller/oscws/osc"
)

// Default test data.
const (
	DefaultAddress = "/test"
	TestString     = "teststring"
	TestBlob       = "somebinarydatabumbum"

	// MaxRun is the largest number of int32, float32 and string arguments
	// in a generated message, per type.
	MaxRun = 3
	// MaxBlobs is the largest number of blob arguments in a generated
	// message.
	MaxBlobs = 1
	// MaxValue bounds generated numeric values.
	MaxValue = 9999

	// InnerDelay is how far the inner bundle's time tag lies after the
	// outer one in a generated bundle.
	InnerDelay = time.Second
)

// Generator produces random test messages and bundles. It is safe for
// concurrent use.
type Generator struct {
	// Address is the OSC address of generated messages.
	Address string
	// Now returns the time used for bundle time tags. Defaults to time.Now.
	Now func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a Generator seeded from the runtime's random source.
func New() *Generator {
	return NewSeeded(rand.Uint64(), rand.Uint64())
}

// NewSeeded returns a Generator with a deterministic sequence.
func NewSeeded(seed1, seed2 uint64) *Generator {
	return &Generator{
		Address: DefaultAddress,
		Now:     time.Now,
		rnd:     rand.New(rand.NewPCG(seed1, seed2)),
	}
}

// Message returns a message with 0 to MaxRun int32, float32 and string
// arguments and 0 to MaxBlobs blobs, in that order.
func (g *Generator) Message() *osc.Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	msg := osc.NewMessage(g.Address)
	for i := g.rnd.IntN(MaxRun + 1); i > 0; i-- {
		msg.Append(int32(g.rnd.IntN(MaxValue + 1)))
	}
	for i := g.rnd.IntN(MaxRun + 1); i > 0; i-- {
		msg.Append(g.rnd.Float32() * MaxValue)
	}
	for i := g.rnd.IntN(MaxRun + 1); i > 0; i-- {
		msg.Append(TestString)
	}
	for i := g.rnd.IntN(MaxBlobs + 1); i > 0; i-- {
		msg.Append([]byte(TestBlob))
	}
	return msg
}

// Bundle returns a bundle time tagged now that holds one message and a
// nested bundle, time tagged InnerDelay later, holding a second message.
func (g *Generator) Bundle() *osc.Bundle {
	now := g.Now()

	inner := osc.NewBundle(now.Add(InnerDelay))
	inner.Elements = append(inner.Elements, g.Message())

	outer := osc.NewBundle(now)
	outer.Elements = append(outer.Elements, g.Message(), inner)
	return outer
}

// Source returns the next packet to send to a client.
type Source func() (osc.Packet, error)

// MessageSource returns a Source emitting single messages.
func (g *Generator) MessageSource() Source {
	return func() (osc.Packet, error) { return g.Message(), nil }
}

// BundleSource returns a Source emitting nested bundles.
func (g *Generator) BundleSource() Source {
	return func() (osc.Packet, error) { return g.Bundle(), nil }
}

// Encode returns the next packet from src in its binary form.
func Encode(src Source) ([]byte, error) {
	p, err := src()
	if err != nil {
		return nil, errors.Wrap(err, "generating packet")
	}
	b, err := p.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "encoding packet")
	}
	return b, nil
}

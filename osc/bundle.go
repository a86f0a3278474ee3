package osc

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

const bundleTag = "#bundle"

// Bundle represents an OSC bundle. It consists of the OSC-string "#bundle"
// followed by an OSC Time Tag, followed by zero or more OSC bundle/message
// elements. Elements keep the order in which they were appended. See
// http://opensoundcontrol.org/spec-1_0 for more information.
type Bundle struct {
	Timetag  Timetag
	Elements []Packet
}

// Verify that Bundle implements the Packet interface.
var _ Packet = (*Bundle)(nil)

// NewBundle returns an OSC Bundle with a time tag for the given time.
func NewBundle(time time.Time) *Bundle {
	return &Bundle{Timetag: NewTimetag(time)}
}

// Append appends an OSC bundle or OSC message to the bundle.
func (b *Bundle) Append(pck Packet) error {
	switch t := pck.(type) {
	case *Bundle:
		if t == b {
			return errors.New("bundle can not contain itself")
		}
		b.Elements = append(b.Elements, t)

	case *Message:
		b.Elements = append(b.Elements, t)

	default:
		return errors.Errorf("unsupported OSC packet type %T: only Bundle and Message are supported", pck)
	}

	return nil
}

// Messages returns the messages directly contained in the bundle.
func (b *Bundle) Messages() []*Message {
	var msgs []*Message
	for _, e := range b.Elements {
		if m, ok := e.(*Message); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// Bundles returns the bundles directly contained in the bundle.
func (b *Bundle) Bundles() []*Bundle {
	var bundles []*Bundle
	for _, e := range b.Elements {
		if nb, ok := e.(*Bundle); ok {
			bundles = append(bundles, nb)
		}
	}
	return bundles
}

// MarshalBinary serializes the OSC bundle to a byte slice with the following
// format:
// 1. Bundle string: '#bundle'
// 2. OSC timetag
// 3. Length of first OSC bundle element
// 4. First bundle element
// 5. Length of n OSC bundle element
// 6. n bundle element
func (b *Bundle) MarshalBinary() ([]byte, error) {
	var data bytes.Buffer
	writePaddedString(bundleTag, &data)

	var word [8]byte
	binary.BigEndian.PutUint64(word[:], uint64(b.Timetag))
	data.Write(word[:])

	for i, e := range b.Elements {
		buf, err := e.MarshalBinary()
		if err != nil {
			return nil, errors.Wrapf(err, "encoding bundle element %d", i)
		}

		binary.BigEndian.PutUint32(word[:4], uint32(len(buf)))
		data.Write(word[:4])
		data.Write(buf)
	}

	return data.Bytes(), nil
}

// readBundle decodes a bundle occupying all of data.
func readBundle(data []byte) (*Bundle, error) {
	// Read the '#bundle' OSC string
	startTag, n, err := readPaddedString(data)
	if err != nil {
		return nil, errors.Wrap(err, "reading bundle tag")
	}
	if startTag != bundleTag {
		return nil, errors.Wrapf(ErrInvalidPacket, "invalid bundle start tag %q", startTag)
	}
	data = data[n:]

	if len(data) < 8 {
		return nil, errors.Wrap(ErrTruncated, "reading bundle time tag")
	}
	bundle := &Bundle{Timetag: Timetag(binary.BigEndian.Uint64(data))}
	data = data[8:]

	// Read until the end of the buffer
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, errors.Wrap(ErrTruncated, "reading bundle element size")
		}
		length := int(int32(binary.BigEndian.Uint32(data)))
		data = data[4:]
		if length < 0 || length > len(data) {
			return nil, errors.Wrapf(ErrTruncated, "invalid bundle element length %d", length)
		}

		pkt, err := readPacket(data[:length])
		if err != nil {
			return nil, err
		}
		if err := bundle.Append(pkt); err != nil {
			return nil, err
		}
		data = data[length:]
	}

	return bundle, nil
}

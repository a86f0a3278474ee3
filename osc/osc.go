package osc

import (
	"encoding"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Decoding errors. Errors returned by ParsePacket wrap one of these; use
// errors.Cause to inspect them.
var (
	ErrInvalidPacket  = errors.New("invalid OSC packet")
	ErrInvalidTypeTag = errors.New("unsupported OSC type tag")
	ErrTruncated      = errors.New("truncated OSC data")
)

// Packet is the interface for Message and Bundle.
type Packet interface {
	encoding.BinaryMarshaler
}

// ParsePacket decodes an OSC message or bundle from data.
func ParsePacket(data []byte) (Packet, error) {
	return readPacket(data)
}

// readPacket decodes a packet. The packet must occupy all of data.
func readPacket(data []byte) (Packet, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrInvalidPacket, "empty packet")
	}
	if len(data)%4 != 0 {
		return nil, errors.Wrapf(ErrInvalidPacket, "length %d is not a multiple of 4", len(data))
	}

	switch data[0] {
	case '/': // An OSC Message starts with a '/'
		return readMessage(data)
	case '#': // An OSC bundle starts with a '#'
		return readBundle(data)
	default:
		return nil, errors.Wrapf(ErrInvalidPacket, "unexpected leading byte %#x", data[0])
	}
}

// PrintMessage pretty prints a Message to the standard output.
func PrintMessage(msg *Message) {
	fmt.Println(msg.String())
}

// PrintPacket pretty prints a Message or a Bundle, including nested
// bundles, to the standard output.
func PrintPacket(p Packet) {
	FprintPacket(os.Stdout, p)
}

// FprintPacket is PrintPacket writing to w.
func FprintPacket(w io.Writer, p Packet) {
	printPacket(w, p, "")
}

func printPacket(w io.Writer, p Packet, indent string) {
	switch t := p.(type) {
	case *Message:
		fmt.Fprintf(w, "%s-- OSC Message: %s\n", indent, t)
	case *Bundle:
		fmt.Fprintf(w, "%s-- OSC Bundle @ %s:\n", indent, t.Timetag.Time().Format("15:04:05.000"))
		for _, e := range t.Elements {
			printPacket(w, e, indent+"  ")
		}
	default:
		fmt.Fprintf(w, "%s-- Unknown packet type %T\n", indent, p)
	}
}

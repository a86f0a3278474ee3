package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Message represents a single OSC message. An OSC message consists of an OSC
// address pattern and zero or more arguments.
type Message struct {
	Address   string
	Arguments []interface{}
}

// Verify that Message implements the Packet interface.
var _ Packet = (*Message)(nil)

// NewMessage returns a new Message. The address parameter is the OSC address.
func NewMessage(address string, args ...interface{}) *Message {
	return &Message{Address: address, Arguments: args}
}

// Append appends the given arguments to the arguments list.
func (msg *Message) Append(args ...interface{}) {
	msg.Arguments = append(msg.Arguments, args...)
}

// Equals determines if the given OSC Message b is equal to the current OSC Message.
// It checks if the OSC address and the arguments are equal. Returns, true if the
// current object and b are equal.
func (msg *Message) Equals(b *Message) bool {
	if msg == nil || b == nil {
		return msg == b
	}
	if msg.Address != b.Address {
		return false
	}
	if msg.CountArguments() != b.CountArguments() {
		return false
	}

	for i, arg := range msg.Arguments {
		switch t := arg.(type) {
		case []byte:
			other, ok := b.Arguments[i].([]byte)
			if !ok || !bytes.Equal(t, other) {
				return false
			}
		default:
			if arg != b.Arguments[i] {
				return false
			}
		}
	}

	return true
}

// Clear clears the OSC address and all arguments.
func (msg *Message) Clear() {
	msg.Address = ""
	msg.ClearData()
}

// ClearData removes all arguments from the OSC Message.
func (msg *Message) ClearData() {
	msg.Arguments = msg.Arguments[:0]
}

// Match returns true if the address pattern of the OSC Message matches the
// given address. Case sensitive!
func (msg *Message) Match(address string) bool {
	return getRegEx(msg.Address).MatchString(address)
}

// TypeTags returns the type tag string.
func (msg *Message) TypeTags() (string, error) {
	if msg == nil {
		return "", errors.New("message is nil")
	}

	tags := make([]byte, 1, len(msg.Arguments)+1)
	tags[0] = ','
	for _, arg := range msg.Arguments {
		tag, err := getTypeTag(arg)
		if err != nil {
			return "", err
		}
		tags = append(tags, tag)
	}

	return string(tags), nil
}

// CountArguments returns the number of arguments.
func (msg *Message) CountArguments() int {
	return len(msg.Arguments)
}

// String implements the fmt.Stringer interface.
func (msg *Message) String() string {
	if msg == nil {
		return ""
	}

	tags, err := msg.TypeTags()
	if err != nil {
		return msg.Address
	}

	var sb strings.Builder
	sb.WriteString(msg.Address)
	sb.WriteByte(' ')
	sb.WriteString(tags)

	for _, arg := range msg.Arguments {
		switch t := arg.(type) {
		case nil:
			sb.WriteString(" Nil")
		case []byte:
			fmt.Fprintf(&sb, " blob(%d)", len(t))
		case Timetag:
			fmt.Fprintf(&sb, " %d", t.TimeTag())
		default:
			fmt.Fprintf(&sb, " %v", t)
		}
	}

	return sb.String()
}

// MarshalBinary serializes the OSC message to a byte slice. The slice has
// the following format:
// 1. OSC Address Pattern
// 2. OSC Type Tag String
// 3. OSC Arguments
func (msg *Message) MarshalBinary() ([]byte, error) {
	if !strings.HasPrefix(msg.Address, "/") {
		return nil, errors.Errorf("invalid OSC address %q", msg.Address)
	}

	// Type tag string starts with ","
	typetags := []byte{','}

	// Process the type tags and collect all arguments
	var (
		payload bytes.Buffer
		word    [8]byte
	)
	for _, arg := range msg.Arguments {
		tag, err := getTypeTag(arg)
		if err != nil {
			return nil, err
		}
		typetags = append(typetags, tag)

		switch t := arg.(type) {
		case int32:
			binary.BigEndian.PutUint32(word[:4], uint32(t))
			payload.Write(word[:4])

		case float32:
			binary.BigEndian.PutUint32(word[:4], math.Float32bits(t))
			payload.Write(word[:4])

		case string:
			writePaddedString(t, &payload)

		case []byte:
			writeBlob(t, &payload)

		case int64:
			binary.BigEndian.PutUint64(word[:], uint64(t))
			payload.Write(word[:])

		case float64:
			binary.BigEndian.PutUint64(word[:], math.Float64bits(t))
			payload.Write(word[:])

		case Timetag:
			binary.BigEndian.PutUint64(word[:], uint64(t))
			payload.Write(word[:])
		}
	}

	var data bytes.Buffer
	writePaddedString(msg.Address, &data)
	writePaddedString(string(typetags), &data)
	data.Write(payload.Bytes())

	return data.Bytes(), nil
}

// readMessage decodes one OSC message occupying all of data.
func readMessage(data []byte) (*Message, error) {
	// First, read the OSC address
	address, n, err := readPaddedString(data)
	if err != nil {
		return nil, errors.Wrap(err, "reading address")
	}
	data = data[n:]

	msg := NewMessage(address)

	// Messages without a type tag string are tolerated by OSC 1.0 decoders.
	if len(data) == 0 {
		return msg, nil
	}
	if err := readArguments(msg, data); err != nil {
		return nil, errors.Wrapf(err, "reading arguments of %s", address)
	}
	return msg, nil
}

// readArguments reads the type tag string and all arguments from data and
// adds them to the OSC message.
func readArguments(msg *Message, data []byte) error {
	typetags, n, err := readPaddedString(data)
	if err != nil {
		return errors.Wrap(err, "reading type tags")
	}
	data = data[n:]

	// If the typetag doesn't start with ',', it's not valid
	if len(typetags) == 0 || typetags[0] != ',' {
		return errors.Wrapf(ErrInvalidTypeTag, "type tag string %q", typetags)
	}

	need := func(size int) error {
		if len(data) < size {
			return errors.Wrapf(ErrTruncated, "need %d bytes, have %d", size, len(data))
		}
		return nil
	}

	for _, c := range typetags[1:] {
		switch c {
		default:
			return errors.Wrapf(ErrInvalidTypeTag, "type tag %q", c)

		case 'i':
			if err := need(4); err != nil {
				return err
			}
			msg.Append(int32(binary.BigEndian.Uint32(data)))
			data = data[4:]

		case 'h':
			if err := need(8); err != nil {
				return err
			}
			msg.Append(int64(binary.BigEndian.Uint64(data)))
			data = data[8:]

		case 'f':
			if err := need(4); err != nil {
				return err
			}
			msg.Append(math.Float32frombits(binary.BigEndian.Uint32(data)))
			data = data[4:]

		case 'd':
			if err := need(8); err != nil {
				return err
			}
			msg.Append(math.Float64frombits(binary.BigEndian.Uint64(data)))
			data = data[8:]

		case 's':
			s, n, err := readPaddedString(data)
			if err != nil {
				return err
			}
			msg.Append(s)
			data = data[n:]

		case 'b':
			blob, n, err := readBlob(data)
			if err != nil {
				return err
			}
			msg.Append(blob)
			data = data[n:]

		case 't':
			if err := need(8); err != nil {
				return err
			}
			msg.Append(Timetag(binary.BigEndian.Uint64(data)))
			data = data[8:]

		case 'N':
			msg.Append(nil)

		case 'T':
			msg.Append(true)

		case 'F':
			msg.Append(false)
		}
	}

	if len(data) != 0 {
		return errors.Errorf("%d trailing bytes after arguments", len(data))
	}
	return nil
}

// getTypeTag returns the OSC type tag for the given argument.
func getTypeTag(arg interface{}) (byte, error) {
	switch t := arg.(type) {
	case bool:
		if t {
			return 'T', nil
		}
		return 'F', nil
	case nil:
		return 'N', nil
	case int32:
		return 'i', nil
	case float32:
		return 'f', nil
	case string:
		return 's', nil
	case []byte:
		return 'b', nil
	case int64:
		return 'h', nil
	case float64:
		return 'd', nil
	case Timetag:
		return 't', nil
	default:
		return 0, errors.Errorf("unsupported type: %T", t)
	}
}

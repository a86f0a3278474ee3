package osc

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

////
// De/Encoding functions
////

// readBlob reads an OSC blob from data. It returns the blob contents and the
// number of bytes consumed, padding included.
func readBlob(data []byte) ([]byte, int, error) {
	if len(data) < 4 {
		return nil, 0, errors.Wrap(ErrTruncated, "reading blob length")
	}
	blobLen := int(int32(binary.BigEndian.Uint32(data)))
	if blobLen < 0 || blobLen > len(data)-4 {
		return nil, 0, errors.Wrapf(ErrTruncated, "invalid blob length %d", blobLen)
	}
	n := 4 + blobLen
	n += padBytesNeeded(n)
	if n > len(data) {
		return nil, 0, errors.Wrap(ErrTruncated, "reading blob padding")
	}

	blob := make([]byte, blobLen)
	copy(blob, data[4:4+blobLen])
	return blob, n, nil
}

// writeBlob writes the data byte array as an OSC blob into buff. If the length of
// data isn't 32-bit aligned, padding bytes will be added.
func writeBlob(data []byte, buff *bytes.Buffer) int {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(data)))
	buff.Write(size[:])
	buff.Write(data)

	n := 4 + len(data)
	pad := padBytesNeeded(n)
	buff.Write(zeros[:pad])
	return n + pad
}

// readPaddedString reads a NUL terminated, padded string from data. It returns
// the string and the number of bytes consumed, padding included.
func readPaddedString(data []byte) (string, int, error) {
	pos := bytes.IndexByte(data, 0)
	if pos == -1 {
		return "", 0, errors.Wrap(ErrTruncated, "string is not terminated")
	}
	n := pos + 1
	n += padBytesNeeded(n)
	if n > len(data) {
		return "", 0, errors.Wrap(ErrTruncated, "reading string padding")
	}
	return string(data[:pos]), n, nil
}

// writePaddedString writes a string with its terminating NUL and the padding
// bytes to buff. Returns the number of written bytes.
func writePaddedString(str string, buff *bytes.Buffer) int {
	buff.WriteString(str)
	n := len(str) + 1
	pad := padBytesNeeded(n)
	buff.Write(zeros[:pad+1])
	return n + pad
}

// padBytesNeeded determines how many bytes are needed to fill up to the next 4
// byte boundary.
func padBytesNeeded(elementLen int) int {
	return (4 - elementLen%4) % 4
}

var zeros [4]byte

package osc

import (
	"encoding/binary"
	"time"
)

const (
	// TimetagImmediate is the time tag value consisting of 63 zero bits
	// followed by a one in the least significant bit. It is a special case
	// meaning "immediately."
	TimetagImmediate = Timetag(1)

	secondsFrom1900To1970 = 2208988800
)

// Timetag represents an OSC Time Tag.
// An OSC Time Tag is defined as follows:
// Time tags are represented by a 64 bit fixed point number. The first 32 bits
// specify the number of seconds since midnight on January 1, 1900, and the
// last 32 bits specify fractional parts of a second to a precision of about
// 200 picoseconds. This is the representation used by Internet NTP timestamps.
type Timetag uint64

// NewTimetag returns a new OSC time tag for the given time.
func NewTimetag(timeStamp time.Time) Timetag {
	return Timetag(timeToTimetag(timeStamp))
}

// Time returns the time.
func (t Timetag) Time() time.Time {
	return timetagToTime(uint64(t))
}

// FractionalSecond returns the last 32 bits of the OSC time tag. Specifies the
// fractional part of a second.
func (t Timetag) FractionalSecond() uint32 {
	return uint32(t)
}

// SecondsSinceEpoch returns the first 32 bits (the number of seconds since
// midnight 1900) of the OSC time tag.
func (t Timetag) SecondsSinceEpoch() uint32 {
	return uint32(t >> 32)
}

// TimeTag returns the time tag value.
func (t Timetag) TimeTag() uint64 {
	return uint64(t)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (t Timetag) MarshalBinary() ([]byte, error) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t))
	return b, nil
}

// ExpiresIn calculates the duration until the time tag is due. It returns
// zero if the time tag is in the past or means "immediately".
func (t Timetag) ExpiresIn() time.Duration {
	if t <= TimetagImmediate {
		return 0
	}

	d := time.Until(t.Time())
	if d <= 0 {
		return 0
	}
	return d
}

////
// Timetag utility functions
////

// timeToTimetag converts the given time to an OSC time tag. The fraction is
// scaled from nanoseconds to units of 2^-32 seconds.
func timeToTimetag(t time.Time) uint64 {
	secs := uint64(t.Unix()+secondsFrom1900To1970) << 32
	frac := (uint64(t.Nanosecond()) << 32) / uint64(time.Second)
	return secs | frac
}

// timetagToTime converts the given time tag to a time object.
func timetagToTime(timetag uint64) time.Time {
	secs := int64(timetag>>32) - secondsFrom1900To1970
	nsec := int64(((timetag & 0xffffffff) * uint64(time.Second)) >> 32)
	return time.Unix(secs, nsec)
}

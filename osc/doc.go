// Copyright 2013 - 2015 Sebastian Ruml <sebastian.ruml@gmail.com>

/*
Package osc encodes, decodes and dispatches OpenSoundControl packets.

The implementation is based on the Open Sound Control 1.0 Specification
(http://opensoundcontrol.org/spec-1_0). It is transport independent: packets
are plain byte slices that can travel in UDP datagrams, WebSocket frames or,
using StreamConn, SLIP framed TCP streams.

Features:
- Supports OSC messages with 'i' (Int32), 'f' (Float32),
  's' (string), 'b' (blob / binary data), 'h' (Int64), 't' (OSC timetag),
  'd' (Double/float64), 'T' (True), 'F' (False), 'N' (Nil) types.
- OSC bundles, including timetags and nested bundles
- Support for OSC address patterns including '*', '?' and '{,}' wildcards

An OSC packet consists of its contents, a contiguous block of binary data,
and its size, the number of 8-bit bytes that comprise the contents. The
size of an OSC packet is always a multiple of 4.

OSC packets come in two flavors:

OSC Messages: An OSC message consists of an OSC address pattern, followed
by an OSC Type Tag String, and finally by zero or more OSC arguments.

OSC Bundles: An OSC Bundle consists of the string "#bundle" followed
by an OSC Time Tag, followed by zero or more OSC bundle elements. Each bundle
element can be another OSC bundle (note this recursive definition: bundle may
contain bundles) or OSC message.

An OSC bundle element consists of its size and its contents. The size is
an int32 representing the number of 8-bit bytes in the contents, and will
always be a multiple of 4.

Usage

Encoding:

    msg := osc.NewMessage("/osc/address")
    msg.Append(int32(111))
    msg.Append(true)
    msg.Append("hello")
    data, err := msg.MarshalBinary()

Decoding and dispatching:

    d := osc.NewStandardDispatcher()
    d.AddMsgHandler("/osc/address", func(msg *osc.Message) {
        osc.PrintMessage(msg)
    })

    packet, err := osc.ParsePacket(data)
    if err == nil {
        d.Dispatch(packet)
    }
*/
package osc

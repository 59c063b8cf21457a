// Package protocol implements the wire protocol spoken with the
// multiplexer's control API: a length-delimited frame layer and the
// JSON envelope messages carried inside frames.
//
// The codec is pure: encoding and decoding never perform I/O and never
// panic on arbitrary input. Optional message fields use pointer types
// so that an absent field is distinguishable from a default-valued one.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// The control channel carries exactly one frame type; anything else in
// the type byte means the stream is corrupt or the peer speaks a newer
// protocol revision. WebSocket transports carry the payload as one
// binary message and omit the header entirely.
const (
	FrameEnvelope byte   = 0x00
	MaxPayload    uint32 = 16 * 1024 * 1024 // 16 MB

	headerLen = 5 // type byte + u32 payload length
)

// Frame is one complete unit of the raw socket protocol.
// Wire format: [type:u8][length:u32 BE][payload]
type Frame struct {
	Type    byte
	Payload []byte
}

// ReadFrame consumes one frame from r. A stream that ends before the
// header yields (nil, nil): the peer hung up between frames, which is
// not an error at this layer. The payload length is validated before
// any allocation, so a corrupt header cannot trigger a huge make.
func ReadFrame(r io.Reader) (*Frame, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil
		}
		return nil, fmt.Errorf("frame header: %w", err)
	}

	if header[0] != FrameEnvelope {
		return nil, fmt.Errorf("frame type 0x%02x is not a control envelope", header[0])
	}
	length := binary.BigEndian.Uint32(header[1:])
	if length > MaxPayload {
		return nil, fmt.Errorf("frame of %d bytes is too large (limit %d)", length, MaxPayload)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("frame payload: %w", err)
	}
	return &Frame{Type: header[0], Payload: payload}, nil
}

// WriteFrame emits f to w as a single Write, header and payload
// together, so a frame never appears partially on the wire even when
// w is an unbuffered connection.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > int(MaxPayload) {
		return fmt.Errorf("frame of %d bytes is too large (limit %d)", len(f.Payload), MaxPayload)
	}

	wire := make([]byte, headerLen+len(f.Payload))
	wire[0] = f.Type
	binary.BigEndian.PutUint32(wire[1:headerLen], uint32(len(f.Payload)))
	copy(wire[headerLen:], f.Payload)

	if _, err := w.Write(wire); err != nil {
		return fmt.Errorf("frame write: %w", err)
	}
	return nil
}

// Package watch speaks the Pebble smartwatch protocol over a Bluetooth
// RFCOMM serial link. The watch acts as a wearable remote: button presses
// arrive as app messages, voice dictation streams in as opus packets, and
// results go back as notifications.
package watch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Protocol endpoints. Each frame on the wire is addressed to one of these.
const (
	EndpointAppMessage   uint16 = 48
	EndpointPing         uint16 = 2001
	EndpointNotification uint16 = 3000
	EndpointAudioStream  uint16 = 10000
	EndpointVoiceControl uint16 = 11000
)

// MaxPayload is the largest payload the transport accepts. Matches the
// watch's receive buffer.
const MaxPayload = 2048

// Sentinel errors for framing faults.
var (
	// ErrPayloadTooLarge is returned when a frame exceeds MaxPayload.
	ErrPayloadTooLarge = errors.New("watch: payload too large")

	// ErrShortFrame is returned when a payload is too small for its
	// endpoint's message format.
	ErrShortFrame = errors.New("watch: short frame")
)

// Frame is one protocol message: a big-endian uint16 payload length, a
// big-endian uint16 endpoint, then the payload.
type Frame struct {
	Endpoint uint16
	Payload  []byte
}

// EncodeFrame serializes a frame to wire format.
func EncodeFrame(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}

	buf := make([]byte, 4+len(f.Payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(f.Payload)))
	binary.BigEndian.PutUint16(buf[2:4], f.Endpoint)
	copy(buf[4:], f.Payload)
	return buf, nil
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, err
	}

	length := binary.BigEndian.Uint16(header[0:2])
	endpoint := binary.BigEndian.Uint16(header[2:4])
	if length > MaxPayload {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, fmt.Errorf("watch: read payload: %w", err)
	}

	return Frame{Endpoint: endpoint, Payload: payload}, nil
}

// WriteFrame writes one frame to w.
func WriteFrame(w io.Writer, f Frame) error {
	buf, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("watch: write frame: %w", err)
	}
	return nil
}

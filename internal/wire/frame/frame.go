// Package frame implements the stream layer of the wire protocol:
// a two-byte preamble, a big-endian length, then the payload. The
// decoder tolerates arbitrary chunk boundaries and resynchronizes
// after corruption by discarding a single preamble byte and
// rescanning.
package frame

import (
	"encoding/binary"
	"errors"
)

const (
	// Preamble bytes opening every frame.
	PreambleA byte = 0x94
	PreambleB byte = 0xC3

	// HeaderLen is preamble plus the 2-byte length.
	HeaderLen = 4

	// MaxPayload bounds one frame payload; a larger advertised
	// length is treated as corruption.
	MaxPayload = 512
)

var ErrPayloadTooLarge = errors.New("frame: payload too large")

// Encode wraps payload into one wire frame.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) == 0 || len(payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, HeaderLen+len(payload))
	buf[0] = PreambleA
	buf[1] = PreambleB
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(payload)))
	copy(buf[HeaderLen:], payload)
	return buf, nil
}

// Decoder reassembles frames from an arbitrarily chunked byte stream.
// Push appends received bytes; Peek exposes the next syntactically
// complete payload without consuming it. The caller either Commits
// the frame after a successful payload decode or Rejects it, which
// drops only the preamble byte so scanning resumes one byte later.
type Decoder struct {
	buf []byte
}

// Push appends raw received bytes to the reassembly buffer.
func (d *Decoder) Push(p []byte) {
	d.buf = append(d.buf, p...)
}

// Peek scans for the next complete frame and returns its payload.
// It never blocks; ok is false when more bytes are needed. Bytes
// preceding the preamble are discarded.
func (d *Decoder) Peek() ([]byte, bool) {
	for {
		start := d.scanPreamble()
		if start < 0 {
			// No preamble candidate anywhere; drop the noise.
			d.buf = nil
			return nil, false
		}
		// Drop garbage before the preamble so Reject only ever
		// needs to skip one byte.
		if start > 0 {
			d.buf = d.buf[start:]
		}
		if len(d.buf) < HeaderLen {
			return nil, false
		}
		n := int(binary.BigEndian.Uint16(d.buf[2:4]))
		if n == 0 || n > MaxPayload {
			d.buf = d.buf[1:]
			continue
		}
		if len(d.buf) < HeaderLen+n {
			return nil, false
		}
		return d.buf[HeaderLen : HeaderLen+n], true
	}
}

// Commit consumes the frame most recently returned by Peek.
func (d *Decoder) Commit() {
	n := int(binary.BigEndian.Uint16(d.buf[2:4]))
	d.buf = d.buf[HeaderLen+n:]
}

// Reject discards the current preamble byte and rescans, recovering
// from a frame whose payload failed to decode.
func (d *Decoder) Reject() {
	if len(d.buf) > 0 {
		d.buf = d.buf[1:]
	}
}

// Buffered reports how many bytes await reassembly.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) scanPreamble() int {
	for i := 0; i < len(d.buf); i++ {
		if d.buf[i] != PreambleA {
			continue
		}
		if i+1 >= len(d.buf) {
			// Possible preamble split across chunks; keep it.
			return i
		}
		if d.buf[i+1] == PreambleB {
			return i
		}
	}
	return -1
}

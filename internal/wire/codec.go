package wire

import (
	"github.com/rs/zerolog/log"

	"github.com/danmuck/meshctl/internal/wire/frame"
)

// Codec converts the raw byte stream into decoded envelopes and back.
// Push appends received bytes; Next drains one decodable envelope if
// available and never blocks. A payload that fails envelope decode is
// rejected at the frame layer, which skips a single preamble byte and
// rescans, so one corrupt frame never desynchronizes the stream.
type Codec struct {
	dec frame.Decoder
}

// NewCodec returns an empty codec ready for Push.
func NewCodec() *Codec {
	return &Codec{}
}

// Push appends raw transport bytes to the reassembly buffer.
func (c *Codec) Push(p []byte) {
	c.dec.Push(p)
}

// Next returns the next complete envelope, or ok=false when more
// bytes are needed.
func (c *Codec) Next() (*Envelope, bool) {
	for {
		payload, ok := c.dec.Peek()
		if !ok {
			return nil, false
		}
		env, err := DecodeEnvelope(payload)
		if err != nil {
			log.Debug().Err(err).Int("len", len(payload)).Msg("wire: rejecting frame")
			c.dec.Reject()
			continue
		}
		c.dec.Commit()
		return env, true
	}
}

// EncodeFrame serializes env and wraps it into one wire frame,
// suitable for a single atomic transport write.
func EncodeFrame(env *Envelope) ([]byte, error) {
	payload, err := EncodeEnvelope(env)
	if err != nil {
		return nil, err
	}
	return frame.Encode(payload)
}

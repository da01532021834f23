package wire

import "encoding/binary"

// EncodeEnvelope serializes env into one frame payload: the fixed
// envelope header followed by the TLV fields.
func EncodeEnvelope(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, ErrInvalidLength
	}
	if _, ok := schemas[env.Kind]; !ok {
		return nil, ErrUnknownKind
	}

	total := EnvelopeHeaderLen
	for _, f := range env.Fields {
		if len(f.Value) > int(^uint32(0)) {
			return nil, ErrInvalidLength
		}
		total += fieldHeaderLen + len(f.Value)
	}

	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:4], env.ID)
	binary.BigEndian.PutUint32(buf[4:8], env.From)
	binary.BigEndian.PutUint32(buf[8:12], env.To)
	buf[12] = env.Channel
	buf[13] = byte(env.Kind)

	offset := EnvelopeHeaderLen
	for _, f := range env.Fields {
		binary.BigEndian.PutUint16(buf[offset:offset+2], f.ID)
		buf[offset+2] = byte(f.Type)
		binary.BigEndian.PutUint32(buf[offset+3:offset+7], uint32(len(f.Value)))
		offset += fieldHeaderLen
		copy(buf[offset:], f.Value)
		offset += len(f.Value)
	}
	return buf, nil
}

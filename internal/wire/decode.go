package wire

import "encoding/binary"

// DecodeEnvelope parses one frame payload into an Envelope. The kind
// must be known and the fields must satisfy the kind's schema; any
// failure here is treated by the stream codec as frame corruption.
func DecodeEnvelope(payload []byte) (*Envelope, error) {
	if len(payload) < EnvelopeHeaderLen {
		return nil, ErrTruncated
	}

	env := &Envelope{
		ID:      binary.BigEndian.Uint32(payload[0:4]),
		From:    binary.BigEndian.Uint32(payload[4:8]),
		To:      binary.BigEndian.Uint32(payload[8:12]),
		Channel: payload[12],
		Kind:    Kind(payload[13]),
	}
	if _, ok := schemas[env.Kind]; !ok {
		return nil, ErrUnknownKind
	}

	fields, err := parseFields(payload[EnvelopeHeaderLen:])
	if err != nil {
		return nil, err
	}
	env.Fields = fields

	if err := ValidateKind(env.Kind, env.Fields); err != nil {
		return nil, err
	}
	return env, nil
}

func parseFields(payload []byte) ([]Field, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	fields := make([]Field, 0, 4)
	for offset := 0; offset < len(payload); {
		remaining := len(payload) - offset
		if remaining < fieldHeaderLen {
			return nil, ErrTruncated
		}
		id := binary.BigEndian.Uint16(payload[offset : offset+2])
		ft := FieldType(payload[offset+2])
		length := binary.BigEndian.Uint32(payload[offset+3 : offset+7])
		offset += fieldHeaderLen
		if length > uint32(len(payload)-offset) {
			return nil, ErrInvalidLength
		}
		if length == 0 {
			fields = append(fields, Field{ID: id, Type: ft})
			continue
		}
		end := offset + int(length)
		value := make([]byte, length)
		copy(value, payload[offset:end])
		fields = append(fields, Field{ID: id, Type: ft, Value: value})
		offset = end
	}
	return fields, nil
}

package wire

import "errors"

var (
	ErrTruncated         = errors.New("wire: truncated data")
	ErrInvalidLength     = errors.New("wire: invalid length")
	ErrUnknownKind       = errors.New("wire: unknown envelope kind")
	ErrFieldTypeMismatch = errors.New("wire: field type mismatch")
	ErrKindMismatch      = errors.New("wire: envelope kind mismatch")
	ErrMissingField      = errors.New("wire: missing required field")
)

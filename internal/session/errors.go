package session

import "errors"

var (
	// ErrTimedOut means the device never answered within the request deadline.
	ErrTimedOut = errors.New("session: request timed out")
	// ErrDisconnected means the link dropped while the request was in flight.
	ErrDisconnected = errors.New("session: disconnected")
	// ErrCancelled means the caller abandoned the request.
	ErrCancelled = errors.New("session: request cancelled")
	// ErrNotReady means the handshake has not completed yet.
	ErrNotReady = errors.New("session: device not ready")
	// ErrClosed means the session was shut down by the caller.
	ErrClosed = errors.New("session: closed")
	// ErrHandshake means the device never confirmed our config nonce.
	ErrHandshake = errors.New("session: handshake failed")
)

package h1x

import "errors"

var (
	// ErrNotReady is a suspension signal, not a failure: the stream (or
	// an outbound body source) has no bytes available right now and the
	// caller should poll again once it is ready.
	ErrNotReady = errors.New("h1x: not ready")

	ErrMalformedHead      = errors.New("h1x: malformed head")
	ErrHeadTooLarge       = errors.New("h1x: head too large")
	ErrTooManyHeaders     = errors.New("h1x: too many header fields")
	ErrConflictingFraming = errors.New("h1x: conflicting framing headers")
	ErrBodyLengthMismatch = errors.New("h1x: body length mismatch")
	ErrClosed             = errors.New("h1x: connection closed")
)

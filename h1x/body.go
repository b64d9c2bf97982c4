package h1x

import (
	"io"
	"sync"
)

// BodyKind identifies one of the three body transfer strategies.
type BodyKind int

const (
	// BodyBuffered holds the whole payload in memory.
	BodyBuffered BodyKind = iota
	// BodyExactSize streams a payload whose total length is known up
	// front; the engine transfers exactly that many bytes.
	BodyExactSize
	// BodyStreaming streams a payload of unknown total length, framed
	// with chunked transfer encoding on the wire.
	BodyStreaming
)

// Body is an HTTP message payload in exactly one of three variants.
// The variant chosen for an outgoing message determines the framing
// header the engine emits: Content-Length for Buffered and ExactSize,
// Transfer-Encoding: chunked for Streaming. Ownership of the
// underlying source transfers with the Body value and is never shared.
type Body struct {
	kind   BodyKind
	buf    []byte
	off    int
	length int64
	src    io.Reader
}

// BufferedBody returns a Body holding b in memory.
func BufferedBody(b []byte) *Body {
	return &Body{kind: BodyBuffered, buf: b, length: int64(len(b))}
}

// ExactSizeBody returns a Body that reads exactly length bytes from
// src. The engine fails the connection with ErrBodyLengthMismatch if
// src yields more or fewer bytes than declared.
func ExactSizeBody(length int64, src io.Reader) *Body {
	return &Body{kind: BodyExactSize, length: length, src: src}
}

// StreamingBody returns a Body of unknown length. Each read from src
// becomes one wire chunk; io.EOF terminates the body with a zero-size
// chunk. src may return ErrNotReady to suspend the connection without
// blocking it.
func StreamingBody(src io.Reader) *Body {
	return &Body{kind: BodyStreaming, length: -1, src: src}
}

// Kind returns the active variant.
func (b *Body) Kind() BodyKind { return b.kind }

// Len returns the declared payload length, or -1 for Streaming.
func (b *Body) Len() int64 {
	if b == nil {
		return 0
	}
	return b.length
}

// Read yields payload bytes. For inbound bodies it blocks until the
// connection driver has fed more decoded bytes or the body ends.
func (b *Body) Read(p []byte) (int, error) {
	if b == nil {
		return 0, io.EOF
	}
	switch b.kind {
	case BodyBuffered:
		if b.off >= len(b.buf) {
			return 0, io.EOF
		}
		n := copy(p, b.buf[b.off:])
		b.off += n
		return n, nil
	default:
		if b.src == nil {
			return 0, io.EOF
		}
		return b.src.Read(p)
	}
}

// Close releases interest in the remaining payload. For inbound bodies
// the connection keeps draining the wire so a persistent connection
// stays synchronized for the next exchange.
func (b *Body) Close() error {
	if b == nil {
		return nil
	}
	if h, ok := b.src.(*bodyHandle); ok {
		h.abandon()
	}
	if c, ok := b.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// defaultBodyHighWater bounds how many decoded-but-unread bytes the
// driver buffers for a slow Service before it stops feeding.
const defaultBodyHighWater = 256 << 10

// bodyHandle carries decoded inbound payload from the connection
// driver to the Service. The driver pushes without blocking; the
// Service side blocks in Read until bytes or the end of the body
// arrive. Exactly one goroutine sits on each side.
type bodyHandle struct {
	mu        sync.Mutex
	cond      *sync.Cond
	buf       []byte
	done      bool
	err       error
	abandoned bool
	highWater int
}

func newBodyHandle() *bodyHandle {
	h := &bodyHandle{highWater: defaultBodyHighWater}
	h.cond = sync.NewCond(&h.mu)
	return h
}

func (h *bodyHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for len(h.buf) == 0 && !h.done {
		h.cond.Wait()
	}
	if len(h.buf) == 0 {
		if h.err != nil {
			return 0, h.err
		}
		return 0, io.EOF
	}
	n := copy(p, h.buf)
	h.buf = h.buf[n:]
	return n, nil
}

// push hands decoded payload bytes to the reader. Bytes pushed after
// abandon are discarded.
func (h *bodyHandle) push(p []byte) {
	if len(p) == 0 {
		return
	}
	h.mu.Lock()
	if !h.abandoned {
		h.buf = append(h.buf, p...)
	}
	h.mu.Unlock()
	h.cond.Broadcast()
}

// finish marks the end of the body. A nil err means a clean end.
func (h *bodyHandle) finish(err error) {
	h.mu.Lock()
	h.done = true
	if h.err == nil {
		h.err = err
	}
	h.mu.Unlock()
	h.cond.Broadcast()
}

// abandon marks the reader as gone; further pushes are discarded and
// pending reads observe the end of the body.
func (h *bodyHandle) abandon() {
	h.mu.Lock()
	h.abandoned = true
	h.done = true
	h.buf = nil
	h.mu.Unlock()
	h.cond.Broadcast()
}

// wantMore reports whether the driver should keep decoding into the
// handle, applying backpressure when the reader falls behind.
func (h *bodyHandle) wantMore() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.abandoned || len(h.buf) < h.highWater
}

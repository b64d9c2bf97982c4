package h1x

import (
	"context"
	"io"
	"net"
	"sync"
)

// Stream is the duplex byte-stream capability the engine drives. The
// engine never opens or accepts connections itself; a transport layer
// supplies the stream (a TCP or TLS-terminated socket, or an in-memory
// pipe in tests).
//
// Read and Write may either block until ready, or return ErrNotReady
// to signal that no progress is possible yet; the engine propagates
// that as a suspension, never as a failure. Write may accept fewer
// bytes than offered.
type Stream interface {
	io.ReadWriteCloser
}

// ReadyWaiter is an optional Stream extension: WaitReady blocks until
// the stream may have become readable or writable again. Run uses it
// to park a suspended connection instead of spinning.
type ReadyWaiter interface {
	WaitReady(ctx context.Context) error
}

// NetStream adapts a net.Conn. Reads and writes block, so a connection
// driven over a NetStream only ever suspends on Service progress, not
// on stream readiness.
func NetStream(c net.Conn) Stream { return netStream{c} }

type netStream struct{ net.Conn }

// MemStream is an in-memory Stream with explicit, test-controlled
// readiness: reads return ErrNotReady until input is fed, writes can
// be paused. It exercises every suspension path deterministically.
type MemStream struct {
	mu        sync.Mutex
	cond      *sync.Cond
	in        []byte
	out       []byte
	inClosed  bool
	closed    bool
	writeHold bool
	gen       uint64 // bumped on every readiness change
}

// NewMemStream returns an open MemStream with no buffered input.
func NewMemStream() *MemStream {
	s := &MemStream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *MemStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if len(s.in) == 0 {
		if s.inClosed {
			return 0, io.EOF
		}
		return 0, ErrNotReady
	}
	n := copy(p, s.in)
	s.in = s.in[n:]
	return n, nil
}

func (s *MemStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.writeHold {
		return 0, ErrNotReady
	}
	s.out = append(s.out, p...)
	return len(p), nil
}

func (s *MemStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.gen++
	s.mu.Unlock()
	s.cond.Broadcast()
	return nil
}

// WaitReady parks until readiness changes: input arrives, a write hold
// is released, or a side closes. Returns immediately when buffered
// input is already waiting.
func (s *MemStream) WaitReady(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.cond.Broadcast()
		case <-done:
		}
	}()
	s.mu.Lock()
	start := s.gen
	for s.gen == start && len(s.in) == 0 && !s.inClosed && !s.closed && ctx.Err() == nil {
		s.cond.Wait()
	}
	s.mu.Unlock()
	close(done)
	return ctx.Err()
}

// Feed appends bytes to the input side.
func (s *MemStream) Feed(p []byte) {
	s.mu.Lock()
	s.in = append(s.in, p...)
	s.gen++
	s.mu.Unlock()
	s.cond.Broadcast()
}

// CloseInput marks the input side as finished; reads observe io.EOF
// once buffered input is drained.
func (s *MemStream) CloseInput() {
	s.mu.Lock()
	s.inClosed = true
	s.gen++
	s.mu.Unlock()
	s.cond.Broadcast()
}

// HoldWrites makes Write return ErrNotReady until released.
func (s *MemStream) HoldWrites(hold bool) {
	s.mu.Lock()
	s.writeHold = hold
	s.gen++
	s.mu.Unlock()
	s.cond.Broadcast()
}

// TakeOutput returns and clears everything written so far.
func (s *MemStream) TakeOutput() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.out
	s.out = nil
	return out
}

// Output returns a copy of everything written so far.
func (s *MemStream) Output() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.out...)
}

// Closed reports whether Close was called.
func (s *MemStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

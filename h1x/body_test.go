package h1x

import (
	"io"
	"strings"
	"testing"
	"time"
)

func TestBufferedBody(t *testing.T) {
	b := BufferedBody([]byte("hello"))
	if b.Kind() != BodyBuffered || b.Len() != 5 {
		t.Fatalf("kind=%v len=%d", b.Kind(), b.Len())
	}
	got, err := io.ReadAll(b)
	if err != nil || string(got) != "hello" {
		t.Fatalf("read %q err=%v", got, err)
	}
}

func TestExactSizeBody(t *testing.T) {
	b := ExactSizeBody(3, strings.NewReader("abc"))
	if b.Kind() != BodyExactSize || b.Len() != 3 {
		t.Fatalf("kind=%v len=%d", b.Kind(), b.Len())
	}
}

func TestStreamingBodyLen(t *testing.T) {
	b := StreamingBody(strings.NewReader("x"))
	if b.Len() != -1 {
		t.Fatalf("len=%d", b.Len())
	}
}

func TestNilBody(t *testing.T) {
	var b *Body
	if b.Len() != 0 {
		t.Fatal("nil Len")
	}
	if _, err := b.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("nil Read: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestBodyHandleDeliversAcrossGoroutines(t *testing.T) {
	h := newBodyHandle()
	go func() {
		h.push([]byte("hel"))
		time.Sleep(time.Millisecond)
		h.push([]byte("lo"))
		h.finish(nil)
	}()
	got, err := io.ReadAll(StreamingBody(h))
	if err != nil || string(got) != "hello" {
		t.Fatalf("read %q err=%v", got, err)
	}
}

func TestBodyHandleFinishError(t *testing.T) {
	h := newBodyHandle()
	h.push([]byte("partial"))
	h.finish(io.ErrUnexpectedEOF)

	buf := make([]byte, 16)
	n, err := h.Read(buf)
	if err != nil || string(buf[:n]) != "partial" {
		t.Fatalf("first read: %q err=%v", buf[:n], err)
	}
	if _, err := h.Read(buf); err != io.ErrUnexpectedEOF {
		t.Fatalf("after error: %v", err)
	}
}

func TestBodyHandleBackpressure(t *testing.T) {
	h := newBodyHandle()
	h.highWater = 4
	h.push([]byte("abcd"))
	if h.wantMore() {
		t.Fatal("wantMore above high water")
	}
	buf := make([]byte, 2)
	if _, err := h.Read(buf); err != nil {
		t.Fatal(err)
	}
	if !h.wantMore() {
		t.Fatal("wantMore after drain")
	}
}

func TestBodyHandleAbandonDiscards(t *testing.T) {
	h := newBodyHandle()
	h.push([]byte("kept?"))
	h.abandon()
	h.push([]byte("dropped"))
	if !h.wantMore() {
		t.Fatal("abandoned handle must keep accepting wire bytes")
	}
	if _, err := h.Read(make([]byte, 8)); err != io.EOF {
		t.Fatalf("read after abandon: %v", err)
	}
}

func TestBodyCloseAbandonsHandle(t *testing.T) {
	h := newBodyHandle()
	b := StreamingBody(h)
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if !h.abandoned {
		t.Fatal("Close did not abandon the handle")
	}
}

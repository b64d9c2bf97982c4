package wire

import (
	"testing"
)

func TestChunkDecoderWholeBody(t *testing.T) {
	d := NewChunkDecoder(8 << 10)
	in := []byte("5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n")
	out, n, done, err := d.Decode(nil, in)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if !done || n != len(in) {
		t.Fatalf("done=%v n=%d", done, n)
	}
	if string(out) != "hello world" {
		t.Fatalf("payload %q", out)
	}
}

func TestChunkDecoderResumes(t *testing.T) {
	d := NewChunkDecoder(8 << 10)
	wire := "5\r\nhello\r\n0\r\n\r\n"
	var out []byte
	// feed one byte at a time; the decoder must never fail mid-unit
	buf := []byte(nil)
	for i := 0; i < len(wire); i++ {
		buf = append(buf, wire[i])
		grown, n, done, err := d.Decode(out, buf)
		if err != nil {
			t.Fatalf("byte %d: %v", i, err)
		}
		out = grown
		buf = buf[n:]
		if done {
			if i != len(wire)-1 {
				t.Fatalf("done early at byte %d", i)
			}
		}
	}
	if !d.Done() {
		t.Fatal("decoder not done after full input")
	}
	if string(out) != "hello" {
		t.Fatalf("payload %q", out)
	}
}

func TestChunkDecoderExtensionsAndTrailers(t *testing.T) {
	d := NewChunkDecoder(8 << 10)
	in := []byte("5;name=val\r\nhello\r\n0\r\nx-checksum: abc\r\nx-other: 1\r\n\r\n")
	out, n, done, err := d.Decode(nil, in)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if !done || n != len(in) {
		t.Fatalf("done=%v n=%d of %d", done, n, len(in))
	}
	if string(out) != "hello" {
		t.Fatalf("payload %q", out)
	}
}

func TestChunkDecoderRejectsGarbage(t *testing.T) {
	for _, in := range []string{
		"zz\r\nhello\r\n",
		"\r\n",
		"5\r\nhelloXX",
	} {
		d := NewChunkDecoder(8 << 10)
		if _, _, _, err := d.Decode(nil, []byte(in)); err == nil {
			t.Errorf("Decode(%q) accepted", in)
		}
	}
}

func TestAppendChunk(t *testing.T) {
	var b []byte
	b = AppendChunk(b, []byte("ab"))
	b = AppendChunk(b, []byte("c"))
	b = AppendChunk(b, nil) // empty payloads never frame a chunk
	b = AppendFinalChunk(b)
	if string(b) != "2\r\nab\r\n1\r\nc\r\n0\r\n\r\n" {
		t.Fatalf("got %q", b)
	}
}

func TestAppendChunkHexSize(t *testing.T) {
	p := make([]byte, 26)
	for i := range p {
		p[i] = 'x'
	}
	b := AppendChunk(nil, p)
	if string(b[:4]) != "1a\r\n" {
		t.Fatalf("size prefix %q", b[:4])
	}
}

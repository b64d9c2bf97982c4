package wire

import (
	"bytes"
	"testing"
)

func TestCutLine(t *testing.T) {
	line, n, err := CutLine([]byte("GET / HTTP/1.1\r\nHost: a\r\n"), 0)
	if err != nil {
		t.Fatalf("CutLine error: %v", err)
	}
	if string(line) != "GET / HTTP/1.1" || n != 16 {
		t.Fatalf("got line=%q n=%d", line, n)
	}

	// bare LF is tolerated
	line, n, err = CutLine([]byte("abc\ndef"), 0)
	if err != nil || string(line) != "abc" || n != 4 {
		t.Fatalf("bare LF: line=%q n=%d err=%v", line, n, err)
	}

	// incomplete line suspends rather than fails
	if _, _, err := CutLine([]byte("GET / HT"), 0); err != ErrNeedMore {
		t.Fatalf("want ErrNeedMore, got %v", err)
	}

	if _, _, err := CutLine(bytes.Repeat([]byte("a"), 100), 10); err != ErrLineTooLong {
		t.Fatalf("want ErrLineTooLong, got %v", err)
	}
}

func TestHeadLen(t *testing.T) {
	head := []byte("GET / HTTP/1.1\r\nHost: a\r\n\r\nbody")
	n, err := HeadLen(head, 0)
	if err != nil {
		t.Fatalf("HeadLen error: %v", err)
	}
	if string(head[:n]) != "GET / HTTP/1.1\r\nHost: a\r\n\r\n" {
		t.Fatalf("head cut at %d: %q", n, head[:n])
	}

	if _, err := HeadLen([]byte("GET / HTTP/1.1\r\nHost: a"), 0); err != ErrNeedMore {
		t.Fatalf("want ErrNeedMore, got %v", err)
	}

	if _, err := HeadLen(bytes.Repeat([]byte("x"), 64), 32); err != ErrLineTooLong {
		t.Fatalf("want ErrLineTooLong, got %v", err)
	}

	// LF-only heads are accepted
	if n, err := HeadLen([]byte("GET / HTTP/1.1\nHost: a\n\n"), 0); err != nil || n != 24 {
		t.Fatalf("LF head: n=%d err=%v", n, err)
	}
}

func TestParseRequestLine(t *testing.T) {
	method, target, proto, err := ParseRequestLine([]byte("POST /a/b?q=1 HTTP/1.1"))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if method != "POST" || target != "/a/b?q=1" || proto != "HTTP/1.1" {
		t.Fatalf("got %q %q %q", method, target, proto)
	}

	bad := []string{
		"",
		"GET",
		"GET /",
		"GET / HTTP/2.0",
		"G ET / HTTP/1.1",
		"GE\x00T / HTTP/1.1",
	}
	for _, s := range bad {
		if _, _, _, err := ParseRequestLine([]byte(s)); err == nil {
			t.Errorf("ParseRequestLine(%q) accepted", s)
		}
	}
}

func TestParseStatusLine(t *testing.T) {
	proto, code, reason, err := ParseStatusLine([]byte("HTTP/1.1 404 Not Found"))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if proto != "HTTP/1.1" || code != 404 || reason != "Not Found" {
		t.Fatalf("got %q %d %q", proto, code, reason)
	}

	// reason phrase is optional
	if _, code, reason, err := ParseStatusLine([]byte("HTTP/1.0 200")); err != nil || code != 200 || reason != "" {
		t.Fatalf("no-reason: code=%d reason=%q err=%v", code, reason, err)
	}

	for _, s := range []string{"", "HTTP/1.1", "HTTP/1.1 abc", "HTTP/1.1 99", "SMTP 200 OK"} {
		if _, _, _, err := ParseStatusLine([]byte(s)); err == nil {
			t.Errorf("ParseStatusLine(%q) accepted", s)
		}
	}
}

func TestParseHeaderLine(t *testing.T) {
	name, value, err := ParseHeaderLine([]byte("Content-Length:  42\t"))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if name != "Content-Length" || value != "42" {
		t.Fatalf("got %q %q", name, value)
	}

	if _, v, err := ParseHeaderLine([]byte("X-Empty:")); err != nil || v != "" {
		t.Fatalf("empty value: %q err=%v", v, err)
	}

	for _, s := range []string{"", "no-colon", ":novalue", "bad name: x"} {
		if _, _, err := ParseHeaderLine([]byte(s)); err == nil {
			t.Errorf("ParseHeaderLine(%q) accepted", s)
		}
	}
}

func TestAppendField(t *testing.T) {
	got := AppendField(nil, "x-test", "a\r\nb\x00c")
	if string(got) != "x-test: abc\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestAppendStatusLine(t *testing.T) {
	if got := AppendStatusLine(nil, "HTTP/1.1", 200, ""); string(got) != "HTTP/1.1 200 OK\r\n" {
		t.Fatalf("got %q", got)
	}
	if got := AppendStatusLine(nil, "HTTP/1.1", 599, "Custom"); string(got) != "HTTP/1.1 599 Custom\r\n" {
		t.Fatalf("got %q", got)
	}
}

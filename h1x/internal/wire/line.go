// Package wire implements the HTTP/1.x message grammar: start lines,
// header fields and chunked transfer framing. It operates on byte
// cursors rather than readers so callers can resume parsing whenever
// more input arrives; the ErrNeedMore sentinel marks that condition
// and is never a failure.
package wire

import (
	"bytes"
	"errors"
	"strconv"
)

var (
	// ErrNeedMore reports that the buffer does not yet hold a complete
	// syntactic unit. Callers should read more bytes and retry.
	ErrNeedMore = errors.New("wire: need more data")

	ErrMalformed   = errors.New("wire: malformed line")
	ErrLineTooLong = errors.New("wire: line exceeds limit")
)

// CutLine splits one CRLF (or bare LF) terminated line off buf. It
// returns the line without its terminator and the number of bytes
// consumed including the terminator. ErrNeedMore is returned when no
// terminator is present yet; ErrLineTooLong when the unterminated
// prefix already exceeds limit.
func CutLine(buf []byte, limit int) (line []byte, n int, err error) {
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		if limit > 0 && len(buf) > limit {
			return nil, 0, ErrLineTooLong
		}
		return nil, 0, ErrNeedMore
	}
	if limit > 0 && i > limit {
		return nil, 0, ErrLineTooLong
	}
	line = buf[:i]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, i + 1, nil
}

// HeadLen scans buf for the blank line that terminates a message head.
// It returns the total head length including the terminator, or
// ErrNeedMore when the terminator has not arrived. A head whose bytes
// already exceed limit without termination fails with ErrLineTooLong.
func HeadLen(buf []byte, limit int) (int, error) {
	if i := bytes.Index(buf, []byte("\r\n\r\n")); i >= 0 {
		if limit > 0 && i+4 > limit {
			return 0, ErrLineTooLong
		}
		return i + 4, nil
	}
	if i := bytes.Index(buf, []byte("\n\n")); i >= 0 {
		if limit > 0 && i+2 > limit {
			return 0, ErrLineTooLong
		}
		return i + 2, nil
	}
	if limit > 0 && len(buf) > limit {
		return 0, ErrLineTooLong
	}
	return 0, ErrNeedMore
}

// ParseRequestLine parses "METHOD target HTTP/1.x".
func ParseRequestLine(line []byte) (method, target, proto string, err error) {
	s := string(line)
	i := indexSP(s)
	if i <= 0 {
		return "", "", "", ErrMalformed
	}
	method, s = s[:i], s[i+1:]
	j := indexSP(s)
	if j <= 0 {
		return "", "", "", ErrMalformed
	}
	target, proto = s[:j], s[j+1:]
	if !ValidToken(method) || !validProto(proto) {
		return "", "", "", ErrMalformed
	}
	return method, target, proto, nil
}

// ParseStatusLine parses "HTTP/1.x CODE reason". The reason phrase may
// be empty.
func ParseStatusLine(line []byte) (proto string, code int, reason string, err error) {
	s := string(line)
	i := indexSP(s)
	if i <= 0 {
		return "", 0, "", ErrMalformed
	}
	proto, s = s[:i], s[i+1:]
	if !validProto(proto) {
		return "", 0, "", ErrMalformed
	}
	codeStr := s
	if j := indexSP(s); j >= 0 {
		codeStr, reason = s[:j], s[j+1:]
	}
	code, convErr := strconv.Atoi(codeStr)
	if convErr != nil || code < 100 || code > 999 {
		return "", 0, "", ErrMalformed
	}
	return proto, code, reason, nil
}

// ParseHeaderLine parses "Name: value". The name must be a valid
// field token; the value is trimmed of optional whitespace.
func ParseHeaderLine(line []byte) (name, value string, err error) {
	i := bytes.IndexByte(line, ':')
	if i <= 0 {
		return "", "", ErrMalformed
	}
	name = string(line[:i])
	if !ValidToken(name) {
		return "", "", ErrMalformed
	}
	value = string(trimOWS(line[i+1:]))
	return name, value, nil
}

// ValidToken reports whether s is a valid HTTP field token.
func ValidToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			continue
		}
		switch c {
		case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
			continue
		default:
			return false
		}
	}
	return true
}

func validProto(p string) bool {
	return p == "HTTP/1.1" || p == "HTTP/1.0"
}

func indexSP(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return i
		}
	}
	return -1
}

func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

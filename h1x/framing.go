package h1x

import (
	"strconv"
	"strings"
)

// FramingMode is the mechanism that bounds a message body on the wire.
type FramingMode int

const (
	// FramingNone means the message has no body at all.
	FramingNone FramingMode = iota
	// FramingExact means exactly Length bytes follow the head.
	FramingExact
	// FramingChunked means the body uses chunked transfer encoding.
	FramingChunked
	// FramingClose means the body runs until the peer closes the
	// stream. Only responses may be close-delimited.
	FramingClose
)

// Framing is a resolved framing mode. It is computed once per message,
// before any body bytes move, and never changes afterwards.
type Framing struct {
	Mode   FramingMode
	Length int64
}

// ResolveFraming inspects Content-Length and Transfer-Encoding on head
// and derives the body framing. For a response head, reqMethod is the
// method of the request being answered: HEAD responses and 204/304/1xx
// statuses never carry a body regardless of headers present. A head
// carrying both a length and chunked encoding is ambiguous and is
// rejected rather than guessed, as are disagreeing duplicate
// Content-Length values.
func ResolveFraming(head *Head, reqMethod string) (Framing, error) {
	if !head.IsRequest() && bodilessStatus(head.Status, reqMethod) {
		return Framing{Mode: FramingNone}, nil
	}

	chunked := head.Header.valueListContains("Transfer-Encoding", "chunked")
	clValues := head.Header.Values("Content-Length")

	if chunked && len(clValues) > 0 {
		return Framing{}, ErrConflictingFraming
	}
	if chunked {
		return Framing{Mode: FramingChunked, Length: -1}, nil
	}
	if len(clValues) > 0 {
		length := int64(-1)
		for _, v := range clValues {
			for _, part := range strings.Split(v, ",") {
				n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
				if err != nil || n < 0 {
					return Framing{}, ErrMalformedHead
				}
				if length >= 0 && n != length {
					return Framing{}, ErrConflictingFraming
				}
				length = n
			}
		}
		if length == 0 {
			return Framing{Mode: FramingNone}, nil
		}
		return Framing{Mode: FramingExact, Length: length}, nil
	}
	if head.IsRequest() {
		// A request without framing headers has no body.
		return Framing{Mode: FramingNone}, nil
	}
	return Framing{Mode: FramingClose, Length: -1}, nil
}

func bodilessStatus(status int, reqMethod string) bool {
	if strings.EqualFold(reqMethod, "HEAD") {
		return true
	}
	if status >= 100 && status < 200 {
		return true
	}
	return status == 204 || status == 304
}

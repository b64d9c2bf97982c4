package h1x

// Head is the start line plus header fields of one HTTP/1.x message,
// excluding the body. The same record serves both directions: a
// request populates Method and Target, a response populates Status
// (and optionally Reason). Proto is "HTTP/1.1" or "HTTP/1.0"; empty
// means HTTP/1.1.
type Head struct {
	// Request start line.
	Method string
	Target string

	// Response start line.
	Status int
	Reason string

	Proto  string
	Header Header
}

// IsRequest reports whether the head carries a request start line.
func (h *Head) IsRequest() bool { return h.Method != "" }

func (h *Head) proto() string {
	if h.Proto == "" {
		return "HTTP/1.1"
	}
	return h.Proto
}

// wantsClose reports whether the peer or caller asked to close the
// connection after this message, per its protocol version's defaults.
func (h *Head) wantsClose() bool {
	if h.Header.valueListContains("Connection", "close") {
		return true
	}
	if h.proto() == "HTTP/1.0" {
		return !h.Header.valueListContains("Connection", "keep-alive")
	}
	return false
}

package wire

import "strconv"

// AppendRequestLine appends "METHOD target proto\r\n".
func AppendRequestLine(dst []byte, method, target, proto string) []byte {
	dst = append(dst, method...)
	dst = append(dst, ' ')
	dst = append(dst, target...)
	dst = append(dst, ' ')
	dst = append(dst, proto...)
	return append(dst, '\r', '\n')
}

// AppendStatusLine appends "proto code reason\r\n", substituting the
// standard reason phrase when reason is empty.
func AppendStatusLine(dst []byte, proto string, code int, reason string) []byte {
	if reason == "" {
		reason = ReasonPhrase(code)
	}
	dst = append(dst, proto...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(code), 10)
	dst = append(dst, ' ')
	dst = append(dst, reason...)
	return append(dst, '\r', '\n')
}

// AppendField appends one "name: value\r\n" field line. CR, LF and
// control bytes other than HTAB are stripped from the value so a
// caller-supplied value can never break message framing.
func AppendField(dst []byte, name, value string) []byte {
	dst = append(dst, name...)
	dst = append(dst, ':', ' ')
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == '\r' || c == '\n' || c == 0x7f {
			continue
		}
		if c < 0x20 && c != '\t' {
			continue
		}
		dst = append(dst, c)
	}
	return append(dst, '\r', '\n')
}

// ReasonPhrase returns the conventional reason phrase for a status
// code, or the empty string for unknown codes.
func ReasonPhrase(code int) string {
	switch code {
	case 100:
		return "Continue"
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 202:
		return "Accepted"
	case 204:
		return "No Content"
	case 301:
		return "Moved Permanently"
	case 302:
		return "Found"
	case 304:
		return "Not Modified"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 408:
		return "Request Timeout"
	case 411:
		return "Length Required"
	case 413:
		return "Content Too Large"
	case 431:
		return "Request Header Fields Too Large"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 502:
		return "Bad Gateway"
	case 503:
		return "Service Unavailable"
	default:
		return ""
	}
}

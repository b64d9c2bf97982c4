package wire

import (
	"errors"
	"strconv"
	"strings"
)

var ErrChunkFormat = errors.New("wire: invalid chunk format")

type chunkState int

const (
	chunkSize chunkState = iota
	chunkData
	chunkDataCRLF
	chunkTrailer
	chunkDone
)

// ChunkDecoder is a resumable decoder for Transfer-Encoding: chunked.
// Feed it whatever bytes are available; it consumes as much as it can
// and reports how far it got. Chunk extensions are stripped and
// trailer fields are consumed and discarded.
type ChunkDecoder struct {
	state   chunkState
	remain  int64
	maxLine int
}

// NewChunkDecoder returns a decoder whose size and trailer lines are
// capped at maxLine bytes.
func NewChunkDecoder(maxLine int) *ChunkDecoder {
	return &ChunkDecoder{state: chunkSize, maxLine: maxLine}
}

// Decode consumes framing and payload from buf, appending decoded
// payload bytes to dst. It returns the grown dst, the number of buf
// bytes consumed, and whether the terminating zero chunk (plus
// trailers) has been fully read. A nil error with done=false means buf
// was exhausted mid-stream; the caller supplies more bytes and calls
// Decode again.
func (d *ChunkDecoder) Decode(dst, buf []byte) (out []byte, n int, done bool, err error) {
	out = dst
	for n < len(buf) {
		switch d.state {
		case chunkSize:
			line, ln, lerr := CutLine(buf[n:], d.maxLine)
			if lerr == ErrNeedMore {
				return out, n, false, nil
			}
			if lerr != nil {
				return out, n, false, lerr
			}
			size, serr := parseChunkSize(line)
			if serr != nil {
				return out, n, false, serr
			}
			n += ln
			if size == 0 {
				d.state = chunkTrailer
				continue
			}
			d.remain = size
			d.state = chunkData
		case chunkData:
			take := int64(len(buf) - n)
			if take > d.remain {
				take = d.remain
			}
			out = append(out, buf[n:n+int(take)]...)
			n += int(take)
			d.remain -= take
			if d.remain == 0 {
				d.state = chunkDataCRLF
			}
		case chunkDataCRLF:
			if len(buf)-n < 2 {
				return out, n, false, nil
			}
			if buf[n] != '\r' || buf[n+1] != '\n' {
				return out, n, false, ErrChunkFormat
			}
			n += 2
			d.state = chunkSize
		case chunkTrailer:
			line, ln, lerr := CutLine(buf[n:], d.maxLine)
			if lerr == ErrNeedMore {
				return out, n, false, nil
			}
			if lerr != nil {
				return out, n, false, lerr
			}
			n += ln
			if len(line) == 0 {
				d.state = chunkDone
				return out, n, true, nil
			}
			// trailer fields are discarded
		case chunkDone:
			return out, n, true, nil
		}
	}
	return out, n, d.state == chunkDone, nil
}

// Done reports whether the terminating chunk has been consumed.
func (d *ChunkDecoder) Done() bool { return d.state == chunkDone }

func parseChunkSize(line []byte) (int64, error) {
	s := string(line)
	// strip chunk extensions: "<hex>;<ext>"
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrChunkFormat
	}
	v, err := strconv.ParseInt(s, 16, 64)
	if err != nil || v < 0 {
		return 0, ErrChunkFormat
	}
	return v, nil
}

// AppendChunk appends one size-prefixed wire chunk. Empty payloads are
// skipped: a zero-size chunk would terminate the body early.
func AppendChunk(dst, p []byte) []byte {
	if len(p) == 0 {
		return dst
	}
	dst = strconv.AppendInt(dst, int64(len(p)), 16)
	dst = append(dst, '\r', '\n')
	dst = append(dst, p...)
	return append(dst, '\r', '\n')
}

// AppendFinalChunk appends the zero-size terminator chunk.
func AppendFinalChunk(dst []byte) []byte {
	return append(dst, '0', '\r', '\n', '\r', '\n')
}

package h1x

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dqx0.com/go/transports/h1x/internal/wire"
	"dqx0.com/go/transports/internal/obs"
)

// Phase is the connection's position in the exchange cycle.
type Phase int

const (
	PhaseHeadRead Phase = iota
	PhaseServiceRun
	PhaseHeadWrite
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseHeadRead:
		return "head-read"
	case PhaseServiceRun:
		return "service-run"
	case PhaseHeadWrite:
		return "head-write"
	default:
		return "terminal"
	}
}

// Status is the outcome of one Poll call.
type Status int

const (
	// StatusProgress: work was done; poll again.
	StatusProgress Status = iota
	// StatusSuspended: nothing can proceed until the stream or the
	// Service becomes ready.
	StatusSuspended
	// StatusExchangeDone: a full message exchange just completed.
	StatusExchangeDone
	// StatusClosed: terminal, the connection ended cleanly.
	StatusClosed
	// StatusError: terminal, the connection failed.
	StatusError
)

// Config tunes a connection. The zero value is usable.
type Config struct {
	// MaxHeadBytes caps the accumulated size of a message head before
	// its terminating blank line arrives. Default 8 KiB.
	MaxHeadBytes int
	// MaxHeaderFields caps the number of header fields. Default 64.
	MaxHeaderFields int
	// DisableKeepAlive forces every connection to close after one
	// exchange.
	DisableKeepAlive bool
	// ChunkSizeHint sizes reads from outbound body sources, and with
	// them outgoing wire chunks. Default 4 KiB.
	ChunkSizeHint int

	Logger obs.Logger
	Meter  obs.Meter
}

func (c Config) withDefaults() Config {
	if c.MaxHeadBytes <= 0 {
		c.MaxHeadBytes = 8 << 10
	}
	if c.MaxHeaderFields <= 0 {
		c.MaxHeaderFields = 64
	}
	if c.ChunkSizeHint <= 0 {
		c.ChunkSizeHint = 4 << 10
	}
	if c.Logger == nil {
		c.Logger = obs.NopLogger{}
	}
	if c.Meter == nil {
		c.Meter = obs.NopMeter{}
	}
	return c
}

type svcResult struct {
	out *Message
	err error
}

// write stages within PhaseHeadWrite.
type writeStage int

const (
	wsDrain writeStage = iota
	wsHead
	wsBody
	wsFinish
)

// exchange is the per-message-pair state, reset between keep-alive
// rounds.
type exchange struct {
	in        *Message
	inFraming Framing
	handle    *bodyHandle
	dec       *wire.ChunkDecoder
	inRemain  int64
	inDone    bool

	// reqMethod is the method governing response framing: the received
	// request's method for the server role, the sent request's method
	// for the client role.
	reqMethod string

	svcCh     chan svcResult
	svcRes    *svcResult
	svcDone   bool
	out       *Message
	noMore    bool
	wantClose bool

	stage       writeStage
	headWritten bool
	outFraming  Framing
	outWritten  int64
	outClosed   bool // out body source exhausted

	started time.Time
}

// Conn drives one HTTP/1.x connection through repeated
// HeadRead/ServiceRun/HeadWrite cycles. The role supplied at
// construction decides which direction goes first; the state machine
// itself is shared by both roles.
//
// A Conn is exclusively owned by one driving goroutine: either call
// Poll yourself from a scheduler, or hand the connection to Run.
type Conn struct {
	stream Stream
	role   Role
	svc    Service
	cfg    Config
	id     string

	baseCtx context.Context

	phase      Phase
	exch       exchange
	rbuf       []byte
	wbuf       []byte
	scratch    []byte
	persistent bool
	exchanges  uint64
	closeErr   error

	// closing is the only field shared with other goroutines; every
	// other field belongs to the driving goroutine alone.
	closing atomic.Bool
}

// NewConn wraps stream in a connection playing role, with svc as the
// application boundary.
func NewConn(role Role, stream Stream, svc Service, cfg Config) *Conn {
	cfg = cfg.withDefaults()
	c := &Conn{
		stream:  stream,
		role:    role,
		svc:     svc,
		cfg:     cfg,
		id:      uuid.NewString(),
		scratch: make([]byte, cfg.ChunkSizeHint),
	}
	if role == RoleClient {
		c.phase = PhaseServiceRun
	} else {
		c.phase = PhaseHeadRead
	}
	cfg.Meter.Counter("h1x_conn_open_total", 1, obs.Label{Key: "role", Value: role.String()})
	cfg.Logger.Logf(obs.Debug, "conn %s open role=%s", c.id, role)
	return c
}

// ID returns the connection's identifier, carried in logs.
func (c *Conn) ID() string { return c.id }

// Phase returns the current phase.
func (c *Conn) Phase() Phase { return c.phase }

// Exchanges returns the number of completed exchanges.
func (c *Conn) Exchanges() uint64 { return c.exchanges }

// Err returns the terminal error, if the connection failed.
func (c *Conn) Err() error { return c.closeErr }

// Close requests shutdown and releases the stream. Safe to call from
// any goroutine, including while another goroutine is inside Run or
// Poll: Close itself touches no engine state beyond the request flag;
// the driving goroutine observes the flag (or the stream error the
// close provokes) on its next poll and parks the state machine there.
// The engine only ever flushes complete units it has fully assembled,
// so no partial head or chunk is left behind by closing here.
func (c *Conn) Close() error {
	c.closing.Store(true)
	return c.stream.Close()
}

// shutdown finalizes a Close request on the driving goroutine.
func (c *Conn) shutdown() (Status, error) {
	if c.exch.handle != nil {
		c.exch.handle.abandon()
	}
	c.phase = PhaseTerminal
	c.cfg.Logger.Logf(obs.Debug, "conn %s closed", c.id)
	return StatusClosed, nil
}

// Poll performs whatever non-blocking work the current phase allows
// and reports how far it got. It never spins: StatusSuspended means
// the caller should wait for stream or Service readiness before
// polling again.
func (c *Conn) Poll() (Status, error) {
	if c.phase == PhaseTerminal {
		if c.closeErr != nil {
			return StatusError, c.closeErr
		}
		return StatusClosed, nil
	}
	if c.closing.Load() {
		return c.shutdown()
	}

	var st Status
	var err error
	switch c.phase {
	case PhaseHeadRead:
		st, err = c.pollHeadRead()
	case PhaseServiceRun:
		st, err = c.pollServiceRun()
	case PhaseHeadWrite:
		st, err = c.pollHeadWrite()
	}
	if err != nil {
		return c.fatal(err)
	}
	return st, nil
}

// Run drives the connection to completion, parking on suspensions.
// It is the one-goroutine-per-connection driver used with blocking
// streams; Poll remains available for external schedulers.
func (c *Conn) Run(ctx context.Context) error {
	c.baseCtx = ctx
	for {
		if err := ctx.Err(); err != nil {
			_ = c.Close()
			return err
		}
		st, err := c.Poll()
		switch st {
		case StatusClosed:
			return nil
		case StatusError:
			return err
		case StatusSuspended:
			if werr := c.waitReady(ctx); werr != nil {
				_ = c.Close()
				return werr
			}
		}
	}
}

// waitReady parks until whatever the connection suspended on may have
// become ready.
func (c *Conn) waitReady(ctx context.Context) error {
	e := &c.exch
	if c.phase == PhaseServiceRun && !e.svcDone && e.svcCh != nil && (e.handle == nil || e.inDone) {
		select {
		case res := <-e.svcCh:
			e.svcRes = &res
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	// an outbound body source has its own readiness the stream knows
	// nothing about, so fall through to the timer in that case
	sourceWait := c.phase == PhaseHeadWrite && e.stage == wsBody &&
		e.out != nil && e.out.Body != nil && e.out.Body.Kind() != BodyBuffered
	if w, ok := c.stream.(ReadyWaiter); ok && !sourceWait {
		return w.WaitReady(ctx)
	}
	// Blocking streams almost never suspend; briefly yield for the
	// body-source case.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(200 * time.Microsecond):
		return nil
	}
}

func (c *Conn) ctx() context.Context {
	if c.baseCtx != nil {
		return c.baseCtx
	}
	return context.Background()
}

// fatal terminates the connection on a protocol, transport or service
// error. The server role writes a best-effort error response when the
// failure is detected before any response bytes have gone out.
func (c *Conn) fatal(err error) (Status, error) {
	if c.closing.Load() {
		// stream errors after a Close request are shutdown fallout, not
		// connection failures
		return c.shutdown()
	}
	failedIn := c.phase
	if c.role == RoleServer && !c.exch.headWritten {
		c.writeErrorResponse(err)
	}
	if c.exch.handle != nil {
		c.exch.handle.finish(err)
	}
	c.closeErr = err
	c.phase = PhaseTerminal
	_ = c.stream.Close()
	c.cfg.Meter.Counter("h1x_conn_errors_total", 1,
		obs.Label{Key: "role", Value: c.role.String()},
		obs.Label{Key: "phase", Value: failedIn.String()})
	c.cfg.Logger.Logf(obs.Warn, "conn %s failed in %s: %v", c.id, failedIn, err)
	return StatusError, err
}

func (c *Conn) writeErrorResponse(err error) {
	status := 500
	switch {
	case errors.Is(err, ErrHeadTooLarge):
		status = 431
	case errors.Is(err, ErrMalformedHead), errors.Is(err, ErrConflictingFraming),
		errors.Is(err, ErrTooManyHeaders), errors.Is(err, ErrBodyLengthMismatch):
		status = 400
	}
	var b []byte
	b = wire.AppendStatusLine(b, "HTTP/1.1", status, "")
	b = wire.AppendField(b, "content-length", "0")
	b = wire.AppendField(b, "connection", "close")
	b = append(b, '\r', '\n')
	_, _ = c.stream.Write(b)
}

// ===== HeadRead =====

func (c *Conn) pollHeadRead() (Status, error) {
	progressed := false
	for {
		headLen, err := wire.HeadLen(c.rbuf, c.cfg.MaxHeadBytes)
		switch err {
		case nil:
			return c.finishHeadRead(headLen)
		case wire.ErrLineTooLong:
			return 0, ErrHeadTooLarge
		}

		n, rerr := c.fillRead()
		if n > 0 {
			progressed = true
			continue
		}
		switch rerr {
		case ErrNotReady:
			if progressed {
				return StatusProgress, nil
			}
			return StatusSuspended, nil
		case io.EOF:
			if len(c.rbuf) == 0 && c.role == RoleServer {
				// clean close between exchanges
				c.phase = PhaseTerminal
				_ = c.stream.Close()
				c.cfg.Logger.Logf(obs.Debug, "conn %s closed by peer", c.id)
				return StatusClosed, nil
			}
			return 0, fmt.Errorf("%w: stream closed mid-head", ErrMalformedHead)
		case nil:
			continue
		default:
			return 0, rerr
		}
	}
}

func (c *Conn) finishHeadRead(headLen int) (Status, error) {
	head, err := c.parseHead(c.rbuf[:headLen])
	if err != nil {
		return 0, err
	}
	c.rbuf = c.rbuf[headLen:]

	// interim responses are consumed by the engine, not the Service
	if c.role == RoleClient && head.Status >= 100 && head.Status < 200 {
		return StatusProgress, nil
	}

	e := &c.exch
	if e.started.IsZero() {
		e.started = time.Now()
	}
	if c.role == RoleServer {
		e.reqMethod = head.Method
	}

	framing, err := ResolveFraming(head, e.reqMethod)
	if err != nil {
		return 0, err
	}

	in := &Message{Head: *head}
	switch framing.Mode {
	case FramingNone:
		in.Body = BufferedBody(nil)
		e.inDone = true
	case FramingExact:
		e.handle = newBodyHandle()
		e.inRemain = framing.Length
		in.Body = ExactSizeBody(framing.Length, e.handle)
	case FramingChunked:
		e.handle = newBodyHandle()
		e.dec = wire.NewChunkDecoder(c.cfg.MaxHeadBytes)
		in.Body = StreamingBody(e.handle)
	case FramingClose:
		e.handle = newBodyHandle()
		in.Body = StreamingBody(e.handle)
	}
	e.in = in
	e.inFraming = framing

	if c.role == RoleClient {
		// persistence is decided once the response head is in hand
		c.persistent = !c.cfg.DisableKeepAlive &&
			!e.wantClose &&
			!head.wantsClose() &&
			framing.Mode != FramingClose
	} else if strings.EqualFold(head.Header.Get("Expect"), "100-continue") && framing.Mode != FramingNone {
		c.wbuf = append(c.wbuf, "HTTP/1.1 100 Continue\r\n\r\n"...)
	}

	c.startService(in)
	c.phase = PhaseServiceRun
	return StatusProgress, nil
}

func (c *Conn) parseHead(buf []byte) (*Head, error) {
	line, n, err := wire.CutLine(buf, c.cfg.MaxHeadBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHead, err)
	}
	buf = buf[n:]

	head := &Head{}
	if c.role == RoleServer {
		method, target, proto, perr := wire.ParseRequestLine(line)
		if perr != nil {
			return nil, fmt.Errorf("%w: bad request line", ErrMalformedHead)
		}
		head.Method, head.Target, head.Proto = method, target, proto
	} else {
		proto, code, reason, perr := wire.ParseStatusLine(line)
		if perr != nil {
			return nil, fmt.Errorf("%w: bad status line", ErrMalformedHead)
		}
		head.Proto, head.Status, head.Reason = proto, code, reason
	}

	for {
		line, n, err = wire.CutLine(buf, c.cfg.MaxHeadBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedHead, err)
		}
		buf = buf[n:]
		if len(line) == 0 {
			break
		}
		name, value, perr := wire.ParseHeaderLine(line)
		if perr != nil {
			return nil, fmt.Errorf("%w: bad header field", ErrMalformedHead)
		}
		if head.Header.Len() >= c.cfg.MaxHeaderFields {
			return nil, ErrTooManyHeaders
		}
		head.Header.Add(name, value)
	}
	return head, nil
}

// ===== ServiceRun =====

func (c *Conn) startService(in *Message) {
	e := &c.exch
	ch := make(chan svcResult, 1)
	e.svcCh = ch
	e.svcRes = nil
	e.svcDone = false
	ctx := c.serveContext(in)
	go func() {
		out, err := c.svc.Serve(ctx, in)
		ch <- svcResult{out: out, err: err}
	}()
}

// serveContext builds the per-exchange context. The server role lifts
// the peer's identity and trace headers into it so Services and any
// downstream clients they call can propagate them.
func (c *Conn) serveContext(in *Message) context.Context {
	ctx := c.ctx()
	id := ""
	if c.role == RoleServer && in != nil {
		h := &in.Head.Header
		id = h.Get("x-request-id")
		if cid := h.Get("x-correlation-id"); cid != "" {
			ctx = WithCorrelationID(ctx, cid)
		}
		if tid, sid, fl, ok := ParseTraceparent(h.Get("traceparent")); ok {
			ctx = WithTrace(ctx, Trace{TraceID: tid, SpanID: genSpanID(), ParentSpanID: sid, Flags: fl})
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	return WithExchangeID(ctx, id)
}

func (c *Conn) pollServiceRun() (Status, error) {
	e := &c.exch

	// client role: the very first cycle has no inbound message yet
	if e.svcCh == nil {
		e.started = time.Now()
		c.startService(nil)
	}

	// interim bytes may still be buffered
	progressed, _, err := c.flushWrites()
	if err != nil {
		return 0, err
	}

	fed, err := c.feedInbound()
	progressed = progressed || fed
	if err != nil {
		return 0, err
	}

	res := e.svcRes
	if res == nil {
		select {
		case r := <-e.svcCh:
			res = &r
		default:
		}
	}
	if res == nil {
		if progressed {
			return StatusProgress, nil
		}
		return StatusSuspended, nil
	}

	e.svcRes = nil
	e.svcDone = true
	if res.err != nil {
		if errors.Is(res.err, context.Canceled) {
			c.phase = PhaseTerminal
			_ = c.stream.Close()
			return StatusClosed, nil
		}
		return 0, fmt.Errorf("service: %w", res.err)
	}

	if res.out == nil {
		if c.role == RoleServer {
			return 0, fmt.Errorf("service: %w", errNilResponse)
		}
		e.noMore = true
	}
	e.out = res.out
	e.stage = wsDrain
	c.phase = PhaseHeadWrite

	// client role: an exchange completes once the response has been
	// delivered to the Service
	if c.role == RoleClient && e.in != nil {
		if e.out != nil && !c.persistent {
			return 0, fmt.Errorf("%w: connection not reusable for another request", ErrClosed)
		}
		c.exchangeDone()
		return StatusExchangeDone, nil
	}
	return StatusProgress, nil
}

var errNilResponse = errors.New("nil outbound message")

// feedInbound decodes inbound body bytes and hands them to the body
// handle, without ever blocking on the handle: backpressure is applied
// by pausing when the Service falls behind.
func (c *Conn) feedInbound() (bool, error) {
	e := &c.exch
	if e.inDone || e.handle == nil {
		return false, nil
	}
	progressed := false
	for !e.inDone {
		if !e.handle.wantMore() {
			return progressed, nil
		}
		if len(c.rbuf) == 0 {
			n, rerr := c.fillRead()
			if n == 0 {
				switch rerr {
				case ErrNotReady, nil:
					return progressed, nil
				case io.EOF:
					if e.inFraming.Mode == FramingClose {
						e.inDone = true
						e.handle.finish(nil)
						return true, nil
					}
					e.handle.finish(io.ErrUnexpectedEOF)
					return progressed, fmt.Errorf("%w: stream closed mid-body", ErrBodyLengthMismatch)
				default:
					e.handle.finish(rerr)
					return progressed, rerr
				}
			}
			progressed = true
		}

		switch e.inFraming.Mode {
		case FramingExact:
			take := e.inRemain
			if take > int64(len(c.rbuf)) {
				take = int64(len(c.rbuf))
			}
			e.handle.push(c.rbuf[:take])
			c.rbuf = c.rbuf[take:]
			e.inRemain -= take
			progressed = progressed || take > 0
			if e.inRemain == 0 {
				e.inDone = true
				e.handle.finish(nil)
			}
		case FramingChunked:
			out, n, done, derr := e.dec.Decode(nil, c.rbuf)
			if derr != nil {
				e.handle.finish(derr)
				return progressed, fmt.Errorf("%w: %v", ErrMalformedHead, derr)
			}
			e.handle.push(out)
			c.rbuf = c.rbuf[n:]
			progressed = progressed || n > 0
			if done {
				e.inDone = true
				e.handle.finish(nil)
			}
		case FramingClose:
			e.handle.push(c.rbuf)
			c.rbuf = c.rbuf[:0]
			progressed = true
		}
	}
	return progressed, nil
}

// ===== HeadWrite =====

func (c *Conn) pollHeadWrite() (Status, error) {
	e := &c.exch
	progressed := false

	for {
		switch e.stage {
		case wsDrain:
			// the response never starts before the inbound body has
			// been fully consumed off the wire
			if e.handle != nil && !e.inDone {
				if e.svcDone {
					e.handle.abandon()
				}
				p, err := c.feedInbound()
				progressed = progressed || p
				if err != nil {
					return 0, err
				}
				if !e.inDone {
					return c.progressOr(progressed), nil
				}
			}
			if e.noMore {
				// client signalled no more requests
				c.phase = PhaseTerminal
				_ = c.stream.Close()
				c.cfg.Logger.Logf(obs.Debug, "conn %s done after %d exchange(s)", c.id, c.exchanges)
				return StatusClosed, nil
			}
			e.stage = wsHead
		case wsHead:
			if err := c.buildOutHead(); err != nil {
				return 0, err
			}
			e.headWritten = true
			e.stage = wsBody
			progressed = true
		case wsBody:
			done, p, err := c.writeOutBody()
			progressed = progressed || p
			if err != nil {
				return 0, err
			}
			if !done {
				return c.progressOr(progressed), nil
			}
			e.stage = wsFinish
		case wsFinish:
			p, flushed, err := c.flushWrites()
			progressed = progressed || p
			if err != nil {
				return 0, err
			}
			if !flushed {
				return c.progressOr(progressed), nil
			}
			return c.finishExchange()
		}
	}
}

func (c *Conn) progressOr(progressed bool) Status {
	if progressed {
		return StatusProgress
	}
	return StatusSuspended
}

// finishExchange runs after the outbound message is fully on the wire.
func (c *Conn) finishExchange() (Status, error) {
	if c.role == RoleServer {
		c.exchangeDone()
		if !c.persistent {
			c.phase = PhaseTerminal
			_ = c.stream.Close()
			return StatusExchangeDone, nil
		}
		c.resetExchange()
		c.phase = PhaseHeadRead
		return StatusExchangeDone, nil
	}

	// client role: the response to the request just written comes next
	reqMethod := c.exch.reqMethod
	wantClose := c.exch.wantClose
	c.resetExchange()
	c.exch.reqMethod = reqMethod
	c.exch.wantClose = wantClose
	c.phase = PhaseHeadRead
	return StatusProgress, nil
}

func (c *Conn) exchangeDone() {
	c.exchanges++
	c.cfg.Meter.Counter("h1x_conn_exchanges_total", 1, obs.Label{Key: "role", Value: c.role.String()})
	if !c.exch.started.IsZero() {
		ms := float64(time.Since(c.exch.started).Milliseconds())
		c.cfg.Meter.Histogram("h1x_exchange_duration_ms", ms, obs.Label{Key: "role", Value: c.role.String()})
	}
}

func (c *Conn) resetExchange() {
	c.exch = exchange{}
}

// buildOutHead serializes the outbound start line and headers into the
// write buffer, deriving exactly one framing header from the body
// variant. Engine-owned fields supplied by the caller are dropped so
// Content-Length and Transfer-Encoding can never conflict on the wire.
func (c *Conn) buildOutHead() error {
	e := &c.exch
	out := e.out
	if out.Body == nil {
		out.Body = BufferedBody(nil)
	}
	head := &out.Head
	e.wantClose = e.wantClose || head.wantsClose()

	if c.role == RoleServer {
		if head.Status == 0 {
			head.Status = 200
		}
		c.wbuf = wire.AppendStatusLine(c.wbuf, head.proto(), head.Status, head.Reason)
	} else {
		if head.Method == "" || head.Target == "" {
			return fmt.Errorf("%w: request needs method and target", ErrMalformedHead)
		}
		e.reqMethod = head.Method
		c.wbuf = wire.AppendRequestLine(c.wbuf, head.Method, head.Target, head.proto())
	}

	for _, f := range head.Header.Fields() {
		if isEngineField(f.Name) {
			continue
		}
		if !wire.ValidToken(f.Name) {
			return fmt.Errorf("%w: invalid header name %q", ErrMalformedHead, f.Name)
		}
		c.wbuf = wire.AppendField(c.wbuf, f.Name, f.Value)
	}

	e.outFraming = outFraming(c.role, head, out.Body, e.reqMethod)
	switch e.outFraming.Mode {
	case FramingExact:
		c.wbuf = wire.AppendField(c.wbuf, "content-length", strconv.FormatInt(e.outFraming.Length, 10))
	case FramingChunked:
		c.wbuf = wire.AppendField(c.wbuf, "transfer-encoding", "chunked")
	}

	if c.role == RoleServer {
		c.persistent = !c.cfg.DisableKeepAlive &&
			!e.in.Head.wantsClose() &&
			!e.wantClose &&
			e.outFraming.Mode != FramingClose
		if !c.persistent {
			c.wbuf = wire.AppendField(c.wbuf, "connection", "close")
		} else if e.in.Head.proto() == "HTTP/1.0" {
			c.wbuf = wire.AppendField(c.wbuf, "connection", "keep-alive")
		}
	} else {
		e.wantClose = e.wantClose || c.cfg.DisableKeepAlive
		if e.wantClose {
			c.wbuf = wire.AppendField(c.wbuf, "connection", "close")
		}
	}

	c.wbuf = append(c.wbuf, '\r', '\n')
	return nil
}

// outFraming derives the wire framing from the body variant. A
// bodiless response status suppresses the body entirely; a request
// with an empty buffered body carries no framing header at all.
func outFraming(role Role, head *Head, body *Body, reqMethod string) Framing {
	if role == RoleServer && bodilessStatus(head.Status, reqMethod) {
		return Framing{Mode: FramingNone}
	}
	switch body.Kind() {
	case BodyStreaming:
		return Framing{Mode: FramingChunked, Length: -1}
	case BodyExactSize:
		return Framing{Mode: FramingExact, Length: body.Len()}
	default:
		if role == RoleClient && body.Len() == 0 {
			return Framing{Mode: FramingNone}
		}
		return Framing{Mode: FramingExact, Length: body.Len()}
	}
}

func isEngineField(name string) bool {
	return strings.EqualFold(name, "Content-Length") ||
		strings.EqualFold(name, "Transfer-Encoding") ||
		strings.EqualFold(name, "Connection")
}

// writeOutBody moves outbound body bytes into the write buffer,
// interleaving flushes so the buffer stays bounded. Only complete
// units (whole chunk frames, raw counted segments) enter the buffer.
func (c *Conn) writeOutBody() (done, progressed bool, err error) {
	e := &c.exch
	body := e.out.Body

	switch e.outFraming.Mode {
	case FramingNone:
		return true, false, nil

	case FramingExact:
		if body.Kind() == BodyBuffered {
			if !e.outClosed {
				c.wbuf = append(c.wbuf, body.buf...)
				e.outClosed = true
				progressed = true
			}
			return true, progressed, nil
		}
		for e.outWritten < e.outFraming.Length {
			p, flushed, ferr := c.flushWrites()
			progressed = progressed || p
			if ferr != nil {
				return false, progressed, ferr
			}
			if !flushed && len(c.wbuf) > c.cfg.ChunkSizeHint*4 {
				return false, progressed, nil
			}
			want := int64(len(c.scratch))
			if remain := e.outFraming.Length - e.outWritten; want > remain {
				want = remain
			}
			n, rerr := body.Read(c.scratch[:want])
			if n > 0 {
				c.wbuf = append(c.wbuf, c.scratch[:n]...)
				e.outWritten += int64(n)
				progressed = true
			}
			switch rerr {
			case nil:
				if n == 0 {
					// zero-byte read with no error; yield instead of
					// spinning inside one poll
					return false, progressed, nil
				}
			case ErrNotReady:
				return false, progressed, nil
			case io.EOF:
				if e.outWritten < e.outFraming.Length {
					return false, progressed, fmt.Errorf("%w: source ended at %d of %d bytes",
						ErrBodyLengthMismatch, e.outWritten, e.outFraming.Length)
				}
			default:
				return false, progressed, rerr
			}
		}
		if !e.outClosed {
			// the source declared an exact size; verify it has nothing
			// more to yield
			var probe [1]byte
			n, rerr := body.Read(probe[:])
			if n > 0 {
				return false, progressed, fmt.Errorf("%w: source yielded more than %d bytes",
					ErrBodyLengthMismatch, e.outFraming.Length)
			}
			switch rerr {
			case io.EOF, nil:
				e.outClosed = true
			case ErrNotReady:
				return false, progressed, nil
			default:
				return false, progressed, rerr
			}
		}
		return true, progressed, nil

	case FramingChunked:
		for {
			p, flushed, ferr := c.flushWrites()
			progressed = progressed || p
			if ferr != nil {
				return false, progressed, ferr
			}
			if !flushed && len(c.wbuf) > c.cfg.ChunkSizeHint*4 {
				return false, progressed, nil
			}
			n, rerr := body.Read(c.scratch)
			if n > 0 {
				c.wbuf = wire.AppendChunk(c.wbuf, c.scratch[:n])
				progressed = true
			}
			switch rerr {
			case nil:
				if n == 0 {
					return false, progressed, nil
				}
			case ErrNotReady:
				return false, progressed, nil
			case io.EOF:
				c.wbuf = wire.AppendFinalChunk(c.wbuf)
				return true, true, nil
			default:
				return false, progressed, rerr
			}
		}
	}
	return true, progressed, nil
}

// ===== stream I/O =====

// fillRead pulls whatever the stream has into the read buffer.
func (c *Conn) fillRead() (int, error) {
	n, err := c.stream.Read(c.scratch)
	if n > 0 {
		c.rbuf = append(c.rbuf, c.scratch[:n]...)
	}
	return n, err
}

// flushWrites pushes buffered outbound bytes to the stream. flushed
// reports whether the buffer is now empty.
func (c *Conn) flushWrites() (progressed, flushed bool, err error) {
	for len(c.wbuf) > 0 {
		n, werr := c.stream.Write(c.wbuf)
		if n > 0 {
			c.wbuf = c.wbuf[n:]
			progressed = true
		}
		if werr == ErrNotReady {
			return progressed, false, nil
		}
		if werr != nil {
			return progressed, false, werr
		}
	}
	return progressed, true, nil
}


package h1x

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"dqx0.com/go/transports/internal/obs"
)

// Client issues requests over a per-host pool of client-role engine
// connections. Each pooled connection runs its own driver goroutine; a
// request is handed to the connection's Service script and the response
// comes back once its head has been read. The response body streams
// while the connection keeps decoding.
type Client struct {
	DialTimeout     time.Duration
	IdleConnTimeout time.Duration
	MaxConnsPerHost int
	Config          Config

	mu    sync.Mutex
	idle  map[string][]*pooledConn
	conns map[string]int
	once  sync.Once
	stop  chan struct{}
}

// Response is a received response plus the pooled connection behind
// it. Close drains the remaining body and returns the connection to
// the pool when it is reusable.
type Response struct {
	Head Head
	Body *Body

	c      *Client
	key    string
	pc     *pooledConn
	closed bool
}

func (r *Response) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.Body != nil {
		_ = r.Body.Close()
	}
	if r.pc == nil {
		return nil
	}
	// the engine itself refuses to write a new request before the
	// previous response is fully off the wire, so the connection can go
	// back to the pool immediately
	if r.pc.conn.persistent && !r.pc.dead() {
		r.c.putConn(r.key, r.pc)
	} else {
		r.c.closeConn(r.key, r.pc)
	}
	return nil
}

// pooledConn is one client-role connection plus its driver goroutine
// and request script.
type pooledConn struct {
	conn    *Conn
	script  *clientScript
	cancel  context.CancelFunc
	runDone chan struct{}
	runErr  error
	lastUse time.Time
}

// dead reports whether the driver goroutine has exited.
func (pc *pooledConn) dead() bool {
	select {
	case <-pc.runDone:
		return true
	default:
		return false
	}
}

// clientScript is the Service behind every pooled connection: it feeds
// requests handed over by Do and surfaces each response back.
type clientScript struct {
	req chan *Message
	res chan *Message
}

func (s *clientScript) Serve(ctx context.Context, in *Message) (*Message, error) {
	if in != nil {
		select {
		case s.res <- in:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	select {
	case m := <-s.req:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do sends req to addr (host:port) and returns the response once its
// head is in. req.Head needs Method and Target; a missing Host header
// is filled in from addr.
func (c *Client) Do(ctx context.Context, addr string, req *Message) (*Response, error) {
	c.once.Do(c.startCleanup)
	cfg := c.Config.withDefaults()
	start := time.Now()

	if req == nil || req.Head.Method == "" || req.Head.Target == "" {
		return nil, errors.New("h1x: request needs method and target")
	}
	if !req.Head.Header.Has("Host") {
		req.Head.Header.Set("host", hostNoPort(addr))
	}
	c.stampHeaders(ctx, req)

	pc, err := c.getConn(ctx, addr)
	if err != nil {
		cfg.Logger.Logf(obs.Error, "dial %s failed: %v", addr, err)
		cfg.Meter.Counter("h1x_client_requests_error", 1, obs.Label{Key: "stage", Value: "dial"})
		return nil, err
	}

	select {
	case pc.script.req <- req:
	case <-pc.runDone:
		c.closeConn(addr, pc)
		return nil, fmt.Errorf("h1x: connection ended before request: %w", pc.conn.Err())
	case <-ctx.Done():
		c.closeConn(addr, pc)
		return nil, ctx.Err()
	}
	cfg.Meter.Counter("h1x_client_requests_total", 1, obs.Label{Key: "method", Value: req.Head.Method})

	select {
	case in := <-pc.script.res:
		cfg.Meter.Counter("h1x_client_responses_total", 1,
			obs.Label{Key: "status", Value: fmt.Sprintf("%d", in.Head.Status)})
		cfg.Meter.Histogram("h1x_client_roundtrip_duration_ms", float64(time.Since(start).Milliseconds()),
			obs.Label{Key: "method", Value: req.Head.Method})
		return &Response{Head: in.Head, Body: in.Body, c: c, key: addr, pc: pc}, nil
	case <-pc.runDone:
		c.closeConn(addr, pc)
		err := pc.conn.Err()
		if err == nil {
			err = ErrClosed
		}
		cfg.Meter.Counter("h1x_client_requests_error", 1, obs.Label{Key: "stage", Value: "response"})
		return nil, err
	case <-ctx.Done():
		c.closeConn(addr, pc)
		return nil, ctx.Err()
	}
}

// stampHeaders fills in request ID and trace context headers the
// caller left out.
func (c *Client) stampHeaders(ctx context.Context, req *Message) {
	h := &req.Head.Header
	if !h.Has("x-request-id") {
		if id, ok := ExchangeIDFrom(ctx); ok {
			h.Set("x-request-id", id)
		} else {
			h.Set("x-request-id", uuid.NewString())
		}
	}
	if cid, ok := CorrelationIDFrom(ctx); ok && !h.Has("x-correlation-id") {
		h.Set("x-correlation-id", cid)
	}
	if !h.Has("traceparent") {
		tid, sid := genTraceID(), genSpanID()
		if tr, ok := TraceFrom(ctx); ok && tr.TraceID != "" {
			tid = tr.TraceID
		}
		h.Set("traceparent", FormatTraceparent(tid, sid, "01"))
	}
}

func (c *Client) getConn(ctx context.Context, addr string) (*pooledConn, error) {
	cfg := c.Config.withDefaults()
	c.mu.Lock()
	if c.idle == nil {
		c.idle = make(map[string][]*pooledConn)
		c.conns = make(map[string]int)
	}
	for {
		list := c.idle[addr]
		if len(list) == 0 {
			break
		}
		pc := list[len(list)-1]
		c.idle[addr] = list[:len(list)-1]
		if pc.dead() {
			c.conns[addr]--
			continue
		}
		c.mu.Unlock()
		cfg.Meter.Counter("h1x_client_conn_reuse_total", 1)
		return pc, nil
	}
	if c.MaxConnsPerHost > 0 && c.conns[addr] >= c.MaxConnsPerHost {
		c.mu.Unlock()
		return nil, fmt.Errorf("h1x: max connections reached for %s", addr)
	}
	c.mu.Unlock()

	nc, err := c.dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	script := &clientScript{req: make(chan *Message), res: make(chan *Message)}
	connCtx, cancel := context.WithCancel(context.Background())
	conn := NewConn(RoleClient, NetStream(nc), script, c.Config)
	pc := &pooledConn{conn: conn, script: script, cancel: cancel, runDone: make(chan struct{}), lastUse: time.Now()}
	go func() {
		pc.runErr = conn.Run(connCtx)
		close(pc.runDone)
	}()

	c.mu.Lock()
	c.conns[addr]++
	c.mu.Unlock()
	cfg.Meter.Counter("h1x_client_conn_dial_total", 1)
	return pc, nil
}

// dial connects with exponential backoff, bounded by DialTimeout.
func (c *Client) dial(ctx context.Context, addr string) (net.Conn, error) {
	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var nc net.Conn
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxElapsedTime = timeout
	op := func() error {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		nc = conn
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return nc, nil
}

func (c *Client) putConn(addr string, pc *pooledConn) {
	pc.lastUse = time.Now()
	c.mu.Lock()
	c.idle[addr] = append(c.idle[addr], pc)
	c.mu.Unlock()
}

func (c *Client) closeConn(addr string, pc *pooledConn) {
	pc.cancel()
	_ = pc.conn.Close()
	c.mu.Lock()
	if c.conns[addr] > 0 {
		c.conns[addr]--
	}
	c.mu.Unlock()
}

func (c *Client) startCleanup() {
	c.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.pruneIdle()
			case <-c.stop:
				return
			}
		}
	}()
}

func (c *Client) pruneIdle() {
	if c.IdleConnTimeout <= 0 {
		return
	}
	cfg := c.Config.withDefaults()
	now := time.Now()
	var expired []*pooledConn
	c.mu.Lock()
	for key, list := range c.idle {
		kept := list[:0]
		for _, pc := range list {
			if now.Sub(pc.lastUse) > c.IdleConnTimeout || pc.dead() {
				expired = append(expired, pc)
				if c.conns[key] > 0 {
					c.conns[key]--
				}
				continue
			}
			kept = append(kept, pc)
		}
		if len(kept) == 0 {
			delete(c.idle, key)
		} else {
			c.idle[key] = kept
		}
	}
	c.mu.Unlock()
	for _, pc := range expired {
		pc.cancel()
		_ = pc.conn.Close()
		cfg.Meter.Counter("h1x_client_conn_idle_closed_total", 1)
	}
}

// CloseIdleConnections tears down every idle pooled connection.
func (c *Client) CloseIdleConnections() {
	var idle []*pooledConn
	c.mu.Lock()
	for key, list := range c.idle {
		for _, pc := range list {
			idle = append(idle, pc)
			if c.conns[key] > 0 {
				c.conns[key]--
			}
		}
		delete(c.idle, key)
	}
	c.mu.Unlock()
	for _, pc := range idle {
		pc.cancel()
		_ = pc.conn.Close()
	}
}

// Close stops background cleanup and closes idle connections. In-use
// connections are released when their responses are closed.
func (c *Client) Close() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.CloseIdleConnections()
}

// hostNoPort strips the port from a dial address for use in a Host
// header.
func hostNoPort(addr string) string {
	if strings.HasPrefix(addr, "[") {
		if i := strings.Index(addr, "]"); i >= 0 {
			return addr[:i+1]
		}
	}
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}

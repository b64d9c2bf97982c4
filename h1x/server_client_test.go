package h1x

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"dqx0.com/go/transports/internal/obs"
)

func startServer(t *testing.T, svc Service) (string, *Server) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &Server{Service: svc}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })
	return ln.Addr().String(), srv
}

// countMeter records counter totals for assertions.
type countMeter struct {
	mu     sync.Mutex
	counts map[string]float64
}

func newCountMeter() *countMeter { return &countMeter{counts: make(map[string]float64)} }

func (m *countMeter) Counter(name string, value float64, labels ...obs.Label) {
	m.mu.Lock()
	m.counts[name] += value
	m.mu.Unlock()
}

func (m *countMeter) Histogram(name string, value float64, labels ...obs.Label) {}

func (m *countMeter) get(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

func TestServerClientEcho(t *testing.T) {
	addr, _ := startServer(t, echoService(t))

	c := &Client{}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := &Message{
		Head: Head{Method: "POST", Target: "/echo"},
		Body: BufferedBody([]byte("round and round")),
	}
	res, err := c.Do(ctx, addr, req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer res.Close()

	if res.Head.Status != 200 {
		t.Fatalf("status %d", res.Head.Status)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil || string(body) != "round and round" {
		t.Fatalf("body %q err=%v", body, err)
	}
}

func TestClientReusesConnection(t *testing.T) {
	addr, _ := startServer(t, echoService(t))

	meter := newCountMeter()
	c := &Client{Config: Config{Meter: meter}}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		res, err := c.Do(ctx, addr, &Message{
			Head: Head{Method: "GET", Target: "/r"},
		})
		if err != nil {
			t.Fatalf("Do %d: %v", i, err)
		}
		if _, err := io.Copy(io.Discard, res.Body); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if err := res.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}

	if dials := meter.get("h1x_client_conn_dial_total"); dials != 1 {
		t.Fatalf("dials=%v", dials)
	}
	if reuse := meter.get("h1x_client_conn_reuse_total"); reuse != 2 {
		t.Fatalf("reuse=%v", reuse)
	}
}

func TestClientStreamingResponseBody(t *testing.T) {
	svc := ServiceFunc(func(ctx context.Context, in *Message) (*Message, error) {
		return &Message{
			Head: Head{Status: 200},
			Body: StreamingBody(&pieceReader{pieces: []string{"one ", "two ", "three"}}),
		}, nil
	})
	addr, _ := startServer(t, svc)

	c := &Client{}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.Do(ctx, addr, &Message{Head: Head{Method: "GET", Target: "/s"}})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer res.Close()

	if res.Body.Kind() != BodyStreaming {
		t.Fatalf("kind %v", res.Body.Kind())
	}
	body, err := io.ReadAll(res.Body)
	if err != nil || string(body) != "one two three" {
		t.Fatalf("body %q err=%v", body, err)
	}
}

func TestClientStampsIdentityHeaders(t *testing.T) {
	type captured struct {
		host, reqID, traceparent string
	}
	ch := make(chan captured, 1)
	svc := ServiceFunc(func(ctx context.Context, in *Message) (*Message, error) {
		ch <- captured{
			host:        in.Head.Header.Get("Host"),
			reqID:       in.Head.Header.Get("x-request-id"),
			traceparent: in.Head.Header.Get("traceparent"),
		}
		return &Message{Head: Head{Status: 204}}, nil
	})
	addr, _ := startServer(t, svc)

	c := &Client{}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = WithTrace(ctx, Trace{TraceID: "4bf92f3577b34da6a3ce929d0e0e4736"})

	res, err := c.Do(ctx, addr, &Message{Head: Head{Method: "GET", Target: "/"}})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer res.Close()

	got := <-ch
	if got.host == "" || got.reqID == "" {
		t.Fatalf("missing identity headers: %+v", got)
	}
	tid, _, _, ok := ParseTraceparent(got.traceparent)
	if !ok || tid != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("traceparent %q", got.traceparent)
	}
}

func TestServerShutdownWaitsForIdlePeers(t *testing.T) {
	addr, srv := startServer(t, echoService(t))

	c := &Client{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.Do(ctx, addr, &Message{Head: Head{Method: "GET", Target: "/"}})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Close()
	// dropping the client's pooled connections lets the server observe
	// EOF and finish cleanly
	c.Close()

	shCtx, shCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

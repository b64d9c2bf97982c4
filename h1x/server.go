package h1x

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"dqx0.com/go/transports/internal/obs"
)

// Server accepts TCP connections and drives each one as a server-role
// engine connection. All application behavior lives in Service.
type Server struct {
	Addr    string
	Service Service
	Config  Config

	// ReadTimeout and WriteTimeout bound individual stream operations.
	// Zero means no deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	cancel   context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

// ErrServerClosed is returned by Serve after Shutdown or Close.
var ErrServerClosed = errors.New("h1x: server closed")

func (s *Server) ListenAndServe() error {
	addr := s.Addr
	if addr == "" {
		addr = ":8080"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on l until Shutdown or Close. One goroutine
// runs per connection.
func (s *Server) Serve(l net.Listener) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.cancel = cancel
	if s.conns == nil {
		s.conns = make(map[*Conn]struct{})
	}
	s.mu.Unlock()

	defer l.Close()
	for {
		nc, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return ErrServerClosed
			}
			return err
		}
		s.wg.Add(1)
		go s.serveConn(ctx, nc)
	}
}

func (s *Server) serveConn(ctx context.Context, nc net.Conn) {
	defer s.wg.Done()

	stream := Stream(netStream{nc})
	if s.ReadTimeout > 0 || s.WriteTimeout > 0 {
		stream = deadlineStream{nc, s.ReadTimeout, s.WriteTimeout}
	}
	conn := NewConn(RoleServer, stream, s.Service, s.Config)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		nc.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	err := conn.Run(ctx)
	if err != nil && s.Config.Logger != nil {
		s.Config.Logger.Logf(obs.Debug, "conn %s ended: %v", conn.ID(), err)
	}

	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Shutdown stops accepting and waits for active connections to finish,
// up to ctx's deadline. Connections still running when ctx expires are
// force-closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.Close()
		return ctx.Err()
	}
}

// Close stops accepting and tears down every active connection.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	cancel := s.cancel
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	if cancel != nil {
		cancel()
	}
	for _, c := range conns {
		c.Close()
	}
	return nil
}

// deadlineStream arms a fresh deadline before each stream operation.
type deadlineStream struct {
	nc           net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (d deadlineStream) Read(p []byte) (int, error) {
	if d.readTimeout > 0 {
		_ = d.nc.SetReadDeadline(time.Now().Add(d.readTimeout))
	}
	return d.nc.Read(p)
}

func (d deadlineStream) Write(p []byte) (int, error) {
	if d.writeTimeout > 0 {
		_ = d.nc.SetWriteDeadline(time.Now().Add(d.writeTimeout))
	}
	return d.nc.Write(p)
}

func (d deadlineStream) Close() error { return d.nc.Close() }

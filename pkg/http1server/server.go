// Package http1server is a minimal, net/http-free server-role consumer
// of pkg/http1: it owns a net.Listener, drives
// http1.Connection{Role: Server} per accepted connection, and hands
// each request's headers to a HandlerFunc. It exists to exercise the
// server side of the framing core end to end — pkg/client exercises
// the client side — and is grounded on the accept-loop/keep-alive
// shape of shockwave's server.Serve/handleConnection, reimplemented
// against this module's own http1/headers/wire types rather than
// shockwave's http11 package.
package http1server

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/WhileEndless/httpwire/pkg/arena"
	"github.com/WhileEndless/httpwire/pkg/errors"
	"github.com/WhileEndless/httpwire/pkg/headers"
	"github.com/WhileEndless/httpwire/pkg/http1"
	"github.com/WhileEndless/httpwire/pkg/wire"
)

// HandlerFunc answers one request's headers with a status code and
// response headers. Returning a nil Headers is equivalent to an empty
// one. The handler never sees or writes the body; body framing is out
// of scope for this package the same way it is for pkg/http1 (spec.md
// Non-goals).
type HandlerFunc func(request *headers.Headers) (status int, response *headers.Headers)

// Config bounds how long a connection is kept open for keep-alive
// reuse, mirroring the shockwave ConnectionConfig fields this package
// is grounded on.
type Config struct {
	// KeepAliveTimeout bounds how long a connection may sit idle
	// between requests before the server closes it. Zero means no
	// idle timeout.
	KeepAliveTimeout time.Duration
	// MaxRequests bounds how many requests one connection may carry
	// before the server closes it regardless of keep-alive. Zero
	// means unbounded.
	MaxRequests int
}

// Server accepts connections on a net.Listener and serves requests
// from a single registered HandlerFunc.
type Server struct {
	Config Config

	handler HandlerFunc
	pool    *arena.Pool

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	wg       sync.WaitGroup
}

// New returns a Server with the given config; HandleFunc must be
// called before Serve.
func New(config Config) *Server {
	return &Server{Config: config, pool: arena.NewPool()}
}

// HandleFunc registers the handler every accepted connection's
// requests are dispatched to. It must be called once, before Serve.
func (s *Server) HandleFunc(h HandlerFunc) {
	s.handler = h
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NewConnectionError(addr, 0, err)
	}
	return s.Serve(l)
}

// Serve accepts connections from l until Close is called, spawning one
// goroutine per connection. It blocks until the listener is closed or
// Accept fails for a reason other than shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	defer l.Close()

	for {
		conn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				s.wg.Wait()
				return nil
			}
			return errors.NewConnectionError(l.Addr().String(), 0, err)
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// Close stops Serve from accepting further connections. Connections
// already in flight run to completion.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return nil
	}
	return l.Close()
}

// handleConnection drives one TCP connection's keep-alive request loop:
// a fresh http1.Stream per request, reusing the same http1.Connection
// (and its peer_version memoization) across requests until the peer
// closes, a parse error occurs, the request asked to close the
// connection, or Config.MaxRequests is reached.
func (s *Server) handleConnection(netConn net.Conn) {
	defer s.wg.Done()
	defer netConn.Close()

	conn := http1.NewConnection(http1.Server, http1.HTTP1_1)
	src := wire.NewSource(netConn)
	sink := wire.NewSink(netConn)

	for requests := 0; s.Config.MaxRequests <= 0 || requests < s.Config.MaxRequests; requests++ {
		if s.Config.KeepAliveTimeout > 0 {
			if err := netConn.SetReadDeadline(time.Now().Add(s.Config.KeepAliveTimeout)); err != nil {
				return
			}
		}

		a := s.pool.Get()
		stream := conn.NewStream(a)
		req, err := stream.ReadRequestHeaders(src)
		if err != nil {
			s.pool.Put(a)
			return
		}

		status, resp := s.handler(req)
		if resp == nil {
			resp = headers.New()
		}
		resp.AppendOwned(":status", statusCode(status), 0)

		closeAfter := wantsClose(req)
		if closeAfter {
			resp.Append("connection", "close", 0)
		}

		writeErr := stream.WriteHeaderBlock(resp, sink)
		s.pool.Put(a)
		if writeErr != nil {
			return
		}

		if closeAfter {
			return
		}
	}
}

// wantsClose reports whether the request's Connection header (if any)
// asked for the connection to close after this exchange. The request's
// HTTP version is not considered.
func wantsClose(req *headers.Headers) bool {
	for _, v := range req.All("connection") {
		if strings.EqualFold(v, "close") {
			return true
		}
	}
	return false
}

func statusCode(status int) string {
	// :status is carried as a 3-digit string per pkg/headers/pkg/http1
	// convention (see write.go's writeServerHeaderBlock validation).
	digits := [3]byte{'0', '0', '0'}
	digits[2] = byte('0' + status%10)
	status /= 10
	digits[1] = byte('0' + status%10)
	status /= 10
	digits[0] = byte('0' + status%10)
	return string(digits[:])
}

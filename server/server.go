// Package server runs the single-goroutine accept loop: one read per
// connection, one response, close. Between connections it runs poll hooks.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-logr/logr"
)

const (
	// MaxRequest is the read buffer; one read is one request.
	MaxRequest = 4 << 10
	// PollInterval is the accept deadline and the poll hook period.
	PollInterval = 100 * time.Millisecond
	// IOTimeout bounds the request read and the response write.
	IOTimeout = 2 * time.Second
)

// Handler turns a raw request into a response document.
type Handler interface {
	Handle(ctx context.Context, req []byte) []byte
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req []byte) []byte

func (f HandlerFunc) Handle(ctx context.Context, req []byte) []byte { return f(ctx, req) }

// Server serves a Handler. Handler and poll hooks all run on the Serve
// goroutine, so they need no locking between them.
type Server struct {
	Handler      Handler
	PollInterval time.Duration
	IOTimeout    time.Duration

	hooks    []func(context.Context)
	lastPoll time.Time
	buf      []byte
}

// New returns a server with default timings.
func New(h Handler) *Server {
	return &Server{Handler: h, PollInterval: PollInterval, IOTimeout: IOTimeout}
}

// OnPoll adds a hook run at most once per PollInterval.
func (s *Server) OnPoll(f func(context.Context)) {
	s.hooks = append(s.hooks, f)
}

// Listen opens the TCP listener.
func Listen(addr string) (*net.TCPListener, error) {
	laddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}
	l, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return l, nil
}

// Serve accepts until ctx is done or the listener fails. The listener is
// closed on return.
func (s *Server) Serve(ctx context.Context, l *net.TCPListener) error {
	log := logr.FromContextOrDiscard(ctx)
	defer l.Close()
	if s.buf == nil {
		s.buf = make([]byte, MaxRequest)
	}
	interval := s.PollInterval
	if interval <= 0 {
		interval = PollInterval
	}
	log.Info("Serving", "addr", l.Addr().String())

	for {
		if ctx.Err() != nil {
			return nil
		}
		l.SetDeadline(time.Now().Add(interval))
		conn, err := l.AcceptTCP()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.poll(ctx, interval)
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		s.serveConn(ctx, conn)
		s.poll(ctx, interval)
	}
}

func (s *Server) poll(ctx context.Context, interval time.Duration) {
	now := time.Now()
	if now.Sub(s.lastPoll) < interval {
		return
	}
	s.lastPoll = now
	for _, h := range s.hooks {
		h(ctx)
	}
}

func (s *Server) serveConn(ctx context.Context, conn *net.TCPConn) {
	log := logr.FromContextOrDiscard(ctx).WithValues("remote", conn.RemoteAddr().String())
	defer conn.Close()

	timeout := s.IOTimeout
	if timeout <= 0 {
		timeout = IOTimeout
	}
	conn.SetReadDeadline(time.Now().Add(timeout))
	n, err := conn.Read(s.buf)
	if n == 0 {
		log.V(1).Info("Connection closed without a request", "err", err)
		return
	}

	resp := s.Handler.Handle(logr.NewContext(ctx, log), s.buf[:n])

	conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := conn.Write(resp); err != nil {
		log.Error(err, "Failed to write response")
	}
}

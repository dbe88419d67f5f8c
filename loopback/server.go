package loopback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/launchdarkly/http-asynchrony-tests/framework"
)

const defaultAddress = "127.0.0.1:0"

// Options configures a Server.
type Options struct {
	// Address is the address to listen on. The default is an ephemeral port on 127.0.0.1.
	Address string

	// StreamWrapper, if set, is applied to every accepted connection before the request is read.
	// dribble.Wrapper returns a suitable function.
	StreamWrapper func(net.Conn) net.Conn

	// Logger receives debug output about server activity. It may be nil.
	Logger framework.Logger
}

// Server is a loopback listener that hands accepted connections to test callbacks.
type Server struct {
	listener net.Listener
	url      url.URL
	options  Options
	logger   framework.Logger
	closing  sync.Once
	closeErr error
}

// NewServer starts listening. The caller must call Close.
func NewServer(opts Options) (*Server, error) {
	address := opts.Address
	if address == "" {
		address = defaultAddress
	}
	logger := opts.Logger
	if logger == nil {
		logger = framework.NullLogger()
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("could not start loopback server on %s: %w", address, err)
	}
	s := &Server{
		listener: listener,
		url:      url.URL{Scheme: "http", Host: listener.Addr().String(), Path: "/"},
		options:  opts,
		logger:   logger,
	}
	s.logger.Printf("Listening on %s", listener.Addr())
	return s, nil
}

// URL returns the address clients should send requests to.
func (s *Server) URL() *url.URL {
	u := s.url
	return &u
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops listening. It is safe to call more than once.
func (s *Server) Close() error {
	s.closing.Do(func() {
		s.closeErr = s.listener.Close()
	})
	return s.closeErr
}

// AcceptConnection waits for a single incoming connection, applies the StreamWrapper, and passes
// it to handler. The connection is closed when handler returns.
//
// If ctx ends first, the listener (or the accepted connection, if there already is one) is
// closed so that neither this call nor the peer stays blocked.
func (s *Server) AcceptConnection(ctx context.Context, handler func(*Connection) error) error {
	stopListener := context.AfterFunc(ctx, func() { _ = s.Close() })
	conn, err := s.listener.Accept()
	stopListener()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("gave up waiting for a connection: %w", context.Cause(ctx))
		}
		return fmt.Errorf("accept failed: %w", err)
	}
	s.logger.Printf("Accepted connection from %s", conn.RemoteAddr())

	if s.options.StreamWrapper != nil {
		conn = s.options.StreamWrapper(conn)
	}
	c := newConnection(conn, s.logger)
	defer func() {
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Printf("Error closing connection: %s", err)
		}
	}()
	stopConn := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stopConn()

	if err := handler(c); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w (connection was aborted: %w)", err, context.Cause(ctx))
		}
		return err
	}
	return nil
}

// CreateClientAndServer starts a Server, then runs serverFunc against it and clientFunc against
// its URL concurrently. It returns once both have returned. The first error from either side
// cancels the context given to both, and is the error returned.
func CreateClientAndServer(
	ctx context.Context,
	clientFunc func(ctx context.Context, uri *url.URL) error,
	serverFunc func(ctx context.Context, server *Server) error,
	opts Options,
) error {
	server, err := NewServer(opts)
	if err != nil {
		return err
	}
	defer server.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := serverFunc(gctx, server); err != nil {
			return fmt.Errorf("server side failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := clientFunc(gctx, server.URL()); err != nil {
			return fmt.Errorf("client side failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

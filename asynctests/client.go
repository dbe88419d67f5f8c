package asynctests

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/launchdarkly/http-asynchrony-tests/dribble"
	"github.com/launchdarkly/http-asynchrony-tests/framework"
	"github.com/launchdarkly/http-asynchrony-tests/schedctx"
)

const streamReadBufferSize = 0x1000

// Client is the HTTP client under test. Get must perform a GET request to uri, consume the
// response as the completion style describes, and return the body. ctx carries the ambient
// scheduler, which a well-behaved client never uses.
type Client interface {
	Get(ctx context.Context, uri string, completion Completion) (Response, error)
}

// Response is what the client under test reports back.
type Response struct {
	Body string
	// Closed is true if the server signaled that the connection ends with this response.
	Closed bool
}

// HTTPClient is a Client built on net/http. Every socket it opens is wrapped in a dribble.Conn so
// the client side also sees one-byte transfers.
type HTTPClient struct {
	chunkSize int
	logger    framework.Logger
}

// NewHTTPClient creates an HTTPClient. A chunkSize of zero or less means one byte; the logger may
// be nil.
func NewHTTPClient(chunkSize int, logger framework.Logger) *HTTPClient {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &HTTPClient{chunkSize: chunkSize, logger: logger}
}

func (c *HTTPClient) Get(ctx context.Context, uri string, completion Completion) (Response, error) {
	var dialer net.Dialer
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return dribble.NewConn(conn, c.chunkSize), nil
		},
		DisableKeepAlives: true,
	}
	defer transport.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return Response{}, err
	}
	c.logger.Printf("Sending GET to %s (%s)", uri, completion)
	resp, err := (&http.Client{Transport: transport}).Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("unexpected response status %d", resp.StatusCode)
	}

	var body string
	switch completion {
	case CompletionHeadersOnly:
		body, err = readInChunks(resp.Body)
	default:
		var data []byte
		data, err = io.ReadAll(resp.Body)
		body = string(data)
	}
	if err != nil {
		return Response{}, fmt.Errorf("error reading response body: %w", err)
	}
	c.logger.Printf("Received %d-byte body", len(body))
	return Response{Body: body, Closed: resp.Close}, nil
}

func readInChunks(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, streamReadBufferSize)
	for {
		n, err := r.Read(buf)
		sb.Write(buf[:n])
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
	}
}

// LeakingClient wraps another Client and deliberately routes a continuation through the ambient
// scheduler, the way a client would if it resumed on the caller's scheduling context. It exists
// to prove that a leak is detected.
type LeakingClient struct {
	Client Client
}

func (c LeakingClient) Get(ctx context.Context, uri string, completion Completion) (Response, error) {
	sched := schedctx.FromContext(ctx)
	if sched == nil {
		return c.Client.Get(ctx, uri, completion)
	}

	sched.OperationStarted()
	defer sched.OperationCompleted()

	resp, err := c.Client.Get(ctx, uri, completion)

	resumed := make(chan struct{})
	sched.Post(func(context.Context) { close(resumed) })
	select {
	case <-resumed:
	case <-ctx.Done():
		return resp, ctx.Err()
	}
	return resp, err
}

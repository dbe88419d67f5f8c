package loopback

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ContentMode selects how a response body is framed on the wire.
type ContentMode int

const (
	// ContentLength frames the body with a Content-Length header.
	ContentLength ContentMode = iota
	// Chunked sends the body as a single chunk followed by the terminating chunk.
	Chunked
	// ChunkedWithTrailingCompression gzips the body, then sends it chunked with
	// Content-Encoding: gzip.
	ChunkedWithTrailingCompression
	// ConnectionClose sends no framing at all; the end of the body is the end of the connection.
	ConnectionClose
)

var (
	// ErrUnknownContentMode is returned for a ContentMode value outside the defined set.
	ErrUnknownContentMode = errors.New("unknown content mode")
	// ErrConnectionCloseRequired is returned when ConnectionClose framing is requested for a
	// response that would leave the connection open.
	ErrConnectionCloseRequired = errors.New("ConnectionClose content mode requires the connection to be closed")
)

var contentModeNames = map[ContentMode]string{
	ContentLength:                  "content-length",
	Chunked:                        "chunked",
	ChunkedWithTrailingCompression: "chunked-compressed",
	ConnectionClose:                "connection-close",
}

// AllContentModes returns every defined ContentMode in declaration order.
func AllContentModes() []ContentMode {
	return []ContentMode{ContentLength, Chunked, ChunkedWithTrailingCompression, ConnectionClose}
}

func (m ContentMode) String() string {
	if name, ok := contentModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ContentMode(%d)", int(m))
}

// ParseContentMode is the inverse of ContentMode.String.
func ParseContentMode(s string) (ContentMode, error) {
	for mode, name := range contentModeNames {
		if name == s {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownContentMode, s)
}

func (m ContentMode) MarshalText() ([]byte, error) {
	if _, ok := contentModeNames[m]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownContentMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *ContentMode) UnmarshalText(text []byte) error {
	parsed, err := ParseContentMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ContentModeResponse returns the complete HTTP/1.1 response, status line to last body byte,
// that a server should write to deliver body with the given framing. If connectionClose is true
// the response carries "Connection: close" and the caller must close the connection after
// writing it; ConnectionClose mode is only valid in that case.
func ContentModeResponse(mode ContentMode, body string, connectionClose bool) ([]byte, error) {
	var buf bytes.Buffer
	writeHead := func(headers ...string) {
		buf.WriteString("HTTP/1.1 200 OK\r\n")
		if connectionClose {
			buf.WriteString("Connection: close\r\n")
		}
		buf.WriteString("Date: " + time.Now().UTC().Format(http.TimeFormat) + "\r\n")
		for _, h := range headers {
			buf.WriteString(h + "\r\n")
		}
		buf.WriteString("\r\n")
	}

	switch mode {
	case ContentLength:
		writeHead("Content-Length: " + strconv.Itoa(len(body)))
		buf.WriteString(body)

	case Chunked:
		writeHead("Transfer-Encoding: chunked")
		writeChunked(&buf, []byte(body))

	case ChunkedWithTrailingCompression:
		compressed, err := gzipBytes([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("could not compress response body: %w", err)
		}
		writeHead("Transfer-Encoding: chunked", "Content-Encoding: gzip")
		writeChunked(&buf, compressed)

	case ConnectionClose:
		if !connectionClose {
			return nil, ErrConnectionCloseRequired
		}
		writeHead()
		buf.WriteString(body)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownContentMode, mode)
	}
	return buf.Bytes(), nil
}

// writeChunked writes data as one chunk followed by the zero-length terminating chunk. Empty
// data produces only the terminator, since a zero-length chunk would itself end the body.
func writeChunked(buf *bytes.Buffer, data []byte) {
	if len(data) > 0 {
		buf.WriteString(strconv.FormatInt(int64(len(data)), 16) + "\r\n")
		buf.Write(data)
		buf.WriteString("\r\n")
	}
	buf.WriteString("0\r\n\r\n")
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

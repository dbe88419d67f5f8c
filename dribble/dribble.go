// Package dribble provides stream decorators that move data a few bytes at a time.
//
// Wrapping a socket in a dribble Conn forces whatever is reading from it (or writing to it) to
// go around its read or write loop once per chunk, rather than once per buffer. For an HTTP
// client this means every header line and every byte of the body is delivered by a separate
// read, which exercises the slowest and most re-entrant paths of its I/O code.
//
// The decorators do no buffering of their own and never translate errors.
package dribble

import (
	"io"
	"net"
)

// DefaultChunkSize is the number of bytes moved per underlying call when no size is given.
const DefaultChunkSize = 1

func normalizeChunkSize(chunkSize int) int {
	if chunkSize <= 0 {
		return DefaultChunkSize
	}
	return chunkSize
}

// Reader returns at most ChunkSize bytes from each call to Read.
type Reader struct {
	r         io.Reader
	chunkSize int
}

// NewReader wraps r. A chunkSize of zero or less means DefaultChunkSize.
func NewReader(r io.Reader, chunkSize int) *Reader {
	return &Reader{r: r, chunkSize: normalizeChunkSize(chunkSize)}
}

func (d *Reader) Read(p []byte) (int, error) {
	return readChunk(d.r, p, d.chunkSize)
}

// Writer splits each Write into consecutive underlying writes of at most ChunkSize bytes.
type Writer struct {
	w         io.Writer
	chunkSize int
}

// NewWriter wraps w. A chunkSize of zero or less means DefaultChunkSize.
func NewWriter(w io.Writer, chunkSize int) *Writer {
	return &Writer{w: w, chunkSize: normalizeChunkSize(chunkSize)}
}

func (d *Writer) Write(p []byte) (int, error) {
	return writeChunks(d.w, p, d.chunkSize)
}

// Conn is a net.Conn whose reads and writes are fragmented. Everything other than Read and
// Write goes straight to the wrapped connection.
type Conn struct {
	net.Conn
	chunkSize int
}

// NewConn wraps conn. A chunkSize of zero or less means DefaultChunkSize.
func NewConn(conn net.Conn, chunkSize int) *Conn {
	return &Conn{Conn: conn, chunkSize: normalizeChunkSize(chunkSize)}
}

func (c *Conn) Read(p []byte) (int, error) {
	return readChunk(c.Conn, p, c.chunkSize)
}

func (c *Conn) Write(p []byte) (int, error) {
	return writeChunks(c.Conn, p, c.chunkSize)
}

// Unwrap returns the connection that was wrapped.
func (c *Conn) Unwrap() net.Conn {
	return c.Conn
}

// Wrapper returns a function that wraps connections in a Conn, in the form expected by
// loopback.Options.StreamWrapper.
func Wrapper(chunkSize int) func(net.Conn) net.Conn {
	return func(conn net.Conn) net.Conn {
		return NewConn(conn, chunkSize)
	}
}

func readChunk(r io.Reader, p []byte, chunkSize int) (int, error) {
	if len(p) > chunkSize {
		p = p[:chunkSize]
	}
	return r.Read(p)
}

func writeChunks(w io.Writer, p []byte, chunkSize int) (int, error) {
	if len(p) == 0 {
		return w.Write(p)
	}
	written := 0
	for written < len(p) {
		end := written + chunkSize
		if end > len(p) {
			end = len(p)
		}
		n, err := w.Write(p[written:end])
		short := n < end-written
		written += n
		if err != nil {
			return written, err
		}
		if short {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

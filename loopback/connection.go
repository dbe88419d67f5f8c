package loopback

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/launchdarkly/http-asynchrony-tests/framework"
)

// Connection is one accepted socket. Reads go through an internal buffer; Writer writes
// straight to the socket (after any StreamWrapper).
type Connection struct {
	Writer   io.Writer
	conn     net.Conn
	reader   *bufio.Reader
	logger   framework.Logger
	closing  sync.Once
	closeErr error
}

func newConnection(conn net.Conn, logger framework.Logger) *Connection {
	return &Connection{
		Writer: conn,
		conn:   conn,
		reader: bufio.NewReader(conn),
		logger: logger,
	}
}

// ReadRequestHeader reads the request line and headers, up to and including the blank line that
// ends them, and returns them without line terminators. Any request body is left unread.
func (c *Connection) ReadRequestHeader() ([]string, error) {
	var lines []string
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return lines, fmt.Errorf("error reading request header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(lines) > 0 {
				c.logger.Printf("Got request: %s", lines[0])
			}
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// SendResponse writes a response for body using the given framing. The response always asks the
// client to close the connection, which happens when the accept callback returns.
func (c *Connection) SendResponse(mode ContentMode, body string) error {
	data, err := ContentModeResponse(mode, body, true)
	if err != nil {
		return err
	}
	c.logger.Printf("<< sending %d-byte %s response", len(data), mode)
	if _, err := c.Writer.Write(data); err != nil {
		return fmt.Errorf("error writing response: %w", err)
	}
	return nil
}

// Close closes the connection. It is safe to call more than once, and from another goroutine.
func (c *Connection) Close() error {
	c.closing.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

package loopback

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, data []byte) (*http.Response, string) {
	t.Helper()
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(resp.Body)
		require.NoError(t, err)
		defer zr.Close()
		body = zr
	}
	all, err := io.ReadAll(body)
	require.NoError(t, err)
	return resp, string(all)
}

func TestContentModeResponseRoundTrip(t *testing.T) {
	bodies := []string{"", "x", "hello world", strings.Repeat("s", 10000), "multi\r\nline\nbody"}
	for _, mode := range AllContentModes() {
		for _, body := range bodies {
			t.Run(mode.String(), func(t *testing.T) {
				data, err := ContentModeResponse(mode, body, true)
				require.NoError(t, err)

				resp, decoded := decodeResponse(t, data)
				assert.Equal(t, 200, resp.StatusCode)
				assert.True(t, resp.Close, "response should ask for the connection to be closed")
				assert.NotEmpty(t, resp.Header.Get("Date"))
				assert.Equal(t, body, decoded)
			})
		}
	}
}

func TestContentLengthFraming(t *testing.T) {
	data, err := ContentModeResponse(ContentLength, "abc", false)
	require.NoError(t, err)
	s := string(data)
	assert.True(t, strings.HasPrefix(s, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, s, "Content-Length: 3\r\n")
	assert.NotContains(t, s, "Connection: close")
	assert.True(t, strings.HasSuffix(s, "\r\n\r\nabc"))
}

func TestChunkedFraming(t *testing.T) {
	data, err := ContentModeResponse(Chunked, strings.Repeat("s", 26), false)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, "Transfer-Encoding: chunked\r\n")
	assert.True(t, strings.HasSuffix(s, "\r\n\r\n1a\r\n"+strings.Repeat("s", 26)+"\r\n0\r\n\r\n"))
}

func TestChunkedFramingWithEmptyBodyHasOnlyTerminator(t *testing.T) {
	data, err := ContentModeResponse(Chunked, "", false)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "chunked\r\n\r\n0\r\n\r\n"))
}

func TestCompressedFraming(t *testing.T) {
	body := strings.Repeat("s", 10000)
	data, err := ContentModeResponse(ChunkedWithTrailingCompression, body, false)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, "Transfer-Encoding: chunked\r\n")
	assert.Contains(t, s, "Content-Encoding: gzip\r\n")
	assert.Less(t, len(data), len(body), "repetitive body should have been compressed")

	_, decoded := decodeResponse(t, data)
	assert.Equal(t, body, decoded)
}

func TestConnectionCloseFraming(t *testing.T) {
	data, err := ContentModeResponse(ConnectionClose, "abc", true)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, "Connection: close\r\n")
	assert.NotContains(t, s, "Content-Length")
	assert.NotContains(t, s, "Transfer-Encoding")
	assert.True(t, strings.HasSuffix(s, "\r\n\r\nabc"))
}

func TestConnectionCloseRequiresClose(t *testing.T) {
	_, err := ContentModeResponse(ConnectionClose, "abc", false)
	assert.ErrorIs(t, err, ErrConnectionCloseRequired)
}

func TestUnknownContentMode(t *testing.T) {
	_, err := ContentModeResponse(ContentMode(99), "abc", true)
	assert.ErrorIs(t, err, ErrUnknownContentMode)
	assert.Equal(t, "ContentMode(99)", ContentMode(99).String())
}

func TestParseContentMode(t *testing.T) {
	for _, mode := range AllContentModes() {
		parsed, err := ParseContentMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}
	_, err := ParseContentMode("bogus")
	assert.ErrorIs(t, err, ErrUnknownContentMode)
}

func TestContentModeJSONUsesNames(t *testing.T) {
	data, err := json.Marshal([]ContentMode{Chunked, ConnectionClose})
	require.NoError(t, err)
	assert.JSONEq(t, `["chunked","connection-close"]`, string(data))

	var modes []ContentMode
	require.NoError(t, json.Unmarshal([]byte(`["chunked-compressed"]`), &modes))
	assert.Equal(t, []ContentMode{ChunkedWithTrailingCompression}, modes)

	assert.Error(t, json.Unmarshal([]byte(`["bogus"]`), &modes))
	_, err = json.Marshal(ContentMode(99))
	assert.Error(t, err)
}

// Package loopback implements a minimal HTTP/1.1 server bound to the loopback interface, for
// driving an HTTP client under test.
//
// The server does not parse requests beyond finding the end of the header block, and it does not
// generate responses on its own: each test supplies a callback that receives the accepted
// Connection and writes raw response bytes, usually built with ContentModeResponse. This keeps
// full control of the wire format in the test, so it can choose between Content-Length framing,
// chunked framing, compressed chunked framing, or no framing with the connection closed at the
// end.
//
// CreateClientAndServer runs the client side and the server side concurrently and fails as soon
// as either side fails.
package loopback

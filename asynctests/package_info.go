// Package asynctests contains the asynchrony tests for HTTP clients and the API that drives them.
//
// Each scenario starts a loopback server that sends a 10,000-byte body one byte at a time, using
// one of the ContentMode framings, and runs the client under test against it with a tracking
// scheduler installed in the request context. The scenario passes only if the client returned
// the whole body and never used the scheduler.
//
// Infrastructure that is not specific to this domain, such as the test context and result
// reporting, is in the lower-level framework package.
package asynctests

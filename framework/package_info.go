// Package framework contains the low-level test infrastructure shared by the asynchrony tests.
//
// The general model is:
//
// 1. A test run is a tree of named tests. Each test gets a Context, which is similar to Go's
// *testing.T: it accumulates failures, can skip, and can be passed to the assert and require
// packages.
//
// 2. Each test has its own capturing debug logger. Its output is handed to the TestLogger when
// the test finishes, so that the console can show debug output only for tests that failed.
//
// 3. Tests can be selected or excluded with regex filters that match against the full test path.
//
// The domain-specific code that knows what is being tested (loopback servers, trackers, clients
// under test) lives in higher-level packages and builds its own test API on top of Context.
package framework

package framework

import (
	"strings"
	"time"
)

// Results is the outcome of a whole test run.
type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

// TestResult is the outcome of a single test. Duration covers the test's action, its subtests
// and its deferred cleanups, so a group's Duration includes every scenario under it.
type TestResult struct {
	TestID   TestID
	Errors   []error
	Skipped  bool
	Duration time.Duration
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Leaves returns the results for tests whose ID has exactly depth path elements, which in a
// suite grouped by a fixed number of levels are the tests that do the actual work.
func (r Results) Leaves(depth int) []TestResult {
	var ret []TestResult
	for _, t := range r.Tests {
		if len(t.TestID.Path) == depth {
			ret = append(ret, t)
		}
	}
	return ret
}

// TestID identifies a test by its path in the test tree, e.g. "asynchrony/headers-only/chunked".
type TestID struct {
	Path []string
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

// Plus returns the ID of a subtest of this test.
func (t TestID) Plus(name string) TestID {
	return TestID{Path: append(append([]string(nil), t.Path...), name)}
}

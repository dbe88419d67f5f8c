package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/http-asynchrony-tests/framework"
	"github.com/launchdarkly/http-asynchrony-tests/loopback"
)

func withoutColor(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })
}

func TestReadParamsDefaults(t *testing.T) {
	var p commandParams
	require.True(t, p.Read([]string{"prog"}, &bytes.Buffer{}))

	assert.False(t, p.config.ChunkSize.IsDefined())
	assert.False(t, p.config.TimeoutMS.IsDefined())
	assert.False(t, p.config.BodyLength.IsDefined())
	assert.False(t, p.filters.IsDefined())
	assert.False(t, p.negativeControl)
}

func TestReadParamsAllOptions(t *testing.T) {
	var p commandParams
	require.True(t, p.Read([]string{"prog",
		"-run", "chunked", "-skip", "compressed",
		"-chunk-size", "7", "-timeout-ms", "500", "-body-length", "20",
		"-mode", "chunked", "-mode", "connection-close",
		"-negative-control", "-debug",
	}, &bytes.Buffer{}))

	n, ok := p.config.ChunkSize.Get()
	assert.True(t, ok)
	assert.Equal(t, 7, n)
	assert.Equal(t, 500, p.config.TimeoutMS.OrElse(0))
	assert.Equal(t, 20, p.config.BodyLength.OrElse(0))
	assert.Equal(t, []string{"chunked"}, p.filters.MustMatch.Patterns())
	assert.Equal(t, []string{"compressed"}, p.filters.MustNotMatch.Patterns())
	assert.Equal(t, []loopback.ContentMode{loopback.Chunked, loopback.ConnectionClose}, p.config.Modes)
	assert.True(t, p.negativeControl)
	assert.True(t, p.debug)
	assert.False(t, p.debugAll)
}

func TestReadParamsRejectsBadValues(t *testing.T) {
	for name, args := range map[string][]string{
		"non-numeric":   {"prog", "-chunk-size", "x"},
		"bad regex":     {"prog", "-run", "("},
		"invalid value": {"prog", "-timeout-ms", "0"},
		"extra args":    {"prog", "something"},
		"unknown mode":  {"prog", "-mode", "gzip"},
	} {
		t.Run(name, func(t *testing.T) {
			var p commandParams
			var errOut bytes.Buffer
			assert.False(t, p.Read(args, &errOut))
			assert.NotEmpty(t, errOut.String())
		})
	}
}

func TestTestIDPatternSelectsOneScenario(t *testing.T) {
	id := framework.TestID{Path: []string{"asynchrony", "headers-only", "chunked"}}
	var filters framework.RegexFilters
	require.NoError(t, filters.MustMatch.Set(testIDPattern(id)))

	for _, path := range [][]string{
		{"asynchrony"},
		{"asynchrony", "headers-only"},
		{"asynchrony", "headers-only", "chunked"},
	} {
		assert.True(t, filters.AsFilter(framework.TestID{Path: path}), "%v", path)
	}
	for _, path := range [][]string{
		{"asynchrony", "fully-buffered"},
		{"asynchrony", "headers-only", "chunked-compressed"},
		{"asynchrony", "headers-only", "content-length"},
	} {
		assert.False(t, filters.AsFilter(framework.TestID{Path: path}), "%v", path)
	}
}

func TestRerunCommandCarriesOptions(t *testing.T) {
	var p commandParams
	require.True(t, p.Read([]string{"prog", "-chunk-size", "4", "-negative-control"}, &bytes.Buffer{}))

	cmd := p.rerunCommand("./http-asynchrony-tests",
		framework.TestID{Path: []string{"asynchrony", "fully-buffered", "connection-close"}})

	assert.Equal(t,
		`./http-asynchrony-tests -run '^asynchrony(/fully-buffered(/connection-close)?)?$' `+
			`-chunk-size 4 -negative-control -debug`,
		cmd)
}

func TestRunPassesWithBuiltInClient(t *testing.T) {
	withoutColor(t)
	var out, errOut bytes.Buffer

	status := run([]string{"prog", "-run", "^asynchrony(/headers-only(/.*)?)?$", "-body-length", "500"}, &out, &errOut)

	assert.Equal(t, 0, status, out.String())
	assert.Contains(t, out.String(), "[asynchrony/headers-only/chunked]")
	assert.Contains(t, out.String(), "All tests passed (4)")
	assert.NotContains(t, out.String(), "fully-buffered/")
}

func TestRunNegativeControlDetectsLeaks(t *testing.T) {
	withoutColor(t)
	var out, errOut bytes.Buffer

	status := run([]string{"prog", "-negative-control", "-run", "content-length$|^asynchrony(/[a-z-]+)?$",
		"-body-length", "100"}, &out, &errOut)

	assert.Equal(t, 0, status, out.String())
	assert.Contains(t, out.String(), "Negative control: leak detected in all 2 scenario(s)")
}

func TestRunHonorsModeFlag(t *testing.T) {
	withoutColor(t)
	var out, errOut bytes.Buffer

	status := run([]string{"prog", "-mode", "chunked-compressed", "-body-length", "300"}, &out, &errOut)

	assert.Equal(t, 0, status, out.String())
	assert.Contains(t, out.String(), "[asynchrony/fully-buffered/chunked-compressed]")
	assert.Contains(t, out.String(), "All tests passed (2)")
	assert.NotContains(t, out.String(), "/content-length]")
}

func TestRunRejectsInvalidParams(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, run([]string{"prog", "-chunk-size", "nope"}, &out, &errOut))
	assert.Empty(t, out.String())
}

func TestPrintResultsListsFailuresWithRerunCommands(t *testing.T) {
	withoutColor(t)
	leaf := framework.TestID{Path: []string{"asynchrony", "headers-only", "chunked"}}
	group := framework.TestID{Path: []string{"asynchrony", "headers-only"}}
	failures := []framework.TestResult{
		{TestID: leaf, Errors: []error{errors.New("leaked")}, Duration: time.Millisecond * 1500},
		{TestID: group, Errors: []error{errors.New("subtest failed")}},
	}
	var out bytes.Buffer

	printResults(&out, framework.Results{Tests: failures, Failures: failures}, func(id framework.TestID) string {
		return "rerun " + id.String()
	})

	assert.Contains(t, out.String(), "FAILED TESTS (2):")
	assert.Contains(t, out.String(), "  * asynchrony/headers-only/chunked (1.5s)\n")
	assert.Contains(t, out.String(), "  * asynchrony/headers-only (0s)\n")
	assert.Contains(t, out.String(), "  rerun asynchrony/headers-only/chunked\n")
	assert.NotContains(t, out.String(), "rerun asynchrony/headers-only\n")
}

func TestConsoleTestLoggerDumpsDebugOutputOnFailure(t *testing.T) {
	withoutColor(t)
	var out bytes.Buffer
	logger := &ConsoleTestLogger{Output: &out, DebugOutputOnFailure: true}
	id := framework.TestID{Path: []string{"asynchrony"}}
	debug := framework.CapturedOutput{{Message: "accepted connection"}}

	logger.TestStarted(id)
	logger.TestError(id, errors.New("line one\nline two"))
	logger.TestFinished(id, true, debug)
	logger.TestFinished(id, false, debug)
	logger.TestSkipped(id, "excluded")

	s := out.String()
	assert.Contains(t, s, "[asynchrony]\n")
	assert.Contains(t, s, "  line one\n  line two\n")
	assert.Contains(t, s, "  FAILED: asynchrony\n")
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("accepted connection")))
	assert.Contains(t, s, "  SKIPPED: asynchrony (excluded)\n")
}

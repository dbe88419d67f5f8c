package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/launchdarkly/http-asynchrony-tests/asynctests"
	"github.com/launchdarkly/http-asynchrony-tests/framework"
)

type ConsoleTestLogger struct {
	Output               io.Writer
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
}

var (
	failedColor  = color.New(color.FgRed, color.Bold)
	skippedColor = color.New(color.FgYellow)
	passedColor  = color.New(color.FgGreen)
)

func (c *ConsoleTestLogger) TestStarted(id framework.TestID) {
	fmt.Fprintf(c.Output, "[%s]\n", id)
}

func (c *ConsoleTestLogger) TestError(id framework.TestID, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(c.Output, "  %s\n", color.RedString(line))
	}
}

func (c *ConsoleTestLogger) TestFinished(id framework.TestID, failed bool, debugOutput framework.CapturedOutput) {
	if failed {
		failedColor.Fprintf(c.Output, "  FAILED: %s\n", id)
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		debugOutput.Dump(c.Output, "    DEBUG ")
	}
}

func (c *ConsoleTestLogger) TestSkipped(id framework.TestID, reason string) {
	if reason == "" {
		skippedColor.Fprintf(c.Output, "  SKIPPED: %s\n", id)
	} else {
		skippedColor.Fprintf(c.Output, "  SKIPPED: %s (%s)\n", id, reason)
	}
}

func printResults(out io.Writer, results framework.Results, rerun func(framework.TestID) string) {
	if results.OK() {
		passedColor.Fprintf(out, "All tests passed (%d)\n", len(ranScenarios(results)))
		return
	}
	failedColor.Fprintf(out, "FAILED TESTS (%d):\n", len(results.Failures))
	for _, f := range results.Failures {
		fmt.Fprintf(out, "  * %s (%s)\n", f.TestID, f.Duration.Round(time.Millisecond))
	}
	if rerun != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "To rerun a failed test with debug output:")
		for _, f := range results.Failures {
			if len(f.TestID.Path) == asynctests.ScenarioDepth {
				fmt.Fprintf(out, "  %s\n", rerun(f.TestID))
			}
		}
	}
}

func ranScenarios(results framework.Results) []framework.TestResult {
	var ret []framework.TestResult
	for _, r := range results.Leaves(asynctests.ScenarioDepth) {
		if !r.Skipped {
			ret = append(ret, r)
		}
	}
	return ret
}

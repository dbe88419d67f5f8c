package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/launchdarkly/http-asynchrony-tests/asynctests"
	"github.com/launchdarkly/http-asynchrony-tests/dribble"
	"github.com/launchdarkly/http-asynchrony-tests/framework"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	var params commandParams
	if !params.Read(args, errOut) {
		return 2
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(out, "", log.LstdFlags)
	}

	var client asynctests.Client = asynctests.NewHTTPClient(
		params.config.ChunkSize.OrElse(dribble.DefaultChunkSize),
		mainDebugLogger,
	)
	if params.negativeControl {
		client = asynctests.LeakingClient{Client: client}
	}

	fmt.Fprintln(out)
	framework.PrintFilterDescription(out, params.filters)

	fmt.Fprintln(out, "Running test suite")

	testLogger := &ConsoleTestLogger{
		Output:               out,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}

	results := asynctests.RunTestSuite(client, params.config, params.filters.AsFilter, testLogger)

	fmt.Fprintln(out)
	if params.negativeControl {
		return reportNegativeControl(out, results)
	}
	printResults(out, results, func(id framework.TestID) string {
		return params.rerunCommand(args[0], id)
	})
	if !results.OK() {
		return 1
	}
	return 0
}

// reportNegativeControl inverts the outcome: every scenario that ran must have detected the leak.
func reportNegativeControl(out io.Writer, results framework.Results) int {
	var undetected []framework.TestID
	scenarios := ranScenarios(results)
	for _, r := range scenarios {
		if len(r.Errors) == 0 {
			undetected = append(undetected, r.TestID)
		}
	}
	ran := len(scenarios)
	if ran == 0 {
		failedColor.Fprintln(out, "Negative control ran no scenarios")
		return 1
	}
	if len(undetected) > 0 {
		failedColor.Fprintf(out, "Negative control: leak went undetected in %d scenario(s):\n", len(undetected))
		for _, id := range undetected {
			fmt.Fprintf(out, "  * %s\n", id)
		}
		return 1
	}
	passedColor.Fprintf(out, "Negative control: leak detected in all %d scenario(s)\n", ran)
	return 0
}

package asynctests

import (
	"context"

	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/http-asynchrony-tests/framework"
)

// ScenarioDepth is the TestID path length of a test that runs one Scenario, as in
// "asynchrony/headers-only/chunked".
const ScenarioDepth = 3

// T represents a test or subtest in the asynchrony test suite.
//
// It implements the same basic functionality as Go's testing.T, but in an environment that is
// outside of the Go test runner, with per-test debug logging provided by the framework package.
// To make assertions, pass the *T to the assert and require packages as if it were a *testing.T.
type T struct {
	context *framework.Context
	env     *environment
}

type environment struct {
	client Client
	config ScenarioConfig
}

// RunTestSuite runs every scenario against client and returns the results.
func RunTestSuite(
	client Client,
	config ScenarioConfig,
	filter framework.Filter,
	testLogger framework.TestLogger,
) framework.Results {
	env := &environment{client: client, config: config}
	return framework.Run(filter, testLogger, func(c *framework.Context) {
		t := &T{context: c, env: env}
		t.Run("asynchrony", DoAsynchronyTests)
	})
}

// DoAsynchronyTests runs one test per Scenario, grouped by completion style. Only the content
// modes in the suite's ScenarioConfig.Modes run, if any are listed.
func DoAsynchronyTests(t *T) {
	for _, completion := range AllCompletions() {
		t.Run(completion.String(), func(t *T) {
			for _, mode := range t.env.config.contentModes() {
				scenario := Scenario{Completion: completion, Mode: mode}
				t.Run(mode.String(), func(t *T) {
					t.RequireScenarioPasses(scenario)
				})
			}
		})
	}
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit. The methods in
// the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a subtest. This is equivalent to the Run method of testing.T.
func (t *T) Run(name string, action func(*T)) {
	t.context.Run(name, func(c *framework.Context) {
		action(&T{context: c, env: t.env})
	})
}

// ID returns the full path of the current test.
func (t *T) ID() framework.TestID {
	return t.context.ID()
}

// Debug logs some debug output for the test. The output will be passed to the test logger at
// the end of the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

// RequireScenarioPasses runs the scenario with the suite's client and configuration, and fails
// the test immediately if the client leaked, timed out, or returned the wrong body.
func (t *T) RequireScenarioPasses(scenario Scenario) {
	err := RunScenario(context.Background(), scenario, t.env.client, t.env.config, t.context.DebugLogger())
	require.NoError(t, err)
}

package asynctests

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/launchdarkly/http-asynchrony-tests/dribble"
	"github.com/launchdarkly/http-asynchrony-tests/framework"
	"github.com/launchdarkly/http-asynchrony-tests/loopback"
	"github.com/launchdarkly/http-asynchrony-tests/schedctx"
)

// LeakError means the client used the ambient scheduler. Its message lists every captured stack,
// which is the only evidence of where the leak came from.
type LeakError struct {
	Scenario    Scenario
	Invocations []schedctx.CapturedInvocation
	// Err is any other error the scenario produced.
	Err error
}

func (e *LeakError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ambient scheduler was used %d time(s) in scenario %s", len(e.Invocations), e.Scenario)
	if e.Err != nil {
		fmt.Fprintf(&sb, " (scenario also failed: %s)", e.Err)
	}
	sb.WriteString(":")
	writeInvocations(&sb, e.Invocations)
	return sb.String()
}

func (e *LeakError) Unwrap() error { return e.Err }

// TimeoutError means the scenario did not finish before its deadline. It is reported the same
// way as a leak, including anything the tracker captured before the deadline.
type TimeoutError struct {
	Scenario    Scenario
	Timeout     time.Duration
	Invocations []schedctx.CapturedInvocation
	Err         error
}

func (e *TimeoutError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "scenario %s did not complete within %s: %s", e.Scenario, e.Timeout, e.Err)
	if len(e.Invocations) > 0 {
		fmt.Fprintf(&sb, "; ambient scheduler was used %d time(s):", len(e.Invocations))
		writeInvocations(&sb, e.Invocations)
	}
	return sb.String()
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func writeInvocations(sb *strings.Builder, invocations []schedctx.CapturedInvocation) {
	for _, inv := range invocations {
		sb.WriteString("\n\n")
		sb.WriteString(inv.String())
	}
}

// RunScenario runs one scenario against client and returns nil only if the client received the
// full body without ever touching the ambient scheduler.
//
// The ambient scheduler is installed only in the context passed to the client; ctx itself must
// not already carry one.
func RunScenario(
	ctx context.Context,
	scenario Scenario,
	client Client,
	config ScenarioConfig,
	logger framework.Logger,
) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid scenario configuration: %w", err)
	}
	if logger == nil {
		logger = framework.NullLogger()
	}

	tracker := schedctx.NewTracker(framework.LoggerWithPrefix(logger, "[tracker] "))

	body := config.Body()
	timeout := config.Timeout()
	scenarioCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Printf("Running scenario %s with a %d-byte body", scenario, len(body))
	result := make(chan error, 1)
	go func() {
		result <- runClientAndServer(scenarioCtx, scenario, client, tracker, body, config.chunkSize(), logger)
	}()

	var err error
	select {
	case err = <-result:
	case <-scenarioCtx.Done():
		// A client that ignores cancellation is abandoned; its goroutine ends whenever it returns.
		select {
		case err = <-result:
		default:
			err = fmt.Errorf("client and server were still running: %w", context.Cause(scenarioCtx))
		}
	}

	// Let any work the client posted finish before the captures are read, but not past the deadline.
	if drainErr := tracker.CloseContext(scenarioCtx); drainErr != nil {
		logger.Printf("Work posted to the ambient scheduler was still running at the deadline")
	}
	invocations := tracker.Invocations()

	if err != nil && errors.Is(scenarioCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return &TimeoutError{Scenario: scenario, Timeout: timeout, Invocations: invocations, Err: err}
	}
	if len(invocations) > 0 {
		return &LeakError{Scenario: scenario, Invocations: invocations, Err: err}
	}
	if err != nil {
		return fmt.Errorf("scenario %s failed: %w", scenario, err)
	}
	logger.Printf("Scenario %s passed", scenario)
	return nil
}

func runClientAndServer(
	ctx context.Context,
	scenario Scenario,
	client Client,
	tracker *schedctx.Tracker,
	body string,
	chunkSize int,
	logger framework.Logger,
) error {
	return loopback.CreateClientAndServer(ctx,
		func(ctx context.Context, uri *url.URL) error {
			clientCtx, err := schedctx.Install(ctx, tracker)
			if err != nil {
				return err
			}
			resp, err := client.Get(clientCtx, uri.String(), scenario.Completion)
			if err != nil {
				return err
			}
			if resp.Body != body {
				return fmt.Errorf("client returned a %d-byte body, expected %d bytes of %q",
					len(resp.Body), len(body), BodyCharacter)
			}
			return nil
		},
		func(ctx context.Context, server *loopback.Server) error {
			return server.AcceptConnection(ctx, func(c *loopback.Connection) error {
				if _, err := c.ReadRequestHeader(); err != nil {
					return err
				}
				return c.SendResponse(scenario.Mode, body)
			})
		},
		loopback.Options{
			StreamWrapper: dribble.Wrapper(chunkSize),
			Logger:        framework.LoggerWithPrefix(logger, "[server] "),
		},
	)
}

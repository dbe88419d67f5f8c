package asynctests

import (
	"fmt"

	"github.com/launchdarkly/http-asynchrony-tests/loopback"
)

// Completion selects how the client consumes the response.
type Completion int

const (
	// CompletionFullyBuffered reads the whole body in one call before returning.
	CompletionFullyBuffered Completion = iota
	// CompletionHeadersOnly returns control once headers arrive, then streams the body in
	// fixed-size reads.
	CompletionHeadersOnly
)

// AllCompletions returns every Completion in declaration order.
func AllCompletions() []Completion {
	return []Completion{CompletionFullyBuffered, CompletionHeadersOnly}
}

func (c Completion) String() string {
	switch c {
	case CompletionFullyBuffered:
		return "fully-buffered"
	case CompletionHeadersOnly:
		return "headers-only"
	default:
		return fmt.Sprintf("Completion(%d)", int(c))
	}
}

// Scenario is one combination of completion style and response framing.
type Scenario struct {
	Completion Completion
	Mode       loopback.ContentMode
}

// Name is the scenario's path in the test tree, e.g. "headers-only/chunked".
func (s Scenario) Name() string {
	return s.Completion.String() + "/" + s.Mode.String()
}

func (s Scenario) String() string {
	return s.Name()
}

// AllScenarios returns every combination of Completion and ContentMode.
func AllScenarios() []Scenario {
	var ret []Scenario
	for _, completion := range AllCompletions() {
		for _, mode := range loopback.AllContentModes() {
			ret = append(ret, Scenario{Completion: completion, Mode: mode})
		}
	}
	return ret
}

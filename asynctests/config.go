package asynctests

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/launchdarkly/http-asynchrony-tests/dribble"
	"github.com/launchdarkly/http-asynchrony-tests/loopback"
)

const (
	// DefaultTimeout bounds each scenario if ScenarioConfig.TimeoutMS is not set.
	DefaultTimeout = time.Second * 30
	// DefaultBodyLength is the response body size if ScenarioConfig.BodyLength is not set.
	DefaultBodyLength = 10000
	// BodyCharacter is repeated to build the response body.
	BodyCharacter = "s"
)

// ScenarioConfig holds the tunable parameters of a scenario. Unset values use the defaults.
type ScenarioConfig struct {
	// ChunkSize is the number of bytes moved per socket read or write on both ends.
	ChunkSize ldvalue.OptionalInt `json:"chunkSize,omitempty"`
	// TimeoutMS is the deadline for the whole scenario, in milliseconds.
	TimeoutMS ldvalue.OptionalInt `json:"timeoutMs,omitempty"`
	// BodyLength is the size of the response body.
	BodyLength ldvalue.OptionalInt `json:"bodyLength,omitempty"`
	// Modes limits the content modes RunTestSuite covers. Empty means all of them.
	Modes []loopback.ContentMode `json:"modes,omitempty"`
}

// Validate reports values that cannot be used.
func (c ScenarioConfig) Validate() error {
	if n, ok := c.ChunkSize.Get(); ok && n <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", n)
	}
	if n, ok := c.TimeoutMS.Get(); ok && n <= 0 {
		return fmt.Errorf("timeout must be positive, got %dms", n)
	}
	if n, ok := c.BodyLength.Get(); ok && n < 0 {
		return fmt.Errorf("body length cannot be negative, got %d", n)
	}
	for _, mode := range c.Modes {
		if _, err := mode.MarshalText(); err != nil {
			return err
		}
	}
	return nil
}

func (c ScenarioConfig) chunkSize() int {
	return c.ChunkSize.OrElse(dribble.DefaultChunkSize)
}

// Timeout returns the scenario deadline.
func (c ScenarioConfig) Timeout() time.Duration {
	if ms, ok := c.TimeoutMS.Get(); ok {
		return time.Duration(ms) * time.Millisecond
	}
	return DefaultTimeout
}

// Body returns the response body the server sends.
func (c ScenarioConfig) Body() string {
	return strings.Repeat(BodyCharacter, c.BodyLength.OrElse(DefaultBodyLength))
}

func (c ScenarioConfig) contentModes() []loopback.ContentMode {
	if len(c.Modes) == 0 {
		return loopback.AllContentModes()
	}
	return c.Modes
}

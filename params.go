package main

import (
	"flag"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/alessio/shellescape"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/launchdarkly/http-asynchrony-tests/asynctests"
	"github.com/launchdarkly/http-asynchrony-tests/framework"
	"github.com/launchdarkly/http-asynchrony-tests/loopback"
)

type commandParams struct {
	filters         framework.RegexFilters
	config          asynctests.ScenarioConfig
	negativeControl bool
	debug           bool
	debugAll        bool
}

func (c *commandParams) Read(args []string, errOut io.Writer) bool {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.Var(optionalIntFlag{&c.config.ChunkSize}, "chunk-size",
		"bytes per read/write on both sides of the loopback connection (default 1)")
	fs.Var(optionalIntFlag{&c.config.TimeoutMS}, "timeout-ms",
		fmt.Sprintf("deadline for each scenario in milliseconds (default %d)", asynctests.DefaultTimeout.Milliseconds()))
	fs.Var(optionalIntFlag{&c.config.BodyLength}, "body-length",
		fmt.Sprintf("length of the response body (default %d)", asynctests.DefaultBodyLength))
	fs.Var(contentModeListFlag{&c.config.Modes}, "mode",
		fmt.Sprintf("content mode(s) to run, out of: %s (default all)", strings.Join(contentModeNames(), ", ")))
	fs.BoolVar(&c.negativeControl, "negative-control", false,
		"run with a deliberately leaking client; the run succeeds only if every scenario fails")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")

	if err := fs.Parse(args[1:]); err != nil {
		return false
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(errOut, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return false
	}
	if err := c.config.Validate(); err != nil {
		fmt.Fprintln(errOut, err)
		return false
	}
	return true
}

// rerunCommand returns a shell command line that runs only the given test with the same options.
func (c *commandParams) rerunCommand(program string, id framework.TestID) string {
	var b commandBuilder
	b.add(program, "-run", testIDPattern(id))
	for _, o := range []struct {
		name  string
		value ldvalue.OptionalInt
	}{
		{"chunk-size", c.config.ChunkSize},
		{"timeout-ms", c.config.TimeoutMS},
		{"body-length", c.config.BodyLength},
	} {
		if n, ok := o.value.Get(); ok {
			b.add("-"+o.name, strconv.Itoa(n))
		}
	}
	if c.negativeControl {
		b.add("-negative-control")
	}
	b.add("-debug")
	return b.String()
}

// testIDPattern matches the test and each of its parent groups, since a group that is filtered
// out never runs its subtests.
func testIDPattern(id framework.TestID) string {
	var sb strings.Builder
	sb.WriteString("^")
	for i, part := range id.Path {
		if i > 0 {
			sb.WriteString("(/")
		}
		sb.WriteString(regexp.QuoteMeta(part))
	}
	for i := 1; i < len(id.Path); i++ {
		sb.WriteString(")?")
	}
	sb.WriteString("$")
	return sb.String()
}

type optionalIntFlag struct {
	target *ldvalue.OptionalInt
}

func (f optionalIntFlag) String() string {
	if f.target == nil {
		return ""
	}
	if n, ok := f.target.Get(); ok {
		return strconv.Itoa(n)
	}
	return ""
}

func (f optionalIntFlag) Set(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("not an integer: %q", value)
	}
	*f.target = ldvalue.NewOptionalInt(n)
	return nil
}

type contentModeListFlag struct {
	target *[]loopback.ContentMode
}

func (f contentModeListFlag) String() string {
	if f.target == nil {
		return ""
	}
	var names []string
	for _, m := range *f.target {
		names = append(names, m.String())
	}
	return strings.Join(names, ",")
}

func (f contentModeListFlag) Set(value string) error {
	mode, err := loopback.ParseContentMode(value)
	if err != nil {
		return err
	}
	*f.target = append(*f.target, mode)
	return nil
}

func contentModeNames() []string {
	var names []string
	for _, m := range loopback.AllContentModes() {
		names = append(names, m.String())
	}
	return names
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}

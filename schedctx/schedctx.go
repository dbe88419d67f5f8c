// Package schedctx defines an ambient scheduler that callers can attach to a context.Context,
// and a Tracker implementation that records every use of it.
//
// The scheduler plays the role of a caller-installed "current execution context": a framework
// that consulted it would marshal its continuations back through it. Network clients should
// never do that with a scheduler they did not create, so the tests in this module install a
// Tracker, run a client, and require that the Tracker was never touched.
package schedctx

import (
	"context"
	"errors"
)

// WorkFunc is a unit of work dispatched through a Scheduler. The context it receives carries the
// scheduler that ran it.
type WorkFunc func(ctx context.Context)

// Scheduler is the set of primitives an ambient scheduling context supports.
type Scheduler interface {
	// Post queues work to run asynchronously and returns immediately.
	Post(fn WorkFunc)
	// Send runs work through the scheduler and returns once it has completed.
	Send(fn WorkFunc)
	// OperationStarted marks the start of an asynchronous operation.
	OperationStarted()
	// OperationCompleted marks the end of an asynchronous operation.
	OperationCompleted()
}

// ErrAlreadyInstalled is returned by Install if the context already carries a scheduler.
var ErrAlreadyInstalled = errors.New("a scheduler is already installed in this context")

// schedulerContextKey is the key for the ambient Scheduler in a context.
type schedulerContextKey struct{}

// WithScheduler returns a context carrying s as its ambient scheduler, replacing any scheduler
// the parent carried.
func WithScheduler(ctx context.Context, s Scheduler) context.Context {
	return context.WithValue(ctx, schedulerContextKey{}, s)
}

// Install is like WithScheduler but refuses to shadow a scheduler that is already present.
func Install(ctx context.Context, s Scheduler) (context.Context, error) {
	if FromContext(ctx) != nil {
		return ctx, ErrAlreadyInstalled
	}
	return WithScheduler(ctx, s), nil
}

// FromContext returns the ambient scheduler, or nil if there is none.
func FromContext(ctx context.Context) Scheduler {
	s, _ := ctx.Value(schedulerContextKey{}).(Scheduler)
	return s
}

package schedctx

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"

	"github.com/launchdarkly/http-asynchrony-tests/framework"
)

// Method names the Scheduler primitive that was invoked.
type Method string

const (
	MethodPost               Method = "Post"
	MethodSend               Method = "Send"
	MethodOperationStarted   Method = "OperationStarted"
	MethodOperationCompleted Method = "OperationCompleted"
)

// State is the observable state of a Tracker.
type State int

const (
	// StateIdle means no scheduler primitive has been invoked yet.
	StateIdle State = iota
	// StateRecording means at least one invocation has been captured.
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CapturedInvocation is a snapshot of the calling goroutine's stack at the moment a Scheduler
// primitive was invoked.
type CapturedInvocation struct {
	Seq    uint64
	Time   time.Time
	Method Method
	Stack  string
}

func (c CapturedInvocation) String() string {
	return fmt.Sprintf("#%d %s at %s\n%s", c.Seq, c.Method, c.Time.Format("15:04:05.000000"), c.Stack)
}

// Tracker is a Scheduler that records a stack trace for every call made to it.
//
// Apart from recording, it behaves like a real scheduler: posted work runs in order on a
// dedicated worker goroutine, and sent work runs on a separate goroutine while the caller waits.
// Work never runs inline on the caller's goroutine. Work receives a context carrying the
// Tracker, so any continuation it schedules is recorded as well.
//
// A Tracker must be closed to stop its worker.
type Tracker struct {
	logger      framework.Logger
	seq         atomic.Uint64
	lock        sync.Mutex
	invocations []CapturedInvocation

	queueLock sync.Mutex
	queueCond *sync.Cond
	queue     deque.Deque[WorkFunc]
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
	workCtx   context.Context
}

// NewTracker creates a Tracker and starts its worker. The logger may be nil.
func NewTracker(logger framework.Logger) *Tracker {
	if logger == nil {
		logger = framework.NullLogger()
	}
	t := &Tracker{
		logger: logger,
		done:   make(chan struct{}),
	}
	t.queueCond = sync.NewCond(&t.queueLock)
	t.workCtx = WithScheduler(context.Background(), t)
	go t.work()
	return t
}

func (t *Tracker) Post(fn WorkFunc) {
	t.record(MethodPost)

	t.queueLock.Lock()
	if t.closed {
		t.queueLock.Unlock()
		go t.run(fn)
		return
	}
	t.queue.PushBack(fn)
	t.queueCond.Signal()
	t.queueLock.Unlock()
}

func (t *Tracker) Send(fn WorkFunc) {
	t.record(MethodSend)

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.run(fn)
	}()
	<-done
}

func (t *Tracker) OperationStarted() {
	t.record(MethodOperationStarted)
}

func (t *Tracker) OperationCompleted() {
	t.record(MethodOperationCompleted)
}

// State reports whether anything has been recorded yet.
func (t *Tracker) State() State {
	if t.Len() == 0 {
		return StateIdle
	}
	return StateRecording
}

// Len returns the number of captured invocations.
func (t *Tracker) Len() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.invocations)
}

// Invocations returns a copy of the captured invocations in the order they were recorded.
func (t *Tracker) Invocations() []CapturedInvocation {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]CapturedInvocation(nil), t.invocations...)
}

// CallStacks returns the stack trace of every captured invocation.
func (t *Tracker) CallStacks() []string {
	invocations := t.Invocations()
	ret := make([]string, 0, len(invocations))
	for _, inv := range invocations {
		ret = append(ret, inv.Stack)
	}
	return ret
}

// Close waits for already-posted work to finish and stops the worker. Work posted after Close
// still runs, each item on its own goroutine.
func (t *Tracker) Close() {
	_ = t.CloseContext(context.Background())
}

// CloseContext is like Close, but stops waiting for posted work when ctx ends and returns the
// context's error. The worker then exits by itself once the work it is running returns.
func (t *Tracker) CloseContext(ctx context.Context) error {
	t.closeOnce.Do(func() {
		t.queueLock.Lock()
		t.closed = true
		t.queueCond.Broadcast()
		t.queueLock.Unlock()
	})
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) record(method Method) {
	inv := CapturedInvocation{
		Seq:    t.seq.Add(1),
		Time:   time.Now(),
		Method: method,
		Stack:  string(debug.Stack()),
	}
	t.lock.Lock()
	t.invocations = append(t.invocations, inv)
	t.lock.Unlock()
	t.logger.Printf("Ambient scheduler %s called (#%d)", method, inv.Seq)
}

func (t *Tracker) work() {
	defer close(t.done)
	for {
		t.queueLock.Lock()
		for t.queue.Len() == 0 && !t.closed {
			t.queueCond.Wait()
		}
		if t.queue.Len() == 0 {
			t.queueLock.Unlock()
			return
		}
		fn := t.queue.PopFront()
		t.queueLock.Unlock()

		t.run(fn)
	}
}

func (t *Tracker) run(fn WorkFunc) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Printf("Work dispatched through the ambient scheduler panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn(t.workCtx)
}

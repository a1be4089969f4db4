package rtkernel

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/geseq/rtkernel/pkg/trace"
)

// ThreadFunc is a thread body, its return value becomes the exit code
type ThreadFunc func(t *Thread, arg any) Msg

// ThreadDescriptor describes a thread to be created. The working area runs
// from the first to the last byte of WorkingArea.
type ThreadDescriptor struct {
	Name        string
	WorkingArea []byte
	Prio        Prio
	Func        ThreadFunc
	Arg         any
}

// Thread is a kernel thread backed by a goroutine. Fields are guarded by
// the system lock unless stated otherwise.
type Thread struct {
	sys   *System
	id    uint64
	name  string
	prio  Prio
	state State
	mode  threadMode
	refs  int
	wa    []byte
	mpool *Pool

	fn  ThreadFunc
	arg any

	exitCode  Msg
	done      chan struct{}
	terminate atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc

	// registry links
	older *Thread
	newer *Thread

	// ready list links
	prev *Thread
	next *Thread
}

// ID returns the thread unique identifier
func (t *Thread) ID() uint64 {
	return t.id
}

// Name returns the thread name
func (t *Thread) Name() string {
	return t.name
}

// Prio returns the thread priority
func (t *Thread) Prio() Prio {
	t.sys.Lock()
	p := t.prio
	t.sys.Unlock()

	return p
}

// State returns the current thread state
func (t *Thread) State() State {
	t.sys.Lock()
	st := t.state
	t.sys.Unlock()

	return st
}

// Refs returns the number of references held on the thread
func (t *Thread) Refs() int {
	t.sys.Lock()
	n := t.refs
	t.sys.Unlock()

	return n
}

// WorkingArea returns the thread working area. It is only valid while the
// thread runs or while a reference is held on it.
func (t *Thread) WorkingArea() []byte {
	return t.wa
}

// Pool returns the pool owning the working area, nil for static threads
func (t *Thread) Pool() *Pool {
	return t.mpool
}

// Context returns a context cancelled when the thread is asked to terminate
// or has exited
func (t *Thread) Context() context.Context {
	return t.ctx
}

// ShouldTerminate reports whether termination has been requested
func (t *Thread) ShouldTerminate() bool {
	return t.terminate.Load()
}

// Done is closed when the thread exits
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

// ExitCode returns the exit code, valid once Done is closed
func (t *Thread) ExitCode() Msg {
	<-t.done
	return t.exitCode
}

// UnusedStack returns the untouched part of the working area, zero if
// stack fill is disabled
func (t *Thread) UnusedStack() int {
	return UnusedStack(t.wa)
}

// String implements fmt.Stringer interface
func (t *Thread) String() string {
	return fmt.Sprintf("%s#%d(prio=%d)", t.name, t.id, t.Prio())
}

// threadExit unwinds a thread body to its exit point
type threadExit struct {
	msg Msg
}

// Exit ends the calling thread with msg as exit code. It must be called
// from the thread own body, deferred calls run as for a return.
func (t *Thread) Exit(msg Msg) {
	panic(threadExit{msg: msg})
}

func (t *Thread) run() {
	msg := t.invoke()
	t.sys.exit(t, msg)
}

func (t *Thread) invoke() (msg Msg) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(threadExit); ok {
			msg = e.msg
			return
		}
		if h, ok := r.(*HaltError); ok {
			panic(h)
		}

		t.sys.writeTrace(trace.Event{Type: trace.TypeHalt, Thread: t.id, Name: t.name, Arg1: r})
		t.sys.logger.Warn().Str("thread", t.name).Uint64("id", t.id).
			Interface("panic", r).Msg("thread panicked")
		msg = MsgReset
	}()

	return t.fn(t, t.arg)
}

// Sleep suspends the calling thread for d, it returns MsgReset early if ctx
// is done and MsgTimeout otherwise
func Sleep(ctx context.Context, d time.Duration) Msg {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return MsgReset
	case <-timer.C:
		return MsgTimeout
	}
}

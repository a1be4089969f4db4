package rtkernel

import (
	"sync"
	"sync/atomic"

	"github.com/geseq/rtkernel/pkg/trace"
	"github.com/rs/zerolog"
)

// System is a kernel instance. Its lock guards pools, cores, the thread
// registry and the ready list. Functions with the I suffix must be called
// with the lock held, every other function takes it on its own.
type System struct {
	mu     sync.Mutex
	locked atomic.Bool

	logger zerolog.Logger
	checks bool
	fill   bool

	traceMu   sync.Mutex
	trace     *trace.Buffer
	traceSize uint64
	traceMask trace.Mask

	lastID uint64
	reg    registry
	rlist  readyList
}

// NewSystem creates a kernel instance
func NewSystem(opts ...Option) *System {
	s := &System{}

	options(defaultOpts).applyTo(s)
	options(opts).applyTo(s)

	if s.traceSize > 0 {
		s.trace = trace.New(s.traceSize)
		s.trace.Suspend(s.traceMask)
	}

	return s
}

// Lock enters the kernel critical zone
func (s *System) Lock() {
	s.mu.Lock()
	s.locked.Store(true)
}

// Unlock leaves the kernel critical zone
func (s *System) Unlock() {
	if s.checks && !s.locked.Load() {
		s.Halt("unlock outside of the critical zone")
	}
	s.locked.Store(false)
	s.mu.Unlock()
}

// IsLocked reports whether some goroutine is inside the critical zone
func (s *System) IsLocked() bool {
	return s.locked.Load()
}

// Logger returns the kernel logger
func (s *System) Logger() *zerolog.Logger {
	return &s.logger
}

func (s *System) checkClassI(fn string) {
	if s.checks && !s.locked.Load() {
		s.Halt("I-class function called outside of the critical zone: " + fn)
	}
}

func (s *System) assert(cond bool, reason string) {
	if !cond {
		s.Halt(reason)
	}
}

// Halt records the reason in the trace buffer and panics with a HaltError.
// Halt never takes the system lock so it is callable from any context.
func (s *System) Halt(reason string) {
	s.writeTrace(trace.Event{Type: trace.TypeHalt, Name: reason})
	s.logger.Error().Str("reason", reason).Msg("system halted")
	panic(&HaltError{Reason: reason})
}

func (s *System) writeTrace(e trace.Event) {
	if s.trace == nil {
		return
	}
	s.traceMu.Lock()
	s.trace.Write(e)
	s.traceMu.Unlock()
}

func (s *System) traceThread(typ trace.Type, t *Thread, arg any) {
	if s.trace == nil {
		return
	}
	s.writeTrace(trace.Event{
		Type:   typ,
		State:  uint8(t.state),
		Thread: t.id,
		Name:   t.name,
		Arg1:   arg,
	})
}

// WriteTraceI records a user event from inside the critical zone
func (s *System) WriteTraceI(t *Thread, arg1, arg2 any) {
	s.checkClassI("WriteTraceI")
	s.WriteTrace(t, arg1, arg2)
}

// WriteTrace records a user event, t may be nil
func (s *System) WriteTrace(t *Thread, arg1, arg2 any) {
	e := trace.Event{Type: trace.TypeUser, Arg1: arg1, Arg2: arg2}
	if t != nil {
		e.Thread = t.id
		e.Name = t.name
	}
	s.writeTrace(e)
}

// TraceSuspend stops recording of the record types in m
func (s *System) TraceSuspend(m trace.Mask) {
	if s.trace == nil {
		return
	}
	s.traceMu.Lock()
	s.trace.Suspend(m)
	s.traceMu.Unlock()
}

// TraceResume restarts recording of the record types in m
func (s *System) TraceResume(m trace.Mask) {
	if s.trace == nil {
		return
	}
	s.traceMu.Lock()
	s.trace.Resume(m)
	s.traceMu.Unlock()
}

// TraceSnapshot returns the recorded events, oldest first
func (s *System) TraceSnapshot() []trace.Event {
	if s.trace == nil {
		return nil
	}
	s.traceMu.Lock()
	defer s.traceMu.Unlock()
	return s.trace.Snapshot()
}

// TraceWritten returns the number of events recorded so far
func (s *System) TraceWritten() uint64 {
	if s.trace == nil {
		return 0
	}
	s.traceMu.Lock()
	defer s.traceMu.Unlock()
	return s.trace.Written()
}

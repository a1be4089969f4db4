package rtkernel

import (
	"context"

	"github.com/geseq/rtkernel/pkg/trace"
)

// readyList holds the started threads in decreasing priority order,
// threads of equal priority in start order
type readyList struct {
	size int
	head *Thread
	tail *Thread
}

// Len returns amount of threads in the list
func (rl *readyList) Len() int {
	return rl.size
}

// insert links t after the last thread of greater or equal priority
func (rl *readyList) insert(t *Thread) {
	cp := rl.tail
	for cp != nil && cp.prio < t.prio {
		cp = cp.prev
	}

	t.prev = cp
	if cp == nil {
		t.next = rl.head
		rl.head = t
	} else {
		t.next = cp.next
		cp.next = t
	}
	if t.next != nil {
		t.next.prev = t
	} else {
		rl.tail = t
	}
	rl.size++
}

// remove unlinks t from the list
func (rl *readyList) remove(t *Thread) {
	prev := t.prev
	next := t.next
	if prev != nil {
		prev.next = next
	}
	if next != nil {
		next.prev = prev
	}
	t.next = nil
	t.prev = nil

	rl.size--
	if rl.head == t {
		rl.head = next
	}
	if rl.tail == t {
		rl.tail = prev
	}
}

// CreateSuspendedI creates a thread in the WTStart state and registers it.
// The returned thread carries one reference owned by the caller.
func (s *System) CreateSuspendedI(td *ThreadDescriptor) *Thread {
	s.checkClassI("CreateSuspendedI")
	s.assert(td.Func != nil, "thread function is nil")
	s.assert(td.Prio >= IdlePrio, "thread priority out of range")
	s.assert(len(td.WorkingArea) >= MinWorkingAreaSize, "working area too small")

	s.lastID++
	t := &Thread{
		sys:   s,
		id:    s.lastID,
		name:  td.Name,
		prio:  td.Prio,
		state: StateWTStart,
		mode:  modeStatic,
		refs:  1,
		wa:    td.WorkingArea,
		fn:    td.Func,
		arg:   td.Arg,
		done:  make(chan struct{}),
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())

	s.reg.insert(t)
	s.traceThread(trace.TypeCreate, t, nil)
	s.logger.Debug().Str("thread", t.name).Uint64("id", t.id).Uint8("prio", uint8(t.prio)).Msg("thread created")

	return t
}

// CreateSuspended creates a thread in the WTStart state
func (s *System) CreateSuspended(td *ThreadDescriptor) *Thread {
	if s.fill {
		FillStack(td.WorkingArea)
	}

	s.Lock()
	t := s.CreateSuspendedI(td)
	s.Unlock()

	return t
}

// StartI makes a WTStart thread ready and starts running its body
func (s *System) StartI(t *Thread) *Thread {
	s.checkClassI("StartI")
	s.assert(t.state == StateWTStart, "thread "+t.name+" already started")

	t.state = StateReady
	s.rlist.insert(t)
	s.traceThread(trace.TypeReady, t, nil)

	go t.run()

	return t
}

// Start makes a WTStart thread ready
func (s *System) Start(t *Thread) *Thread {
	s.Lock()
	s.StartI(t)
	s.Unlock()

	return t
}

// CreateI creates and starts a thread
func (s *System) CreateI(td *ThreadDescriptor) *Thread {
	return s.StartI(s.CreateSuspendedI(td))
}

// Create creates and starts a thread on a caller supplied working area
func (s *System) Create(td *ThreadDescriptor) *Thread {
	if s.fill {
		FillStack(td.WorkingArea)
	}

	s.Lock()
	t := s.CreateI(td)
	s.Unlock()

	return t
}

func (s *System) exit(t *Thread, msg Msg) {
	s.Lock()
	t.exitCode = msg
	t.state = StateFinal
	s.rlist.remove(t)
	s.traceThread(trace.TypeExit, t, msg)
	close(t.done)
	t.cancel()
	if t.refs == 0 {
		s.reclaimI(t)
	}
	s.Unlock()

	s.logger.Debug().Str("thread", t.name).Uint64("id", t.id).Int32("msg", int32(msg)).Msg("thread exited")
}

// reclaimI drops an unreferenced final thread from the registry and
// returns its working area to the owning pool
func (s *System) reclaimI(t *Thread) {
	s.reg.remove(t)
	if t.mode == modeMPool {
		t.mpool.FreeI(t.wa)
	}
}

// AddRef adds a reference to t
func (s *System) AddRef(t *Thread) *Thread {
	s.Lock()
	s.assert(t.refs > 0 || t.state != StateFinal, "reference to a released thread")
	t.refs++
	s.Unlock()

	return t
}

func (s *System) releaseI(t *Thread) {
	s.assert(t.refs > 0, "thread "+t.name+" not referenced")

	t.refs--
	if t.refs == 0 && t.state == StateFinal {
		s.reclaimI(t)
	}
}

// Release drops a reference to t. Once a final thread loses its last
// reference its memory is returned to the allocator it came from.
func (s *System) Release(t *Thread) {
	s.Lock()
	s.releaseI(t)
	s.Unlock()
}

// Wait blocks until t exits, releases the caller reference and returns the
// exit code
func (s *System) Wait(t *Thread) Msg {
	<-t.done

	s.Lock()
	msg := t.exitCode
	s.releaseI(t)
	s.Unlock()

	return msg
}

// Terminate asks t to terminate. The thread body observes the request
// through ShouldTerminate or its context.
func (s *System) Terminate(t *Thread) {
	t.terminate.Store(true)
	t.cancel()
}

// SetPrio changes the priority of t and returns the old one. A ready
// thread moves to its new place in the ready list.
func (s *System) SetPrio(t *Thread, p Prio) Prio {
	s.Lock()
	defer s.Unlock()

	s.assert(p >= IdlePrio, "thread priority out of range")
	old := t.prio
	if t.state == StateReady {
		s.rlist.remove(t)
		t.prio = p
		s.rlist.insert(t)
	} else {
		t.prio = p
	}
	s.logger.Debug().Str("thread", t.name).Uint64("id", t.id).Uint8("old", uint8(old)).Uint8("prio", uint8(p)).Msg("thread priority changed")

	return old
}

// ReadyThreads returns the started threads in priority order
func (s *System) ReadyThreads() []*Thread {
	s.Lock()
	defer s.Unlock()

	threads := make([]*Thread, 0, s.rlist.Len())
	for t := s.rlist.head; t != nil; t = t.next {
		threads = append(threads, t)
	}
	return threads
}

package rtkernel

// CreateFromPool allocates a working area from mp and starts a thread on
// it. The working area goes back to mp once the thread has exited and its
// last reference is gone.
//
// It returns nil, without touching the scheduler, when mp is exhausted.
// Callers are expected to treat that as backpressure.
func (s *System) CreateFromPool(mp *Pool, name string, prio Prio, fn ThreadFunc, arg any) *Thread {
	s.assert(mp.sys == s, "pool belongs to another system")
	s.assert(mp.Size() >= MinWorkingAreaSize, "pool object size too small for a working area")

	wa := mp.Alloc()
	if wa == nil {
		return nil
	}
	s.assert(cap(wa) >= mp.Size(), "pool returned a short working area")

	td := ThreadDescriptor{
		Name:        name,
		WorkingArea: wa[:mp.Size()],
		Prio:        prio,
		Func:        fn,
		Arg:         arg,
	}

	if s.fill {
		FillStack(td.WorkingArea)
	}

	s.Lock()
	t := s.CreateSuspendedI(&td)
	t.mode = modeMPool
	t.mpool = mp
	s.StartI(t)
	s.Unlock()

	return t
}

// ThreadsPool is a fixed set of equally sized working areas threads can be
// spawned on
type ThreadsPool struct {
	sys   *System
	pool  *Pool
	areas []byte
}

// NewThreadsPool creates n working areas of size bytes
func NewThreadsPool(s *System, size, n int) *ThreadsPool {
	if size < MinWorkingAreaSize {
		s.Halt("threads pool working area too small")
	}

	tp := &ThreadsPool{
		sys:   s,
		pool:  NewPool(s, size, nil),
		areas: make([]byte, size*n),
	}
	tp.pool.LoadArray(tp.areas, n)

	return tp
}

// Start spawns a thread on a free working area, nil if all are in use
func (tp *ThreadsPool) Start(name string, prio Prio, fn ThreadFunc, arg any) *Thread {
	return tp.sys.CreateFromPool(tp.pool, name, prio, fn, arg)
}

// Pool returns the underlying pool
func (tp *ThreadsPool) Pool() *Pool {
	return tp.pool
}

// Available returns the number of free working areas
func (tp *ThreadsPool) Available() int {
	return tp.pool.Len()
}

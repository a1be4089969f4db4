package rtkernel

// registry links every live thread, oldest first
type registry struct {
	size   int
	oldest *Thread
	newest *Thread
}

func (r *registry) insert(t *Thread) {
	newest := r.newest
	r.newest = t
	if newest != nil {
		newest.newer = t
		t.older = newest
	}
	if r.oldest == nil {
		r.oldest = t
	}
	r.size++
}

func (r *registry) remove(t *Thread) {
	older := t.older
	newer := t.newer
	if older != nil {
		older.newer = newer
	}
	if newer != nil {
		newer.older = older
	}
	t.older = nil
	t.newer = nil

	r.size--
	if r.oldest == t {
		r.oldest = newer
	}
	if r.newest == t {
		r.newest = older
	}
}

// ThreadCount returns the number of registered threads
func (s *System) ThreadCount() int {
	s.Lock()
	n := s.reg.size
	s.Unlock()

	return n
}

// FirstThread returns the oldest registered thread with a reference added,
// nil if the registry is empty
func (s *System) FirstThread() *Thread {
	s.Lock()
	t := s.reg.oldest
	if t != nil {
		t.refs++
	}
	s.Unlock()

	return t
}

// NextThread returns the thread registered after t with a reference added
// and releases the reference held on t
func (s *System) NextThread(t *Thread) *Thread {
	s.Lock()
	n := t.newer
	if n != nil {
		n.refs++
	}
	s.releaseI(t)
	s.Unlock()

	return n
}

// FindThreadByName returns the first registered thread named name with a
// reference added, nil if none
func (s *System) FindThreadByName(name string) *Thread {
	s.Lock()
	defer s.Unlock()

	for t := s.reg.oldest; t != nil; t = t.newer {
		if t.name == name {
			t.refs++
			return t
		}
	}
	return nil
}

// FindThreadByWorkingArea returns the registered thread using the working
// area starting at wa with a reference added, nil if none
func (s *System) FindThreadByWorkingArea(wa []byte) *Thread {
	if len(wa) == 0 {
		return nil
	}

	s.Lock()
	defer s.Unlock()

	for t := s.reg.oldest; t != nil; t = t.newer {
		if len(t.wa) > 0 && &t.wa[0] == &wa[0] {
			t.refs++
			return t
		}
	}
	return nil
}

// FindThreadByID returns the registered thread with the given id with a
// reference added, nil if none
func (s *System) FindThreadByID(id uint64) *Thread {
	s.Lock()
	defer s.Unlock()

	for t := s.reg.oldest; t != nil; t = t.newer {
		if t.id == id {
			t.refs++
			return t
		}
	}
	return nil
}

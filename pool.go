package rtkernel

import "strconv"

// Provider supplies a new object of the given size when a pool is empty.
// It is called inside the critical zone and returns nil when it has no
// memory left.
type Provider func(size int) []byte

// Pool is a fixed object size allocator. Free objects are kept on a LIFO
// free list, allocation and release are O(1) and never block.
//
// An object belongs to whoever allocated it until it is freed, the pool
// only owns the free list.
type Pool struct {
	sys      *System
	free     [][]byte
	size     int
	provider Provider
}

// NewPool creates an empty pool of objects of size bytes. The provider may
// be nil, in which case the pool never grows on its own.
func NewPool(s *System, size int, provider Provider) *Pool {
	if size < PointerSize {
		s.Halt("pool object size " + strconv.Itoa(size) + " is smaller than a pointer")
	}

	return &Pool{
		sys:      s,
		size:     size,
		provider: provider,
	}
}

// Size returns the object size
func (mp *Pool) Size() int {
	return mp.size
}

// LoadArray carves n contiguous objects out of base and adds them to the
// free list in address order
func (mp *Pool) LoadArray(base []byte, n int) {
	if n < 0 || len(base) < n*mp.size {
		mp.sys.Halt("pool array too small for " + strconv.Itoa(n) + " objects")
	}

	for i := 0; i < n; i++ {
		off := i * mp.size
		mp.Free(base[off : off+mp.size : off+mp.size])
	}
}

// AllocI allocates an object from the pool, nil if the pool is empty and
// the provider, if any, could not supply one.
func (mp *Pool) AllocI() []byte {
	mp.sys.checkClassI("Pool.AllocI")

	if n := len(mp.free); n > 0 {
		obj := mp.free[n-1]
		mp.free[n-1] = nil
		mp.free = mp.free[:n-1]
		return obj
	}

	if mp.provider != nil {
		return mp.provider(mp.size)
	}

	mp.sys.logger.Debug().Int("size", mp.size).Msg("pool exhausted")
	return nil
}

// Alloc allocates an object from the pool, nil if the pool is exhausted
func (mp *Pool) Alloc() []byte {
	mp.sys.Lock()
	obj := mp.AllocI()
	mp.sys.Unlock()

	return obj
}

// FreeI releases obj into the pool. The object must have been allocated
// from this pool, or be of the pool object size, and must not be touched
// by the caller afterwards.
func (mp *Pool) FreeI(obj []byte) {
	mp.sys.checkClassI("Pool.FreeI")
	if mp.sys.checks {
		mp.sys.assert(obj != nil, "nil object released into pool")
		mp.sys.assert(len(obj) == mp.size, "object of size "+strconv.Itoa(len(obj))+
			" released into pool of size "+strconv.Itoa(mp.size))
	}

	mp.free = append(mp.free, obj)
}

// Free releases obj into the pool
func (mp *Pool) Free(obj []byte) {
	mp.sys.Lock()
	mp.FreeI(obj)
	mp.sys.Unlock()
}

// LenI returns the number of objects on the free list
func (mp *Pool) LenI() int {
	mp.sys.checkClassI("Pool.LenI")
	return len(mp.free)
}

// Len returns the number of objects on the free list
func (mp *Pool) Len() int {
	mp.sys.Lock()
	n := len(mp.free)
	mp.sys.Unlock()

	return n
}

package objects

import (
	"unsafe"
)

// Pool is a fixed capacity pool of T backed by one preallocated array.
// Free objects are linked by index, so no object memory is touched while
// it sits in the free list. Pool is not synchronized.
type Pool[T any] struct {
	items     []T
	next      []int32 // next free index per slot, -1 terminates
	freeList  int32   // head of the free list
	free      int
	poolStart uintptr
	poolEnd   uintptr
}

// New creates a pool holding n objects, all of them initially free
func New[T any](n int) *Pool[T] {
	if n <= 0 {
		panic("objects: pool capacity must be positive")
	}

	items := make([]T, n)
	p := &Pool[T]{
		items:     items,
		next:      make([]int32, n),
		freeList:  -1,
		poolStart: uintptr(unsafe.Pointer(&items[0])),
		poolEnd:   uintptr(unsafe.Pointer(&items[n-1])),
	}

	// loaded in reverse so that the first Alloc returns slot 0
	for i := n - 1; i >= 0; i-- {
		p.next[i] = p.freeList
		p.freeList = int32(i)
		p.free++
	}

	return p
}

// Alloc pops the head of the free list, nil if the pool is empty
func (p *Pool[T]) Alloc() *T {
	if p.freeList == -1 {
		return nil
	}

	pos := p.freeList
	p.freeList = p.next[pos]
	p.next[pos] = -1
	p.free--

	return &p.items[pos]
}

// Free pushes o back on the head of the free list. Objects not belonging to
// the pool are ignored.
func (p *Pool[T]) Free(o *T) {
	pos, ok := p.Index(o)
	if !ok {
		return
	}

	p.next[pos] = p.freeList
	p.freeList = int32(pos)
	p.free++
}

// Index returns the slot of o
func (p *Pool[T]) Index(o *T) (int, bool) {
	if o == nil {
		return 0, false
	}

	ptr := uintptr(unsafe.Pointer(o))
	if ptr < p.poolStart || ptr > p.poolEnd {
		return 0, false
	}

	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		return 0, true
	}
	return int((ptr - p.poolStart) / size), true
}

// At returns the object in slot i, free or not
func (p *Pool[T]) At(i int) *T {
	return &p.items[i]
}

// Len returns the number of free objects
func (p *Pool[T]) Len() int {
	return p.free
}

// Cap returns the pool capacity
func (p *Pool[T]) Cap() int {
	return len(p.items)
}

// IsEmpty reports whether no free object is left
func (p *Pool[T]) IsEmpty() bool {
	return p.freeList == -1
}

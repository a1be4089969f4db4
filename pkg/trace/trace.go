package trace

import (
	"time"

	"github.com/loov/hrtime"
	"golang.org/x/sys/cpu"
)

// Type of a trace record
type Type uint8

const (
	TypeUnused Type = iota
	TypeCreate
	TypeReady
	TypeExit
	TypeHalt
	TypeUser
)

// String implements fmt.Stringer interface
func (t Type) String() string {
	switch t {
	case TypeCreate:
		return "create"
	case TypeReady:
		return "ready"
	case TypeExit:
		return "exit"
	case TypeHalt:
		return "halt"
	case TypeUser:
		return "user"
	default:
		return "unused"
	}
}

// Mask selects a set of record types
type Mask uint8

const (
	MaskNone Mask = 0
	MaskAll  Mask = 0xff
)

// Mask returns the mask bit of the type
func (t Type) Mask() Mask {
	return 1 << t
}

// Event is a single trace record
type Event struct {
	Type   Type
	State  uint8
	Time   time.Duration // hrtime clock
	Thread uint64
	Name   string
	Arg1   any
	Arg2   any
}

// Buffer is a fixed size ring of trace records. Once full the oldest record
// is overwritten. Buffer is not synchronized, writers must be serialized by
// the caller.
type Buffer struct {
	_         cpu.CacheLinePad
	indexMask uint64
	written   uint64
	suspended Mask
	_         cpu.CacheLinePad
	contents  []Event
	_         cpu.CacheLinePad
}

// New creates a trace buffer holding at least size records
func New(size uint64) *Buffer {
	if size == 0 {
		size = 1
	}
	size = roundUpNextPowerOfTwo(size)
	return &Buffer{
		indexMask: size - 1,
		contents:  make([]Event, size),
	}
}

// Write stores e unless its type is suspended. The record time is taken
// from the hrtime clock when not already set.
func (b *Buffer) Write(e Event) bool {
	if b.suspended&e.Type.Mask() != 0 {
		return false
	}
	if e.Time == 0 {
		e.Time = hrtime.Now()
	}

	b.contents[b.written&b.indexMask] = e
	b.written++
	return true
}

// Suspend stops recording of the types in m
func (b *Buffer) Suspend(m Mask) {
	b.suspended |= m
}

// Resume restarts recording of the types in m
func (b *Buffer) Resume(m Mask) {
	b.suspended &^= m
}

// Suspended returns the currently suspended types
func (b *Buffer) Suspended() Mask {
	return b.suspended
}

// Size returns the buffer capacity
func (b *Buffer) Size() int {
	return len(b.contents)
}

// Len returns the number of valid records
func (b *Buffer) Len() int {
	if b.written < uint64(len(b.contents)) {
		return int(b.written)
	}
	return len(b.contents)
}

// Written returns the total number of records ever written
func (b *Buffer) Written() uint64 {
	return b.written
}

// Snapshot copies the valid records, oldest first
func (b *Buffer) Snapshot() []Event {
	n := uint64(b.Len())
	out := make([]Event, n)
	start := b.written - n
	for i := uint64(0); i < n; i++ {
		out[i] = b.contents[(start+i)&b.indexMask]
	}
	return out
}

// Reset drops all records, the suspend mask is kept
func (b *Buffer) Reset() {
	for i := range b.contents {
		b.contents[i] = Event{}
	}
	b.written = 0
}

func roundUpNextPowerOfTwo(v uint64) uint64 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return v
}

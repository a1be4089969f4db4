// Package osal is an operating system abstraction layer on top of the
// kernel. Queues, semaphores, mutexes and timers are taken from fixed pools
// sized at creation, tasks are kernel threads looked up through the registry.
package osal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geseq/rtkernel"
	"github.com/geseq/rtkernel/pkg/objects"
)

// MaxAPIName is the size of a name including the terminator, names must
// be shorter than this
const MaxAPIName = 20

const (
	MinPriority = 1
	MaxPriority = 255

	MinMessageSize = 4
	MaxMessageSize = 16384

	MinQueueDepth = 1
	MaxQueueDepth = 16384
)

// Special timeouts for QueueGet
const (
	// Pend waits forever
	Pend time.Duration = -1
	// Check does not wait at all
	Check time.Duration = 0
)

// Limits sets the number of objects of each kind
type Limits struct {
	Queues    int
	CountSems int
	BinSems   int
	Mutexes   int
	Timers    int
}

// DefaultLimits are used for every zero field of the Limits passed to New
var DefaultLimits = Limits{
	Queues:    64,
	CountSems: 20,
	BinSems:   20,
	Mutexes:   20,
	Timers:    20,
}

// OSAL is an abstraction layer instance bound to a kernel system
type OSAL struct {
	sys *rtkernel.System

	queues    *objects.Pool[queueSlot]
	countSems *objects.Pool[countSemSlot]
	binSems   *objects.Pool[binSemSlot]
	mutexes   *objects.Pool[mutexSlot]
	timers    *objects.Pool[timerSlot]

	deleteHandlers map[uint64]func()
}

// New creates an abstraction layer over s
func New(s *rtkernel.System, l Limits) *OSAL {
	if l.Queues <= 0 {
		l.Queues = DefaultLimits.Queues
	}
	if l.CountSems <= 0 {
		l.CountSems = DefaultLimits.CountSems
	}
	if l.BinSems <= 0 {
		l.BinSems = DefaultLimits.BinSems
	}
	if l.Mutexes <= 0 {
		l.Mutexes = DefaultLimits.Mutexes
	}
	if l.Timers <= 0 {
		l.Timers = DefaultLimits.Timers
	}

	return &OSAL{
		sys:            s,
		queues:         objects.New[queueSlot](l.Queues),
		countSems:      objects.New[countSemSlot](l.CountSems),
		binSems:        objects.New[binSemSlot](l.BinSems),
		mutexes:        objects.New[mutexSlot](l.Mutexes),
		timers:         objects.New[timerSlot](l.Timers),
		deleteHandlers: make(map[uint64]func()),
	}
}

// System returns the kernel the layer runs on
func (o *OSAL) System() *rtkernel.System {
	return o.sys
}

func checkName(name string) error {
	if len(name) >= MaxAPIName {
		return ErrNameTooLong
	}
	return nil
}

// errTimeout is returned by wait when timeout expires
var errTimeout = errors.New("osal: wait timed out")

// cancelled wraps the reason ctx ended a wait
func cancelled(ctx context.Context) error {
	return fmt.Errorf("osal: wait cancelled: %w", ctx.Err())
}

// wait blocks on ch for at most timeout, Pend waits forever and Check only
// polls. It fails with ErrDeleted when reset is closed, with errTimeout
// when the time is up and with the ctx error when ctx is done.
func wait[T any](ctx context.Context, ch <-chan T, reset <-chan struct{}, timeout time.Duration) (T, error) {
	var zero T

	if timeout == Check {
		select {
		case v := <-ch:
			return v, nil
		default:
			return zero, errTimeout
		}
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case v := <-ch:
		return v, nil
	case <-reset:
		return zero, ErrDeleted
	case <-ctx.Done():
		return zero, cancelled(ctx)
	case <-expired:
		return zero, errTimeout
	}
}

package osal

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// CountSemID identifies a counting semaphore, zero is never a valid id
type CountSemID uint32

type countSemSlot struct {
	sem *countSem
}

type countSem struct {
	name string

	mu    sync.Mutex
	count int
	wake  chan struct{} // closed and replaced on every give
	reset chan struct{}
}

// CountSemProp describes a counting semaphore
type CountSemProp struct {
	Name  string
	Count int
}

// CountSemCreate creates a counting semaphore with the given initial count
func (o *OSAL) CountSemCreate(name string, initial int) (CountSemID, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	if initial < 0 || initial > math.MaxInt32 {
		return 0, ErrInvalidIntNum
	}

	sem := &countSem{
		name:  name,
		count: initial,
		wake:  make(chan struct{}),
		reset: make(chan struct{}),
	}

	o.sys.Lock()
	defer o.sys.Unlock()

	if o.findCountSemI(name) != 0 {
		return 0, ErrNameTaken
	}
	slot := o.countSems.Alloc()
	if slot == nil {
		return 0, ErrNoFreeIDs
	}
	slot.sem = sem
	idx, _ := o.countSems.Index(slot)

	return CountSemID(idx + 1), nil
}

// CountSemDelete deletes a semaphore, waiters return ErrDeleted
func (o *OSAL) CountSemDelete(id CountSemID) error {
	o.sys.Lock()
	slot := o.countSemSlotI(id)
	if slot == nil {
		o.sys.Unlock()
		return ErrInvalidID
	}
	sem := slot.sem
	slot.sem = nil
	o.countSems.Free(slot)
	o.sys.Unlock()

	close(sem.reset)
	return nil
}

// CountSemGive increments the semaphore, waking one waiter
func (o *OSAL) CountSemGive(id CountSemID) error {
	sem, err := o.countSem(id)
	if err != nil {
		return err
	}

	sem.mu.Lock()
	sem.count++
	close(sem.wake)
	sem.wake = make(chan struct{})
	sem.mu.Unlock()

	return nil
}

// CountSemTake waits for the semaphore
func (o *OSAL) CountSemTake(ctx context.Context, id CountSemID) error {
	sem, err := o.countSem(id)
	if err != nil {
		return err
	}

	return sem.take(ctx, Pend)
}

// CountSemTimedWait waits for the semaphore for at most timeout
func (o *OSAL) CountSemTimedWait(ctx context.Context, id CountSemID, timeout time.Duration) error {
	sem, err := o.countSem(id)
	if err != nil {
		return err
	}
	if timeout <= 0 {
		return ErrInvalidIntNum
	}

	err = sem.take(ctx, timeout)
	if errors.Is(err, errTimeout) {
		return ErrSemTimeout
	}
	return err
}

// CountSemGetIDByName looks a counting semaphore up by name
func (o *OSAL) CountSemGetIDByName(name string) (CountSemID, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	o.sys.Lock()
	id := o.findCountSemI(name)
	o.sys.Unlock()

	if id == 0 {
		return 0, ErrNameNotFound
	}
	return id, nil
}

// CountSemGetInfo returns the semaphore properties
func (o *OSAL) CountSemGetInfo(id CountSemID) (CountSemProp, error) {
	sem, err := o.countSem(id)
	if err != nil {
		return CountSemProp{}, err
	}

	sem.mu.Lock()
	defer sem.mu.Unlock()
	return CountSemProp{Name: sem.name, Count: sem.count}, nil
}

func (sem *countSem) take(ctx context.Context, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		sem.mu.Lock()
		if sem.count > 0 {
			sem.count--
			sem.mu.Unlock()
			return nil
		}
		wake := sem.wake
		sem.mu.Unlock()

		select {
		case <-wake:
		case <-sem.reset:
			return ErrDeleted
		case <-ctx.Done():
			return cancelled(ctx)
		case <-expired:
			return errTimeout
		}
	}
}

func (o *OSAL) countSem(id CountSemID) (*countSem, error) {
	o.sys.Lock()
	defer o.sys.Unlock()

	slot := o.countSemSlotI(id)
	if slot == nil {
		return nil, ErrInvalidID
	}
	return slot.sem, nil
}

func (o *OSAL) countSemSlotI(id CountSemID) *countSemSlot {
	if id == 0 || int(id) > o.countSems.Cap() {
		return nil
	}
	slot := o.countSems.At(int(id) - 1)
	if slot.sem == nil {
		return nil
	}
	return slot
}

func (o *OSAL) findCountSemI(name string) CountSemID {
	for i := 0; i < o.countSems.Cap(); i++ {
		if sem := o.countSems.At(i).sem; sem != nil && sem.name == name {
			return CountSemID(i + 1)
		}
	}
	return 0
}

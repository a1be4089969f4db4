package osal

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BinSemID identifies a binary semaphore, zero is never a valid id
type BinSemID uint32

type binSemSlot struct {
	sem *binSem
}

type binSem struct {
	name string

	mu      sync.Mutex
	value   int           // 0 taken, 1 available
	wake    chan struct{} // closed and replaced on every give
	flushed chan struct{} // closed and replaced on every flush
	reset   chan struct{}
}

// BinSemProp describes a binary semaphore
type BinSemProp struct {
	Name  string
	Value int
}

// BinSemCreate creates a binary semaphore, initial is 0 for taken or 1 for
// available
func (o *OSAL) BinSemCreate(name string, initial int) (BinSemID, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	if initial < 0 || initial > 1 {
		return 0, ErrInvalidIntNum
	}

	sem := &binSem{
		name:    name,
		value:   initial,
		wake:    make(chan struct{}),
		flushed: make(chan struct{}),
		reset:   make(chan struct{}),
	}

	o.sys.Lock()
	defer o.sys.Unlock()

	if o.findBinSemI(name) != 0 {
		return 0, ErrNameTaken
	}
	slot := o.binSems.Alloc()
	if slot == nil {
		return 0, ErrNoFreeIDs
	}
	slot.sem = sem
	idx, _ := o.binSems.Index(slot)

	return BinSemID(idx + 1), nil
}

// BinSemDelete deletes a semaphore, waiters return ErrDeleted
func (o *OSAL) BinSemDelete(id BinSemID) error {
	o.sys.Lock()
	slot := o.binSemSlotI(id)
	if slot == nil {
		o.sys.Unlock()
		return ErrInvalidID
	}
	sem := slot.sem
	slot.sem = nil
	o.binSems.Free(slot)
	o.sys.Unlock()

	close(sem.reset)
	return nil
}

// BinSemGive makes the semaphore available, a waiter takes it at once
func (o *OSAL) BinSemGive(id BinSemID) error {
	sem, err := o.binSem(id)
	if err != nil {
		return err
	}

	sem.mu.Lock()
	sem.value = 1
	close(sem.wake)
	sem.wake = make(chan struct{})
	sem.mu.Unlock()

	return nil
}

// BinSemFlush releases every goroutine waiting on the semaphore, its value
// is left as it is
func (o *OSAL) BinSemFlush(id BinSemID) error {
	sem, err := o.binSem(id)
	if err != nil {
		return err
	}

	sem.mu.Lock()
	close(sem.flushed)
	sem.flushed = make(chan struct{})
	sem.mu.Unlock()

	return nil
}

// BinSemTake waits for the semaphore, a flush also releases the wait
func (o *OSAL) BinSemTake(ctx context.Context, id BinSemID) error {
	sem, err := o.binSem(id)
	if err != nil {
		return err
	}

	return sem.take(ctx, Pend)
}

// BinSemTimedWait waits for the semaphore for at most timeout
func (o *OSAL) BinSemTimedWait(ctx context.Context, id BinSemID, timeout time.Duration) error {
	sem, err := o.binSem(id)
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

// BinSemGetIDByName looks a binary semaphore up by name
func (o *OSAL) BinSemGetIDByName(name string) (BinSemID, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	o.sys.Lock()
	id := o.findBinSemI(name)
	o.sys.Unlock()

	if id == 0 {
		return 0, ErrNameNotFound
	}
	return id, nil
}

// BinSemGetInfo returns the semaphore properties
func (o *OSAL) BinSemGetInfo(id BinSemID) (BinSemProp, error) {
	sem, err := o.binSem(id)
	if err != nil {
		return BinSemProp{}, err
	}

	sem.mu.Lock()
	defer sem.mu.Unlock()
	return BinSemProp{Name: sem.name, Value: sem.value}, nil
}

func (sem *binSem) take(ctx context.Context, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	sem.mu.Lock()
	flushed := sem.flushed
	sem.mu.Unlock()

	for {
		sem.mu.Lock()
		if sem.value > 0 {
			sem.value = 0
			sem.mu.Unlock()
			return nil
		}
		wake := sem.wake
		sem.mu.Unlock()

		select {
		case <-wake:
		case <-flushed:
			return nil
		case <-sem.reset:
			return ErrDeleted
		case <-ctx.Done():
			return cancelled(ctx)
		case <-expired:
			return errTimeout
		}
	}
}

func (o *OSAL) binSem(id BinSemID) (*binSem, error) {
	o.sys.Lock()
	defer o.sys.Unlock()

	slot := o.binSemSlotI(id)
	if slot == nil {
		return nil, ErrInvalidID
	}
	return slot.sem, nil
}

func (o *OSAL) binSemSlotI(id BinSemID) *binSemSlot {
	if id == 0 || int(id) > o.binSems.Cap() {
		return nil
	}
	slot := o.binSems.At(int(id) - 1)
	if slot.sem == nil {
		return nil
	}
	return slot
}

func (o *OSAL) findBinSemI(name string) BinSemID {
	for i := 0; i < o.binSems.Cap(); i++ {
		if sem := o.binSems.At(i).sem; sem != nil && sem.name == name {
			return BinSemID(i + 1)
		}
	}
	return 0
}

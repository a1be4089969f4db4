package osal

import "context"

// MutexID identifies a mutex, zero is never a valid id
type MutexID uint32

type mutexSlot struct {
	mtx *mutex
}

type mutex struct {
	name  string
	owner chan struct{} // holds a token while locked
	reset chan struct{}
}

// MutexCreate creates an unlocked mutex
func (o *OSAL) MutexCreate(name string) (MutexID, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	mtx := &mutex{
		name:  name,
		owner: make(chan struct{}, 1),
		reset: make(chan struct{}),
	}

	o.sys.Lock()
	defer o.sys.Unlock()

	if o.findMutexI(name) != 0 {
		return 0, ErrNameTaken
	}
	slot := o.mutexes.Alloc()
	if slot == nil {
		return 0, ErrNoFreeIDs
	}
	slot.mtx = mtx
	idx, _ := o.mutexes.Index(slot)

	return MutexID(idx + 1), nil
}

// MutexDelete deletes a mutex, goroutines waiting to lock it return
// ErrDeleted
func (o *OSAL) MutexDelete(id MutexID) error {
	o.sys.Lock()
	slot := o.mutexSlotI(id)
	if slot == nil {
		o.sys.Unlock()
		return ErrInvalidID
	}
	mtx := slot.mtx
	slot.mtx = nil
	o.mutexes.Free(slot)
	o.sys.Unlock()

	close(mtx.reset)
	return nil
}

// MutexTake locks the mutex, waiting while another holder has it
func (o *OSAL) MutexTake(ctx context.Context, id MutexID) error {
	mtx, err := o.mutex(id)
	if err != nil {
		return err
	}

	select {
	case mtx.owner <- struct{}{}:
		return nil
	default:
	}

	select {
	case mtx.owner <- struct{}{}:
		return nil
	case <-mtx.reset:
		return ErrDeleted
	case <-ctx.Done():
		return cancelled(ctx)
	}
}

// MutexGive unlocks the mutex, ErrSemFailure if it was not locked
func (o *OSAL) MutexGive(id MutexID) error {
	mtx, err := o.mutex(id)
	if err != nil {
		return err
	}

	select {
	case <-mtx.owner:
		return nil
	default:
		o.sys.Logger().Warn().Str("mutex", mtx.name).Msg("unlock of a free mutex")
		return ErrSemFailure
	}
}

// MutexGetIDByName looks a mutex up by name
func (o *OSAL) MutexGetIDByName(name string) (MutexID, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	o.sys.Lock()
	id := o.findMutexI(name)
	o.sys.Unlock()

	if id == 0 {
		return 0, ErrNameNotFound
	}
	return id, nil
}

func (o *OSAL) mutex(id MutexID) (*mutex, error) {
	o.sys.Lock()
	defer o.sys.Unlock()

	slot := o.mutexSlotI(id)
	if slot == nil {
		return nil, ErrInvalidID
	}
	return slot.mtx, nil
}

func (o *OSAL) mutexSlotI(id MutexID) *mutexSlot {
	if id == 0 || int(id) > o.mutexes.Cap() {
		return nil
	}
	slot := o.mutexes.At(int(id) - 1)
	if slot.mtx == nil {
		return nil
	}
	return slot
}

func (o *OSAL) findMutexI(name string) MutexID {
	for i := 0; i < o.mutexes.Cap(); i++ {
		if mtx := o.mutexes.At(i).mtx; mtx != nil && mtx.name == name {
			return MutexID(i + 1)
		}
	}
	return 0
}

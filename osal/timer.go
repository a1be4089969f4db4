package osal

import (
	"sync"
	"time"
)

// TimerAccuracy is the resolution timers are programmed with
const TimerAccuracy = time.Microsecond

// TimerID identifies a timer, zero is never a valid id
type TimerID uint32

// TimerFunc is called from the timer goroutine on every expiry
type TimerFunc func(id TimerID)

type timerSlot struct {
	tmr *timer
}

type timer struct {
	id       TimerID
	name     string
	callback TimerFunc

	mu       sync.Mutex
	start    time.Duration
	interval time.Duration
	t        *time.Timer
	gen      uint64 // bumped on every set and on delete, stale expiries are dropped
}

// TimerProp describes a timer
type TimerProp struct {
	Name     string
	Start    time.Duration
	Interval time.Duration
	Accuracy time.Duration
}

// TimerCreate creates a stopped timer calling callback on expiry
func (o *OSAL) TimerCreate(name string, callback TimerFunc) (TimerID, error) {
	if callback == nil {
		return 0, ErrTimerInvalidArgs
	}
	if err := checkName(name); err != nil {
		return 0, err
	}

	o.sys.Lock()
	if o.findTimerI(name) != 0 {
		o.sys.Unlock()
		return 0, ErrNameTaken
	}
	slot := o.timers.Alloc()
	if slot == nil {
		o.sys.Unlock()
		return 0, ErrNoFreeIDs
	}
	idx, _ := o.timers.Index(slot)
	id := TimerID(idx + 1)
	slot.tmr = &timer{id: id, name: name, callback: callback}
	o.sys.Unlock()

	o.sys.Logger().Debug().Str("timer", name).Uint32("id", uint32(id)).Msg("timer created")

	return id, nil
}

// TimerDelete stops the timer and frees its id
func (o *OSAL) TimerDelete(id TimerID) error {
	o.sys.Lock()
	slot := o.timerSlotI(id)
	if slot == nil {
		o.sys.Unlock()
		return ErrInvalidID
	}
	tmr := slot.tmr
	slot.tmr = nil
	o.timers.Free(slot)
	o.sys.Unlock()

	tmr.mu.Lock()
	tmr.stopLocked()
	tmr.mu.Unlock()

	o.sys.Logger().Debug().Str("timer", tmr.name).Msg("timer deleted")

	return nil
}

// TimerSet arms the timer to expire after start and then every interval,
// a zero interval makes it one-shot. A zero start stops the timer. It is
// safe to call from a timer callback.
func (o *OSAL) TimerSet(id TimerID, start, interval time.Duration) error {
	if start < 0 || interval < 0 {
		return ErrInvalidIntNum
	}
	tmr, err := o.timer(id)
	if err != nil {
		return err
	}

	tmr.mu.Lock()
	defer tmr.mu.Unlock()

	tmr.stopLocked()
	if start == 0 {
		return nil
	}
	tmr.start = start
	tmr.interval = interval
	tmr.armLocked(start)

	return nil
}

// TimerGetIDByName looks a timer up by name
func (o *OSAL) TimerGetIDByName(name string) (TimerID, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	o.sys.Lock()
	id := o.findTimerI(name)
	o.sys.Unlock()

	if id == 0 {
		return 0, ErrNameNotFound
	}
	return id, nil
}

// TimerGetInfo returns the timer properties
func (o *OSAL) TimerGetInfo(id TimerID) (TimerProp, error) {
	tmr, err := o.timer(id)
	if err != nil {
		return TimerProp{}, err
	}

	tmr.mu.Lock()
	defer tmr.mu.Unlock()
	return TimerProp{
		Name:     tmr.name,
		Start:    tmr.start,
		Interval: tmr.interval,
		Accuracy: TimerAccuracy,
	}, nil
}

func (tmr *timer) stopLocked() {
	tmr.gen++
	if tmr.t != nil {
		tmr.t.Stop()
		tmr.t = nil
	}
}

func (tmr *timer) armLocked(d time.Duration) {
	gen := tmr.gen
	tmr.t = time.AfterFunc(d, func() { tmr.fire(gen) })
}

// fire runs the callback unless the timer was set again or deleted since
// it was armed, then rearms a periodic timer
func (tmr *timer) fire(gen uint64) {
	tmr.mu.Lock()
	if tmr.gen != gen {
		tmr.mu.Unlock()
		return
	}
	tmr.mu.Unlock()

	tmr.callback(tmr.id)

	tmr.mu.Lock()
	if tmr.gen == gen && tmr.interval != 0 {
		tmr.armLocked(tmr.interval)
	}
	tmr.mu.Unlock()
}

func (o *OSAL) timer(id TimerID) (*timer, error) {
	o.sys.Lock()
	defer o.sys.Unlock()

	slot := o.timerSlotI(id)
	if slot == nil {
		return nil, ErrInvalidID
	}
	return slot.tmr, nil
}

func (o *OSAL) timerSlotI(id TimerID) *timerSlot {
	if id == 0 || int(id) > o.timers.Cap() {
		return nil
	}
	slot := o.timers.At(int(id) - 1)
	if slot.tmr == nil {
		return nil
	}
	return slot
}

func (o *OSAL) findTimerI(name string) TimerID {
	for i := 0; i < o.timers.Cap(); i++ {
		if tmr := o.timers.At(i).tmr; tmr != nil && tmr.name == name {
			return TimerID(i + 1)
		}
	}
	return 0
}

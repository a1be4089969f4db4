package osal

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerCreateValidation(t *testing.T) {
	o := newTestOSAL(Limits{Timers: 1})
	nop := func(TimerID) {}

	_, err := o.TimerCreate("nil", nil)
	assert.ErrorIs(t, err, ErrTimerInvalidArgs)
	_, err = o.TimerCreate("timer-name-that-is-too-long", nop)
	assert.ErrorIs(t, err, ErrNameTooLong)

	id, err := o.TimerCreate("tick", nop)
	require.NoError(t, err)
	_, err = o.TimerCreate("tick", nop)
	assert.ErrorIs(t, err, ErrNameTaken)
	_, err = o.TimerCreate("other", nop)
	assert.ErrorIs(t, err, ErrNoFreeIDs)

	found, err := o.TimerGetIDByName("tick")
	require.NoError(t, err)
	assert.Equal(t, id, found)

	assert.ErrorIs(t, o.TimerSet(id, -1, 0), ErrInvalidIntNum)
	assert.ErrorIs(t, o.TimerSet(TimerID(5), time.Millisecond, 0), ErrInvalidID)
}

func TestTimerOneShot(t *testing.T) {
	o := newTestOSAL(Limits{})
	fired := make(chan TimerID, 4)

	id, err := o.TimerCreate("once", func(id TimerID) { fired <- id })
	require.NoError(t, err)
	require.NoError(t, o.TimerSet(id, 5*time.Millisecond, 0))

	select {
	case got := <-fired:
		assert.Equal(t, id, got)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	select {
	case <-fired:
		t.Fatal("one-shot timer fired twice")
	case <-time.After(30 * time.Millisecond):
	}

	prop, err := o.TimerGetInfo(id)
	require.NoError(t, err)
	assert.Equal(t, TimerProp{Name: "once", Start: 5 * time.Millisecond, Accuracy: TimerAccuracy}, prop)
}

func TestTimerPeriodic(t *testing.T) {
	o := newTestOSAL(Limits{})
	var ticks atomic.Int64

	id, err := o.TimerCreate("periodic", func(TimerID) { ticks.Add(1) })
	require.NoError(t, err)
	require.NoError(t, o.TimerSet(id, time.Millisecond, 2*time.Millisecond))

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)

	// a zero start stops the timer
	require.NoError(t, o.TimerSet(id, 0, 0))
	// let an expiry already past its check finish
	time.Sleep(5 * time.Millisecond)
	stopped := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, ticks.Load())

	prop, err := o.TimerGetInfo(id)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Millisecond, prop.Interval)
}

func TestTimerSetFromCallback(t *testing.T) {
	o := newTestOSAL(Limits{})
	var ticks atomic.Int64
	var id TimerID

	id, err := o.TimerCreate("self", func(TimerID) {
		if ticks.Add(1) == 2 {
			// stops the periodic rearm of the running expiry
			_ = o.TimerSet(id, 0, 0)
		}
	})
	require.NoError(t, err)
	require.NoError(t, o.TimerSet(id, time.Millisecond, time.Millisecond))

	require.Eventually(t, func() bool { return ticks.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(2), ticks.Load())
}

func TestTimerDelete(t *testing.T) {
	o := newTestOSAL(Limits{})
	var ticks atomic.Int64

	id, err := o.TimerCreate("gone", func(TimerID) { ticks.Add(1) })
	require.NoError(t, err)
	require.NoError(t, o.TimerSet(id, 10*time.Millisecond, 0))
	require.NoError(t, o.TimerDelete(id))

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, ticks.Load())

	assert.ErrorIs(t, o.TimerDelete(id), ErrInvalidID)
	assert.ErrorIs(t, o.TimerSet(id, time.Millisecond, 0), ErrInvalidID)
	_, err = o.TimerGetInfo(id)
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = o.TimerGetIDByName("gone")
	assert.ErrorIs(t, err, ErrNameNotFound)
}

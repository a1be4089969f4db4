package rtkernel

import (
	"testing"
	"time"

	"github.com/geseq/rtkernel/pkg/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockOn(ch <-chan struct{}, msg Msg) ThreadFunc {
	return func(t *Thread, arg any) Msg {
		<-ch
		return msg
	}
}

func TestCreateStaticThread(t *testing.T) {
	require := require.New(t)
	s := newTestSystem()
	wa := make([]byte, 256)

	th := s.Create(&ThreadDescriptor{
		Name:        "worker",
		WorkingArea: wa,
		Prio:        NormalPrio,
		Func: func(t *Thread, arg any) Msg {
			return Msg(arg.(int))
		},
		Arg: 42,
	})
	require.NotNil(th)
	require.Equal("worker", th.Name())
	require.Equal(NormalPrio, th.Prio())

	require.Equal(Msg(42), s.Wait(th))
	require.Equal(StateFinal, th.State())
	require.Zero(s.ThreadCount())
	require.Empty(s.ReadyThreads())
}

func TestCreateSuspendedThenStart(t *testing.T) {
	require := require.New(t)
	s := newTestSystem()
	ran := make(chan struct{}, 1)

	th := s.CreateSuspended(&ThreadDescriptor{
		Name:        "late",
		WorkingArea: make([]byte, MinWorkingAreaSize),
		Prio:        LowPrio,
		Func: func(t *Thread, arg any) Msg {
			ran <- struct{}{}
			return MsgOK
		},
	})

	require.Equal(StateWTStart, th.State())
	require.Equal(1, s.ThreadCount())
	require.Empty(s.ReadyThreads())

	select {
	case <-ran:
		t.Fatal("suspended thread ran before start")
	case <-time.After(20 * time.Millisecond):
	}

	s.Start(th)
	require.Equal(MsgOK, s.Wait(th))
	require.Len(ran, 1)
	require.Zero(s.ThreadCount())
}

func TestStartTwiceHalts(t *testing.T) {
	s := newTestSystem()
	release := make(chan struct{})
	defer close(release)

	th := s.Create(&ThreadDescriptor{
		Name:        "once",
		WorkingArea: make([]byte, MinWorkingAreaSize),
		Prio:        NormalPrio,
		Func:        blockOn(release, MsgOK),
	})

	assert.Panics(t, func() {
		s.Lock()
		s.StartI(th)
	})
}

func TestCreateValidatesDescriptor(t *testing.T) {
	fn := func(t *Thread, arg any) Msg { return MsgOK }

	s := newTestSystem()
	assert.Panics(t, func() {
		s.Create(&ThreadDescriptor{Name: "prio", WorkingArea: make([]byte, 128), Prio: 0, Func: fn})
	})

	s = newTestSystem()
	assert.Panics(t, func() {
		s.Create(&ThreadDescriptor{Name: "small", WorkingArea: make([]byte, MinWorkingAreaSize-1), Prio: NormalPrio, Func: fn})
	})

	s = newTestSystem()
	assert.Panics(t, func() {
		s.Create(&ThreadDescriptor{Name: "nofn", WorkingArea: make([]byte, 128), Prio: NormalPrio})
	})

	s = newTestSystem()
	assert.Panics(t, func() {
		s.CreateSuspendedI(&ThreadDescriptor{Name: "unlocked", WorkingArea: make([]byte, 128), Prio: NormalPrio, Func: fn})
	})
}

func TestTerminateRequest(t *testing.T) {
	s := newTestSystem()

	th := s.Create(&ThreadDescriptor{
		Name:        "loop",
		WorkingArea: make([]byte, 128),
		Prio:        NormalPrio,
		Func: func(t *Thread, arg any) Msg {
			for !t.ShouldTerminate() {
				if Sleep(t.Context(), time.Hour) == MsgReset {
					break
				}
			}
			return MsgReset
		},
	})

	assert.False(t, th.ShouldTerminate())
	s.Terminate(th)
	assert.True(t, th.ShouldTerminate())
	assert.Equal(t, MsgReset, s.Wait(th))
}

func TestThreadPanicExitsWithReset(t *testing.T) {
	s := newTestSystem()

	th := s.Create(&ThreadDescriptor{
		Name:        "bad",
		WorkingArea: make([]byte, 128),
		Prio:        NormalPrio,
		Func: func(t *Thread, arg any) Msg {
			panic("boom")
		},
	})

	assert.Equal(t, MsgReset, s.Wait(th))

	var halts int
	for _, e := range s.TraceSnapshot() {
		if e.Type == trace.TypeHalt && e.Thread == th.ID() {
			halts++
			assert.Equal(t, "boom", e.Arg1)
		}
	}
	assert.Equal(t, 1, halts)
}

func TestReadyListPriorityOrder(t *testing.T) {
	require := require.New(t)
	s := newTestSystem()
	release := make(chan struct{})

	var threads []*Thread
	for _, d := range []struct {
		name string
		prio Prio
	}{{"low-a", 10}, {"high", 200}, {"low-b", 10}, {"normal", NormalPrio}} {
		threads = append(threads, s.Create(&ThreadDescriptor{
			Name:        d.name,
			WorkingArea: make([]byte, 128),
			Prio:        d.prio,
			Func:        blockOn(release, MsgOK),
		}))
	}

	var names []string
	for _, th := range s.ReadyThreads() {
		names = append(names, th.Name())
	}
	require.Equal([]string{"high", "normal", "low-a", "low-b"}, names)

	close(release)
	for _, th := range threads {
		require.Equal(MsgOK, s.Wait(th))
	}
	require.Empty(s.ReadyThreads())
	require.Zero(s.ThreadCount())
}

func TestSetPrioMovesReadyThread(t *testing.T) {
	require := require.New(t)
	s := newTestSystem()
	release := make(chan struct{})

	var threads []*Thread
	for _, d := range []struct {
		name string
		prio Prio
	}{{"a", 10}, {"b", NormalPrio}, {"c", 200}} {
		threads = append(threads, s.Create(&ThreadDescriptor{
			Name:        d.name,
			WorkingArea: make([]byte, 128),
			Prio:        d.prio,
			Func:        blockOn(release, MsgOK),
		}))
	}

	names := func() []string {
		var names []string
		for _, th := range s.ReadyThreads() {
			names = append(names, th.Name())
		}
		return names
	}
	require.Equal([]string{"c", "b", "a"}, names())

	require.Equal(Prio(10), s.SetPrio(threads[0], HighPrio))
	require.Equal(HighPrio, threads[0].Prio())
	require.Equal([]string{"a", "c", "b"}, names())

	// equal priority goes after the threads already there
	s.SetPrio(threads[2], NormalPrio)
	require.Equal([]string{"a", "b", "c"}, names())

	require.Panics(func() { s.SetPrio(threads[1], 0) })
	require.False(s.IsLocked())

	close(release)
	for _, th := range threads {
		require.Equal(MsgOK, s.Wait(th))
	}
}

func TestSetPrioSuspendedThread(t *testing.T) {
	s := newTestSystem()

	th := s.CreateSuspended(&ThreadDescriptor{
		Name:        "parked",
		WorkingArea: make([]byte, 128),
		Prio:        LowPrio,
		Func:        func(t *Thread, arg any) Msg { return MsgOK },
	})
	s.SetPrio(th, NormalPrio)
	assert.Empty(t, s.ReadyThreads())

	s.Start(th)
	assert.Equal(t, NormalPrio, th.Prio())
	assert.Equal(t, MsgOK, s.Wait(th))
}

func TestThreadExit(t *testing.T) {
	s := newTestSystem()
	deferred := make(chan struct{}, 1)

	th := s.Create(&ThreadDescriptor{
		Name:        "early",
		WorkingArea: make([]byte, 128),
		Prio:        NormalPrio,
		Func: func(t *Thread, arg any) Msg {
			defer func() { deferred <- struct{}{} }()
			t.Exit(9)
			return MsgOK
		},
	})

	assert.Equal(t, Msg(9), s.Wait(th))
	assert.Len(t, deferred, 1)
	// a clean exit is not a panic
	for _, ev := range s.TraceSnapshot() {
		assert.NotEqual(t, trace.TypeHalt, ev.Type)
	}
}

func TestExitCodeAndDone(t *testing.T) {
	s := newTestSystem()

	th := s.Create(&ThreadDescriptor{
		Name:        "code",
		WorkingArea: make([]byte, 128),
		Prio:        NormalPrio,
		Func:        func(t *Thread, arg any) Msg { return 7 },
	})

	select {
	case <-th.Done():
	case <-time.After(time.Second):
		t.Fatal("thread did not exit")
	}
	assert.Equal(t, Msg(7), th.ExitCode())
	assert.Equal(t, 1, th.Refs())
	assert.Equal(t, 1, s.ThreadCount())

	s.Release(th)
	assert.Zero(t, s.ThreadCount())
}

func TestTraceRecordsLifecycle(t *testing.T) {
	s := newTestSystem()

	th := s.Create(&ThreadDescriptor{
		Name:        "traced",
		WorkingArea: make([]byte, 128),
		Prio:        NormalPrio,
		Func:        func(t *Thread, arg any) Msg { return MsgOK },
	})
	s.Wait(th)
	s.WriteTrace(nil, "user", 1)

	var types []trace.Type
	for _, e := range s.TraceSnapshot() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []trace.Type{trace.TypeCreate, trace.TypeReady, trace.TypeExit, trace.TypeUser}, types)
	assert.Equal(t, uint64(4), s.TraceWritten())

	s.TraceSuspend(trace.TypeUser.Mask())
	s.WriteTrace(th, "dropped", nil)
	assert.Equal(t, uint64(4), s.TraceWritten())

	s.TraceResume(trace.TypeUser.Mask())
	s.WriteTrace(th, "kept", nil)
	assert.Equal(t, uint64(5), s.TraceWritten())
}

func TestTraceDisabled(t *testing.T) {
	s := newTestSystem(WithTraceBuffer(0))
	s.WriteTrace(nil, 1, 2)

	assert.Nil(t, s.TraceSnapshot())
	assert.Zero(t, s.TraceWritten())
}

func TestTraceMaskOption(t *testing.T) {
	s := newTestSystem(WithTraceMask(trace.TypeCreate.Mask() | trace.TypeReady.Mask()))

	th := s.Create(&ThreadDescriptor{
		Name:        "masked",
		WorkingArea: make([]byte, 128),
		Prio:        NormalPrio,
		Func:        func(t *Thread, arg any) Msg { return MsgOK },
	})
	s.Wait(th)

	events := s.TraceSnapshot()
	require.Len(t, events, 1)
	assert.Equal(t, trace.TypeExit, events[0].Type)
	assert.Equal(t, MsgOK, events[0].Arg1)
}

package osal

import (
	"context"
	"time"

	"github.com/geseq/rtkernel"
)

// TaskID identifies a task, it is the id of the underlying thread
type TaskID uint64

// TaskFunc is a task body. It should return once t.ShouldTerminate reports
// true, tasks cannot be killed.
type TaskFunc func(t *rtkernel.Thread)

// TaskProp describes a task
type TaskProp struct {
	Name      string
	StackSize int
	Priority  int
}

// TaskCreate starts a task on the working area wa. Priorities run from 1,
// the most urgent, to 255.
func (o *OSAL) TaskCreate(name string, fn TaskFunc, wa []byte, priority int) (TaskID, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	if priority < MinPriority || priority > MaxPriority {
		return 0, ErrInvalidPriority
	}
	if len(wa) < rtkernel.MinWorkingAreaSize {
		return 0, ErrInvalidIntNum
	}

	if t := o.sys.FindThreadByWorkingArea(wa); t != nil {
		o.sys.Release(t)
		return 0, ErrNoFreeIDs
	}
	if t := o.sys.FindThreadByName(name); t != nil {
		o.sys.Release(t)
		return 0, ErrNameTaken
	}

	t := o.sys.Create(&rtkernel.ThreadDescriptor{
		Name:        name,
		WorkingArea: wa,
		Prio:        kernelPrio(priority),
		Func: func(t *rtkernel.Thread, _ any) rtkernel.Msg {
			defer o.dropDeleteHandler(t.ID())
			fn(t)
			return rtkernel.MsgOK
		},
	})
	id := TaskID(t.ID())

	// detached, other calls reach the task through the registry
	o.sys.Release(t)

	return id, nil
}

// TaskInstallDeleteHandler sets the function TaskDelete calls after t has
// terminated. The handler is dropped when the task returns on its own.
func (o *OSAL) TaskInstallDeleteHandler(t *rtkernel.Thread, fn func()) {
	o.sys.Lock()
	o.deleteHandlers[t.ID()] = fn
	o.sys.Unlock()
}

// TaskDelete asks the task to terminate, waits for it and then runs its
// delete handler
func (o *OSAL) TaskDelete(id TaskID) error {
	t := o.sys.FindThreadByID(uint64(id))
	if t == nil {
		return ErrInvalidID
	}

	o.sys.Lock()
	fn := o.deleteHandlers[uint64(id)]
	o.sys.Unlock()

	o.sys.Terminate(t)
	o.sys.Wait(t)

	if fn != nil {
		fn()
	}
	return nil
}

// TaskWait waits for the task to return
func (o *OSAL) TaskWait(id TaskID) error {
	t := o.sys.FindThreadByID(uint64(id))
	if t == nil {
		return ErrInvalidID
	}

	o.sys.Wait(t)
	return nil
}

// TaskExit ends the calling task t, deferred calls of its body still run
func (o *OSAL) TaskExit(t *rtkernel.Thread) {
	t.Exit(rtkernel.MsgOK)
}

// TaskGetID returns the id of the task running on t
func (o *OSAL) TaskGetID(t *rtkernel.Thread) TaskID {
	return TaskID(t.ID())
}

// TaskSetPriority changes the task priority, a ready task is requeued
// behind the tasks already at the new priority
func (o *OSAL) TaskSetPriority(id TaskID, priority int) error {
	if priority < MinPriority || priority > MaxPriority {
		return ErrInvalidPriority
	}

	t := o.sys.FindThreadByID(uint64(id))
	if t == nil {
		return ErrInvalidID
	}
	o.sys.SetPrio(t, kernelPrio(priority))
	o.sys.Release(t)

	return nil
}

// TaskDelay sleeps for d, it fails with the ctx error if ctx is done first
func (o *OSAL) TaskDelay(ctx context.Context, d time.Duration) error {
	if rtkernel.Sleep(ctx, d) == rtkernel.MsgReset {
		return ctx.Err()
	}
	return nil
}

// TaskGetIDByName looks a task up by name
func (o *OSAL) TaskGetIDByName(name string) (TaskID, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	t := o.sys.FindThreadByName(name)
	if t == nil {
		return 0, ErrNameNotFound
	}
	id := TaskID(t.ID())
	o.sys.Release(t)

	return id, nil
}

// TaskGetInfo returns the task properties
func (o *OSAL) TaskGetInfo(id TaskID) (TaskProp, error) {
	t := o.sys.FindThreadByID(uint64(id))
	if t == nil {
		return TaskProp{}, ErrInvalidID
	}
	defer o.sys.Release(t)

	return TaskProp{
		Name:      t.Name(),
		StackSize: len(t.WorkingArea()),
		Priority:  256 - int(t.Prio()),
	}, nil
}

// dropDeleteHandler forgets the handler of an exited task
func (o *OSAL) dropDeleteHandler(id uint64) {
	o.sys.Lock()
	delete(o.deleteHandlers, id)
	o.sys.Unlock()
}

// kernelPrio maps 1..255, 1 most urgent, to kernel priorities where higher
// runs first. 255 would land on the idle priority and is raised to LowPrio.
func kernelPrio(p int) rtkernel.Prio {
	kp := 256 - p
	if kp == int(rtkernel.IdlePrio) {
		kp = int(rtkernel.LowPrio)
	}
	return rtkernel.Prio(kp)
}

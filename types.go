package rtkernel

import "math/bits"

// Prio is a thread priority, higher values are more urgent
type Prio uint8

// Msg is a wakeup or exit message
type Msg int32

const (
	IdlePrio   Prio = 1
	LowPrio    Prio = 2
	NormalPrio Prio = 128
	HighPrio   Prio = 255
)

const (
	MsgOK      Msg = 0
	MsgTimeout Msg = -1
	MsgReset   Msg = -2
)

const (
	// PointerSize is the minimum pool object size
	PointerSize = bits.UintSize / 8

	// MinWorkingAreaSize is the smallest working area a thread accepts
	MinWorkingAreaSize = 64

	// StackFillValue is written over working areas when stack fill is on
	StackFillValue byte = 0x55
)

// String implements fmt.Stringer interface
func (m Msg) String() string {
	switch m {
	case MsgOK:
		return "ok"
	case MsgTimeout:
		return "timeout"
	case MsgReset:
		return "reset"
	default:
		return "msg"
	}
}

package rtkernel

import "errors"

// ErrHalted is matched by every HaltError
var ErrHalted = errors.New("rtkernel: system halted")

// HaltError is the panic value raised when the system halts
type HaltError struct {
	Reason string
}

// Error implements the error interface
func (e *HaltError) Error() string {
	return "rtkernel: system halted: " + e.Reason
}

// Is makes errors.Is(err, ErrHalted) match any HaltError
func (e *HaltError) Is(target error) bool {
	return target == ErrHalted
}

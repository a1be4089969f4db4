package osal

import "errors"

var (
	ErrNameTooLong      = errors.New("osal: name too long")
	ErrNameTaken        = errors.New("osal: name already taken")
	ErrNameNotFound     = errors.New("osal: name not found")
	ErrNoFreeIDs        = errors.New("osal: no free ids")
	ErrInvalidID        = errors.New("osal: invalid id")
	ErrInvalidPriority  = errors.New("osal: invalid priority")
	ErrInvalidIntNum    = errors.New("osal: invalid integer argument")
	ErrQueueEmpty       = errors.New("osal: queue empty")
	ErrQueueTimeout     = errors.New("osal: queue timeout")
	ErrQueueInvalidSize = errors.New("osal: invalid message size")
	ErrQueueLimits      = errors.New("osal: queue limits out of range")
	ErrSemFailure       = errors.New("osal: semaphore failure")
	ErrSemTimeout       = errors.New("osal: semaphore timeout")
	ErrTimerInvalidArgs = errors.New("osal: invalid timer arguments")
	ErrDeleted          = errors.New("osal: object deleted while waiting")
)

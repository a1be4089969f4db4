package osal

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/geseq/rtkernel"
)

// QueueID identifies a queue, zero is never a valid id
type QueueID uint32

// size header in front of every message body
const msgHeader = 8

type queueSlot struct {
	q *queue
}

// queue state lives apart from its slot so that a waiter still holding it
// after deletion never sees the slot being reused
type queue struct {
	name  string
	depth int
	size  int

	freeMsgs chan struct{}
	mb       chan []byte
	messages *rtkernel.Pool
	reset    chan struct{}
}

// QueueProp describes a queue
type QueueProp struct {
	Name  string
	Depth int
	Size  int
	Used  int
}

// QueueCreate creates a queue of depth messages of at most dataSize bytes
func (o *OSAL) QueueCreate(name string, depth, dataSize int) (QueueID, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	if dataSize < MinMessageSize || dataSize > MaxMessageSize ||
		depth < MinQueueDepth || depth > MaxQueueDepth {
		return 0, ErrQueueLimits
	}

	msgSize := alignUp(dataSize+msgHeader, rtkernel.PointerSize)
	q := &queue{
		name:     name,
		depth:    depth,
		size:     dataSize,
		freeMsgs: make(chan struct{}, depth),
		mb:       make(chan []byte, depth),
		messages: rtkernel.NewPool(o.sys, msgSize, nil),
		reset:    make(chan struct{}),
	}
	q.messages.LoadArray(make([]byte, msgSize*depth), depth)
	for i := 0; i < depth; i++ {
		q.freeMsgs <- struct{}{}
	}

	o.sys.Lock()
	if o.findQueueI(name) != 0 {
		o.sys.Unlock()
		return 0, ErrNameTaken
	}
	slot := o.queues.Alloc()
	if slot == nil {
		o.sys.Unlock()
		return 0, ErrNoFreeIDs
	}
	slot.q = q
	idx, _ := o.queues.Index(slot)
	o.sys.Unlock()

	o.sys.Logger().Debug().Str("queue", name).Int("depth", depth).Int("size", dataSize).Msg("queue created")

	return QueueID(idx + 1), nil
}

// QueueDelete deletes a queue, goroutines waiting on it return ErrDeleted
func (o *OSAL) QueueDelete(id QueueID) error {
	o.sys.Lock()
	slot := o.queueSlotI(id)
	if slot == nil {
		o.sys.Unlock()
		return ErrInvalidID
	}
	q := slot.q
	slot.q = nil
	o.queues.Free(slot)
	o.sys.Unlock()

	close(q.reset)
	o.sys.Logger().Debug().Str("queue", q.name).Msg("queue deleted")

	return nil
}

// QueuePut copies data in a message and posts it, waiting for a free
// message if the queue is full
func (o *OSAL) QueuePut(ctx context.Context, id QueueID, data []byte) error {
	q, err := o.queue(id)
	if err != nil {
		return err
	}
	if len(data) > q.size {
		return ErrQueueInvalidSize
	}

	if _, err := wait(ctx, q.freeMsgs, q.reset, Pend); err != nil {
		return err
	}

	m := q.messages.Alloc()
	binary.LittleEndian.PutUint64(m, uint64(len(data)))
	copy(m[msgHeader:], data)
	q.mb <- m

	return nil
}

// QueueGet fetches a message into buf and returns its size. timeout can be
// Pend or Check.
func (o *OSAL) QueueGet(ctx context.Context, id QueueID, buf []byte, timeout time.Duration) (int, error) {
	q, err := o.queue(id)
	if err != nil {
		return 0, err
	}
	if len(buf) < q.size {
		return 0, ErrQueueInvalidSize
	}

	m, err := wait(ctx, q.mb, q.reset, timeout)
	switch {
	case err == nil:
	case !errors.Is(err, errTimeout):
		return 0, err
	case timeout == Check:
		return 0, ErrQueueEmpty
	default:
		return 0, ErrQueueTimeout
	}

	n := int(binary.LittleEndian.Uint64(m))
	copy(buf, m[msgHeader:msgHeader+n])

	q.messages.Free(m)
	q.freeMsgs <- struct{}{}

	return n, nil
}

// QueueGetIDByName looks a queue up by name
func (o *OSAL) QueueGetIDByName(name string) (QueueID, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	o.sys.Lock()
	id := o.findQueueI(name)
	o.sys.Unlock()

	if id == 0 {
		return 0, ErrNameNotFound
	}
	return id, nil
}

// QueueGetInfo returns the queue properties
func (o *OSAL) QueueGetInfo(id QueueID) (QueueProp, error) {
	q, err := o.queue(id)
	if err != nil {
		return QueueProp{}, err
	}

	return QueueProp{
		Name:  q.name,
		Depth: q.depth,
		Size:  q.size,
		Used:  len(q.mb),
	}, nil
}

func (o *OSAL) queue(id QueueID) (*queue, error) {
	o.sys.Lock()
	defer o.sys.Unlock()

	slot := o.queueSlotI(id)
	if slot == nil {
		return nil, ErrInvalidID
	}
	return slot.q, nil
}

func (o *OSAL) queueSlotI(id QueueID) *queueSlot {
	if id == 0 || int(id) > o.queues.Cap() {
		return nil
	}
	slot := o.queues.At(int(id) - 1)
	if slot.q == nil {
		return nil
	}
	return slot
}

func (o *OSAL) findQueueI(name string) QueueID {
	for i := 0; i < o.queues.Cap(); i++ {
		if q := o.queues.At(i).q; q != nil && q.name == name {
			return QueueID(i + 1)
		}
	}
	return 0
}

func alignUp(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}

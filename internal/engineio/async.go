package engineio

import (
	"context"
	"sync"
)

// asyncSlot is the single-producer/single-consumer handoff for one request.
type asyncSlot struct {
	done   chan Reply
	cancel context.CancelFunc
}

// AsyncChannel runs each task on its own goroutine. Abandoning a handle
// cancels the task's context, so the threaded model can abort an in-flight
// network call outright.
type AsyncChannel struct {
	mu     sync.Mutex
	nextID uint64
	slots  map[uint64]*asyncSlot
}

func NewAsyncChannel() *AsyncChannel {
	return &AsyncChannel{slots: make(map[uint64]*asyncSlot)}
}

func (c *AsyncChannel) Send(task Task) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	slot := &asyncSlot{done: make(chan Reply, 1), cancel: cancel}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.slots[id] = slot
	c.mu.Unlock()

	go func() {
		slot.done <- task(ctx)
	}()
	return Handle{id: id}
}

func (c *AsyncChannel) Poll(h Handle) (Reply, bool) {
	c.mu.Lock()
	slot, ok := c.slots[h.id]
	c.mu.Unlock()
	if !ok {
		return Reply{}, false
	}

	select {
	case reply := <-slot.done:
		c.mu.Lock()
		delete(c.slots, h.id)
		c.mu.Unlock()
		slot.cancel()
		return reply, true
	default:
		return Reply{}, false
	}
}

func (c *AsyncChannel) Abandon(h Handle) {
	c.mu.Lock()
	slot, ok := c.slots[h.id]
	delete(c.slots, h.id)
	c.mu.Unlock()
	if ok {
		slot.cancel()
	}
}

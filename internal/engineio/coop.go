package engineio

import (
	"context"
	"sync"
)

// Stepper is a task whose work can be advanced in bounded slices. Step
// returns done=true together with the final reply exactly once.
type Stepper interface {
	Step(ctx context.Context) (reply Reply, done bool)
}

// StepFunc adapts a function to the Stepper interface.
type StepFunc func(ctx context.Context) (Reply, bool)

func (f StepFunc) Step(ctx context.Context) (Reply, bool) { return f(ctx) }

type coopSlot struct {
	task    Task
	stepper Stepper
}

// CoopChannel is the cooperative implementation: no goroutines, and nothing
// happens between polls. A Stepper is advanced inline, one step per poll. A
// whole-call Task runs inline to completion on its first poll, blocking that
// frame until the call returns; work that must stay frame-friendly goes in
// through SendStepper. Abandoned handles are simply never polled again, so
// their work either never starts or its reply dies on the caller's epoch
// check.
type CoopChannel struct {
	mu     sync.Mutex
	nextID uint64
	slots  map[uint64]*coopSlot
}

func NewCoopChannel() *CoopChannel {
	return &CoopChannel{slots: make(map[uint64]*coopSlot)}
}

func (c *CoopChannel) Send(task Task) Handle {
	return c.register(&coopSlot{task: task})
}

// SendStepper enqueues a sliceable task that Poll drives inline.
func (c *CoopChannel) SendStepper(s Stepper) Handle {
	return c.register(&coopSlot{stepper: s})
}

func (c *CoopChannel) register(slot *coopSlot) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.slots[c.nextID] = slot
	return Handle{id: c.nextID}
}

func (c *CoopChannel) Poll(h Handle) (Reply, bool) {
	c.mu.Lock()
	slot, ok := c.slots[h.id]
	c.mu.Unlock()
	if !ok {
		return Reply{}, false
	}

	if slot.stepper != nil {
		reply, done := slot.stepper.Step(context.Background())
		if !done {
			return Reply{}, false
		}
		c.remove(h)
		return reply, true
	}

	reply := slot.task(context.Background())
	c.remove(h)
	return reply, true
}

func (c *CoopChannel) Abandon(h Handle) {
	// No cancellation of anything here. Dropping the slot guarantees the work
	// is never driven again and its reply can never be polled out.
	c.remove(h)
}

func (c *CoopChannel) remove(h Handle) {
	c.mu.Lock()
	delete(c.slots, h.id)
	c.mu.Unlock()
}

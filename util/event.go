package util

import (
	"context"
	"sync"
)

// Event is a one-shot latch. Once notified it stays notified, and every
// current and future waiter is released.
type Event struct {
	once sync.Once
	c    chan struct{}
}

func NewEvent() *Event {
	return &Event{
		c: make(chan struct{}),
	}
}

// Notify releases all waiters. Calls after the first are no-ops.
func (e *Event) Notify() {
	e.once.Do(func() {
		close(e.c)
	})
}

func (e *Event) Wait() {
	<-e.c
}

// WaitContext blocks until the event is notified or ctx is done.
func (e *Event) WaitContext(ctx context.Context) error {
	select {
	case <-e.c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// C returns a channel which is closed once the event is notified.
func (e *Event) C() <-chan struct{} {
	return e.c
}

func (e *Event) HasBeenNotified() bool {
	select {
	case <-e.c:
		return true
	default:
		return false
	}
}

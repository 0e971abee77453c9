package monitor

import (
	"context"
	"sync"
)

// Monitor pairs a mutex with a condition variable. State guarded by a Monitor is only
// touched inside the callbacks passed to its methods, and waiters re-check their
// predicate after every wakeup.
//
// The zero value is not usable; create monitors with New.
type Monitor struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// New creates a Monitor.
func New() *Monitor {
	m := &Monitor{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Wait blocks until pred returns true. pred is evaluated under the lock.
func (m *Monitor) Wait(pred func() bool) {
	m.WaitThen(pred, nil)
}

// WaitThen blocks until pred returns true and then runs fn while still holding the lock.
func (m *Monitor) WaitThen(pred func() bool, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for !pred() {
		m.cond.Wait()
	}
	if fn != nil {
		fn()
	}
}

// WaitContext is like WaitThen but gives up when ctx is done. It returns ctx.Err() in
// that case and fn is not called.
func (m *Monitor) WaitContext(ctx context.Context, pred func() bool, fn func()) error {
	// wake all waiters once ctx is done so they can observe it
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cond.Broadcast()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for !pred() {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.cond.Wait()
	}
	if fn != nil {
		fn()
	}
	return nil
}

// Signal runs fn under the lock and wakes every waiter afterwards.
func (m *Monitor) Signal(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn != nil {
		fn()
	}
	m.cond.Broadcast()
}

// Do runs fn under the lock without waking anyone.
func (m *Monitor) Do(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitSignal(t *testing.T) {
	m := New()
	ready := false

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Signal(func() { ready = true })
	}()

	m.Wait(func() bool { return ready })
	m.Do(func() { assert.True(t, ready) })
}

func TestSpuriousWakeups(t *testing.T) {
	m := New()
	counter := 0
	got := make(chan int, 1)

	go m.WaitThen(func() bool { return counter >= 5 }, func() { got <- counter })

	for i := 0; i < 5; i++ {
		m.Signal(func() { counter++ })
	}

	select {
	case v := <-got:
		assert.Equal(t, 5, v)
	case <-time.After(time.Second):
		t.Fatal("waiter was not released")
	}
}

func TestWaitContext(t *testing.T) {
	m := New()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err := m.WaitContext(ctx, func() bool { return false }, func() { called = true })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)

	// predicate already true returns immediately even with a done context
	err = m.WaitContext(ctx, func() bool { return true }, func() { called = true })
	assert.NoError(t, err)
	assert.True(t, called)
}

// TestFanInExactlyOnce lets n workers race to acknowledge a shared counter and checks
// that the completion transition happens exactly once and the waiter wakes exactly once.
func TestFanInExactlyOnce(t *testing.T) {
	for _, n := range []int{1, 2, 3, 8, 64} {
		for round := 0; round < 50; round++ {
			m := New()
			pending := n
			answered := false
			transitions := 0
			wakeups := 0

			var start sync.WaitGroup
			start.Add(1)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					start.Wait()
					m.Signal(func() {
						pending--
						if pending == 0 && !answered {
							answered = true
							transitions++
						}
					})
				}()
			}

			done := make(chan struct{})
			go func() {
				m.WaitThen(func() bool { return answered }, func() { wakeups++ })
				close(done)
			}()

			start.Done()
			wg.Wait()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatalf("n=%d: coordinator never woke", n)
			}

			m.Do(func() {
				require.Equal(t, 0, pending)
				require.Equal(t, 1, transitions, "n=%d", n)
				require.Equal(t, 1, wakeups, "n=%d", n)
			})
		}
	}
}

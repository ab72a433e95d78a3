package reconcile

import (
	"sync"
	"sync/atomic"
	"time"
)

// RedirectTimer runs a navigation once after a fixed delay unless cancelled
// first.
type RedirectTimer struct {
	deadline time.Time
	cancel   chan struct{}
	done     chan struct{}
	once     sync.Once
	fired    atomic.Bool
}

func newRedirectTimer(delay time.Duration, now time.Time, navigate func()) *RedirectTimer {
	t := &RedirectTimer{
		deadline: now.Add(delay),
		cancel:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	timer := time.NewTimer(delay)
	go func() {
		defer close(t.done)
		defer timer.Stop()

		select {
		case <-t.cancel:
		case <-timer.C:
			t.fired.Store(true)
			navigate()
		}
	}()
	return t
}

// Deadline is when the navigation runs.
func (t *RedirectTimer) Deadline() time.Time {
	return t.deadline
}

// Done is closed once the timer fired or was cancelled.
func (t *RedirectTimer) Done() <-chan struct{} {
	return t.done
}

// Fired reports whether the navigation ran.
func (t *RedirectTimer) Fired() bool {
	return t.fired.Load()
}

// Cancel stops the timer and reports whether that prevented the navigation.
// It waits for a navigation already in progress, so it must not be called
// from the navigation itself.
func (t *RedirectTimer) Cancel() bool {
	t.once.Do(func() { close(t.cancel) })
	<-t.done
	return !t.fired.Load()
}

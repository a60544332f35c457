package exam

import (
	"sync"
	"time"
)

// Timer counts down whole seconds on its own goroutine.
//
// onTick receives the remaining seconds after every tick and onExpire runs
// exactly once when the count reaches zero. Cancel may be called at any time,
// including from inside a callback; after it returns no new callback starts.
type Timer struct {
	clock Clock

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewTimer returns an idle timer driven by clock.
func NewTimer(clock Clock) *Timer {
	if clock == nil {
		clock = SystemClock
	}
	return &Timer{
		clock: clock,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start begins the countdown. A timer can be started once.
func (t *Timer) Start(totalSeconds int, onTick func(remaining int), onExpire func()) error {
	if totalSeconds <= 0 {
		return ErrInvalidDuration
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return ErrTimerStarted
	}
	t.started = true

	if t.stopped {
		close(t.done)
		return nil
	}

	ticker := t.clock.NewTicker(time.Second)
	go t.run(ticker, totalSeconds, onTick, onExpire)
	return nil
}

// Cancel stops the countdown. It is idempotent and never blocks.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	close(t.stop)
}

// Done is closed once a started timer has expired or been cancelled.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}

func (t *Timer) run(ticker Ticker, remaining int, onTick func(int), onExpire func()) {
	defer close(t.done)
	defer ticker.Stop()

	for remaining > 0 {
		select {
		case <-t.stop:
			return
		case <-ticker.C():
		}

		remaining--
		if !t.live() {
			return
		}
		if onTick != nil {
			onTick(remaining)
		}
	}

	if !t.live() {
		return
	}
	if onExpire != nil {
		onExpire()
	}
}

func (t *Timer) live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

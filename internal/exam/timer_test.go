package exam

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTimerTicksThenExpiresOnce(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock)

	var mu sync.Mutex
	var ticks []int
	expired := make(chan struct{}, 2)

	err := timer.Start(3, func(remaining int) {
		mu.Lock()
		ticks = append(ticks, remaining)
		mu.Unlock()
	}, func() {
		expired <- struct{}{}
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	tk := clock.lastTicker(t)
	if n := tk.TickN(3); n != 3 {
		t.Fatalf("expected 3 ticks accepted, got %d", n)
	}

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatalf("timer did not expire")
	}
	<-timer.Done()

	if tk.Tick() {
		t.Fatalf("ticker should be stopped after expiry")
	}
	select {
	case <-expired:
		t.Fatalf("onExpire fired twice")
	default:
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ticks) != 3 || ticks[0] != 2 || ticks[1] != 1 || ticks[2] != 0 {
		t.Fatalf("unexpected ticks %v", ticks)
	}
}

func TestTimerDoesNotExpireEarly(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock)

	expired := make(chan struct{}, 1)
	if err := timer.Start(5, nil, func() { expired <- struct{}{} }); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.lastTicker(t).TickN(4)
	select {
	case <-expired:
		t.Fatalf("expired after only 4 of 5 ticks")
	case <-time.After(50 * time.Millisecond):
	}
	timer.Cancel()
}

func TestTimerCancelStopsCallbacks(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock)

	ticked := make(chan int, 10)
	expired := make(chan struct{}, 1)
	if err := timer.Start(10, func(r int) { ticked <- r }, func() { expired <- struct{}{} }); err != nil {
		t.Fatalf("start: %v", err)
	}

	tk := clock.lastTicker(t)
	tk.Tick()
	<-ticked

	timer.Cancel()
	timer.Cancel()
	<-timer.Done()

	if tk.Tick() {
		t.Fatalf("tick accepted after cancel")
	}
	select {
	case <-expired:
		t.Fatalf("expired after cancel")
	default:
	}
}

func TestTimerCancelFromCallback(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock)

	calls := 0
	if err := timer.Start(5, func(int) {
		calls++
		timer.Cancel()
	}, nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.lastTicker(t).TickN(5)
	<-timer.Done()
	if calls != 1 {
		t.Fatalf("expected one tick before cancel, got %d", calls)
	}
}

func TestTimerStartErrors(t *testing.T) {
	timer := NewTimer(newFakeClock())

	if err := timer.Start(0, nil, nil); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if err := timer.Start(1, nil, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := timer.Start(1, nil, nil); !errors.Is(err, ErrTimerStarted) {
		t.Fatalf("expected ErrTimerStarted, got %v", err)
	}
	timer.Cancel()
}

func TestTimerCancelledBeforeStart(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock)
	timer.Cancel()

	if err := timer.Start(3, nil, func() { t.Errorf("expired after cancel") }); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-timer.Done():
	case <-time.After(time.Second):
		t.Fatalf("done not closed")
	}
}

package player

import (
	"testing"
	"time"
)

type sleepEvent struct {
	active bool
	left   int
}

func TestSleepTimerCountsDownAndStops(t *testing.T) {
	c, _, _, _ := newTestController(t, nil, WithSleepUnit(20*time.Millisecond))
	events := make(chan sleepEvent, 16)
	c.OnSleepTimerChanged(func(a bool, l int) { events <- sleepEvent{a, l} })
	quit := make(chan struct{}, 1)
	c.OnQuitRequested(func() { quit <- struct{}{} })

	if err := c.Play("http://h/x", "X", ""); err != nil {
		t.Fatalf("Play: %v", err)
	}
	c.SetSleepTimer(3, false)
	if active, left := c.SleepTimer(); !active || left != 3 {
		t.Fatalf("SleepTimer() = %v, %d", active, left)
	}

	want := []sleepEvent{{true, 3}, {true, 2}, {true, 1}, {false, 0}}
	for i, w := range want {
		select {
		case ev := <-events:
			if ev != w {
				t.Fatalf("event %d = %+v, want %+v", i, ev, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
	if c.IsPlaying() {
		t.Fatal("playback should stop when the timer expires")
	}
	select {
	case <-quit:
		t.Fatal("quit requested without quitOnExpire")
	default:
	}
}

func TestSleepTimerQuit(t *testing.T) {
	c, _, _, _ := newTestController(t, nil, WithSleepUnit(10*time.Millisecond))
	quit := make(chan struct{}, 1)
	c.OnQuitRequested(func() { quit <- struct{}{} })
	c.SetSleepTimer(1, true)
	select {
	case <-quit:
	case <-time.After(2 * time.Second):
		t.Fatal("quit not requested")
	}
	if active, _ := c.SleepTimer(); active {
		t.Fatal("timer still active after expiry")
	}
}

func TestSleepTimerCancel(t *testing.T) {
	c, _, _, _ := newTestController(t, nil, WithSleepUnit(time.Hour))
	var last sleepEvent
	calls := 0
	c.OnSleepTimerChanged(func(a bool, l int) { last = sleepEvent{a, l}; calls++ })

	c.CancelSleepTimer()
	if calls != 0 {
		t.Fatal("cancelling an idle timer should not notify")
	}
	c.SetSleepTimer(30, false)
	c.SetSleepTimer(45, false)
	if _, left := c.SleepTimer(); left != 45 {
		t.Fatalf("replacement timer left = %d", left)
	}
	c.SetSleepTimer(0, false)
	if active, _ := c.SleepTimer(); active || last != (sleepEvent{false, 0}) {
		t.Fatalf("timer not cancelled: %+v", last)
	}
}

func TestStopCancelsSleepTimer(t *testing.T) {
	c, _, _, _ := newTestController(t, nil, WithSleepUnit(time.Hour))
	c.SetSleepTimer(15, true)
	c.Stop()
	if active, _ := c.SleepTimer(); active {
		t.Fatal("Stop should cancel the sleep timer")
	}
}

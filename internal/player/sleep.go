package player

import (
	"context"
	"time"
)

// SleepPresets are the durations, in minutes, offered for the sleep timer.
var SleepPresets = []int{15, 30, 45, 60}

type sleepState struct {
	active bool
	left   int
	quit   bool
	cancel context.CancelFunc
}

// SetSleepTimer stops playback after minutes, replacing any running timer.
// With quitOnExpire the quit listeners fire as well. Non-positive minutes
// cancel the timer.
func (c *Controller) SetSleepTimer(minutes int, quitOnExpire bool) {
	if minutes <= 0 {
		c.CancelSleepTimer()
		return
	}
	c.stopSleep()

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.sleep = sleepState{active: true, left: minutes, quit: quitOnExpire, cancel: cancel}
	c.mu.Unlock()

	c.log.Info().Int("minutes", minutes).Bool("quit", quitOnExpire).Msg("sleep timer set")
	c.emitSleep(true, minutes)
	go c.runSleep(ctx, minutes)
}

// CancelSleepTimer stops a running timer and notifies listeners.
func (c *Controller) CancelSleepTimer() {
	if c.stopSleep() {
		c.emitSleep(false, 0)
	}
}

// SleepTimer reports whether a timer runs and how many minutes remain.
func (c *Controller) SleepTimer() (active bool, minutesLeft int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleep.active, c.sleep.left
}

// stopSleep clears the timer without notifying and reports whether one ran.
func (c *Controller) stopSleep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sleep.active {
		return false
	}
	c.sleep.cancel()
	c.sleep = sleepState{}
	return true
}

func (c *Controller) runSleep(ctx context.Context, minutes int) {
	ticker := time.NewTicker(c.sleepUnit)
	defer ticker.Stop()
	for left := minutes; ; {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		left--

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			return
		}
		if left > 0 {
			c.sleep.left = left
			c.mu.Unlock()
			c.emitSleep(true, left)
			continue
		}
		quit := c.sleep.quit
		c.sleep.cancel()
		c.sleep = sleepState{}
		c.mu.Unlock()

		c.log.Info().Bool("quit", quit).Msg("sleep timer expired")
		c.playMu.Lock()
		c.stopPlayback()
		c.playMu.Unlock()
		c.emitSleep(false, 0)
		if quit {
			c.emitQuit()
		}
		return
	}
}

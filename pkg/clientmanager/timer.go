package clientmanager

import (
	"sync"
	"time"
)

// repeatingTimer fires tick on a self-rescheduling time.AfterFunc, the same
// idiom evse's per-connector timers use, applied here to the station-wide
// OCPP Heartbeat (§4.3), which has no single connector to live on.
type repeatingTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	running bool
	tick    func()
}

func newRepeatingTimer(tick func()) *repeatingTimer {
	return &repeatingTimer{tick: tick}
}

// Start begins firing every interval until Stop is called. Calling Start
// while already running reschedules with the new interval.
func (t *repeatingTimer) Start(interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.running = true
	t.timer = time.AfterFunc(interval, func() { t.fire(interval) })
}

// Stop cancels the timer. Safe to call whether or not it is running.
func (t *repeatingTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *repeatingTimer) fire(interval time.Duration) {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.tick()

	t.mu.Lock()
	if t.running {
		t.timer = time.AfterFunc(interval, func() { t.fire(interval) })
	}
	t.mu.Unlock()
}

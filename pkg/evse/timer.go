package evse

import (
	"strconv"
	"sync"
	"time"
)

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// machineTimer wraps a repeating time.AfterFunc with explicit
// start/stop/reschedule semantics: if Stop is called concurrently with a
// fire, the fired tick does not reschedule (§4.4 cancellation semantics).
type machineTimer struct {
	mu       sync.Mutex
	timer    *time.Timer
	interval time.Duration
	running  bool
	tick     func()
}

func newMachineTimer(tick func()) *machineTimer {
	return &machineTimer{tick: tick}
}

// Start begins firing every interval until Stop is called. Calling Start
// while already running reschedules with the new interval.
func (t *machineTimer) Start(interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.interval = interval
	t.running = true
	t.timer = time.AfterFunc(interval, t.fire)
}

// Stop cancels the timer. Safe to call whether or not it is running.
func (t *machineTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *machineTimer) fire() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	interval := t.interval
	t.mu.Unlock()

	t.tick()

	t.mu.Lock()
	if t.running {
		t.timer = time.AfterFunc(interval, t.fire)
	}
	t.mu.Unlock()
}

// StartHeartbeat starts the heartbeat timer at the given interval. The
// timer has no direct side effect beyond its existence; the owning
// client manager observes it as a liveness tick via onHeartbeat.
func (m *Machine) StartHeartbeat(interval time.Duration, onHeartbeat func()) {
	if onHeartbeat != nil {
		m.heartbeat.tick = onHeartbeat
	}
	m.heartbeat.Start(interval)
}

// StopHeartbeat cancels the heartbeat timer.
func (m *Machine) StopHeartbeat() {
	m.heartbeat.Stop()
}

// SetMeterValueInterval configures the interval used the next time the
// meter-value timer is (re)started on entry to Charging, without starting
// it immediately.
func (m *Machine) SetMeterValueInterval(interval time.Duration) {
	m.mu.Lock()
	m.meterValueInterval = interval
	m.mu.Unlock()
}

// StartMeterValueTimer starts the meter-value timer at interval. If
// interval is 0, the previously configured interval (if any) is reused;
// this lets ProcessEvent restart the timer on re-entry to Charging
// without needing to know the configured interval.
func (m *Machine) StartMeterValueTimer(interval time.Duration) {
	if interval == 0 {
		m.mu.Lock()
		interval = m.meterValueInterval
		m.mu.Unlock()
		if interval == 0 {
			return
		}
	} else {
		m.mu.Lock()
		m.meterValueInterval = interval
		m.mu.Unlock()
	}
	m.meterValue.Start(interval)
}

// StopMeterValueTimer cancels the meter-value timer.
func (m *Machine) StopMeterValueTimer() {
	m.meterValue.Stop()
}

func (m *Machine) onMeterValueTick() {
	value, ok := m.currentMeterValue()
	if !ok {
		return
	}
	m.addMeterValue(value, time.Now())
}

// currentMeterValue reads and scales "MeterValue.Energy.Active.Import.Register",
// the same lookup onMeterValueTick uses for periodic sampling, for callers
// that need the instantaneous value without recording a sample (§4.4
// Started/Ended TransactionEvents).
func (m *Machine) currentMeterValue() (float64, bool) {
	v, ok := m.Variable("MeterValue.Energy.Active.Import.Register")
	if !ok {
		return 0, false
	}
	raw, err := parseFloat(v.Value)
	if err != nil {
		return 0, false
	}
	if v.Scale != nil {
		raw *= *v.Scale
	}
	return raw, true
}

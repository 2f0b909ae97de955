package device

import (
	"sync"
	"time"

	"github.com/ocppgw/ocpp-gateway/pkg/gwerr"
)

// Adapter is the uniform contract every protocol-specific device adapter
// implements (§4.5).
type Adapter interface {
	Initialize() error
	Start() error
	Stop()
	IsRunning() bool
	Protocol() Protocol

	AddDevice(info Info) error
	RemoveDevice(id string) error
	DeviceInfo(id string) (Info, bool)
	AllDevices() []Info

	StartDiscovery(cb DiscoveryCallback, timeout time.Duration) error
	StopDiscovery()
	DiscoveryInProgress() bool

	ReadRegister(deviceID string, addr RegisterAddress) ReadResult
	WriteRegister(deviceID string, addr RegisterAddress, value RegisterValue) WriteResult
	ReadMultipleRegisters(deviceID string, addrs []RegisterAddress) map[RegisterAddress]ReadResult
	WriteMultipleRegisters(deviceID string, values map[RegisterAddress]RegisterValue) map[RegisterAddress]WriteResult

	ReadRegisterAsync(deviceID string, addr RegisterAddress) <-chan ReadResult
	WriteRegisterAsync(deviceID string, addr RegisterAddress, value RegisterValue) <-chan WriteResult

	IsDeviceOnline(deviceID string) bool
	SetDeviceStatusCallback(deviceID string, cb StatusCallback) error
}

// Base implements the protocol-independent bookkeeping shared by all
// adapters: the device table, per-device status callbacks, and the
// running/discovery flags. Protocol packages embed Base and implement the
// register I/O and discovery themselves.
//
// devicesMu and callbacksMu are separate (§9 Open Question): the device
// map lock is released before a status callback is invoked, so a
// callback that calls back into the adapter cannot deadlock it.
type Base struct {
	protocol Protocol

	runningMu   sync.Mutex
	running     bool
	discovering bool

	devicesMu sync.Mutex
	devices   map[string]Info

	callbacksMu sync.Mutex
	callbacks   map[string]StatusCallback
}

// NewBase creates a Base for the given protocol.
func NewBase(protocol Protocol) *Base {
	return &Base{
		protocol:  protocol,
		devices:   make(map[string]Info),
		callbacks: make(map[string]StatusCallback),
	}
}

// Protocol returns the protocol this adapter speaks.
func (b *Base) Protocol() Protocol { return b.protocol }

// SetRunning records the running flag; idempotent transitions are the
// caller's responsibility (Start/Stop check IsRunning first).
func (b *Base) SetRunning(running bool) {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()
	b.running = running
}

// IsRunning reports whether Start has been called without a matching
// Stop.
func (b *Base) IsRunning() bool {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()
	return b.running
}

// SetDiscovering records whether discovery is in progress.
func (b *Base) SetDiscovering(discovering bool) {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()
	b.discovering = discovering
}

// DiscoveryInProgress reports whether a discovery scan is running.
func (b *Base) DiscoveryInProgress() bool {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()
	return b.discovering
}

// AddDevice registers a new device, rejecting a duplicate id.
func (b *Base) AddDevice(info Info) error {
	b.devicesMu.Lock()
	defer b.devicesMu.Unlock()

	if _, exists := b.devices[info.ID]; exists {
		return gwerr.NewConfigValidation("device.AddDevice", "duplicate device id "+info.ID)
	}
	b.devices[info.ID] = info
	return nil
}

// RemoveDevice deletes a device and its status callback.
func (b *Base) RemoveDevice(id string) error {
	b.devicesMu.Lock()
	if _, exists := b.devices[id]; !exists {
		b.devicesMu.Unlock()
		return gwerr.New(gwerr.Device, "device.RemoveDevice", "device not found: "+id)
	}
	delete(b.devices, id)
	b.devicesMu.Unlock()

	b.callbacksMu.Lock()
	delete(b.callbacks, id)
	b.callbacksMu.Unlock()
	return nil
}

// DeviceInfo returns the stored Info for id.
func (b *Base) DeviceInfo(id string) (Info, bool) {
	b.devicesMu.Lock()
	defer b.devicesMu.Unlock()
	info, ok := b.devices[id]
	return info, ok
}

// AllDevices returns a snapshot of all managed devices.
func (b *Base) AllDevices() []Info {
	b.devicesMu.Lock()
	defer b.devicesMu.Unlock()
	out := make([]Info, 0, len(b.devices))
	for _, info := range b.devices {
		out = append(out, info)
	}
	return out
}

// SetDeviceStatusCallback installs the at-most-one status callback for a
// device.
func (b *Base) SetDeviceStatusCallback(id string, cb StatusCallback) error {
	b.devicesMu.Lock()
	_, exists := b.devices[id]
	b.devicesMu.Unlock()
	if !exists {
		return gwerr.New(gwerr.Device, "device.SetDeviceStatusCallback", "device not found: "+id)
	}

	b.callbacksMu.Lock()
	b.callbacks[id] = cb
	b.callbacksMu.Unlock()
	return nil
}

// IsDeviceOnline reports the stored online flag for id.
func (b *Base) IsDeviceOnline(id string) bool {
	b.devicesMu.Lock()
	defer b.devicesMu.Unlock()
	return b.devices[id].Online
}

// UpdateDeviceStatus records an online/offline transition and invokes the
// device's status callback, but only when the status actually changes
// (§4.5: "not on redundant updates"). The device-map lock is released
// before the callback runs.
func (b *Base) UpdateDeviceStatus(id string, online bool) {
	b.devicesMu.Lock()
	info, exists := b.devices[id]
	if !exists {
		b.devicesMu.Unlock()
		return
	}
	changed := info.Online != online
	if changed {
		info.Online = online
		info.LastSeen = time.Now()
		b.devices[id] = info
	}
	b.devicesMu.Unlock()

	if !changed {
		return
	}

	b.callbacksMu.Lock()
	cb := b.callbacks[id]
	b.callbacksMu.Unlock()

	if cb != nil {
		cb(id, online)
	}
}

// MarkAllOffline transitions every device to offline, invoking callbacks
// for any that were online. Used by Stop (§4.5: "marks all devices
// offline").
func (b *Base) MarkAllOffline() {
	b.devicesMu.Lock()
	ids := make([]string, 0, len(b.devices))
	for id, info := range b.devices {
		if info.Online {
			ids = append(ids, id)
		}
	}
	b.devicesMu.Unlock()

	for _, id := range ids {
		b.UpdateDeviceStatus(id, false)
	}
}

package echonet

import (
	"fmt"
	"strings"
	"time"

	"github.com/ocppgw/ocpp-gateway/internal/logger"
	"github.com/ocppgw/ocpp-gateway/pkg/device"
)

// StartDiscovery broadcasts the node-profile instance-list GET over
// multicast and delivers one callback per newly seen EV charger device
// until timeout elapses (§4.6).
func (a *Adapter) StartDiscovery(cb device.DiscoveryCallback, timeout time.Duration) error {
	if a.DiscoveryInProgress() {
		return nil
	}
	a.SetDiscovering(true)

	tid := a.nextTransactionID()
	a.discoveryMu.Lock()
	a.discoveryTID = tid
	a.discoveryCB = cb
	a.discoverySeen = make(map[string]bool)
	a.discoveryStop = make(chan struct{})
	stop := a.discoveryStop
	a.discoveryMu.Unlock()

	frame := NewDiscoveryFrame(tid)
	if err := a.multicastSend(frame.Serialize()); err != nil {
		a.StopDiscovery()
		return err
	}

	go func() {
		select {
		case <-time.After(timeout):
		case <-stop:
		}
		a.StopDiscovery()
	}()

	return nil
}

// StopDiscovery ends the current discovery scan, if any.
func (a *Adapter) StopDiscovery() {
	a.discoveryMu.Lock()
	if a.discoveryStop != nil {
		select {
		case <-a.discoveryStop:
		default:
			close(a.discoveryStop)
		}
	}
	a.discoveryCB = nil
	a.discoveryTID = 0
	a.discoveryMu.Unlock()
	a.SetDiscovering(false)
}

// handleDiscoveryResponse parses a node-profile instance-list response and
// reports each newly seen EV charger object to the active discovery
// callback.
func (a *Adapter) handleDiscoveryResponse(sourceIP string, frame Frame) {
	prop, ok := frame.Property(EPCSelfNodeInstanceListS)
	if !ok || len(prop.EDT) < 1 {
		return
	}

	count := int(prop.EDT[0])
	edt := prop.EDT[1:]
	for i := 0; i < count; i++ {
		offset := i * 3
		if offset+3 > len(edt) {
			logger.Warn("truncated instance list in ECHONET Lite discovery response", logger.Attempt(i))
			break
		}
		classGroup, class, instance := edt[offset], edt[offset+1], edt[offset+2]
		if classGroup != EVChargerClassGroup || class != EVChargerClass {
			continue
		}

		id := fmt.Sprintf("echonet_%s_%02x_%02x_%02x", sourceIP, classGroup, class, instance)

		a.discoveryMu.Lock()
		cb := a.discoveryCB
		key := sourceIP + id
		if cb == nil || a.discoverySeen[key] {
			a.discoveryMu.Unlock()
			continue
		}
		a.discoverySeen[key] = true
		a.discoveryMu.Unlock()

		cb(device.Info{
			ID:       id,
			Protocol: device.ProtocolEchonetLite,
			Address:  device.EchonetLiteAddress{IP: sourceIP, Port: unicastPort},
			Online:   true,
			LastSeen: time.Now(),
		})
	}
}

// statusMonitorLoop polls each known EV charger's operation status every
// statusInterval and updates its online/offline flag on transition
// (§4.6).
func (a *Adapter) statusMonitorLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.pollDeviceStatus()
		}
	}
}

func (a *Adapter) pollDeviceStatus() {
	for _, info := range a.AllDevices() {
		addr, ok := info.Address.(device.EchonetLiteAddress)
		if !ok {
			continue
		}
		instance, ok := instanceFromDeviceID(info.ID)
		if !ok {
			continue
		}

		deoj := EOJ{EVChargerClassGroup, EVChargerClass, instance}
		frame := NewGetFrame(a.nextTransactionID(), deoj, []byte{EPCOperationStatus})
		resp, err := a.sendRequestWithResponse(addr.IP, frame, defaultTimeout)
		if err != nil || IsErrorResponse(resp.ESV) {
			a.UpdateDeviceStatus(info.ID, false)
			continue
		}
		a.UpdateDeviceStatus(info.ID, true)
	}
}

// instanceFromDeviceID recovers the EOJ instance number encoded in a
// discovery-synthesized device id ("echonet_<ip>_<cg>_<cc>_<inst>").
func instanceFromDeviceID(id string) (byte, bool) {
	parts := strings.Split(id, "_")
	if len(parts) < 5 {
		return 0, false
	}
	var instance uint64
	if _, err := fmt.Sscanf(parts[len(parts)-1], "%02x", &instance); err != nil {
		return 0, false
	}
	return byte(instance), true
}

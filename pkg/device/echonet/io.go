package echonet

import (
	"github.com/ocppgw/ocpp-gateway/pkg/device"
)

// ReadRegister performs a single GET against one EPC (§4.6).
func (a *Adapter) ReadRegister(deviceID string, addr device.RegisterAddress) device.ReadResult {
	if err := device.ValidateRegisterAddress(addr); err != nil {
		return device.ErrorReadResult(err.Error(), 0)
	}
	ip, err := a.addressFor(deviceID)
	if err != nil {
		return device.ErrorReadResult(err.Error(), 0)
	}

	deoj := EOJ{addr.EOJClassGroup, addr.EOJClass, addr.EOJInstance}
	frame := NewGetFrame(a.nextTransactionID(), deoj, []byte{addr.EPCCode})
	resp, err := a.sendRequestWithResponse(ip, frame, defaultTimeout)
	if err != nil {
		return device.ErrorReadResult(err.Error(), 0)
	}
	if IsErrorResponse(resp.ESV) {
		return device.ErrorReadResult("device returned an error response", 0)
	}

	prop, ok := resp.Property(addr.EPCCode)
	if !ok {
		return device.ErrorReadResult("property not found in response", 0)
	}
	return device.SuccessReadResult(device.RegisterValue{Type: device.Binary, Data: prop.EDT})
}

// WriteRegister performs a single SET against one EPC (§4.6).
func (a *Adapter) WriteRegister(deviceID string, addr device.RegisterAddress, value device.RegisterValue) device.WriteResult {
	if err := device.ValidateRegisterAddress(addr); err != nil {
		return device.ErrorWriteResult(err.Error(), 0)
	}
	if err := device.ValidateWritable(addr); err != nil {
		return device.ErrorWriteResult(err.Error(), 0)
	}
	ip, err := a.addressFor(deviceID)
	if err != nil {
		return device.ErrorWriteResult(err.Error(), 0)
	}

	deoj := EOJ{addr.EOJClassGroup, addr.EOJClass, addr.EOJInstance}
	frame := NewSetFrame(a.nextTransactionID(), deoj, addr.EPCCode, value.Data)
	resp, err := a.sendRequestWithResponse(ip, frame, defaultTimeout)
	if err != nil {
		return device.ErrorWriteResult(err.Error(), 0)
	}
	if IsErrorResponse(resp.ESV) {
		return device.ErrorWriteResult("device returned an error response", 0)
	}
	return device.SuccessWriteResult()
}

// ReadMultipleRegisters groups addrs by their EOJ triple and issues one
// GET per group, distributing results back by EPC (§4.6 read batching).
func (a *Adapter) ReadMultipleRegisters(deviceID string, addrs []device.RegisterAddress) map[device.RegisterAddress]device.ReadResult {
	results := make(map[device.RegisterAddress]device.ReadResult, len(addrs))

	groups := make(map[EOJ][]device.RegisterAddress)
	var order []EOJ
	for _, addr := range addrs {
		if err := device.ValidateRegisterAddress(addr); err != nil {
			results[addr] = device.ErrorReadResult(err.Error(), 0)
			continue
		}
		eoj := EOJ{addr.EOJClassGroup, addr.EOJClass, addr.EOJInstance}
		if _, seen := groups[eoj]; !seen {
			order = append(order, eoj)
		}
		groups[eoj] = append(groups[eoj], addr)
	}

	ip, err := a.addressFor(deviceID)
	if err != nil {
		for _, addr := range addrs {
			if _, done := results[addr]; !done {
				results[addr] = device.ErrorReadResult(err.Error(), 0)
			}
		}
		return results
	}

	for _, eoj := range order {
		group := groups[eoj]
		epcs := make([]byte, len(group))
		for i, addr := range group {
			epcs[i] = addr.EPCCode
		}

		frame := NewGetFrame(a.nextTransactionID(), eoj, epcs)
		resp, err := a.sendRequestWithResponse(ip, frame, defaultTimeout)
		for _, addr := range group {
			if err != nil {
				results[addr] = device.ErrorReadResult(err.Error(), 0)
				continue
			}
			if IsErrorResponse(resp.ESV) {
				results[addr] = device.ErrorReadResult("device returned an error response", 0)
				continue
			}
			prop, ok := resp.Property(addr.EPCCode)
			if !ok {
				results[addr] = device.ErrorReadResult("property not found in response", 0)
				continue
			}
			results[addr] = device.SuccessReadResult(device.RegisterValue{Type: device.Binary, Data: prop.EDT})
		}
	}

	return results
}

// WriteMultipleRegisters issues one SET per address; ECHONET Lite write
// batching is not required by §4.6 the way reads are.
func (a *Adapter) WriteMultipleRegisters(deviceID string, values map[device.RegisterAddress]device.RegisterValue) map[device.RegisterAddress]device.WriteResult {
	results := make(map[device.RegisterAddress]device.WriteResult, len(values))
	for addr, value := range values {
		results[addr] = a.WriteRegister(deviceID, addr, value)
	}
	return results
}

// ReadRegisterAsync runs ReadRegister on a goroutine, delivering the
// result on the returned channel (§4.5's std::future<T> translation).
func (a *Adapter) ReadRegisterAsync(deviceID string, addr device.RegisterAddress) <-chan device.ReadResult {
	return device.RunReadAsync(func() device.ReadResult {
		return a.ReadRegister(deviceID, addr)
	})
}

// WriteRegisterAsync runs WriteRegister on a goroutine, delivering the
// result on the returned channel.
func (a *Adapter) WriteRegisterAsync(deviceID string, addr device.RegisterAddress, value device.RegisterValue) <-chan device.WriteResult {
	return device.RunWriteAsync(func() device.WriteResult {
		return a.WriteRegister(deviceID, addr, value)
	})
}

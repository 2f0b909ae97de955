// Package modbus implements the Modbus RTU and TCP device adapters
// (§4.7): a shared connection pool, contiguous-range register grouping,
// and raw-register/RegisterValue conversion, built on goburrow/modbus.
package modbus

import (
	"sort"

	"github.com/ocppgw/ocpp-gateway/pkg/device"
)

const (
	maxBitSpan      = 2000
	maxRegisterSpan = 125
)

// RegisterGroup is a contiguous run of addresses of the same register
// type that can be read or written in a single Modbus request.
type RegisterGroup struct {
	Type      device.RegisterType
	Start     uint32
	Count     uint16
	Addresses []device.RegisterAddress
}

func spanFor(t device.RegisterType) uint16 {
	switch t {
	case device.Coil, device.DiscreteInput:
		return maxBitSpan
	default:
		return maxRegisterSpan
	}
}

// groupRegisters buckets addrs by RegisterType and merges contiguous or
// overlapping ranges into single groups, bounded by the Modbus protocol's
// per-request count limit (§4.7, mirroring the original's
// RegisterGroup batching).
func groupRegisters(addrs []device.RegisterAddress) []RegisterGroup {
	byType := make(map[device.RegisterType][]device.RegisterAddress)
	var typeOrder []device.RegisterType
	for _, addr := range addrs {
		if _, seen := byType[addr.Type]; !seen {
			typeOrder = append(typeOrder, addr.Type)
		}
		byType[addr.Type] = append(byType[addr.Type], addr)
	}

	var groups []RegisterGroup
	for _, t := range typeOrder {
		list := byType[t]
		sort.Slice(list, func(i, j int) bool { return list[i].Address < list[j].Address })

		limit := spanFor(t)
		var current *RegisterGroup
		for _, addr := range list {
			end := addr.Address + uint32(addr.Count)
			if current != nil && addr.Address <= current.Start+uint32(current.Count) &&
				end-current.Start <= uint32(limit) {
				if end > current.Start+uint32(current.Count) {
					current.Count = uint16(end - current.Start)
				}
				current.Addresses = append(current.Addresses, addr)
				continue
			}

			groups = append(groups, RegisterGroup{
				Type:      t,
				Start:     addr.Address,
				Count:     addr.Count,
				Addresses: []device.RegisterAddress{addr},
			})
			current = &groups[len(groups)-1]
		}
	}
	return groups
}

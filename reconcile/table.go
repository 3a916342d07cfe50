package reconcile

import (
	"cmp"
	"slices"

	"clusterlink/device"
	"clusterlink/reconcile/resolve"
)

// table is the device table. Owned by the loop goroutine.
type table struct {
	devices map[string]*device.Device
	version uint64
}

func newTable() *table {
	return &table{devices: make(map[string]*device.Device)}
}

var _ resolve.Table = (*table)(nil)

func (t *table) Lookup(key string) (resolve.Device, bool) {
	d, ok := t.devices[key]
	if !ok {
		return nil, false
	}
	return d, true
}

func (t *table) Devices() []resolve.Device {
	out := make([]resolve.Device, 0, len(t.devices))
	for _, d := range t.sorted() {
		out = append(out, d)
	}
	return out
}

func (t *table) sorted() []*device.Device {
	out := make([]*device.Device, 0, len(t.devices))
	for _, d := range t.devices {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *device.Device) int { return cmp.Compare(a.Key(), b.Key()) })
	return out
}

// DeviceStatus is a read-only view of one device.
type DeviceStatus struct {
	Key      string
	HostName string
	State    device.State
}

// Snapshot is a read-only view of the device table.
type Snapshot struct {
	// Version increases every time a poll changes the table.
	Version uint64
	Devices []DeviceStatus
}

func (t *table) snapshot() Snapshot {
	s := Snapshot{Version: t.version, Devices: make([]DeviceStatus, 0, len(t.devices))}
	for _, d := range t.sorted() {
		s.Devices = append(s.Devices, DeviceStatus{Key: d.Key(), HostName: d.HostName(), State: d.State()})
	}
	return s
}
